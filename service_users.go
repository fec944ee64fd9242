package cms

import (
	"context"
	"strings"

	"github.com/goliatone/go-cms/repository"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// UserService handles registration, credential checks and account updates
type UserService struct {
	repos  RepositoryManager
	hasher *PasswordHasher
	logger Logger
}

func NewUserService(repos RepositoryManager, hasher *PasswordHasher) *UserService {
	return &UserService{
		repos:  repos,
		hasher: hasher,
		logger: defLogger(),
	}
}

func (s *UserService) WithLogger(logger Logger) *UserService {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// Create registers a regular, active user
func (s *UserService) Create(ctx context.Context, payload UserCreate) (*User, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	email := strings.TrimSpace(payload.Email)

	if _, err := s.repos.Users().GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !repository.IsRecordNotFound(err) {
		return nil, err
	}

	hash, err := s.hasher.HashPassword(ctx, payload.Password)
	if err != nil {
		return nil, err
	}

	user, err := s.repos.Users().Create(ctx, &User{
		Email:          email,
		FullName:       strings.TrimSpace(payload.FullName),
		HashedPassword: hash,
		IsActive:       true,
		Role:           RoleUser,
	})
	if err != nil {
		// lost the race against a concurrent registration
		if repository.IsDuplicateKeyOn(err, "email") {
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	s.logger.Info("UserService registered user", "user_id", user.ID)
	return user, nil
}

// Authenticate checks credentials. Unknown email and wrong password both
// return ErrInvalidCredentials and take about the same time.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repos.Users().GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if repository.IsRecordNotFound(err) {
			s.hasher.Burn(ctx, password)
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := s.hasher.ComparePasswordAndHash(ctx, password, user.HashedPassword); err != nil {
		if goerrors.Is(err, ErrMismatchedHashAndPassword) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	return user, nil
}

// BootstrapSuperuser makes sure an admin with email exists. An existing
// user is returned untouched, so this is safe to run on every start.
func (s *UserService) BootstrapSuperuser(ctx context.Context, email, password, fullName string) (*User, error) {
	hash, err := s.hasher.HashPassword(ctx, password)
	if err != nil {
		return nil, err
	}

	var user *User
	err = s.repos.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		user, err = s.repos.Users().GetOrCreateTx(ctx, tx, &User{
			Email:          strings.TrimSpace(email),
			FullName:       strings.TrimSpace(fullName),
			HashedPassword: hash,
			IsActive:       true,
			Role:           RoleAdmin,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("UserService superuser ready", "user_id", user.ID, "role", user.Role)
	return user, nil
}

// GetByEmail finds a user by email
func (s *UserService) GetByEmail(ctx context.Context, email string) (*User, error) {
	user, err := s.repos.Users().GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

// AdminUpdate changes role and active flag of the user with email
func (s *UserService) AdminUpdate(ctx context.Context, email string, payload AdminUserUpdate) (*User, error) {
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	var user *User
	err := s.repos.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		current, err := s.repos.Users().GetByEmailTx(ctx, tx, strings.TrimSpace(email))
		if err != nil {
			if repository.IsRecordNotFound(err) {
				return ErrUserNotFound
			}
			return err
		}

		columns := make([]string, 0, 2)
		if payload.Role != nil {
			current.Role = *payload.Role
			columns = append(columns, "role")
		}
		if payload.IsActive != nil {
			current.IsActive = *payload.IsActive
			columns = append(columns, "is_active")
		}

		if len(columns) == 0 {
			user = current
			return nil
		}

		user, err = s.repos.Users().UpdateTx(ctx, tx, current, columns...)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("UserService admin update", "user_id", user.ID, "role", user.Role, "active", user.IsActive)
	return user, nil
}

// UpdateProfile lets users change their own profile
func (s *UserService) UpdateProfile(ctx context.Context, user *User, payload UserUpdate) (*User, error) {
	if user == nil {
		return nil, ErrUnauthorized
	}

	if err := payload.Validate(); err != nil {
		return nil, err
	}

	if payload.FullName == nil {
		return user, nil
	}

	record := *user
	record.FullName = strings.TrimSpace(*payload.FullName)

	updated, err := s.repos.Users().Update(ctx, &record, "full_name")
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return updated, nil
}
