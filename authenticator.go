package cms

import (
	"context"
	"time"

	"github.com/goliatone/go-cms/repository"
	"github.com/google/uuid"
)

// UserFinder loads users by id
type UserFinder interface {
	Get(ctx context.Context, id uuid.UUID, criteria ...repository.SelectCriteria) (*User, error)
}

// Guard resolves bearer tokens into users and enforces roles. Checks run in
// a fixed order: authentication first, then active status, then role.
type Guard struct {
	tokens *TokenService
	users  UserFinder
	now    func() time.Time
	logger Logger
}

// NewGuard returns a new Guard
func NewGuard(tokens *TokenService, users UserFinder) *Guard {
	return &Guard{
		tokens: tokens,
		users:  users,
		now:    time.Now,
		logger: defLogger(),
	}
}

func (g *Guard) WithLogger(logger Logger) *Guard {
	if logger != nil {
		g.logger = logger
	}
	return g
}

func (g *Guard) WithClock(now func() time.Time) *Guard {
	if now != nil {
		g.now = now
	}
	return g
}

// Authenticate verifies an access token and loads its active user.
func (g *Guard) Authenticate(ctx context.Context, token string) (*User, error) {
	user, err := g.resolve(ctx, token, AccessToken)
	if err != nil {
		return nil, err
	}

	if !user.IsActive {
		return nil, ErrUserInactive
	}

	return user, nil
}

// RequireRole passes the user through when its role is allowed.
func (g *Guard) RequireRole(user *User, roles ...UserRole) (*User, error) {
	if user == nil {
		return nil, ErrUnauthorized
	}

	if !user.Role.Allows(roles...) {
		g.logger.Info("Guard denied role", "user_id", user.ID, "role", user.Role, "required", roles)
		return nil, ErrForbidden
	}

	return user, nil
}

// Authorize is Authenticate followed by RequireRole
func (g *Guard) Authorize(ctx context.Context, token string, roles ...UserRole) (*User, error) {
	user, err := g.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	return g.RequireRole(user, roles...)
}

// Refresh trades a refresh token for a new pair. Any failure, including an
// inactive or missing user, is reported as ErrUnauthorized.
func (g *Guard) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	user, err := g.resolve(ctx, refreshToken, RefreshToken)
	if err != nil {
		return TokenPair{}, err
	}

	if !user.IsActive {
		g.logger.Info("Guard refused refresh for inactive user", "user_id", user.ID)
		return TokenPair{}, ErrUnauthorized
	}

	return g.tokens.IssuePair(user.ID.String())
}

// Login issues a token pair for an already authenticated user
func (g *Guard) Login(user *User) (TokenPair, error) {
	if user == nil || !user.IsActive {
		return TokenPair{}, ErrInvalidCredentials
	}
	return g.tokens.IssuePair(user.ID.String())
}

func (g *Guard) resolve(ctx context.Context, token string, kind TokenType) (*User, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}

	claims, err := g.tokens.Verify(token, kind, g.now())
	if err != nil {
		g.logger.Debug("Guard rejected token", "error", err, "type", kind)
		return nil, ErrUnauthorized
	}

	id, err := claims.UserID()
	if err != nil {
		g.logger.Debug("Guard rejected token subject", "error", err)
		return nil, ErrUnauthorized
	}

	user, err := g.users.Get(ctx, id)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}

	return user, nil
}
