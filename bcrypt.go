package cms

import (
	"context"
	"errors"

	goerrors "github.com/goliatone/go-errors"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"
)

// MaxPasswordBytes is the bcrypt input limit
const MaxPasswordBytes = 72

// PasswordHasher hashes and verifies passwords with bcrypt. At most
// maxConcurrent hashes run at the same time, callers wait their turn.
type PasswordHasher struct {
	cost      int
	sem       *semaphore.Weighted
	dummyHash []byte
}

type HasherOption func(*PasswordHasher)

// WithHashCost sets the bcrypt cost
func WithHashCost(cost int) HasherOption {
	return func(h *PasswordHasher) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			h.cost = cost
		}
	}
}

// WithMaxConcurrentHashes bounds parallel hashing
func WithMaxConcurrentHashes(n int) HasherOption {
	return func(h *PasswordHasher) {
		if n > 0 {
			h.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// NewPasswordHasher returns a hasher using passwordHashCost unless told otherwise
func NewPasswordHasher(opts ...HasherOption) *PasswordHasher {
	h := &PasswordHasher{
		cost: passwordHashCost(),
		sem:  semaphore.NewWeighted(4),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}

	// used to keep the unknown user path as slow as the wrong password path
	h.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy-password-for-timing"), h.cost)

	return h
}

// NewPasswordHasherFromConfig builds a hasher from config values
func NewPasswordHasherFromConfig(cfg PasswordConfig) *PasswordHasher {
	return NewPasswordHasher(
		WithHashCost(cfg.GetHashCost()),
		WithMaxConcurrentHashes(cfg.GetMaxConcurrentHashes()),
	)
}

// HashPassword will generate a password hash
func (h *PasswordHasher) HashPassword(ctx context.Context, password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	if len(password) > MaxPasswordBytes {
		return "", ErrPasswordTooLong
	}

	if err := h.acquire(ctx); err != nil {
		return "", err
	}
	defer h.sem.Release(1)

	out, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}
	return string(out), nil
}

// ComparePasswordAndHash will validate the given cleartext
// password matches the hashed password
func (h *PasswordHasher) ComparePasswordAndHash(ctx context.Context, password, hash string) error {
	if password == "" || len(password) > MaxPasswordBytes {
		return ErrMismatchedHashAndPassword
	}

	if err := h.acquire(ctx); err != nil {
		return err
	}
	defer h.sem.Release(1)

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrMismatchedHashAndPassword
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to compare password hash")
	}
	return nil
}

// Verify is ComparePasswordAndHash as a boolean
func (h *PasswordHasher) Verify(ctx context.Context, password, hash string) bool {
	return h.ComparePasswordAndHash(ctx, password, hash) == nil
}

// Burn spends the same time a real comparison would. The result is ignored.
func (h *PasswordHasher) Burn(ctx context.Context, password string) {
	if len(h.dummyHash) == 0 {
		return
	}
	if err := h.acquire(ctx); err != nil {
		return
	}
	defer h.sem.Release(1)
	_ = bcrypt.CompareHashAndPassword(h.dummyHash, []byte(password))
}

func (h *PasswordHasher) acquire(ctx context.Context) error {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return goerrors.WrapRetryable(err, goerrors.CategoryOperation, "password hashing unavailable").
			WithCode(goerrors.CodeRequestTimeout)
	}
	return nil
}
