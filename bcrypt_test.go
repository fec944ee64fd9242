package cms_test

import (
	"context"
	"strings"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/goliatone/go-cms"
)

func newHasher() *cms.PasswordHasher {
	return cms.NewPasswordHasher(cms.WithHashCost(bcrypt.MinCost))
}

func TestHashPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  error
	}{
		{
			name:     "Valid password",
			password: "securePassword123!",
		},
		{
			name:     "Exactly 72 bytes",
			password: strings.Repeat("a", cms.MaxPasswordBytes),
		},
		{
			name:     "Empty password",
			password: "",
			wantErr:  cms.ErrNoEmptyString,
		},
		{
			name:     "Too long",
			password: strings.Repeat("a", cms.MaxPasswordBytes+1),
			wantErr:  cms.ErrPasswordTooLong,
		},
	}

	h := newHasher()
	ctx := context.Background()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := h.HashPassword(ctx, tt.password)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.NotEqual(t, tt.password, hash)
			assert.NoError(t, h.ComparePasswordAndHash(ctx, tt.password, hash))
		})
	}
}

func TestHashPassword_Salted(t *testing.T) {
	h := newHasher()
	ctx := context.Background()

	a, err := h.HashPassword(ctx, "same-password")
	require.NoError(t, err)
	b, err := h.HashPassword(ctx, "same-password")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.True(t, h.Verify(ctx, "same-password", a))
	assert.True(t, h.Verify(ctx, "same-password", b))
}

func TestComparePasswordAndHash(t *testing.T) {
	h := newHasher()
	ctx := context.Background()

	hash, err := h.HashPassword(ctx, "correct-horse")
	require.NoError(t, err)

	err = h.ComparePasswordAndHash(ctx, "wrong-horse", hash)
	assert.ErrorIs(t, err, cms.ErrMismatchedHashAndPassword)

	err = h.ComparePasswordAndHash(ctx, "", hash)
	assert.ErrorIs(t, err, cms.ErrMismatchedHashAndPassword)

	err = h.ComparePasswordAndHash(ctx, "correct-horse", "not-a-hash")
	require.Error(t, err)
	assert.False(t, goerrors.Is(err, cms.ErrMismatchedHashAndPassword))

	assert.False(t, h.Verify(ctx, "wrong-horse", hash))
}

func TestHashPassword_CostFromConfig(t *testing.T) {
	h := cms.NewPasswordHasherFromConfig(passwordConfig{})

	hash, err := h.HashPassword(context.Background(), "securePassword123!")
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost, cost)
}

func TestHashPassword_CanceledContext(t *testing.T) {
	h := cms.NewPasswordHasher(cms.WithHashCost(bcrypt.MinCost), cms.WithMaxConcurrentHashes(1))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.HashPassword(ctx, "securePassword123!")
	require.Error(t, err)

	var retry *goerrors.RetryableError
	assert.True(t, goerrors.As(err, &retry))
}
