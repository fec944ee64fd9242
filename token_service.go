package cms

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// TokenService issues and verifies HMAC signed tokens
type TokenService struct {
	signingKey []byte
	method     jwt.SigningMethod
	accessTTL  time.Duration
	refreshTTL time.Duration
	issuer     string
	now        func() time.Time
	logger     Logger
}

type TokenOption func(*TokenService)

// WithTokenClock sets the clock used by IssuePair
func WithTokenClock(now func() time.Time) TokenOption {
	return func(ts *TokenService) {
		if now != nil {
			ts.now = now
		}
	}
}

// WithTokenLogger sets the logger
func WithTokenLogger(logger Logger) TokenOption {
	return func(ts *TokenService) {
		if logger != nil {
			ts.logger = logger
		}
	}
}

// NewTokenService creates a new TokenService instance. Only the HMAC family
// is supported, anything else is a configuration error.
func NewTokenService(cfg TokenConfig, opts ...TokenOption) (*TokenService, error) {
	if cfg.GetSigningKey() == "" {
		return nil, goerrors.New("signing key is required", goerrors.CategoryBadInput)
	}

	alg := cfg.GetSigningMethod()
	if alg == "" {
		alg = jwt.SigningMethodHS256.Alg()
	}

	method, ok := jwt.GetSigningMethod(alg).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, goerrors.New("unsupported signing method", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"alg": alg})
	}

	if cfg.GetAccessTokenTTL() <= 0 || cfg.GetRefreshTokenTTL() <= 0 {
		return nil, goerrors.New("token TTL must be positive", goerrors.CategoryBadInput)
	}

	ts := &TokenService{
		signingKey: []byte(cfg.GetSigningKey()),
		method:     method,
		accessTTL:  cfg.GetAccessTokenTTL(),
		refreshTTL: cfg.GetRefreshTokenTTL(),
		issuer:     cfg.GetIssuer(),
		now:        time.Now,
		logger:     defLogger(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(ts)
		}
	}

	return ts, nil
}

// IssueAccess signs an access token for subject
func (ts *TokenService) IssueAccess(subject string, now time.Time) (string, error) {
	return ts.issue(subject, AccessToken, now, ts.accessTTL)
}

// IssueRefresh signs a refresh token for subject
func (ts *TokenService) IssueRefresh(subject string, now time.Time) (string, error) {
	return ts.issue(subject, RefreshToken, now, ts.refreshTTL)
}

// IssuePair signs a fresh access and refresh token
func (ts *TokenService) IssuePair(subject string) (TokenPair, error) {
	now := ts.now()

	access, err := ts.IssueAccess(subject, now)
	if err != nil {
		return TokenPair{}, err
	}

	refresh, err := ts.IssueRefresh(subject, now)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    BearerScheme,
	}, nil
}

func (ts *TokenService) issue(subject string, kind TokenType, now time.Time, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", goerrors.New("token subject is required", goerrors.CategoryBadInput)
	}

	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    ts.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Type: kind,
	}

	signed, err := jwt.NewWithClaims(ts.method, claims).SignedString(ts.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign JWT")
	}
	return signed, nil
}

// Verify checks signature, expiry and type. A token is accepted while
// now is strictly before its expiry.
func (ts *TokenService) Verify(tokenString string, kind TokenType, now time.Time) (*JWTClaims, error) {
	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{ts.method.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithExpirationRequired(),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}

	claims := &JWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		switch {
		case goerrors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case goerrors.Is(err, jwt.ErrTokenSignatureInvalid):
			ts.logger.Debug("TokenService rejected token signature", "error", err)
			return nil, ErrTokenInvalidSignature
		default:
			ts.logger.Debug("TokenService rejected malformed token", "error", err)
			return nil, ErrTokenMalformed
		}
	}

	if !token.Valid || claims.Subject() == "" {
		return nil, ErrTokenMalformed
	}

	if claims.Type != kind {
		return nil, ErrTokenWrongType
	}

	return claims, nil
}

// VerifyNow is Verify against the service clock
func (ts *TokenService) VerifyNow(tokenString string, kind TokenType) (*JWTClaims, error) {
	return ts.Verify(tokenString, kind, ts.now())
}
