package cms_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"

	"github.com/goliatone/go-cms"
	"github.com/goliatone/go-cms/persistence"
)

const (
	testSecret        = "test-secret-key"
	testAdminEmail    = "admin@example.com"
	testAdminPassword = "changethis"
)

type tokenConfig struct {
	key     string
	alg     string
	issuer  string
	access  time.Duration
	refresh time.Duration
}

func (c tokenConfig) GetSigningKey() string             { return c.key }
func (c tokenConfig) GetSigningMethod() string          { return c.alg }
func (c tokenConfig) GetAccessTokenTTL() time.Duration  { return c.access }
func (c tokenConfig) GetRefreshTokenTTL() time.Duration { return c.refresh }
func (c tokenConfig) GetIssuer() string                 { return c.issuer }

func newTokenConfig() tokenConfig {
	return tokenConfig{
		key:     testSecret,
		alg:     "HS256",
		issuer:  "cms",
		access:  30 * time.Minute,
		refresh: 7 * 24 * time.Hour,
	}
}

type passwordConfig struct{}

func (passwordConfig) GetHashCost() int            { return bcrypt.MinCost }
func (passwordConfig) GetMaxConcurrentHashes() int { return 4 }

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()
	ctx := context.Background()

	client, err := persistence.Open(ctx, persistence.Options{
		Driver: persistence.DriverSQLite,
		DSN:    "file::memory:",
		Models: cms.Models(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.RegisterMigrations(cms.GetMigrationsFS(), cms.MigrationsDir))
	require.NoError(t, client.Migrate(ctx))
	return client.DB()
}

func newTestApp(t *testing.T, mutate ...func(*cms.AppOptions)) *cms.App {
	t.Helper()

	opts := cms.AppOptions{
		Tokens:         newTokenConfig(),
		Passwords:      passwordConfig{},
		Env:            "test",
		Version:        "0.0.1",
		RequestTimeout: 5 * time.Second,
		Logger:         cms.NopLogger(),
	}
	for _, fn := range mutate {
		fn(&opts)
	}

	app, err := cms.NewApp(newTestDB(t), opts)
	require.NoError(t, err)
	return app
}

// bootstrapAdmin creates the admin and returns its access token
func bootstrapAdmin(t *testing.T, app *cms.App) string {
	t.Helper()
	require.NoError(t, app.Bootstrap(context.Background(), testAdminEmail, testAdminPassword))
	return login(t, app, testAdminEmail, testAdminPassword).AccessToken
}

func registerUser(t *testing.T, app *cms.App, email, password string) string {
	t.Helper()
	res := doJSON(t, app, http.MethodPost, "/api/v1/auth/register", map[string]any{
		"email":    email,
		"password": password,
	}, "")
	require.Equal(t, http.StatusCreated, res.status, string(res.body))
	return login(t, app, email, password).AccessToken
}

func login(t *testing.T, app *cms.App, email, password string) cms.TokenPair {
	t.Helper()
	res := doForm(t, app, "/api/v1/auth/login", url.Values{
		"username": {email},
		"password": {password},
	})
	require.Equal(t, http.StatusOK, res.status, string(res.body))

	var pair cms.TokenPair
	res.decode(t, &pair)
	return pair
}

type response struct {
	status int
	header http.Header
	body   []byte
}

func (r response) decode(t *testing.T, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.body, out), string(r.body))
}

func (r response) detail(t *testing.T) string {
	t.Helper()
	var body cms.ErrorBody
	r.decode(t, &body)
	return body.Detail
}

func doJSON(t *testing.T, app *cms.App, method, path string, payload any, token string) response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return do(t, app, req)
}

func doForm(t *testing.T, app *cms.App, path string, values url.Values) response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return do(t, app, req)
}

func do(t *testing.T, app *cms.App, req *http.Request) response {
	t.Helper()

	res, err := app.Fiber.Test(req, -1)
	require.NoError(t, err)
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)

	return response{status: res.StatusCode, header: res.Header, body: body}
}
