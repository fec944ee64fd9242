package jwtware_test

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/goliatone/go-cms/middleware/jwtware"
)

type identity struct {
	ID   string
	Role string
}

var errUnknownToken = errors.New("unknown token")

type ctxKey struct{}

func staticResolver(tokens map[string]identity) jwtware.Resolver[*identity] {
	return func(ctx context.Context, token string) (*identity, error) {
		id, ok := tokens[token]
		if !ok {
			return nil, errUnknownToken
		}
		return &id, nil
	}
}

func newApp(t *testing.T, cfg jwtware.Config[*identity]) *fiber.App {
	t.Helper()

	app := fiber.New()
	protected := jwtware.New(cfg)

	handler := func(c *fiber.Ctx) error {
		key := cfg.ContextKey
		if key == "" {
			key = "user"
		}
		id, ok := c.Locals(key).(*identity)
		if !ok {
			return c.SendString("anonymous")
		}
		if v, ok := c.UserContext().Value(ctxKey{}).(string); ok {
			return c.SendString(id.ID + ":" + v)
		}
		return c.SendString(id.ID)
	}

	// route level so param lookups can see the route params
	app.Get("/", protected, handler)
	app.Get("/public", protected, handler)
	app.Get("/items/:jwt", protected, handler)
	return app
}

func send(t *testing.T, app *fiber.App, target string, headers map[string]string) (int, string) {
	t.Helper()

	req := httptest.NewRequest(fiber.MethodGet, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	res, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res.StatusCode, string(body)
}

//--------------------------------------------------------------------------------------
// Tests
//--------------------------------------------------------------------------------------

func TestJWTWare_BasicHeaderExtraction(t *testing.T) {
	app := newApp(t, jwtware.Config[*identity]{
		Resolver: staticResolver(map[string]identity{"good-token": {ID: "u-1"}}),
	})

	status, body := send(t, app, "/", map[string]string{"Authorization": "Bearer good-token"})
	if status != fiber.StatusOK || body != "u-1" {
		t.Fatalf("expected 200 u-1, got %d %q", status, body)
	}

	// scheme is case insensitive
	status, _ = send(t, app, "/", map[string]string{"Authorization": "bearer good-token"})
	if status != fiber.StatusOK {
		t.Fatalf("expected lowercase scheme to be accepted, got %d", status)
	}

	status, body = send(t, app, "/", nil)
	if status != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 for missing token, got %d", status)
	}
	if !strings.Contains(body, jwtware.ErrJWTMissingOrMalformed.Error()) {
		t.Errorf("expected missing token error, got: %s", body)
	}

	status, _ = send(t, app, "/", map[string]string{"Authorization": "Basic good-token"})
	if status != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong scheme, got %d", status)
	}

	status, body = send(t, app, "/", map[string]string{"Authorization": "Bearer other"})
	if status != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown token, got %d", status)
	}
	if body != "Invalid or expired token" {
		t.Errorf("unexpected body: %s", body)
	}
}

func TestJWTWare_CustomTokenLookup(t *testing.T) {
	app := newApp(t, jwtware.Config[*identity]{
		Resolver:    staticResolver(map[string]identity{"good-token": {ID: "u-2"}}),
		TokenLookup: "query:token,param:jwt,cookie:jwt_cookie",
	})

	status, body := send(t, app, "/?token=good-token", nil)
	if status != fiber.StatusOK || body != "u-2" {
		t.Fatalf("query lookup: got %d %q", status, body)
	}

	status, body = send(t, app, "/items/good-token", nil)
	if status != fiber.StatusOK || body != "u-2" {
		t.Fatalf("param lookup: got %d %q", status, body)
	}

	status, body = send(t, app, "/", map[string]string{"Cookie": "jwt_cookie=good-token"})
	if status != fiber.StatusOK || body != "u-2" {
		t.Fatalf("cookie lookup: got %d %q", status, body)
	}

	// header is not part of the lookup
	status, _ = send(t, app, "/", map[string]string{"Authorization": "Bearer good-token"})
	if status != fiber.StatusUnauthorized {
		t.Fatalf("expected header to be ignored, got %d", status)
	}
}

func TestJWTWare_FilterFunction(t *testing.T) {
	app := newApp(t, jwtware.Config[*identity]{
		Resolver: staticResolver(nil),
		Filter: func(c *fiber.Ctx) bool {
			// skip the middleware on "/public"
			return c.Path() == "/public"
		},
	})

	status, body := send(t, app, "/public", nil)
	if status != fiber.StatusOK || body != "anonymous" {
		t.Fatalf("expected filter to skip auth, got %d %q", status, body)
	}

	status, _ = send(t, app, "/", nil)
	if status != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 outside filter, got %d", status)
	}
}

func TestJWTWare_Authorizer(t *testing.T) {
	errForbidden := errors.New("forbidden")

	app := newApp(t, jwtware.Config[*identity]{
		Resolver: staticResolver(map[string]identity{
			"admin": {ID: "a-1", Role: "admin"},
			"user":  {ID: "u-1", Role: "user"},
		}),
		Authorizer: func(id *identity) (*identity, error) {
			if id.Role != "admin" {
				return nil, errForbidden
			}
			return id, nil
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if errors.Is(err, errForbidden) {
				return c.Status(fiber.StatusForbidden).SendString("forbidden")
			}
			return c.Status(fiber.StatusUnauthorized).SendString(err.Error())
		},
	})

	status, body := send(t, app, "/", map[string]string{"Authorization": "Bearer admin"})
	if status != fiber.StatusOK || body != "a-1" {
		t.Fatalf("admin: got %d %q", status, body)
	}

	status, _ = send(t, app, "/", map[string]string{"Authorization": "Bearer user"})
	if status != fiber.StatusForbidden {
		t.Fatalf("user: expected 403, got %d", status)
	}
}

func TestJWTWare_ValidationListeners(t *testing.T) {
	var seen []string

	app := newApp(t, jwtware.Config[*identity]{
		Resolver: staticResolver(map[string]identity{"good-token": {ID: "u-3"}}),
		ValidationListeners: []jwtware.ValidationListener[*identity]{
			nil,
			func(c *fiber.Ctx, id *identity) error {
				seen = append(seen, id.ID)
				return nil
			},
		},
	})

	status, _ := send(t, app, "/", map[string]string{"Authorization": "Bearer good-token"})
	if status != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if len(seen) != 1 || seen[0] != "u-3" {
		t.Fatalf("expected listener to see u-3, got %v", seen)
	}

	blocking := newApp(t, jwtware.Config[*identity]{
		Resolver: staticResolver(map[string]identity{"good-token": {ID: "u-3"}}),
		ValidationListeners: []jwtware.ValidationListener[*identity]{
			func(c *fiber.Ctx, id *identity) error {
				return errors.New("blocked")
			},
		},
	})

	status, _ = send(t, blocking, "/", map[string]string{"Authorization": "Bearer good-token"})
	if status != fiber.StatusUnauthorized {
		t.Fatalf("expected listener error to reject, got %d", status)
	}
}

func TestJWTWare_ContextEnricherAndKey(t *testing.T) {
	app := newApp(t, jwtware.Config[*identity]{
		ContextKey: "identity",
		Resolver:   staticResolver(map[string]identity{"good-token": {ID: "u-4"}}),
		ContextEnricher: func(ctx context.Context, id *identity) context.Context {
			return context.WithValue(ctx, ctxKey{}, "enriched")
		},
	})

	status, body := send(t, app, "/", map[string]string{"Authorization": "Bearer good-token"})
	if status != fiber.StatusOK || body != "u-4:enriched" {
		t.Fatalf("expected enriched identity, got %d %q", status, body)
	}
}

func TestJWTWare_ResolverRequired(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic without a resolver")
		}
	}()
	jwtware.New(jwtware.Config[*identity]{})
}

func TestGetExtractors(t *testing.T) {
	tests := []struct {
		name   string
		lookup string
		want   int
	}{
		{name: "single header", lookup: "header:Authorization", want: 1},
		{name: "all sources", lookup: "header:Authorization, query:token, param:jwt, cookie:jwt", want: 4},
		{name: "unknown source ignored", lookup: "form:token,query:token", want: 1},
		{name: "malformed part ignored", lookup: "header,query:token", want: 1},
		{name: "empty", lookup: "", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := jwtware.GetExtractors(tt.lookup)
			if len(got) != tt.want {
				t.Errorf("expected %d extractors, got %d", tt.want, len(got))
			}
		})
	}
}
