package cms

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-cms/middleware/jwtware"
)

const (
	DefaultRequestTimeout = 10 * time.Second
	internalErrorDetail   = "Internal server error"
	unavailableDetail     = "Service temporarily unavailable"
)

// ErrorBody is the JSON body of every error response
type ErrorBody struct {
	Detail string                `json:"detail"`
	Errors []goerrors.FieldError `json:"errors,omitempty"`
}

// RouteAuthenticator guards routes with bearer tokens
type RouteAuthenticator struct {
	guard        *Guard
	Logger       Logger
	ErrorHandler fiber.ErrorHandler
}

func NewHTTPAuthenticator(guard *Guard) *RouteAuthenticator {
	a := &RouteAuthenticator{
		guard:  guard,
		Logger: defLogger(),
	}
	a.ErrorHandler = ErrorHandler(a.Logger)
	return a
}

func (a *RouteAuthenticator) WithLogger(logger Logger) *RouteAuthenticator {
	if logger != nil {
		a.Logger = logger
		a.ErrorHandler = ErrorHandler(logger)
	}
	return a
}

// ProtectedRoute requires a valid access token. With roles the user must
// hold one of them.
func (a *RouteAuthenticator) ProtectedRoute(roles ...UserRole) fiber.Handler {
	return jwtware.New(jwtware.Config[*User]{
		ContextKey:  UserLocalsKey,
		TokenLookup: "header:" + fiber.HeaderAuthorization,
		AuthScheme:  "Bearer",
		Resolver:    a.guard.Authenticate,
		Authorizer: func(user *User) (*User, error) {
			return a.guard.RequireRole(user, roles...)
		},
		ContextEnricher: WithContext,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if goerrors.Is(err, jwtware.ErrJWTMissingOrMalformed) {
				err = ErrUnauthorized
			}
			return a.ErrorHandler(c, err)
		},
	})
}

// ErrorHandler writes err as {"detail": ...}. It is used both as the fiber
// app error handler and by middleware.
func ErrorHandler(logger Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = defLogger()
	}

	return func(c *fiber.Ctx, err error) error {
		status, body := ErrorResponse(err)

		if status >= http.StatusInternalServerError {
			logger.Error("request failed",
				"method", c.Method(),
				"path", c.OriginalURL(),
				"status", status,
				"error", err,
			)
		} else {
			logger.Debug("request rejected",
				"method", c.Method(),
				"path", c.OriginalURL(),
				"status", status,
				"error", err,
			)
		}

		if status == http.StatusUnauthorized {
			c.Set(fiber.HeaderWWWAuthenticate, "Bearer")
		}

		return c.Status(status).JSON(body)
	}
}

// ErrorResponse maps err to a status code and body
func ErrorResponse(err error) (int, ErrorBody) {
	if err == nil {
		return http.StatusOK, ErrorBody{}
	}

	var fiberErr *fiber.Error
	if goerrors.As(err, &fiberErr) {
		return fiberErr.Code, ErrorBody{Detail: fiberErr.Message}
	}

	var retry *goerrors.RetryableError
	if goerrors.As(err, &retry) {
		status := http.StatusServiceUnavailable
		if retry.BaseError != nil && retry.Code > 0 {
			status = retry.Code
		}
		return status, ErrorBody{Detail: unavailableDetail}
	}

	if goerrors.Is(err, context.DeadlineExceeded) {
		return http.StatusServiceUnavailable, ErrorBody{Detail: unavailableDetail}
	}

	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return http.StatusInternalServerError, ErrorBody{Detail: internalErrorDetail}
	}

	status := richErr.Code
	if status == 0 {
		status = statusFromCategory(richErr.Category)
	}

	if status >= http.StatusInternalServerError {
		return status, ErrorBody{Detail: internalErrorDetail}
	}

	body := ErrorBody{Detail: richErr.Message}
	if fields := richErr.AllValidationErrors(); len(fields) > 0 {
		slices.SortStableFunc(fields, func(a, b goerrors.FieldError) int {
			return strings.Compare(a.Field, b.Field)
		})
		body.Errors = fields
	}

	return status, body
}

func statusFromCategory(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return http.StatusUnprocessableEntity
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// RequestTimeout puts a deadline on the request's user context
func RequestTimeout(timeout time.Duration) fiber.Handler {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()

		c.SetUserContext(ctx)
		return c.Next()
	}
}

// badInput wraps body and query parse failures
func badInput(err error, message string) error {
	return goerrors.Wrap(err, goerrors.CategoryBadInput, message).
		WithCode(http.StatusUnprocessableEntity)
}

// parseBody decodes the request body into out. Failures tied to a field,
// a wrong JSON type or a payload's own decode check, become field errors.
func parseBody(c *fiber.Ctx, out any, message string) error {
	err := c.BodyParser(out)
	if err == nil {
		return nil
	}

	if goerrors.IsValidation(err) {
		return err
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return goerrors.NewValidation(message, goerrors.FieldError{
			Field:   typeErr.Field,
			Message: "cannot be a JSON " + typeErr.Value,
		})
	}

	return badInput(err, message)
}
