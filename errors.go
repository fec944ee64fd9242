package cms

import (
	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidSignature = "TOKEN_INVALID_SIGNATURE"
	TextCodeWrongTokenType   = "TOKEN_WRONG_TYPE"
	TextCodePasswordTooLong  = "PASSWORD_TOO_LONG"
	TextCodeEmailTaken       = "EMAIL_TAKEN"
	TextCodeCategoryExists   = "CATEGORY_EXISTS"
	TextCodeCategoryInUse    = "CATEGORY_IN_USE"
	TextCodeForbidden        = "FORBIDDEN"
)

// credentials

// ErrNoEmptyString is returned when hashing an empty password
var ErrNoEmptyString = goerrors.New("password must not be empty", goerrors.CategoryValidation).
	WithTextCode(goerrors.TextCodeEmptyPassword)

// ErrPasswordTooLong bcrypt only looks at the first 72 bytes, we refuse
// anything longer instead of silently truncating
var ErrPasswordTooLong = goerrors.New("password must be at most 72 bytes", goerrors.CategoryValidation).
	WithTextCode(TextCodePasswordTooLong)

// ErrMismatchedHashAndPassword password does not match the stored hash
var ErrMismatchedHashAndPassword = goerrors.New("password does not match", goerrors.CategoryAuth).
	WithTextCode(goerrors.TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidCredentials is returned by login for unknown email and wrong
// password alike
var ErrInvalidCredentials = goerrors.New("Invalid email or password", goerrors.CategoryAuth).
	WithTextCode(goerrors.TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// tokens

var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithTextCode(goerrors.TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithTextCode(goerrors.TextCodeTokenMalformed).
	WithCode(goerrors.CodeUnauthorized)

var ErrTokenInvalidSignature = goerrors.New("token signature is invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidSignature).
	WithCode(goerrors.CodeUnauthorized)

var ErrTokenWrongType = goerrors.New("token type is not accepted here", goerrors.CategoryAuth).
	WithTextCode(TextCodeWrongTokenType).
	WithCode(goerrors.CodeUnauthorized)

// guard

// ErrUnauthorized is the single error clients see for any token problem
var ErrUnauthorized = goerrors.New("invalid credentials", goerrors.CategoryAuth).
	WithTextCode(goerrors.TextCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrUserInactive authenticated but the account is disabled
var ErrUserInactive = goerrors.New("Inactive user", goerrors.CategoryAuthz).
	WithTextCode(goerrors.TextCodeAccountDisabled).
	WithCode(goerrors.CodeForbidden)

// ErrForbidden role not allowed for the operation
var ErrForbidden = goerrors.New("Not enough permissions", goerrors.CategoryAuthz).
	WithTextCode(TextCodeForbidden).
	WithCode(goerrors.CodeForbidden)

// domain

// ErrEmailTaken uses 400 on the wire, not 409
var ErrEmailTaken = goerrors.New("Email already registered", goerrors.CategoryConflict).
	WithTextCode(TextCodeEmailTaken).
	WithCode(goerrors.CodeBadRequest)

var ErrUserNotFound = goerrors.New("User not found", goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrCategoryExists uses 400 on the wire, not 409
var ErrCategoryExists = goerrors.New("Category already exists", goerrors.CategoryConflict).
	WithTextCode(TextCodeCategoryExists).
	WithCode(goerrors.CodeBadRequest)

var ErrCategoryNotFound = goerrors.New("Category not found", goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrCategoryInUse categories that still own posts are not deleted
var ErrCategoryInUse = goerrors.New("Category still has posts", goerrors.CategoryConflict).
	WithTextCode(TextCodeCategoryInUse).
	WithCode(goerrors.CodeConflict)

var ErrPostNotFound = goerrors.New("Post not found", goerrors.CategoryNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrCategoryMissing a post references a category that does not exist
var ErrCategoryMissing = goerrors.NewValidation("Category does not exist", goerrors.FieldError{
	Field:   "category_id",
	Message: "category does not exist",
})

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	var e *goerrors.Error
	return goerrors.As(err, &e) && e.TextCode == goerrors.TextCodeTokenExpired
}

// IsMalformedError will check for malformed tokens
func IsMalformedError(err error) bool {
	var e *goerrors.Error
	return goerrors.As(err, &e) && e.TextCode == goerrors.TextCodeTokenMalformed
}
