package cms

import (
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

const (
	MinPasswordLength = 8
	MaxNameLength     = 255
	MaxCategoryName   = 100
	MaxTitleLength    = 255
)

// UserCreate is the registration payload
type UserCreate struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
	FullName string `json:"full_name,omitempty" form:"full_name"`
}

func (p UserCreate) Validate() error {
	return validatePayload("invalid registration payload",
		validation.ValidateStruct(&p,
			validation.Field(&p.Email, validation.Required, is.EmailFormat),
			validation.Field(&p.Password, validation.Required, validation.Length(MinPasswordLength, MaxPasswordBytes)),
			validation.Field(&p.FullName, validation.Length(2, MaxNameLength)),
		),
	)
}

// LoginPayload accepts form (username) or JSON (email) credentials
type LoginPayload struct {
	Username string `json:"username" form:"username"`
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// GetIdentifier returns the login email
func (p LoginPayload) GetIdentifier() string {
	if p.Username != "" {
		return strings.TrimSpace(p.Username)
	}
	return strings.TrimSpace(p.Email)
}

func (p LoginPayload) GetPassword() string {
	return p.Password
}

func (p LoginPayload) Validate() error {
	identifier := p.GetIdentifier()
	return validatePayload("invalid login payload",
		validation.Errors{
			"username": validation.Validate(identifier, validation.Required),
			"password": validation.Validate(p.Password, validation.Required),
		}.Filter(),
	)
}

// RefreshRequest carries the refresh token
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" form:"refresh_token"`
}

func (p RefreshRequest) Validate() error {
	return validatePayload("invalid refresh payload",
		validation.ValidateStruct(&p,
			validation.Field(&p.RefreshToken, validation.Required),
		),
	)
}

// UserUpdate is the self service profile update
type UserUpdate struct {
	FullName *string `json:"full_name"`
}

func (p UserUpdate) Validate() error {
	return validatePayload("invalid profile payload",
		validation.ValidateStruct(&p,
			validation.Field(&p.FullName, validation.NilOrNotEmpty, validation.Length(2, MaxNameLength)),
		),
	)
}

// AdminUserUpdate changes another user's role and status. Nil fields are
// left as they are.
type AdminUserUpdate struct {
	Role     *UserRole `json:"role"`
	IsActive *bool     `json:"is_active"`
}

func (p AdminUserUpdate) Validate() error {
	return validatePayload("invalid user update payload",
		validation.ValidateStruct(&p,
			validation.Field(&p.Role, validation.In(RoleUser, RoleAdmin).Error("must be user or admin")),
		),
	)
}

// CategoryCreate is the category payload
type CategoryCreate struct {
	Name string `json:"name"`
}

func (p CategoryCreate) Validate() error {
	return validatePayload("invalid category payload",
		validation.ValidateStruct(&p,
			validation.Field(&p.Name, validation.Required, validation.By(maxRunes(MaxCategoryName))),
		),
	)
}

// CategoryUpdate renames a category
type CategoryUpdate struct {
	Name *string `json:"name"`
}

func (p CategoryUpdate) Validate() error {
	return validatePayload("invalid category payload",
		validation.ValidateStruct(&p,
			validation.Field(&p.Name, validation.NilOrNotEmpty, validation.By(maxRunes(MaxCategoryName))),
		),
	)
}

// PostCreate is the post payload
type PostCreate struct {
	Title       string    `json:"title"`
	ContentHTML string    `json:"content_html"`
	CategoryID  uuid.UUID `json:"category_id"`
}

func (p *PostCreate) UnmarshalJSON(data []byte) error {
	type alias PostCreate
	aux := struct {
		*alias
		CategoryID json.RawMessage `json:"category_id"`
	}{alias: (*alias)(p)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	id, err := decodeUUID(aux.CategoryID, "invalid post payload", "category_id")
	if err != nil {
		return err
	}
	p.CategoryID = uuid.Nil
	if id != nil {
		p.CategoryID = *id
	}
	return nil
}

func (p PostCreate) Validate() error {
	return validatePayload("invalid post payload",
		validation.ValidateStruct(&p,
			validation.Field(&p.Title, validation.Required, validation.By(maxRunes(MaxTitleLength))),
			validation.Field(&p.ContentHTML, validation.Required),
			validation.Field(&p.CategoryID, validation.By(requiredUUID)),
		),
	)
}

// PostUpdate changes title, content or category. Nil fields are left as
// they are.
type PostUpdate struct {
	Title       *string    `json:"title"`
	ContentHTML *string    `json:"content_html"`
	CategoryID  *uuid.UUID `json:"category_id"`
}

func (p *PostUpdate) UnmarshalJSON(data []byte) error {
	type alias PostUpdate
	aux := struct {
		*alias
		CategoryID json.RawMessage `json:"category_id"`
	}{alias: (*alias)(p)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	id, err := decodeUUID(aux.CategoryID, "invalid post payload", "category_id")
	if err != nil {
		return err
	}
	p.CategoryID = id
	return nil
}

func (p PostUpdate) Validate() error {
	return validatePayload("invalid post payload",
		validation.ValidateStruct(&p,
			validation.Field(&p.Title, validation.NilOrNotEmpty, validation.By(maxRunes(MaxTitleLength))),
			validation.Field(&p.CategoryID, validation.By(requiredUUID)),
		),
	)
}

func validatePayload(message string, err error) error {
	if err == nil {
		return nil
	}
	return goerrors.FromOzzoValidation(err, message)
}

func maxRunes(n int) validation.RuleFunc {
	return func(value any) error {
		var s string
		switch v := value.(type) {
		case string:
			s = v
		case *string:
			if v == nil {
				return nil
			}
			s = *v
		default:
			return nil
		}
		if utf8.RuneCountInString(s) > n {
			return validation.NewError("validation_length_too_long", "the length must be no more than {{.max}}").
				SetParams(map[string]any{"max": n})
		}
		return nil
	}
}

// decodeUUID returns nil for a missing or null value and a field error for
// anything that is not a UUID string
func decodeUUID(raw json.RawMessage, message, field string) (*uuid.UUID, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	invalid := goerrors.NewValidation(message, goerrors.FieldError{
		Field:   field,
		Message: "must be a valid UUID",
		Value:   string(raw),
	})

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, invalid
	}

	id, err := uuid.Parse(s)
	if err != nil {
		return nil, invalid
	}
	return &id, nil
}

func requiredUUID(value any) error {
	switch v := value.(type) {
	case uuid.UUID:
		if v == uuid.Nil {
			return validation.ErrRequired
		}
	case *uuid.UUID:
		if v != nil && *v == uuid.Nil {
			return validation.ErrRequired
		}
	}
	return nil
}

// UserPublic is the user as clients see it
type UserPublic struct {
	Email    string   `json:"email"`
	FullName *string  `json:"full_name"`
	IsActive bool     `json:"is_active"`
	Role     UserRole `json:"role"`
}

func NewUserPublic(u *User) UserPublic {
	out := UserPublic{
		Email:    u.Email,
		IsActive: u.IsActive,
		Role:     u.Role,
	}
	if u.FullName != "" {
		name := u.FullName
		out.FullName = &name
	}
	return out
}

// CategoryPublic is the category as clients see it
type CategoryPublic struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	DateCreated time.Time `json:"date_created"`
	DateUpdated time.Time `json:"date_updated"`
}

func NewCategoryPublic(c *Category) CategoryPublic {
	return CategoryPublic{
		ID:          c.ID,
		Name:        c.Name,
		Slug:        c.Slug,
		DateCreated: c.DateCreated,
		DateUpdated: c.DateUpdated,
	}
}

// PostPublic is the listing view of a post
type PostPublic struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	CategoryID  uuid.UUID `json:"category_id"`
	DateCreated time.Time `json:"date_created"`
	DateUpdated time.Time `json:"date_updated"`
}

func NewPostPublic(p *Post) PostPublic {
	return PostPublic{
		ID:          p.ID,
		Title:       p.Title,
		Slug:        p.Slug,
		CategoryID:  p.CategoryID,
		DateCreated: p.DateCreated,
		DateUpdated: p.DateUpdated,
	}
}

// PostContent is the detail view of a post
type PostContent struct {
	PostPublic
	ContentHTML string `json:"content_html"`
}

func NewPostContent(p *Post) PostContent {
	return PostContent{
		PostPublic:  NewPostPublic(p),
		ContentHTML: p.ContentHTML,
	}
}

// HealthStatus is the health check body
type HealthStatus struct {
	Status  string `json:"status"`
	Env     string `json:"env"`
	Version string `json:"version"`
}
