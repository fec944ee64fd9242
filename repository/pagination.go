package repository

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
	MaxPage         = 10000
	DefaultOrderBy  = "date_created"

	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// PageRequest describes one page of an ordered listing
type PageRequest struct {
	Page     int    `json:"page"`
	Size     int    `json:"size"`
	OrderBy  string `json:"order_by"`
	OrderDir string `json:"order_dir"`
}

// NewPageRequest returns the default first page
func NewPageRequest() PageRequest {
	return PageRequest{
		Page:     1,
		Size:     DefaultPageSize,
		OrderBy:  DefaultOrderBy,
		OrderDir: OrderAsc,
	}
}

// Validate checks bounds. When allowedOrder is given OrderBy must be one
// of those columns.
func (p PageRequest) Validate(allowedOrder ...string) error {
	orderRules := []validation.Rule{validation.Required}
	if len(allowedOrder) > 0 {
		allowed := make([]any, len(allowedOrder))
		for i, o := range allowedOrder {
			allowed[i] = o
		}
		orderRules = append(orderRules, validation.In(allowed...).Error("unsupported order column"))
	}

	err := validation.ValidateStruct(&p,
		validation.Field(&p.Page, validation.Required, validation.Min(1), validation.Max(MaxPage)),
		validation.Field(&p.Size, validation.Required, validation.Min(1), validation.Max(MaxPageSize)),
		validation.Field(&p.OrderBy, orderRules...),
		validation.Field(&p.OrderDir, validation.In(OrderAsc, OrderDesc).Error("must be asc or desc")),
	)
	if err != nil {
		return goerrors.FromOzzoValidation(err, "invalid page request")
	}
	return nil
}

// Normalize clamps values into range and fills in defaults
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Page > MaxPage {
		p.Page = MaxPage
	}
	if p.Size < 1 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	if p.OrderBy == "" {
		p.OrderBy = DefaultOrderBy
	}
	p.OrderDir = strings.ToLower(p.OrderDir)
	if p.OrderDir != OrderDesc {
		p.OrderDir = OrderAsc
	}
	return p
}

func (p PageRequest) Offset() int {
	return (p.Page - 1) * p.Size
}

func (p PageRequest) direction() string {
	if p.OrderDir == OrderDesc {
		return "DESC"
	}
	return "ASC"
}

// Page is the listing envelope returned to clients
type Page[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Size  int `json:"size"`
	Pages int `json:"pages"`
}

// NewPage builds the envelope. pages is never less than one.
func NewPage[T any](items []T, total int, req PageRequest) Page[T] {
	req = req.Normalize()
	if items == nil {
		items = []T{}
	}

	pages := (total + req.Size - 1) / req.Size
	if pages < 1 {
		pages = 1
	}

	return Page[T]{
		Items: items,
		Total: total,
		Page:  req.Page,
		Size:  req.Size,
		Pages: pages,
	}
}

// MapPage converts the items of a page
func MapPage[T, R any](page Page[T], fn func(T) R) Page[R] {
	items := make([]R, len(page.Items))
	for i, item := range page.Items {
		items[i] = fn(item)
	}
	return Page[R]{
		Items: items,
		Total: page.Total,
		Page:  page.Page,
		Size:  page.Size,
		Pages: page.Pages,
	}
}
