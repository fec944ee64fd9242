package cms

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is the user model. Users are deactivated, never deleted.
type User struct {
	bun.BaseModel  `bun:"table:users,alias:usr"`
	ID             uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	Email          string    `bun:"email,notnull,unique" json:"email"`
	FullName       string    `bun:"full_name,nullzero" json:"full_name,omitempty"`
	HashedPassword string    `bun:"hashed_password,notnull" json:"-"`
	IsActive       bool      `bun:"is_active,notnull,default:true" json:"is_active"`
	Role           UserRole  `bun:"role,notnull,default:'user'" json:"role"`
	DateCreated    time.Time `bun:"date_created,notnull,default:current_timestamp" json:"date_created"`
	DateUpdated    time.Time `bun:"date_updated,notnull,default:current_timestamp" json:"date_updated"`
}

// Category groups posts
type Category struct {
	bun.BaseModel `bun:"table:categories,alias:cat"`
	ID            uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	Name          string    `bun:"name,notnull,unique,type:varchar(100)" json:"name"`
	Slug          string    `bun:"slug,notnull,unique,type:varchar(255)" json:"slug"`
	Posts         []*Post   `bun:"rel:has-many,join:id=category_id" json:"-"`
	DateCreated   time.Time `bun:"date_created,notnull,default:current_timestamp" json:"date_created"`
	DateUpdated   time.Time `bun:"date_updated,notnull,default:current_timestamp" json:"date_updated"`
}

// Post content is stored already sanitized
type Post struct {
	bun.BaseModel `bun:"table:posts,alias:pst"`
	ID            uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	Title         string    `bun:"title,notnull,type:varchar(255)" json:"title"`
	ContentHTML   string    `bun:"content_html,notnull" json:"content_html"`
	Slug          string    `bun:"slug,notnull,unique,type:varchar(255)" json:"slug"`
	CategoryID    uuid.UUID `bun:"category_id,notnull,type:uuid" json:"category_id"`
	Category      *Category `bun:"rel:belongs-to,join:category_id=id" json:"-"`
	DateCreated   time.Time `bun:"date_created,notnull,default:current_timestamp" json:"date_created"`
	DateUpdated   time.Time `bun:"date_updated,notnull,default:current_timestamp" json:"date_updated"`
}

// Models lists the models registered with bun, tables are created by the
// SQL migrations
func Models() []any {
	return []any{
		(*User)(nil),
		(*Category)(nil),
		(*Post)(nil),
	}
}

func (u *User) touch(now time.Time, created bool) {
	if created {
		u.DateCreated = now
	}
	u.DateUpdated = now
}

func (c *Category) touch(now time.Time, created bool) {
	if created {
		c.DateCreated = now
	}
	c.DateUpdated = now
}

func (p *Post) touch(now time.Time, created bool) {
	if created {
		p.DateCreated = now
	}
	p.DateUpdated = now
}
