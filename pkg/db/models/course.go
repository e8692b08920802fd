package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/courseloop/courseloop-backend/pkg/enums"
)

// Course is the sellable catalog unit B2B licenses are purchased against.
type Course struct {
	ID          uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Title       string         `gorm:"column:title;not null"`
	Slug        string         `gorm:"column:slug;not null;unique"`
	Description *string        `gorm:"column:description"`
	PriceCents  int64          `gorm:"column:price_cents;not null;default:0"`
	Currency    enums.Currency `gorm:"column:currency;type:currency;not null;default:'USD'"`
	Published   bool           `gorm:"column:published;not null;default:false"`
	Tags        pq.StringArray `gorm:"column:tags;type:text[]"`
	AuthorID    uuid.UUID      `gorm:"column:author_id;type:uuid;not null"`
	CreatedAt   time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

// IsFree reports whether the course has no price and therefore cannot be licensed.
func (c *Course) IsFree() bool {
	return c == nil || c.PriceCents <= 0
}
