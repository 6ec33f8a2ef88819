package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Sheet is a sellable study-sheet listing.
type Sheet struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SellerID      uuid.UUID       `gorm:"column:seller_id;type:uuid;not null"`
	Title         string          `gorm:"column:title;not null"`
	Description   string          `gorm:"column:description;not null"`
	Course        string          `gorm:"column:course;not null"`
	University    string          `gorm:"column:university;not null"`
	Subject       *string         `gorm:"column:subject"`
	Price         decimal.Decimal `gorm:"column:price;type:numeric(10,2);not null"`
	Currency      string          `gorm:"column:currency;not null;default:usd"`
	IsActive      bool            `gorm:"column:is_active;not null;default:false"`
	FileKey       *string         `gorm:"column:file_key"`
	PreviewKey    *string         `gorm:"column:preview_key"`
	PageCount     int             `gorm:"column:page_count;not null;default:0"`
	PurchaseCount int             `gorm:"column:purchase_count;not null;default:0"`
	RatingCount   int             `gorm:"column:rating_count;not null;default:0"`
	RatingAverage decimal.Decimal `gorm:"column:rating_average;type:numeric(3,2);not null;default:0"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

// HasFile reports whether the full PDF has been uploaded.
func (s Sheet) HasFile() bool {
	return s.FileKey != nil && *s.FileKey != ""
}

// HasPreview reports whether a preview PDF has been uploaded.
func (s Sheet) HasPreview() bool {
	return s.PreviewKey != nil && *s.PreviewKey != ""
}
