package sheets

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/uninote/uninote-backend/pkg/db/models"
)

// MinPriceCents is the smallest listing price the gateway will accept.
const MinPriceCents = 50

// CreateSheetInput is the payload for POST /sheets.
type CreateSheetInput struct {
	Title       string  `json:"title" validate:"required,min=3,max=200"`
	Description string  `json:"description" validate:"required,max=5000"`
	Course      string  `json:"course" validate:"required,max=120"`
	University  string  `json:"university" validate:"required,max=200"`
	Subject     *string `json:"subject,omitempty" validate:"omitempty,max=120"`
	PriceCents  int64   `json:"price_cents" validate:"required,min=50,max=100000"`
	Currency    string  `json:"currency,omitempty" validate:"omitempty,len=3,alpha"`
}

// UpdateSheetInput carries a partial update; nil fields are left as they are.
type UpdateSheetInput struct {
	Title       *string `json:"title,omitempty" validate:"omitempty,min=3,max=200"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=5000"`
	Course      *string `json:"course,omitempty" validate:"omitempty,max=120"`
	Subject     *string `json:"subject,omitempty" validate:"omitempty,max=120"`
	PriceCents  *int64  `json:"price_cents,omitempty" validate:"omitempty,min=50,max=100000"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

// SheetDTO is the public listing shape. Object keys never leave the service.
type SheetDTO struct {
	ID            uuid.UUID `json:"id"`
	SellerID      uuid.UUID `json:"seller_id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Course        string    `json:"course"`
	University    string    `json:"university"`
	Subject       *string   `json:"subject,omitempty"`
	Price         string    `json:"price"`
	PriceCents    int64     `json:"price_cents"`
	Currency      string    `json:"currency"`
	IsActive      bool      `json:"is_active"`
	HasFile       bool      `json:"has_file"`
	HasPreview    bool      `json:"has_preview"`
	PageCount     int       `json:"page_count"`
	PurchaseCount int       `json:"purchase_count"`
	RatingCount   int       `json:"rating_count"`
	RatingAverage string    `json:"rating_average"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// FromModel maps a sheet row to its transport shape.
func FromModel(s *models.Sheet) *SheetDTO {
	if s == nil {
		return nil
	}
	return &SheetDTO{
		ID:            s.ID,
		SellerID:      s.SellerID,
		Title:         s.Title,
		Description:   s.Description,
		Course:        s.Course,
		University:    s.University,
		Subject:       s.Subject,
		Price:         s.Price.StringFixed(2),
		PriceCents:    s.Price.Shift(2).Round(0).IntPart(),
		Currency:      s.Currency,
		IsActive:      s.IsActive,
		HasFile:       s.HasFile(),
		HasPreview:    s.HasPreview(),
		PageCount:     s.PageCount,
		PurchaseCount: s.PurchaseCount,
		RatingCount:   s.RatingCount,
		RatingAverage: s.RatingAverage.StringFixed(2),
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
}

// FromModels maps a page of rows.
func FromModels(rows []models.Sheet) []SheetDTO {
	out := make([]SheetDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *FromModel(&rows[i]))
	}
	return out
}

// PriceFromCents converts an API amount into the stored decimal.
func PriceFromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// NormalizeCurrency lower-cases an ISO code and falls back to def.
func NormalizeCurrency(value, def string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		value = strings.ToLower(strings.TrimSpace(def))
	}
	if value == "" {
		value = "usd"
	}
	return value
}
