package purchases

import (
	"time"

	"github.com/google/uuid"

	"github.com/uninote/uninote-backend/pkg/db/models"
	"github.com/uninote/uninote-backend/pkg/enums"
)

// GatewayEvent is a provider-neutral checkout callback.
type GatewayEvent struct {
	Kind       enums.GatewayEventKind
	SessionID  string
	PaymentRef string
}

// InitiateResult is handed back to the buyer to continue at the gateway.
type InitiateResult struct {
	PurchaseID  uuid.UUID `json:"purchase_id"`
	CheckoutURL string    `json:"checkout_url"`
}

// CallbackResult reports what a callback did to the ledger.
type CallbackResult struct {
	PurchaseID *uuid.UUID
	Outcome    string
}

// PurchaseDTO is the buyer-facing view of a ledger row.
type PurchaseDTO struct {
	ID          uuid.UUID            `json:"id"`
	SheetID     uuid.UUID            `json:"sheet_id"`
	Price       string               `json:"price"`
	Currency    string               `json:"currency"`
	Status      enums.PurchaseStatus `json:"status"`
	CompletedAt *time.Time           `json:"completed_at,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

// FromModel maps a purchase row.
func FromModel(p *models.Purchase) *PurchaseDTO {
	if p == nil {
		return nil
	}
	return &PurchaseDTO{
		ID:          p.ID,
		SheetID:     p.SheetID,
		Price:       p.Price.StringFixed(2),
		Currency:    p.Currency,
		Status:      p.Status,
		CompletedAt: p.CompletedAt,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}
