package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/uninote/uninote-backend/pkg/enums"
)

// PurchaseUserSheetConstraint is the unique index over (user_id, sheet_id).
const PurchaseUserSheetConstraint = "purchases_user_sheet_key"

// Purchase is one row of the entitlement ledger. Price and currency are
// snapshots taken when checkout starts.
type Purchase struct {
	ID                uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID            uuid.UUID            `gorm:"column:user_id;type:uuid;not null"`
	SheetID           uuid.UUID            `gorm:"column:sheet_id;type:uuid;not null"`
	Price             decimal.Decimal      `gorm:"column:price;type:numeric(10,2);not null"`
	Currency          string               `gorm:"column:currency;not null"`
	Status            enums.PurchaseStatus `gorm:"column:status;type:text;not null;default:PENDING"`
	ExternalSessionID *string              `gorm:"column:external_session_id"`
	ExternalPaymentID *string              `gorm:"column:external_payment_id"`
	CompletedAt       *time.Time           `gorm:"column:completed_at"`
	CreatedAt         time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

// SessionID returns the external checkout session id or "".
func (p Purchase) SessionID() string {
	if p.ExternalSessionID == nil {
		return ""
	}
	return *p.ExternalSessionID
}
