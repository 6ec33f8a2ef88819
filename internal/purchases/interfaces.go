package purchases

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/uninote/uninote-backend/pkg/db/models"
	"github.com/uninote/uninote-backend/pkg/pagination"
	"github.com/uninote/uninote-backend/pkg/stripe"
)

// Repository is the entitlement ledger over the purchases table.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, purchase *models.Purchase) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Purchase, error)
	FindByUserAndSheet(ctx context.Context, userID, sheetID uuid.UUID) (*models.Purchase, error)
	FindBySessionID(ctx context.Context, sessionID string) (*models.Purchase, error)
	ResetForCheckout(ctx context.Context, id uuid.UUID, price decimal.Decimal, currency string) error
	SetSessionID(ctx context.Context, id uuid.UUID, sessionID string) error
	MarkCompleted(ctx context.Context, id uuid.UUID, paymentRef string, at time.Time) (bool, error)
	MarkFailed(ctx context.Context, id uuid.UUID) (bool, error)
	ExistsCompleted(ctx context.Context, userID, sheetID uuid.UUID) (bool, error)
	ListForBuyer(ctx context.Context, userID uuid.UUID, params pagination.Params) (pagination.Page[models.Purchase], error)
	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]models.Purchase, error)
	TouchPending(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

// Gateway is the slice of the payment adapter the engine drives.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, req stripe.CheckoutSessionRequest) (stripe.CheckoutSession, error)
	ExpireCheckoutSession(ctx context.Context, sessionID string) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}
