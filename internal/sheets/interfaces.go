package sheets

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/uninote/uninote-backend/pkg/db/models"
	"github.com/uninote/uninote-backend/pkg/pagination"
)

// Repository is the catalog store over the sheets table.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, sheet *models.Sheet) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Sheet, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	IncrementPurchaseCountWithTx(tx *gorm.DB, id uuid.UUID) error
	LockForUpdate(ctx context.Context, id uuid.UUID) (*models.Sheet, error)
	UpdateRatingStats(ctx context.Context, id uuid.UUID, count int, average decimal.Decimal) error
	List(ctx context.Context, filters ListFilters, params pagination.Params) (pagination.Page[models.Sheet], error)
}
