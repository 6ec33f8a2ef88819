package purchases

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/uninote/uninote-backend/pkg/db/models"
	"github.com/uninote/uninote-backend/pkg/enums"
	"github.com/uninote/uninote-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a purchases repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, purchase *models.Purchase) error {
	if purchase.ID == uuid.Nil {
		purchase.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(purchase).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Purchase, error) {
	var purchase models.Purchase
	if err := r.db.WithContext(ctx).First(&purchase, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &purchase, nil
}

func (r *repository) FindByUserAndSheet(ctx context.Context, userID, sheetID uuid.UUID) (*models.Purchase, error) {
	var purchase models.Purchase
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND sheet_id = ?", userID, sheetID).
		First(&purchase).Error
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

func (r *repository) FindBySessionID(ctx context.Context, sessionID string) (*models.Purchase, error) {
	var purchase models.Purchase
	err := r.db.WithContext(ctx).
		Where("external_session_id = ?", sessionID).
		First(&purchase).Error
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

// ResetForCheckout re-prices a reusable row and puts it back to PENDING. It
// never touches a COMPLETED row.
func (r *repository) ResetForCheckout(ctx context.Context, id uuid.UUID, price decimal.Decimal, currency string) error {
	res := r.db.WithContext(ctx).
		Model(&models.Purchase{}).
		Where("id = ? AND status <> ?", id, enums.PurchaseStatusCompleted).
		Updates(map[string]any{
			"price":    price,
			"currency": currency,
			"status":   enums.PurchaseStatusPending,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) SetSessionID(ctx context.Context, id uuid.UUID, sessionID string) error {
	res := r.db.WithContext(ctx).
		Model(&models.Purchase{}).
		Where("id = ?", id).
		Update("external_session_id", sessionID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkCompleted flips any non-COMPLETED row to COMPLETED and reports whether
// this call performed the transition.
func (r *repository) MarkCompleted(ctx context.Context, id uuid.UUID, paymentRef string, at time.Time) (bool, error) {
	updates := map[string]any{
		"status":       enums.PurchaseStatusCompleted,
		"completed_at": at,
	}
	if paymentRef != "" {
		updates["external_payment_id"] = paymentRef
	}
	res := r.db.WithContext(ctx).
		Model(&models.Purchase{}).
		Where("id = ? AND status <> ?", id, enums.PurchaseStatusCompleted).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkFailed moves a PENDING row to FAILED and reports whether it did.
func (r *repository) MarkFailed(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Purchase{}).
		Where("id = ? AND status = ?", id, enums.PurchaseStatusPending).
		Update("status", enums.PurchaseStatusFailed)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ExistsCompleted(ctx context.Context, userID, sheetID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Purchase{}).
		Where("user_id = ? AND sheet_id = ? AND status = ?", userID, sheetID, enums.PurchaseStatusCompleted).
		Limit(1).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) ListForBuyer(ctx context.Context, userID uuid.UUID, params pagination.Params) (pagination.Page[models.Purchase], error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return pagination.Page[models.Purchase]{}, err
	}
	var rows []models.Purchase
	err = r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Scopes(pagination.Scope("", cursor, params.Limit)).
		Find(&rows).Error
	if err != nil {
		return pagination.Page[models.Purchase]{}, err
	}
	return pagination.Build(rows, params.Limit, func(p models.Purchase) pagination.Cursor {
		return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
	}), nil
}

// ListStalePending returns PENDING rows with a checkout session that have not
// moved since olderThan, oldest first.
func (r *repository) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]models.Purchase, error) {
	if limit <= 0 {
		limit = pagination.MaxLimit
	}
	var rows []models.Purchase
	err := r.db.WithContext(ctx).
		Where("status = ? AND external_session_id IS NOT NULL AND updated_at < ?", enums.PurchaseStatusPending, olderThan).
		Order("updated_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// TouchPending bumps updated_at on rows that are still PENDING so the next
// stale sweep starts behind them.
func (r *repository) TouchPending(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Purchase{}).
		Where("id IN ? AND status = ?", ids, enums.PurchaseStatusPending).
		UpdateColumn("updated_at", at).Error
}
