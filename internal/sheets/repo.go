package sheets

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/uninote/uninote-backend/pkg/db/models"
	"github.com/uninote/uninote-backend/pkg/pagination"
)

// ListFilters narrows catalog listings. Zero values are ignored.
type ListFilters struct {
	Query         string
	Course        string
	University    string
	Subject       string
	SellerID      *uuid.UUID
	PriceMin      *decimal.Decimal
	PriceMax      *decimal.Decimal
	IncludeHidden bool
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a sheets repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, sheet *models.Sheet) error {
	if sheet.ID == uuid.Nil {
		sheet.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(sheet).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Sheet, error) {
	var sheet models.Sheet
	if err := r.db.WithContext(ctx).First(&sheet, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &sheet, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).Model(&models.Sheet{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// IncrementPurchaseCountWithTx bumps purchase_count in a single statement so
// concurrent completions never lose an increment.
func (r *repository) IncrementPurchaseCountWithTx(tx *gorm.DB, id uuid.UUID) error {
	if tx == nil {
		tx = r.db
	}
	res := tx.Model(&models.Sheet{}).
		Where("id = ?", id).
		UpdateColumn("purchase_count", gorm.Expr("purchase_count + ?", 1))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// LockForUpdate takes the sheet row lock for the rest of the transaction.
// SQLite has no row locks; its single writer already serializes callers.
func (r *repository) LockForUpdate(ctx context.Context, id uuid.UUID) (*models.Sheet, error) {
	var sheet models.Sheet
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&sheet, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &sheet, nil
}

func (r *repository) UpdateRatingStats(ctx context.Context, id uuid.UUID, count int, average decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&models.Sheet{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"rating_count":   count,
			"rating_average": average.Round(2),
		}).Error
}

func (r *repository) List(ctx context.Context, filters ListFilters, params pagination.Params) (pagination.Page[models.Sheet], error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return pagination.Page[models.Sheet]{}, err
	}

	q := r.db.WithContext(ctx).Model(&models.Sheet{})
	if !filters.IncludeHidden {
		q = q.Where("is_active = ?", true)
	}
	if term := strings.ToLower(strings.TrimSpace(filters.Query)); term != "" {
		like := "%" + escapeLike(term) + "%"
		q = q.Where(`(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(course) LIKE ? ESCAPE '\')`, like, like)
	}
	if v := strings.TrimSpace(filters.Course); v != "" {
		q = q.Where("LOWER(course) = ?", strings.ToLower(v))
	}
	if v := strings.TrimSpace(filters.University); v != "" {
		q = q.Where("LOWER(university) = ?", strings.ToLower(v))
	}
	if v := strings.TrimSpace(filters.Subject); v != "" {
		q = q.Where("LOWER(subject) = ?", strings.ToLower(v))
	}
	if filters.SellerID != nil {
		q = q.Where("seller_id = ?", *filters.SellerID)
	}
	if filters.PriceMin != nil {
		q = q.Where("price >= ?", *filters.PriceMin)
	}
	if filters.PriceMax != nil {
		q = q.Where("price <= ?", *filters.PriceMax)
	}

	var rows []models.Sheet
	if err := q.Scopes(pagination.Scope("", cursor, params.Limit)).Find(&rows).Error; err != nil {
		return pagination.Page[models.Sheet]{}, err
	}
	return pagination.Build(rows, params.Limit, func(s models.Sheet) pagination.Cursor {
		return pagination.Cursor{CreatedAt: s.CreatedAt, ID: s.ID}
	}), nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
