package ratings

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/uninote/uninote-backend/pkg/db/models"
	"github.com/uninote/uninote-backend/pkg/pagination"
)

// Stats is the aggregate denormalized onto a sheet.
type Stats struct {
	Count   int
	Average decimal.Decimal
}

// Repository persists ratings.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a ratings repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) FindByUserAndSheet(ctx context.Context, userID, sheetID uuid.UUID) (*models.Rating, error) {
	var rating models.Rating
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND sheet_id = ?", userID, sheetID).
		First(&rating).Error
	if err != nil {
		return nil, err
	}
	return &rating, nil
}

func (r *Repository) Create(ctx context.Context, rating *models.Rating) error {
	if rating.ID == uuid.Nil {
		rating.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(rating).Error
}

func (r *Repository) Update(ctx context.Context, id uuid.UUID, score int, comment *string) error {
	return r.db.WithContext(ctx).
		Model(&models.Rating{}).
		Where("id = ?", id).
		Updates(map[string]any{"score": score, "comment": comment}).Error
}

// StatsForSheet recomputes count and mean score for a sheet.
func (r *Repository) StatsForSheet(ctx context.Context, sheetID uuid.UUID) (Stats, error) {
	var row struct {
		Count   int
		Average float64
	}
	err := r.db.WithContext(ctx).
		Model(&models.Rating{}).
		Select("COUNT(*) AS count, COALESCE(AVG(score), 0) AS average").
		Where("sheet_id = ?", sheetID).
		Scan(&row).Error
	if err != nil {
		return Stats{}, err
	}
	return Stats{Count: row.Count, Average: decimal.NewFromFloat(row.Average).Round(2)}, nil
}

func (r *Repository) ListBySheet(ctx context.Context, sheetID uuid.UUID, params pagination.Params) (pagination.Page[models.Rating], error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return pagination.Page[models.Rating]{}, err
	}
	var rows []models.Rating
	err = r.db.WithContext(ctx).
		Where("sheet_id = ?", sheetID).
		Scopes(pagination.Scope("", cursor, params.Limit)).
		Find(&rows).Error
	if err != nil {
		return pagination.Page[models.Rating]{}, err
	}
	return pagination.Build(rows, params.Limit, func(rt models.Rating) pagination.Cursor {
		return pagination.Cursor{CreatedAt: rt.CreatedAt, ID: rt.ID}
	}), nil
}
