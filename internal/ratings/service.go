package ratings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/uninote/uninote-backend/internal/sheets"
	"github.com/uninote/uninote-backend/pkg/db"
	"github.com/uninote/uninote-backend/pkg/db/models"
	pkgerrors "github.com/uninote/uninote-backend/pkg/errors"
	"github.com/uninote/uninote-backend/pkg/logger"
	"github.com/uninote/uninote-backend/pkg/pagination"
)

// RateRequest is the PUT /sheets/{id}/rating payload.
type RateRequest struct {
	Score   int     `json:"score" validate:"required,min=1,max=5"`
	Comment *string `json:"comment,omitempty" validate:"omitempty,max=2000"`
}

// RatingDTO is the public view of a rating.
type RatingDTO struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	SheetID   uuid.UUID `json:"sheet_id"`
	Score     int       `json:"score"`
	Comment   *string   `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func fromModel(r *models.Rating) RatingDTO {
	return RatingDTO{
		ID:        r.ID,
		UserID:    r.UserID,
		SheetID:   r.SheetID,
		Score:     r.Score,
		Comment:   r.Comment,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

type ownershipChecker interface {
	IsOwned(ctx context.Context, userID, sheetID uuid.UUID) (bool, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service manages owner ratings.
type Service struct {
	repo   *Repository
	sheets sheets.Repository
	owners ownershipChecker
	tx     txRunner
	logg   *logger.Logger
}

// NewService builds the ratings service.
func NewService(repo *Repository, sheetRepo sheets.Repository, owners ownershipChecker, tx txRunner, logg *logger.Logger) (*Service, error) {
	if repo == nil || sheetRepo == nil || owners == nil || tx == nil || logg == nil {
		return nil, fmt.Errorf("ratings service: missing dependency")
	}
	return &Service{repo: repo, sheets: sheetRepo, owners: owners, tx: tx, logg: logg}, nil
}

// Rate upserts the caller's rating and refreshes the sheet aggregate in the
// same transaction, holding the sheet row lock throughout.
func (s *Service) Rate(ctx context.Context, userID, sheetID uuid.UUID, req RateRequest) (*RatingDTO, error) {
	if req.Score < 1 || req.Score > 5 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "score must be between 1 and 5")
	}
	if _, err := s.sheets.FindByID(ctx, sheetID); err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sheet not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sheet")
	}
	owned, err := s.owners.IsOwned(ctx, userID, sheetID)
	if err != nil {
		return nil, err
	}
	if !owned {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only buyers can rate this sheet")
	}

	comment := req.Comment
	if comment != nil {
		trimmed := strings.TrimSpace(*comment)
		comment = &trimmed
		if trimmed == "" {
			comment = nil
		}
	}

	var saved *models.Rating
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		// the sheet lock orders concurrent raters so each aggregate sees the
		// previous writer's row
		sheetRepo := s.sheets.WithTx(tx)
		if _, err := sheetRepo.LockForUpdate(ctx, sheetID); err != nil {
			return err
		}

		repo := s.repo.WithTx(tx)
		existing, err := repo.FindByUserAndSheet(ctx, userID, sheetID)
		switch {
		case err == nil:
			if err := repo.Update(ctx, existing.ID, req.Score, comment); err != nil {
				return err
			}
		case db.IsNotFound(err):
			if err := repo.Create(ctx, &models.Rating{UserID: userID, SheetID: sheetID, Score: req.Score, Comment: comment}); err != nil {
				return err
			}
		default:
			return err
		}

		stats, err := repo.StatsForSheet(ctx, sheetID)
		if err != nil {
			return err
		}
		if err := sheetRepo.UpdateRatingStats(ctx, sheetID, stats.Count, stats.Average); err != nil {
			return err
		}
		saved, err = repo.FindByUserAndSheet(ctx, userID, sheetID)
		return err
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save rating")
	}

	ctx = s.logg.WithFields(ctx, map[string]any{"user_id": userID.String(), "sheet_id": sheetID.String(), "score": req.Score})
	s.logg.Info(ctx, "rating.saved")
	dto := fromModel(saved)
	return &dto, nil
}

// List pages through a sheet's ratings, newest first.
func (s *Service) List(ctx context.Context, sheetID uuid.UUID, params pagination.Params) (pagination.Page[RatingDTO], error) {
	page, err := s.repo.ListBySheet(ctx, sheetID, params)
	if err != nil {
		if errors.Is(err, pagination.ErrInvalidCursor) {
			return pagination.Page[RatingDTO]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		return pagination.Page[RatingDTO]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list ratings")
	}
	items := make([]RatingDTO, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, fromModel(&page.Items[i]))
	}
	return pagination.Page[RatingDTO]{Items: items, NextCursor: page.NextCursor}, nil
}
