package sellers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/uninote/uninote-backend/internal/users"
	"github.com/uninote/uninote-backend/pkg/db"
	"github.com/uninote/uninote-backend/pkg/db/models"
	"github.com/uninote/uninote-backend/pkg/enums"
	pkgerrors "github.com/uninote/uninote-backend/pkg/errors"
	"github.com/uninote/uninote-backend/pkg/logger"
	"github.com/uninote/uninote-backend/pkg/pagination"
)

// ApplyRequest is the seller application payload.
type ApplyRequest struct {
	Bio string `json:"bio" validate:"required,min=10,max=2000"`
}

// Service runs seller onboarding.
type Service interface {
	Apply(ctx context.Context, userID uuid.UUID, req ApplyRequest) (*users.UserDTO, error)
	Approve(ctx context.Context, adminID, userID uuid.UUID) (*users.UserDTO, error)
	Reject(ctx context.Context, adminID, userID uuid.UUID) (*users.UserDTO, error)
	List(ctx context.Context, status enums.SellerStatus, params pagination.Params) (pagination.Page[users.UserDTO], error)
}

type userStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	TransitionSellerStatus(ctx context.Context, id uuid.UUID, from []enums.SellerStatus, to enums.SellerStatus, fields map[string]any) (bool, error)
	ListBySellerStatus(ctx context.Context, status enums.SellerStatus, params pagination.Params) (pagination.Page[models.User], error)
}

type service struct {
	users userStore
	logg  *logger.Logger
	now   func() time.Time
}

// NewService builds the onboarding service.
func NewService(store userStore, logg *logger.Logger) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("user store required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{users: store, logg: logg, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *service) Apply(ctx context.Context, userID uuid.UUID, req ApplyRequest) (*users.UserDTO, error) {
	bio := strings.TrimSpace(req.Bio)
	if bio == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bio is required")
	}
	changed, err := s.users.TransitionSellerStatus(ctx, userID,
		[]enums.SellerStatus{enums.SellerStatusNone, enums.SellerStatusRejected},
		enums.SellerStatusPending,
		map[string]any{"seller_bio": bio, "seller_reviewed_at": nil},
	)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "submit seller application")
	}
	if !changed {
		user, err := s.load(ctx, userID)
		if err != nil {
			return nil, err
		}
		return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("seller application already %s", user.SellerStatus))
	}

	s.logg.Info(s.logg.WithUserID(ctx, userID.String()), "seller.applied")
	return s.reload(ctx, userID)
}

func (s *service) Approve(ctx context.Context, adminID, userID uuid.UUID) (*users.UserDTO, error) {
	return s.review(ctx, adminID, userID, enums.SellerStatusApproved)
}

func (s *service) Reject(ctx context.Context, adminID, userID uuid.UUID) (*users.UserDTO, error) {
	return s.review(ctx, adminID, userID, enums.SellerStatusRejected)
}

func (s *service) review(ctx context.Context, adminID, userID uuid.UUID, to enums.SellerStatus) (*users.UserDTO, error) {
	changed, err := s.users.TransitionSellerStatus(ctx, userID,
		[]enums.SellerStatus{enums.SellerStatusPending},
		to,
		map[string]any{"seller_reviewed_at": s.now()},
	)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "review seller application")
	}
	if !changed {
		user, err := s.load(ctx, userID)
		if err != nil {
			return nil, err
		}
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "application is not pending").
			WithDetails(map[string]any{"seller_status": user.SellerStatus})
	}

	ctx = s.logg.WithFields(ctx, map[string]any{"admin_id": adminID.String(), "user_id": userID.String(), "seller_status": string(to)})
	s.logg.Info(ctx, "seller.reviewed")
	return s.reload(ctx, userID)
}

func (s *service) List(ctx context.Context, status enums.SellerStatus, params pagination.Params) (pagination.Page[users.UserDTO], error) {
	if status == "" {
		status = enums.SellerStatusPending
	}
	if !status.IsValid() {
		return pagination.Page[users.UserDTO]{}, pkgerrors.New(pkgerrors.CodeValidation, "unknown seller status")
	}
	page, err := s.users.ListBySellerStatus(ctx, status, params)
	if err != nil {
		if errors.Is(err, pagination.ErrInvalidCursor) {
			return pagination.Page[users.UserDTO]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		return pagination.Page[users.UserDTO]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list sellers")
	}
	items := make([]users.UserDTO, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, *users.FromModel(&page.Items[i]))
	}
	return pagination.Page[users.UserDTO]{Items: items, NextCursor: page.NextCursor}, nil
}

func (s *service) load(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	return user, nil
}

func (s *service) reload(ctx context.Context, userID uuid.UUID) (*users.UserDTO, error) {
	user, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return users.FromModel(user), nil
}
