package purchases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/uninote/uninote-backend/internal/sheets"
	"github.com/uninote/uninote-backend/pkg/db"
	"github.com/uninote/uninote-backend/pkg/db/models"
	"github.com/uninote/uninote-backend/pkg/enums"
	pkgerrors "github.com/uninote/uninote-backend/pkg/errors"
	"github.com/uninote/uninote-backend/pkg/logger"
	"github.com/uninote/uninote-backend/pkg/metrics"
	"github.com/uninote/uninote-backend/pkg/pagination"
	"github.com/uninote/uninote-backend/pkg/stripe"
)

// Service runs the purchase lifecycle.
type Service interface {
	Initiate(ctx context.Context, buyerID, sheetID uuid.UUID) (*InitiateResult, error)
	HandleGatewayCallback(ctx context.Context, event GatewayEvent) (CallbackResult, error)
	Get(ctx context.Context, buyerID, purchaseID uuid.UUID) (*PurchaseDTO, error)
	ListForBuyer(ctx context.Context, buyerID uuid.UUID, params pagination.Params) (pagination.Page[PurchaseDTO], error)
}

// ServiceParams bundles the engine dependencies.
type ServiceParams struct {
	Repo      Repository
	SheetRepo sheets.Repository
	Gateway   Gateway
	TxRunner  txRunner
	Metrics   *metrics.PurchaseMetrics
	Logger    *logger.Logger
	Clock     func() time.Time
	// GatewayTimeout caps the session call made while the ledger transaction is open.
	GatewayTimeout time.Duration
}

const defaultGatewayTimeout = 20 * time.Second

type service struct {
	repo    Repository
	sheets  sheets.Repository
	gateway Gateway
	tx      txRunner
	metrics *metrics.PurchaseMetrics
	logg    *logger.Logger
	now     func() time.Time

	gatewayTimeout time.Duration
}

// NewService wires the purchase engine.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("purchases repository required")
	}
	if params.SheetRepo == nil {
		return nil, fmt.Errorf("sheets repository required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Clock
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	gatewayTimeout := params.GatewayTimeout
	if gatewayTimeout <= 0 {
		gatewayTimeout = defaultGatewayTimeout
	}
	return &service{
		repo:           params.Repo,
		sheets:         params.SheetRepo,
		gateway:        params.Gateway,
		tx:             params.TxRunner,
		metrics:        params.Metrics,
		logg:           params.Logger,
		now:            now,
		gatewayTimeout: gatewayTimeout,
	}, nil
}

type checkoutAttempt struct {
	result       InitiateResult
	staleSession string
}

func (s *service) Initiate(ctx context.Context, buyerID, sheetID uuid.UUID) (*InitiateResult, error) {
	ctx = s.logg.WithFields(ctx, map[string]any{"user_id": buyerID.String(), "sheet_id": sheetID.String()})

	attempt, err := s.initiateOnce(ctx, buyerID, sheetID)
	if err != nil && db.IsUniqueViolation(err, models.PurchaseUserSheetConstraint) {
		// a concurrent initiate inserted the row first; its row is reused now
		s.logg.Debug(ctx, "purchase.initiate.retry")
		attempt, err = s.initiateOnce(ctx, buyerID, sheetID)
	}
	if err != nil {
		typed := pkgerrors.As(err)
		if typed == nil {
			typed = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "initiate purchase")
		}
		s.metrics.Initiated(string(typed.Code()))
		if pkgerrors.Retryable(typed) {
			s.logg.Error(ctx, "purchase.initiate.failed", err)
		}
		return nil, typed
	}

	ctx = s.logg.WithPurchaseID(ctx, attempt.result.PurchaseID.String())
	if attempt.staleSession != "" {
		if err := s.gateway.ExpireCheckoutSession(ctx, attempt.staleSession); err != nil {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"session_id": attempt.staleSession,
				"error":      err.Error(),
			}), "purchase.session.expire_failed")
		}
	}

	s.metrics.Initiated("ok")
	s.logg.Info(ctx, "purchase.initiated")
	result := attempt.result
	return &result, nil
}

func (s *service) initiateOnce(ctx context.Context, buyerID, sheetID uuid.UUID) (checkoutAttempt, error) {
	var attempt checkoutAttempt
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		sheet, err := s.sheets.WithTx(tx).FindByID(ctx, sheetID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "sheet not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sheet")
		}
		if !sheet.IsActive {
			return pkgerrors.New(pkgerrors.CodeSheetInactive, "sheet is not available for purchase")
		}
		if sheet.SellerID == buyerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "sellers cannot buy their own sheet")
		}

		purchase, err := repo.FindByUserAndSheet(ctx, buyerID, sheetID)
		switch {
		case err == nil:
			if purchase.Status == enums.PurchaseStatusCompleted {
				return pkgerrors.New(pkgerrors.CodeAlreadyOwned, "sheet already owned")
			}
			if err := repo.ResetForCheckout(ctx, purchase.ID, sheet.Price, sheet.Currency); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refresh purchase")
			}
			attempt.staleSession = purchase.SessionID()
		case db.IsNotFound(err):
			purchase = &models.Purchase{
				ID:       uuid.New(),
				UserID:   buyerID,
				SheetID:  sheetID,
				Price:    sheet.Price,
				Currency: sheet.Currency,
				Status:   enums.PurchaseStatusPending,
			}
			if err := repo.Create(ctx, purchase); err != nil {
				// returned raw so the caller can detect the pair collision
				return err
			}
		default:
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load purchase")
		}

		gatewayCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
		defer cancel()
		session, err := s.gateway.CreateCheckoutSession(gatewayCtx, stripe.CheckoutSessionRequest{
			PurchaseID:  purchase.ID,
			SheetID:     sheet.ID,
			Title:       sheet.Title,
			Description: sheet.Course + " · " + sheet.University,
			Price:       sheet.Price,
			Currency:    sheet.Currency,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeGatewayUnavailable, err, "create checkout session")
		}
		if err := repo.SetSessionID(ctx, purchase.ID, session.SessionID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record checkout session")
		}

		attempt.result = InitiateResult{PurchaseID: purchase.ID, CheckoutURL: session.URL}
		if attempt.staleSession == session.SessionID {
			attempt.staleSession = ""
		}
		return nil
	})
	return attempt, err
}

func (s *service) HandleGatewayCallback(ctx context.Context, event GatewayEvent) (CallbackResult, error) {
	kind := string(event.Kind)
	ctx = s.logg.WithFields(ctx, map[string]any{"session_id": event.SessionID, "kind": kind})

	if !event.Kind.IsKnown() || event.SessionID == "" {
		return s.ignored(ctx, kind, "unhandled event"), nil
	}

	var result CallbackResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		purchase, err := repo.FindBySessionID(ctx, event.SessionID)
		if err != nil {
			if db.IsNotFound(err) {
				result.Outcome = metrics.CallbackIgnored
				return nil
			}
			return err
		}
		result.PurchaseID = &purchase.ID

		switch event.Kind {
		case enums.GatewayEventCompleted:
			applied, err := repo.MarkCompleted(ctx, purchase.ID, event.PaymentRef, s.now())
			if err != nil {
				return err
			}
			if !applied {
				result.Outcome = metrics.CallbackDuplicate
				return nil
			}
			if err := s.sheets.IncrementPurchaseCountWithTx(tx, purchase.SheetID); err != nil {
				return err
			}
		case enums.GatewayEventExpired:
			applied, err := repo.MarkFailed(ctx, purchase.ID)
			if err != nil {
				return err
			}
			if !applied {
				result.Outcome = metrics.CallbackDuplicate
				return nil
			}
		}
		result.Outcome = metrics.CallbackApplied
		return nil
	})
	if err != nil {
		s.metrics.Callback(kind, metrics.CallbackError)
		s.logg.Error(ctx, "purchase.callback.failed", err)
		return CallbackResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply gateway callback")
	}

	if result.PurchaseID != nil {
		ctx = s.logg.WithPurchaseID(ctx, result.PurchaseID.String())
	}
	switch result.Outcome {
	case metrics.CallbackIgnored:
		return s.ignored(ctx, kind, "unknown session"), nil
	case metrics.CallbackDuplicate:
		s.logg.Info(ctx, "purchase.callback.duplicate")
	default:
		s.logg.Info(ctx, "purchase.callback.applied")
	}
	s.metrics.Callback(kind, result.Outcome)
	return result, nil
}

func (s *service) ignored(ctx context.Context, kind, reason string) CallbackResult {
	s.metrics.Callback(kind, metrics.CallbackIgnored)
	s.logg.Info(s.logg.WithField(ctx, "reason", reason), "purchase.callback.ignored")
	return CallbackResult{Outcome: metrics.CallbackIgnored}
}

func (s *service) Get(ctx context.Context, buyerID, purchaseID uuid.UUID) (*PurchaseDTO, error) {
	purchase, err := s.repo.FindByID(ctx, purchaseID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "purchase not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load purchase")
	}
	if purchase.UserID != buyerID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "purchase not found")
	}
	return FromModel(purchase), nil
}

func (s *service) ListForBuyer(ctx context.Context, buyerID uuid.UUID, params pagination.Params) (pagination.Page[PurchaseDTO], error) {
	page, err := s.repo.ListForBuyer(ctx, buyerID, params)
	if err != nil {
		if errors.Is(err, pagination.ErrInvalidCursor) {
			return pagination.Page[PurchaseDTO]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		return pagination.Page[PurchaseDTO]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list purchases")
	}
	items := make([]PurchaseDTO, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, *FromModel(&page.Items[i]))
	}
	return pagination.Page[PurchaseDTO]{Items: items, NextCursor: page.NextCursor}, nil
}
