package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/uninote/uninote-backend/internal/purchases"
	"github.com/uninote/uninote-backend/pkg/db/models"
	"github.com/uninote/uninote-backend/pkg/enums"
	"github.com/uninote/uninote-backend/pkg/logger"
	"github.com/uninote/uninote-backend/pkg/stripe"
)

// PurchaseReconcileJobName is the registry name of the reconciliation job.
const PurchaseReconcileJobName = "purchase-reconcile"

const (
	defaultReconcileMinAge = 30 * time.Minute
	defaultReconcileBatch  = 200
)

type stalePurchaseLister interface {
	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]models.Purchase, error)
	TouchPending(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

type sessionReader interface {
	GetCheckoutSession(ctx context.Context, sessionID string) (stripe.SessionState, error)
}

type callbackHandler interface {
	HandleGatewayCallback(ctx context.Context, event purchases.GatewayEvent) (purchases.CallbackResult, error)
}

// PurchaseReconcileJobParams configures the stale checkout sweep.
type PurchaseReconcileJobParams struct {
	Logger    *logger.Logger
	Purchases stalePurchaseLister
	Sessions  sessionReader
	Callbacks callbackHandler
	MinAge    time.Duration
	BatchSize int
	Now       func() time.Time
}

type purchaseReconcileJob struct {
	logg      *logger.Logger
	purchases stalePurchaseLister
	sessions  sessionReader
	callbacks callbackHandler
	minAge    time.Duration
	batch     int
	now       func() time.Time
}

// NewPurchaseReconcileJob builds the job that settles PENDING purchases whose
// webhook never arrived, by reading the session straight from the gateway.
func NewPurchaseReconcileJob(params PurchaseReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Purchases == nil {
		return nil, fmt.Errorf("purchase repository required")
	}
	if params.Sessions == nil {
		return nil, fmt.Errorf("checkout session reader required")
	}
	if params.Callbacks == nil {
		return nil, fmt.Errorf("callback handler required")
	}
	minAge := params.MinAge
	if minAge <= 0 {
		minAge = defaultReconcileMinAge
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultReconcileBatch
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &purchaseReconcileJob{
		logg:      params.Logger,
		purchases: params.Purchases,
		sessions:  params.Sessions,
		callbacks: params.Callbacks,
		minAge:    minAge,
		batch:     batch,
		now:       now,
	}, nil
}

func (j *purchaseReconcileJob) Name() string { return PurchaseReconcileJobName }

func (j *purchaseReconcileJob) Run(ctx context.Context) error {
	now := j.now()
	rows, err := j.purchases.ListStalePending(ctx, now.Add(-j.minAge), j.batch)
	if err != nil {
		return fmt.Errorf("list stale purchases: %w", err)
	}

	var (
		errs      error
		settled   int
		stillOpen int
		// rows looked at but left PENDING; touched so later rows get a turn
		deferred []uuid.UUID
	)
	for _, row := range rows {
		sessionID := row.SessionID()
		if sessionID == "" {
			continue
		}
		state, err := j.sessions.GetCheckoutSession(ctx, sessionID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("purchase %s: %w", row.ID, err))
			deferred = append(deferred, row.ID)
			continue
		}

		var kind enums.GatewayEventKind
		switch {
		case state.Completed():
			kind = enums.GatewayEventCompleted
		case state.Expired():
			kind = enums.GatewayEventExpired
		default:
			stillOpen++
			deferred = append(deferred, row.ID)
			continue
		}

		_, err = j.callbacks.HandleGatewayCallback(ctx, purchases.GatewayEvent{
			Kind:       kind,
			SessionID:  sessionID,
			PaymentRef: state.PaymentRef,
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("purchase %s: %w", row.ID, err))
			continue
		}
		settled++
	}

	if err := j.purchases.TouchPending(ctx, deferred, now); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("touch deferred purchases: %w", err))
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"scanned":  len(rows),
		"settled":  settled,
		"open":     stillOpen,
		"deferred": len(deferred),
		"errors":   len(multierr.Errors(errs)),
	}), "purchase.reconcile.summary")
	return errs
}
