package stripewebhook

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v84"

	"github.com/uninote/uninote-backend/internal/purchases"
	"github.com/uninote/uninote-backend/pkg/enums"
	pkgerrors "github.com/uninote/uninote-backend/pkg/errors"
	"github.com/uninote/uninote-backend/pkg/logger"
	"github.com/uninote/uninote-backend/pkg/metrics"
	pkgstripe "github.com/uninote/uninote-backend/pkg/stripe"
)

// Webhook results reported to metrics.
const (
	ResultHandled = "handled"
	ResultSkipped = "skipped"
	ResultFailed  = "failed"
)

type callbackHandler interface {
	HandleGatewayCallback(ctx context.Context, event purchases.GatewayEvent) (purchases.CallbackResult, error)
}

// Service translates checkout webhooks into purchase callbacks.
type Service struct {
	purchases callbackHandler
	metrics   *metrics.PurchaseMetrics
	logg      *logger.Logger
}

func NewService(handler callbackHandler, m *metrics.PurchaseMetrics, logg *logger.Logger) (*Service, error) {
	if handler == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "purchase callback handler required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{purchases: handler, metrics: m, logg: logg}, nil
}

// HandleEvent applies one verified Stripe event. Events that do not concern
// checkout sessions are acknowledged and skipped.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{"stripe_event_id": event.ID, "stripe_event_type": string(event.Type)})

	gatewayEvent, ok, err := Translate(event)
	if err != nil {
		s.metrics.Webhook(string(event.Type), ResultFailed)
		return err
	}
	if !ok {
		s.metrics.Webhook(string(event.Type), ResultSkipped)
		s.logg.Debug(ctx, "stripe.webhook.skipped")
		return nil
	}

	if _, err := s.purchases.HandleGatewayCallback(ctx, gatewayEvent); err != nil {
		s.metrics.Webhook(string(event.Type), ResultFailed)
		return err
	}
	s.metrics.Webhook(string(event.Type), ResultHandled)
	return nil
}

// Translate maps a checkout session event onto the purchase engine's
// vocabulary. ok is false for events the engine does not act on.
func Translate(event *stripe.Event) (purchases.GatewayEvent, bool, error) {
	var kind enums.GatewayEventKind
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted, stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		kind = enums.GatewayEventCompleted
	case stripe.EventTypeCheckoutSessionExpired, stripe.EventTypeCheckoutSessionAsyncPaymentFailed:
		kind = enums.GatewayEventExpired
	default:
		return purchases.GatewayEvent{}, false, nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return purchases.GatewayEvent{}, false, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session")
	}
	if sess.ID == "" {
		return purchases.GatewayEvent{}, false, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("%s event without session id", event.Type))
	}
	state := pkgstripe.StateOf(&sess)

	// delayed payment methods complete the session before funds arrive;
	// async_payment_succeeded follows once they do
	if event.Type == stripe.EventTypeCheckoutSessionCompleted && !pkgstripe.IsPaid(state.PaymentStatus) {
		return purchases.GatewayEvent{}, false, nil
	}

	return purchases.GatewayEvent{Kind: kind, SessionID: state.SessionID, PaymentRef: state.PaymentRef}, true, nil
}
