package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/checkout/session"

	"github.com/uninote/uninote-backend/pkg/config"
)

// Metadata keys attached to every checkout session.
const (
	MetadataPurchaseID = "purchase_id"
	MetadataSheetID    = "sheet_id"
)

// Stripe only accepts expires_at between 30 minutes and 24 hours out.
const (
	minSessionTTL = 30 * time.Minute
	maxSessionTTL = 24 * time.Hour
)

var zeroDecimalCurrencies = map[string]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true, "kmf": true, "krw": true,
	"mga": true, "pyg": true, "rwf": true, "ugx": true, "vnd": true, "vuv": true, "xaf": true,
	"xof": true, "xpf": true,
}

// CheckoutSessionRequest describes the single line item a buyer is paying for.
type CheckoutSessionRequest struct {
	PurchaseID  uuid.UUID
	SheetID     uuid.UUID
	Title       string
	Description string
	Price       decimal.Decimal
	Currency    string
}

// CheckoutSession is the hosted page handed back to the buyer.
type CheckoutSession struct {
	SessionID string
	URL       string
}

// SessionState is a point-in-time read of a checkout session.
type SessionState struct {
	SessionID     string
	Status        string
	PaymentStatus string
	PaymentRef    string
}

// Completed reports whether the session finished with funds captured or no
// payment required.
func (s SessionState) Completed() bool {
	return s.Status == string(stripe.CheckoutSessionStatusComplete) && IsPaid(s.PaymentStatus)
}

// Expired reports whether the session can no longer be paid.
func (s SessionState) Expired() bool {
	return s.Status == string(stripe.CheckoutSessionStatusExpired)
}

// IsPaid reports whether a checkout payment_status grants the item.
func IsPaid(paymentStatus string) bool {
	switch stripe.CheckoutSessionPaymentStatus(paymentStatus) {
	case stripe.CheckoutSessionPaymentStatusPaid, stripe.CheckoutSessionPaymentStatusNoPaymentRequired:
		return true
	}
	return false
}

// CheckoutGateway creates, expires and reads hosted checkout sessions.
type CheckoutGateway struct {
	sessions   *session.Client
	successURL string
	cancelURL  string
	ttl        time.Duration
	now        func() time.Time
}

// NewCheckoutGateway binds the gateway to the client credentials and the
// redirect URLs from config. Missing URLs fall back to the public base URL.
func NewCheckoutGateway(client *Client, cfg config.StripeConfig, publicBaseURL string) (*CheckoutGateway, error) {
	if client == nil {
		return nil, errors.New("stripe client is required")
	}
	base := strings.TrimRight(publicBaseURL, "/")
	success := strings.TrimSpace(cfg.SuccessURL)
	if success == "" {
		success = base + "/purchases/{CHECKOUT_SESSION_ID}/success"
	}
	cancel := strings.TrimSpace(cfg.CancelURL)
	if cancel == "" {
		cancel = base + "/purchases/cancelled"
	}
	return &CheckoutGateway{
		sessions:   &session.Client{B: client.backend, Key: client.apiKey},
		successURL: success,
		cancelURL:  cancel,
		ttl:        cfg.SessionTTL,
		now:        time.Now,
	}, nil
}

// CreateCheckoutSession opens a payment-mode session for one sheet.
func (g *CheckoutGateway) CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (CheckoutSession, error) {
	if req.PurchaseID == uuid.Nil || req.SheetID == uuid.Nil {
		return CheckoutSession{}, errors.New("purchase and sheet ids are required")
	}
	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		return CheckoutSession{}, errors.New("currency is required")
	}
	amount, err := MinorUnits(req.Price, currency)
	if err != nil {
		return CheckoutSession{}, err
	}

	product := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{Name: stripe.String(req.Title)}
	if desc := strings.TrimSpace(req.Description); desc != "" {
		product.Description = stripe.String(desc)
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:    stripe.String(currency),
				ProductData: product,
				UnitAmount:  stripe.Int64(amount),
			},
			Quantity: stripe.Int64(1),
		}},
		SuccessURL:        stripe.String(g.successURL),
		CancelURL:         stripe.String(g.cancelURL),
		ClientReferenceID: stripe.String(req.PurchaseID.String()),
	}
	params.Context = ctx
	params.AddMetadata(MetadataPurchaseID, req.PurchaseID.String())
	params.AddMetadata(MetadataSheetID, req.SheetID.String())
	if ttl := g.sessionTTL(); ttl > 0 {
		params.ExpiresAt = stripe.Int64(g.now().Add(ttl).Unix())
	}

	sess, err := g.sessions.New(params)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("create checkout session: %w", err)
	}
	if sess.ID == "" || sess.URL == "" {
		return CheckoutSession{}, errors.New("create checkout session: empty session returned")
	}
	return CheckoutSession{SessionID: sess.ID, URL: sess.URL}, nil
}

// ExpireCheckoutSession closes an open session so it can no longer be paid.
func (g *CheckoutGateway) ExpireCheckoutSession(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return errors.New("session id is required")
	}
	params := &stripe.CheckoutSessionExpireParams{}
	params.Context = ctx
	if _, err := g.sessions.Expire(sessionID, params); err != nil {
		return fmt.Errorf("expire checkout session: %w", err)
	}
	return nil
}

// GetCheckoutSession reads the current state of a session.
func (g *CheckoutGateway) GetCheckoutSession(ctx context.Context, sessionID string) (SessionState, error) {
	if strings.TrimSpace(sessionID) == "" {
		return SessionState{}, errors.New("session id is required")
	}
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	sess, err := g.sessions.Get(sessionID, params)
	if err != nil {
		return SessionState{}, fmt.Errorf("get checkout session: %w", err)
	}
	return StateOf(sess), nil
}

// StateOf flattens a Stripe checkout session.
func StateOf(sess *stripe.CheckoutSession) SessionState {
	if sess == nil {
		return SessionState{}
	}
	state := SessionState{
		SessionID:     sess.ID,
		Status:        string(sess.Status),
		PaymentStatus: string(sess.PaymentStatus),
	}
	if sess.PaymentIntent != nil {
		state.PaymentRef = sess.PaymentIntent.ID
	}
	return state
}

// MinorUnits converts a decimal amount into the integer the gateway expects.
func MinorUnits(amount decimal.Decimal, currency string) (int64, error) {
	if amount.IsNegative() {
		return 0, fmt.Errorf("amount %s must not be negative", amount)
	}
	places := int32(2)
	if zeroDecimalCurrencies[strings.ToLower(currency)] {
		places = 0
	}
	return amount.Shift(places).RoundBank(0).IntPart(), nil
}

func (g *CheckoutGateway) sessionTTL() time.Duration {
	switch {
	case g.ttl <= 0:
		return 0
	case g.ttl < minSessionTTL:
		return minSessionTTL
	case g.ttl > maxSessionTTL:
		return maxSessionTTL
	}
	return g.ttl
}
