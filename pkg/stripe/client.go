package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/uninote/uninote-backend/pkg/config"
	"github.com/uninote/uninote-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"

	signingSecretPrefix = "whsec_"
	maxNetworkRetries   = 2
)

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errSecretRequired   = errors.New("stripe webhook secret is required")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
)

// Client carries the Stripe credentials and the API backend used by the
// checkout gateway.
type Client struct {
	backend       stripe.Backend
	apiKey        string
	environment   string
	signingSecret string
}

// NewClient validates the configured keys against the environment and builds
// an API backend.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	signingSecret := strings.TrimSpace(cfg.Secret)
	if signingSecret == "" {
		return nil, errSecretRequired
	}
	if err := validateAPIKey(env, apiKey); err != nil {
		return nil, err
	}

	if !strings.HasPrefix(signingSecret, signingSecretPrefix) {
		return nil, fmt.Errorf("stripe webhook secret must start with %q", signingSecretPrefix)
	}

	backendCfg := &stripe.BackendConfig{MaxNetworkRetries: stripe.Int64(maxNetworkRetries)}
	if logg != nil {
		backendCfg.LeveledLogger = newLeveledLogger(ctx, logg)
	}
	client := &Client{
		backend:       stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg),
		apiKey:        apiKey,
		environment:   env,
		signingSecret: signingSecret,
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "stripe_env", env), "stripe client initialized")
	}
	return client, nil
}

// NewClientWithBackend builds a client against a custom backend, e.g. a local
// stub server in tests.
func NewClientWithBackend(backend stripe.Backend, apiKey, signingSecret string) *Client {
	return &Client{
		backend:       backend,
		apiKey:        apiKey,
		environment:   testEnv,
		signingSecret: signingSecret,
	}
}

// Environment reports the normalized Stripe environment in use.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// SigningSecret returns the webhook signing secret.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.signingSecret
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		return testEnv, nil
	}
	if env != testEnv && env != liveEnv {
		return "", errInvalidStripeEnv
	}
	return env, nil
}

func validateAPIKey(env, key string) error {
	for _, prefix := range []string{"sk_" + env, "rk_" + env} {
		if strings.HasPrefix(key, prefix) {
			return nil
		}
	}
	return fmt.Errorf("stripe environment %q requires a %s secret key (sk_%s/rk_%s)", env, env, env, env)
}
