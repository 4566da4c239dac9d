package maps

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"house-finder/config"
	"house-finder/utils"
)

// DefaultRetryFactor multiplies the number of keys to get the rotation
// bound when none is configured.
const DefaultRetryFactor = 2

// GatewayOptions tunes a Gateway. Zero values pick defaults.
type GatewayOptions struct {
	// MaxRotations caps rotations per query. Defaults to
	// credentials × RetryFactor.
	MaxRotations int
	RetryFactor  int
	Logger       *utils.Logger
	Metrics      *Metrics
}

// Gateway sends provider calls through the active API key and moves to
// the next key when the provider reports the quota as exhausted.
type Gateway struct {
	creds        *config.Credentials
	factory      ProviderFactory
	maxRotations int
	logger       *utils.Logger
	metrics      *Metrics

	mu         sync.Mutex
	client     Provider
	generation uint64
	rotations  int
}

// NewGateway builds the first client from the active credential.
func NewGateway(creds *config.Credentials, factory ProviderFactory, opts GatewayOptions) (*Gateway, error) {
	if creds == nil || factory == nil {
		return nil, errors.New("maps: gateway needs credentials and a provider factory")
	}
	client, err := factory(creds.Current())
	if err != nil {
		return nil, fmt.Errorf("maps: build provider client: %w", err)
	}

	factor := opts.RetryFactor
	if factor < 1 {
		factor = DefaultRetryFactor
	}
	limit := opts.MaxRotations
	if limit <= 0 {
		limit = creds.Len() * factor
	}
	logger := opts.Logger
	if logger == nil {
		logger = utils.NopLogger()
	}

	return &Gateway{
		creds:        creds,
		factory:      factory,
		maxRotations: limit,
		logger:       logger,
		metrics:      opts.Metrics,
		client:       client,
	}, nil
}

// Rotations returns how many times the gateway has switched keys.
func (g *Gateway) Rotations() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rotations
}

// MaxRotations returns the per-query rotation bound.
func (g *Gateway) MaxRotations() int { return g.maxRotations }

func (g *Gateway) current() (Provider, uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.client, g.generation
}

// rotate moves to the next key unless another caller already rotated away
// from the client generation seen, in which case the newer client is reused.
func (g *Gateway) rotate(seen uint64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.generation != seen {
		return nil
	}

	// The credential only moves once the client for it exists.
	client, err := g.factory(g.creds.Peek())
	if err != nil {
		return fmt.Errorf("maps: rebuild provider client: %w", err)
	}
	g.creds.Rotate()
	g.client = client
	g.generation++
	g.rotations++
	g.metrics.IncRotation()
	g.logger.Warn("[maps] Quota exceeded, rotated to credential %d/%d", g.creds.Index()+1, g.creds.Len())
	return nil
}

// Query runs op against the active provider client, rotating keys and
// retrying while the provider reports ErrQuotaExceeded. Any other error is
// returned unchanged.
func Query[T any](ctx context.Context, g *Gateway, operation string, op func(context.Context, Provider) (T, error)) (T, error) {
	var zero T
	attempts := 0

	for {
		client, gen := g.current()
		v, err := op(ctx, client)
		if err == nil {
			g.metrics.IncProviderCall(operation, callStatusOK)
			return v, nil
		}
		if !errors.Is(err, ErrQuotaExceeded) {
			g.metrics.IncProviderCall(operation, callStatusError)
			return zero, err
		}
		g.metrics.IncProviderCall(operation, callStatusQuota)

		if attempts >= g.maxRotations {
			return zero, fmt.Errorf("maps: %s: %w after %d rotations: %w", operation, ErrRotationLimit, attempts, err)
		}
		if err := g.rotate(gen); err != nil {
			return zero, err
		}
		attempts++

		if err := ctx.Err(); err != nil {
			return zero, err
		}
	}
}
