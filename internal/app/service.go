package app

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/neomorfeo/apsconnect/internal/domain"
)

// Backends gathers the outbound adapters every piece of work is resolved
// against.
type Backends struct {
	Installations domain.InstallationRepository
	Connects      domain.ConnectProvider
	OAs           domain.OAProvider
	// Schemas is optional. Without it the tenant schema is read from OA on
	// every call.
	Schemas domain.SchemaCache
}

// Scope is everything a single OA call is processed with. It is built once per
// call and passed explicitly to every step.
type Scope struct {
	Connect   domain.Connect
	OA        domain.OA
	ProductID string
	Origin    domain.Origin
}

// Scope resolves the installation behind the origin and binds clients to it.
func (b Backends) Scope(ctx context.Context, origin domain.Origin) (Scope, error) {
	inst, err := b.Installations.GetByOAuthKey(ctx, origin.OAuthKey)
	if err != nil {
		return Scope{}, err
	}

	connect, err := b.Connects.ForInstallation(ctx, inst)
	if err != nil {
		return Scope{}, fmt.Errorf("connecting installation %s: %w", inst.InstallationID, err)
	}

	return Scope{
		Connect:   connect,
		OA:        b.OAs.ForOrigin(origin, inst),
		ProductID: inst.ProductID,
		Origin:    origin,
	}, nil
}

// Service reconciles OA provisioning calls with Connect requests.
type Service struct {
	backends  Backends
	effects   domain.EffectPublisher
	validator domain.ActionValidator
	now       func() time.Time
	jitter    func(n int) int
}

// Option customises a Service.
type Option func(*Service)

// WithClock replaces the wall clock used to age failed requests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithJitter replaces the random source of the retry timeout. fn must return
// a value in [0, n).
func WithJitter(fn func(n int) int) Option {
	return func(s *Service) { s.jitter = fn }
}

// NewService creates a service with the given adapters.
func NewService(backends Backends, effects domain.EffectPublisher, validator domain.ActionValidator, opts ...Option) *Service {
	s := &Service{
		backends:  backends,
		effects:   effects,
		validator: validator,
		now:       time.Now,
		jitter:    rand.IntN,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scope resolves the per-call scope for an authenticated OA call.
func (s *Service) Scope(ctx context.Context, origin domain.Origin) (Scope, error) {
	return s.backends.Scope(ctx, origin)
}
