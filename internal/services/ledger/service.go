// Package ledger is the balance engine: every balance mutation goes through
// a Service, which serializes per account, keeps the cache coherent and
// announces commits to peer instances.
package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fastprodman/casinoledger/internal/balancecache"
	"github.com/fastprodman/casinoledger/internal/bus"
	"github.com/fastprodman/casinoledger/internal/infra/metrics"
	"github.com/fastprodman/casinoledger/internal/lockgate"
	"github.com/fastprodman/casinoledger/internal/repos/accounts"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

type Service struct {
	store   accounts.Store
	cache   *balancecache.Cache
	gate    *lockgate.Gate
	bus     bus.Bus
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Ledger

	reads  singleflight.Group
	outbox chan bus.Event
}

type Option func(*Service)

// WithBus enables cross-instance synchronization. Without it the engine
// never publishes and RunSync only waits for cancellation.
func WithBus(b bus.Bus) Option {
	return func(s *Service) { s.bus = b }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithMetrics(m *metrics.Ledger) Option {
	return func(s *Service) { s.metrics = m }
}

// WithGate shares a gate between services, e.g. several engines on one store
// in a test.
func WithGate(g *lockgate.Gate) Option {
	return func(s *Service) { s.gate = g }
}

func New(store accounts.Store, cache *balancecache.Cache, cfg Config, opts ...Option) *Service {
	cfg = cfg.withDefaults()
	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}

	s := &Service{
		store:  store,
		cache:  cache,
		gate:   lockgate.New(),
		bus:    bus.Nop{},
		cfg:    cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache == nil {
		s.cache = balancecache.New(balancecache.Options{})
	}
	s.outbox = make(chan bus.Event, cfg.OutboxSize)
	s.logger = s.logger.With("component", "ledger", "instance_id", cfg.InstanceID)

	return s
}

func (s *Service) InstanceID() string {
	return s.cfg.InstanceID
}

func (s *Service) busEnabled() bool {
	_, nop := s.bus.(bus.Nop)
	return s.bus != nil && !nop
}

// withGate holds the account locks for the duration of fn. fn runs detached
// from ctx's cancellation: once the locks are held the mutation is allowed
// to finish even if the caller stops waiting for it.
func (s *Service) withGate(ctx context.Context, ids []uuid.UUID, fn func(ctx context.Context) error) error {
	lockCtx, cancel := context.WithTimeout(ctx, s.cfg.LockTimeout)
	unlock, err := s.gate.Lock(lockCtx, ids...)
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("wait for account lock: %w", ctx.Err())
		}
		return fmt.Errorf("%w: %w", ErrTransactionAborted, err)
	}

	done := make(chan error, 1)
	go func() {
		defer unlock()
		done <- fn(context.WithoutCancel(ctx))
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		select {
		case err := <-done:
			return err
		default:
		}
		return fmt.Errorf("caller stopped waiting: %w", ctx.Err())
	}
}

// outcome is the metrics label for a finished operation.
func outcome(err error, replayed bool) string {
	if err == nil && replayed {
		return "replayed"
	}
	return KindOf(err).String()
}
