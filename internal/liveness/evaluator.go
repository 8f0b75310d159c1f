package liveness

import (
	"context"
	"fmt"
	"time"

	"github.com/HerbHall/devicepulse/pkg/models"
	"go.uber.org/zap"
)

// Evaluator produces liveness verdicts. It holds no per-request state and is
// safe for concurrent use.
type Evaluator struct {
	lookup  *DeviceLookup
	oracle  ActivityOracle
	window  time.Duration
	now     func() time.Time
	metrics *Metrics
	logger  *zap.Logger
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithOracle sets the source of last-activity timestamps.
func WithOracle(o ActivityOracle) Option {
	return func(e *Evaluator) { e.oracle = o }
}

// WithWindow sets the online window.
func WithWindow(d time.Duration) Option {
	return func(e *Evaluator) { e.window = d }
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Evaluator) { e.now = now }
}

// WithMetrics records every verdict in m.
func WithMetrics(m *Metrics) Option {
	return func(e *Evaluator) { e.metrics = m }
}

// NewEvaluator creates an Evaluator that resolves devices through lookup.
// Defaults: CreatedTimeOracle, DefaultWindow, time.Now, no metrics.
func NewEvaluator(lookup *DeviceLookup, logger *zap.Logger, opts ...Option) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Evaluator{
		lookup: lookup,
		oracle: CreatedTimeOracle{},
		window: DefaultWindow,
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.window <= 0 {
		e.window = DefaultWindow
	}
	return e
}

// Window returns the configured online window.
func (e *Evaluator) Window() time.Duration { return e.window }

// Evaluate reports the liveness of deviceID within tenantID. It performs one
// registry lookup, never retries, and never fails: every fault becomes an
// offline verdict whose message starts with "Error: ".
func (e *Evaluator) Evaluate(ctx context.Context, tenantID models.TenantID, deviceID models.DeviceID) (v Verdict) {
	outcome := OutcomeError
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("liveness evaluation panicked",
				zap.String("tenant_id", tenantID.String()),
				zap.String("device_id", deviceID.String()),
				zap.Any("panic", r),
			)
			v, outcome = errorVerdict(fmt.Sprint(r)), OutcomeError
		}
		e.metrics.observe(outcome)
	}()

	v, outcome = e.evaluate(ctx, tenantID, deviceID)
	return v
}

func (e *Evaluator) evaluate(ctx context.Context, tenantID models.TenantID, deviceID models.DeviceID) (Verdict, string) {
	res := e.lookup.Resolve(ctx, tenantID, deviceID)
	switch res.Kind {
	case LookupNotFound:
		return notFoundVerdict(), OutcomeNotFound
	case LookupFault:
		return errorVerdict(res.Err.Error()), OutcomeError
	case LookupFound:
	default:
		return errorVerdict(fmt.Sprintf("unexpected lookup result %s", res.Kind)), OutcomeError
	}

	last, err := e.oracle.LastActivity(ctx, *res.Device)
	if err != nil {
		e.logger.Warn("failed to determine last activity",
			zap.String("tenant_id", tenantID.String()),
			zap.String("device_id", deviceID.String()),
			zap.Error(err),
		)
		return errorVerdict(err.Error()), OutcomeError
	}
	lastSeen := last.UnixMilli()
	if lastSeen == 0 {
		return errorVerdict(fmt.Sprintf("device %s: %v", deviceID, ErrNoActivity)), OutcomeError
	}

	if IsOnline(&last, e.now(), e.window) {
		return Verdict{Online: true, LastSeen: lastSeen, Message: MessageOnline}, OutcomeOnline
	}
	return Verdict{Online: false, LastSeen: lastSeen, Message: MessageOffline}, OutcomeOffline
}
