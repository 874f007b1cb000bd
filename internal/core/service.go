// Package core implements the family-graph consistency engine: the member
// lifecycle operations, the relationship synchronizer, the graph invariant
// rules and the read projections built on top of a domain.PersistentStore.
package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"famgraph/internal/infra/persistence/memory"
	"famgraph/pkg/domain"
)

// DefaultTxTimeout bounds a single mutation transaction.
const DefaultTxTimeout = 5 * time.Second

// Service exposes the transactional member operations and graph reads.
type Service struct {
	store     domain.PersistentStore
	engine    *domain.RulesEngine
	syncer    *Synchronizer
	clock     Clock
	now       func() time.Time
	logger    Logger
	audit     AuditRecorder
	metrics   MetricsRecorder
	tracer    Tracer
	txTimeout time.Duration
	mu        sync.RWMutex
}

// ServiceOption customises a Service.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	clock     Clock
	logger    Logger
	audit     AuditRecorder
	metrics   MetricsRecorder
	tracer    Tracer
	engine    *domain.RulesEngine
	txTimeout time.Duration
}

func defaultServiceOptions() serviceOptions {
	return serviceOptions{
		clock:     ClockFunc(func() time.Time { return time.Now().UTC() }),
		logger:    noopLogger{},
		audit:     noopAuditRecorder{},
		metrics:   noopMetricsRecorder{},
		tracer:    noopTracer{},
		txTimeout: DefaultTxTimeout,
	}
}

// WithClock overrides the clock used for audit timestamps and durations.
func WithClock(clock Clock) ServiceOption {
	return func(o *serviceOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithLogger installs a structured logger.
func WithLogger(logger Logger) ServiceOption {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithAuditRecorder installs an audit sink.
func WithAuditRecorder(recorder AuditRecorder) ServiceOption {
	return func(o *serviceOptions) {
		if recorder != nil {
			o.audit = recorder
		}
	}
}

// WithMetricsRecorder installs a metrics sink.
func WithMetricsRecorder(recorder MetricsRecorder) ServiceOption {
	return func(o *serviceOptions) {
		if recorder != nil {
			o.metrics = recorder
		}
	}
}

// WithTracer installs a tracer.
func WithTracer(tracer Tracer) ServiceOption {
	return func(o *serviceOptions) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithRulesEngine records the engine the store evaluates, so callers can
// inspect registered rules through the service.
func WithRulesEngine(engine *domain.RulesEngine) ServiceOption {
	return func(o *serviceOptions) {
		o.engine = engine
	}
}

// WithTxTimeout bounds each mutation transaction. Non-positive values keep
// the default.
func WithTxTimeout(d time.Duration) ServiceOption {
	return func(o *serviceOptions) {
		if d > 0 {
			o.txTimeout = d
		}
	}
}

// NewService constructs a service backed by the supplied store.
func NewService(store domain.PersistentStore, opts ...ServiceOption) *Service {
	options := defaultServiceOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	svc := &Service{
		store:     store,
		engine:    options.engine,
		clock:     options.clock,
		logger:    options.logger,
		audit:     options.audit,
		metrics:   options.metrics,
		tracer:    options.tracer,
		txTimeout: options.txTimeout,
	}
	svc.now = svc.clock.Now
	svc.syncer = NewSynchronizer(svc.logger)
	return svc
}

// NewInMemoryService creates a service and in-memory store with the given
// rules engine. A nil engine selects NewDefaultRulesEngine.
func NewInMemoryService(engine *domain.RulesEngine, opts ...ServiceOption) *Service {
	if engine == nil {
		engine = NewDefaultRulesEngine()
	}
	opts = append([]ServiceOption{WithRulesEngine(engine)}, opts...)
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() domain.PersistentStore {
	return s.store
}

// RulesEngine returns the engine configured through WithRulesEngine, if any.
func (s *Service) RulesEngine() *domain.RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// operation describes one audited unit of work.
type operation struct {
	name     string
	action   domain.Action
	entityID string
}

// run executes fn in a single store transaction bounded by the service
// timeout, classifies the error and emits logs, metrics, spans and audit.
func (s *Service) run(ctx context.Context, op *operation, fn func(tx domain.Transaction) error) (domain.Result, error) {
	ctx, span := s.tracer.Start(ctx, op.name)
	start := s.now()

	txCtx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	var changes []domain.Change
	res, err := s.store.RunInTransaction(txCtx, func(tx domain.Transaction) error {
		recorder := &recordingTx{Transaction: tx}
		if err := fn(recorder); err != nil {
			return err
		}
		changes = recorder.changes
		return nil
	})
	err = classifyError(op.name, err)
	duration := s.now().Sub(start)

	s.metrics.Observe(ctx, op.name, err == nil, duration)
	span.End(err)
	s.logOutcome(op, res, err, duration)
	s.recordAudit(ctx, op, changes, err, duration)
	return res, err
}

func (s *Service) logOutcome(op *operation, res domain.Result, err error, duration time.Duration) {
	for _, v := range res.Violations {
		if v.Severity == domain.SeverityBlock {
			continue
		}
		s.logger.Warn("rule violation", "operation", op.name, "rule", v.Rule, "severity", string(v.Severity), "entity_id", v.EntityID, "message", v.Message)
	}
	switch {
	case err == nil:
		s.logger.Info("operation committed", "operation", op.name, "entity_id", op.entityID, "duration", duration)
	case domain.IsInternal(err):
		s.logger.Error("operation failed", "operation", op.name, "entity_id", op.entityID, "error", err)
	default:
		s.logger.Warn("operation rejected", "operation", op.name, "entity_id", op.entityID, "error", err)
	}
}

func (s *Service) recordAudit(ctx context.Context, op *operation, changes []domain.Change, err error, duration time.Duration) {
	entry := AuditEntry{
		Operation: op.name,
		Entity:    domain.EntityMember,
		Action:    op.action,
		EntityID:  op.entityID,
		Status:    AuditStatusSuccess,
		Duration:  duration,
		Timestamp: s.now(),
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
	} else {
		entry.Changes = auditChanges(changes)
	}
	s.audit.Record(ctx, entry)
}

func auditChanges(changes []domain.Change) []AuditChange {
	out := make([]AuditChange, 0, len(changes))
	for _, change := range changes {
		ac := AuditChange{Action: change.Action, Before: domain.UndefinedChangePayload(), After: domain.UndefinedChangePayload()}
		if before, ok := change.MemberBefore(); ok {
			ac.EntityID = before.ID
			if payload, err := domain.NewChangePayloadFromValue(before); err == nil {
				ac.Before = payload
			}
		}
		if after, ok := change.MemberAfter(); ok {
			ac.EntityID = after.ID
			if payload, err := domain.NewChangePayloadFromValue(after); err == nil {
				ac.After = payload
			}
		}
		out = append(out, ac)
	}
	return out
}

// classifyError maps store and rule failures onto the domain error taxonomy.
// Caller mistakes pass through; everything else becomes an InternalError.
func classifyError(op string, err error) error {
	if err == nil {
		return nil
	}
	var (
		validation domain.ValidationError
		notFound   domain.NotFoundError
		conflict   domain.ConflictError
		internal   domain.InternalError
	)
	switch {
	case errors.As(err, &validation), errors.As(err, &notFound), errors.As(err, &conflict), errors.As(err, &internal):
		return err
	default:
		return domain.InternalError{Op: op, Err: err}
	}
}
