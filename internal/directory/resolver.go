package directory

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	id "agenda/pkg/domain"
	dErrors "agenda/pkg/domain-errors"
	"agenda/pkg/platform/circuit"
	"agenda/pkg/platform/sentinel"
)

// UnknownUser replaces a display name the directory could not provide.
const UnknownUser = "unknown user"

const (
	outcomeOK          = "ok"
	outcomeNotFound    = "not_found"
	outcomeCircuitOpen = "circuit_open"
	outcomeError       = "error"
)

// Resolver guards directory lookups with a timeout and a process-wide
// circuit breaker, and maps failures onto the domain error taxonomy:
// CodeNotFound, CodeServiceUnavailable (circuit open) and CodeCommunication.
type Resolver struct {
	client      Client
	breaker     *circuit.Breaker
	breakerOpts []circuit.Option
	timeout     time.Duration
	parallel    int
	logger      *slog.Logger
	metrics     *Metrics
	tracer      trace.Tracer
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithTimeout bounds every directory call. Default is 3s.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithBreakerOptions tunes the circuit breaker (threshold, window, cool-down).
func WithBreakerOptions(opts ...circuit.Option) Option {
	return func(r *Resolver) {
		r.breakerOpts = append(r.breakerOpts, opts...)
	}
}

// WithParallelism caps concurrent lookups in batch operations. Default is 8.
func WithParallelism(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.parallel = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(r *Resolver) {
		r.metrics = m
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(r *Resolver) {
		r.tracer = t
	}
}

func NewResolver(client Client, opts ...Option) *Resolver {
	r := &Resolver{
		client:   client,
		timeout:  3 * time.Second,
		parallel: 8,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.tracer == nil {
		r.tracer = otel.Tracer("agenda/directory")
	}

	breakerOpts := append([]circuit.Option{
		circuit.WithClassifier(classifyForCircuit),
	}, r.breakerOpts...)
	breakerOpts = append(breakerOpts, circuit.WithStateChangeHook(r.onStateChange))
	r.breaker = circuit.New("identity_directory", breakerOpts...)
	return r
}

// classifyForCircuit treats a definitive "no such user" as a healthy
// response. The caller's own cancellation says nothing about the directory.
func classifyForCircuit(err error) circuit.Outcome {
	switch {
	case err == nil, errors.Is(err, sentinel.ErrNotFound):
		return circuit.OutcomeSuccess
	case errors.Is(err, context.Canceled):
		return circuit.OutcomeIgnore
	default:
		return circuit.OutcomeFailure
	}
}

func (r *Resolver) onStateChange(name string, from, to circuit.State) {
	r.metrics.setCircuitState(to)
	switch to {
	case circuit.StateOpen:
		r.logger.Error("circuit breaker opened", "circuit", name, "from", from.String())
	case circuit.StateHalfOpen:
		r.logger.Info("circuit breaker half-open, sending trial call", "circuit", name)
	case circuit.StateClosed:
		r.logger.Info("circuit breaker closed", "circuit", name)
	}
}

// State exposes the breaker state for health reporting.
func (r *Resolver) State() circuit.State {
	return r.breaker.State()
}

// Snapshot exposes breaker statistics for health reporting.
func (r *Resolver) Snapshot() circuit.Snapshot {
	return r.breaker.Snapshot()
}

// Resolve fetches a user with validation semantics: every failure is
// returned so the caller can abort the write that depends on it.
func (r *Resolver) Resolve(ctx context.Context, userID id.UserID, credential string) (*UserSummary, error) {
	ctx, span := r.tracer.Start(ctx, "directory.resolve",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("user.id", userID.String())),
	)
	defer span.End()

	start := time.Now()
	reached := false
	var user *UserSummary
	err := r.breaker.Call(ctx, func(ctx context.Context) error {
		reached = true
		callCtx, cancel := context.WithTimeout(ctx, r.timeout)
		defer cancel()
		u, err := r.client.FetchUser(callCtx, userID, credential)
		if err != nil {
			return err
		}
		user = u
		return nil
	})

	outcome, mapped := classify(err, userID)
	r.metrics.observeOutcome(outcome, time.Since(start).Seconds(), reached)
	span.SetAttributes(attribute.String("directory.outcome", outcome))
	if mapped != nil {
		if outcome != outcomeNotFound {
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		return nil, mapped
	}
	return user, nil
}

func classify(err error, userID id.UserID) (string, error) {
	switch {
	case err == nil:
		return outcomeOK, nil
	case errors.Is(err, circuit.ErrOpen):
		return outcomeCircuitOpen, dErrors.Wrap(err, dErrors.CodeServiceUnavailable, "identity directory temporarily unavailable")
	case errors.Is(err, sentinel.ErrNotFound):
		return outcomeNotFound, dErrors.Wrap(err, dErrors.CodeNotFound, "user "+userID.String()+" not found")
	default:
		return outcomeError, dErrors.Wrap(err, dErrors.CodeCommunication, "identity directory communication error")
	}
}

// ResolveAll resolves every id with validation semantics. The first failure
// cancels outstanding lookups and is returned.
func (r *Resolver) ResolveAll(ctx context.Context, userIDs []id.UserID, credential string) (map[id.UserID]*UserSummary, error) {
	unique := lo.Uniq(userIDs)
	results := make(map[id.UserID]*UserSummary, len(unique))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallel)
	for _, userID := range unique {
		g.Go(func() error {
			user, err := r.Resolve(gctx, userID, credential)
			if err != nil {
				return err
			}
			mu.Lock()
			results[userID] = user
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// DisplayName resolves a user's e-mail with enrichment semantics: any
// failure yields UnknownUser and is only logged.
func (r *Resolver) DisplayName(ctx context.Context, userID id.UserID, credential string) string {
	user, err := r.Resolve(ctx, userID, credential)
	if err != nil {
		r.metrics.incFallback()
		r.logger.WarnContext(ctx, "directory enrichment fell back to placeholder",
			"user_id", userID.String(),
			"error", err,
		)
		return UnknownUser
	}
	return user.Email
}

// DisplayNames resolves distinct ids concurrently with enrichment semantics.
// Every requested id is present in the result.
func (r *Resolver) DisplayNames(ctx context.Context, userIDs []id.UserID, credential string) map[id.UserID]string {
	unique := lo.Uniq(userIDs)
	names := make(map[id.UserID]string, len(unique))
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(r.parallel)
	for _, userID := range unique {
		g.Go(func() error {
			name := r.DisplayName(ctx, userID, credential)
			mu.Lock()
			names[userID] = name
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return names
}
