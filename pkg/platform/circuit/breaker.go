// Package circuit provides a rolling-window circuit breaker for calls to
// remote dependencies.
package circuit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrOpen is returned without invoking the protected call while the circuit is open.
var ErrOpen = errors.New("circuit breaker is open")

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means the circuit is healthy and requests flow normally.
	StateClosed State = iota
	// StateOpen means the circuit has tripped and calls fail fast.
	StateOpen
	// StateHalfOpen admits a single trial call after the cool-down.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// Outcome is how a call's result is recorded by the breaker.
type Outcome int

const (
	// OutcomeSuccess counts as a healthy response; a successful trial closes the circuit.
	OutcomeSuccess Outcome = iota
	// OutcomeFailure counts against the circuit; a failed trial reopens it.
	OutcomeFailure
	// OutcomeIgnore says nothing about the dependency, e.g. the caller gave up.
	// It is not recorded, and an ignored trial leaves the circuit half-open.
	OutcomeIgnore
)

// Snapshot is a read-only view of the breaker for health and metrics.
type Snapshot struct {
	Name        string
	State       State
	FailureRate float64 // percent, over the current window
	Requests    int
	OpenedAt    time.Time
}

type bucket struct {
	start     time.Time
	successes int
	failures  int
}

// Breaker opens when the failure percentage over a rolling window reaches
// the threshold, provided the window holds at least minRequests outcomes.
// While open every call fails fast with ErrOpen. After the cool-down one
// trial call is admitted: success closes the circuit and clears the window,
// failure reopens it, and an ignored outcome leaves it half-open.
type Breaker struct {
	mu            sync.Mutex
	name          string
	state         State
	openedAt      time.Time
	trialInFlight bool

	buckets     []bucket
	window      time.Duration
	threshold   float64
	minRequests int
	coolDown    time.Duration

	classify      func(error) Outcome
	onStateChange func(name string, from, to State)
	now           func() time.Time
}

// Option configures a Breaker instance.
type Option func(*Breaker)

// WithFailureThreshold sets the failure percentage (0-100] that opens the circuit. Default is 50.
func WithFailureThreshold(percent float64) Option {
	return func(b *Breaker) {
		if percent > 0 && percent <= 100 {
			b.threshold = percent
		}
	}
}

// WithWindow sets the rolling window length and its bucket count. Default is 10s in 10 buckets.
func WithWindow(window time.Duration, buckets int) Option {
	return func(b *Breaker) {
		if window > 0 && buckets > 0 {
			b.window = window
			b.buckets = make([]bucket, buckets)
		}
	}
}

// WithMinRequests sets how many outcomes the window needs before it may trip. Default is 5.
func WithMinRequests(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.minRequests = n
		}
	}
}

// WithCoolDown sets how long the circuit stays open before a trial call. Default is 10s.
func WithCoolDown(d time.Duration) Option {
	return func(b *Breaker) {
		if d > 0 {
			b.coolDown = d
		}
	}
}

// WithClassifier decides how each call result is recorded. The default
// treats nil as success and any error as failure.
func WithClassifier(fn func(error) Outcome) Option {
	return func(b *Breaker) {
		if fn != nil {
			b.classify = fn
		}
	}
}

// WithStateChangeHook is called after every transition, outside the lock.
func WithStateChangeHook(fn func(name string, from, to State)) Option {
	return func(b *Breaker) {
		b.onStateChange = fn
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(b *Breaker) {
		if now != nil {
			b.now = now
		}
	}
}

// New creates a circuit breaker with the given name and options.
func New(name string, opts ...Option) *Breaker {
	b := &Breaker{
		name:        name,
		state:       StateClosed,
		buckets:     make([]bucket, 10),
		window:      10 * time.Second,
		threshold:   50,
		minRequests: 5,
		coolDown:    10 * time.Second,
		classify:    defaultClassify,
		now:         time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func defaultClassify(err error) Outcome {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}

// Name returns the circuit breaker's name for logging/metrics.
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current circuit state. An open circuit whose cool-down
// has elapsed reports half-open, since the next call will be a trial.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.coolDown {
		return StateHalfOpen
	}
	return b.state
}

// Snapshot returns the current state together with window statistics.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	successes, failures := b.counts(now)
	total := successes + failures
	state := b.state
	if state == StateOpen && now.Sub(b.openedAt) >= b.coolDown {
		state = StateHalfOpen
	}
	snap := Snapshot{Name: b.name, State: state, Requests: total, OpenedAt: b.openedAt}
	if total > 0 {
		snap.FailureRate = float64(failures) * 100 / float64(total)
	}
	return snap
}

// Call runs fn if the circuit admits it and records the outcome.
// It returns ErrOpen without calling fn while the circuit is open.
func (b *Breaker) Call(ctx context.Context, fn func(context.Context) error) error {
	trial, err := b.admit()
	if err != nil {
		return err
	}
	callErr := fn(ctx)
	b.record(trial, b.classify(callErr))
	return callErr
}

func (b *Breaker) admit() (trial bool, err error) {
	b.mu.Lock()
	var change *transition
	defer func() {
		b.mu.Unlock()
		b.notify(change)
	}()

	switch b.state {
	case StateClosed:
		return false, nil
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.coolDown {
			return false, ErrOpen
		}
		change = b.transition(StateHalfOpen)
		b.trialInFlight = true
		return true, nil
	default:
		// Half-open admits exactly one trial at a time.
		if b.trialInFlight {
			return false, ErrOpen
		}
		b.trialInFlight = true
		return true, nil
	}
}

func (b *Breaker) record(trial bool, outcome Outcome) {
	b.mu.Lock()
	var change *transition
	defer func() {
		b.mu.Unlock()
		b.notify(change)
	}()

	now := b.now()
	if trial {
		b.trialInFlight = false
		switch outcome {
		case OutcomeIgnore:
			// still half-open; the next call becomes the trial
			return
		case OutcomeFailure:
			b.openedAt = now
			change = b.transition(StateOpen)
			return
		}
		b.resetWindow()
		change = b.transition(StateClosed)
		return
	}

	// a late result from a call admitted before the circuit opened is dropped
	if outcome == OutcomeIgnore || b.state != StateClosed {
		return
	}

	bk := b.bucketFor(now)
	if outcome == OutcomeFailure {
		bk.failures++
	} else {
		bk.successes++
	}

	successes, failures := b.counts(now)
	total := successes + failures
	if total < b.minRequests {
		return
	}
	if float64(failures)*100/float64(total) >= b.threshold {
		b.openedAt = now
		change = b.transition(StateOpen)
	}
}

// Reset closes the circuit and clears the window.
func (b *Breaker) Reset() {
	b.mu.Lock()
	change := b.transition(StateClosed)
	b.trialInFlight = false
	b.resetWindow()
	b.mu.Unlock()
	b.notify(change)
}

type transition struct {
	from, to State
}

// transition must be called with the lock held.
func (b *Breaker) transition(to State) *transition {
	from := b.state
	b.state = to
	if from == to {
		return nil
	}
	return &transition{from: from, to: to}
}

func (b *Breaker) notify(t *transition) {
	if t == nil || b.onStateChange == nil {
		return
	}
	b.onStateChange(b.name, t.from, t.to)
}

func (b *Breaker) bucketWidth() time.Duration {
	width := b.window / time.Duration(len(b.buckets))
	if width <= 0 {
		width = time.Nanosecond
	}
	return width
}

func (b *Breaker) bucketFor(now time.Time) *bucket {
	width := b.bucketWidth()
	start := now.Truncate(width)
	idx := int((start.UnixNano() / int64(width)) % int64(len(b.buckets)))
	if idx < 0 {
		idx += len(b.buckets)
	}
	bk := &b.buckets[idx]
	if !bk.start.Equal(start) {
		*bk = bucket{start: start}
	}
	return bk
}

func (b *Breaker) counts(now time.Time) (successes, failures int) {
	for i := range b.buckets {
		bk := &b.buckets[i]
		if bk.start.IsZero() || now.Sub(bk.start) >= b.window {
			continue
		}
		successes += bk.successes
		failures += bk.failures
	}
	return successes, failures
}

func (b *Breaker) resetWindow() {
	for i := range b.buckets {
		b.buckets[i] = bucket{}
	}
}
