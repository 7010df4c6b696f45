package retention

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePurger struct {
	mu      sync.Mutex
	cutoffs []time.Time
	ctxErrs []error
	err     error
	calls   chan struct{}
}

func newFakePurger() *fakePurger {
	return &fakePurger{calls: make(chan struct{}, 16)}
}

func (p *fakePurger) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	p.mu.Lock()
	p.cutoffs = append(p.cutoffs, cutoff)
	p.ctxErrs = append(p.ctxErrs, ctx.Err())
	err := p.err
	p.mu.Unlock()
	select {
	case p.calls <- struct{}{}:
	default:
	}
	if err != nil {
		return 0, err
	}
	return 3, nil
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestNewRequiresPurger(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
}

func TestRunOnceUsesWindow(t *testing.T) {
	now := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)
	purger := newFakePurger()
	sweeper, err := New(purger,
		WithWindow(48*time.Hour),
		WithClock(func() time.Time { return now }),
		WithLogger(discard),
	)
	require.NoError(t, err)

	deleted, err := sweeper.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)
	require.Len(t, purger.cutoffs, 1)
	assert.Equal(t, now.Add(-48*time.Hour), purger.cutoffs[0])
}

func TestRunOnceIgnoresCancellation(t *testing.T) {
	purger := newFakePurger()
	sweeper, err := New(purger, WithLogger(discard))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = sweeper.RunOnce(ctx)
	require.NoError(t, err)
	assert.NoError(t, purger.ctxErrs[0])
}

func TestRunOnceWrapsFailure(t *testing.T) {
	purger := newFakePurger()
	purger.err = errors.New("db down")
	sweeper, err := New(purger, WithLogger(discard))
	require.NoError(t, err)

	_, err = sweeper.RunOnce(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, purger.err)
}

func TestStartRunsOnStartAndRetriesAfterFailure(t *testing.T) {
	purger := newFakePurger()
	purger.err = errors.New("db down")
	sweeper, err := New(purger,
		WithRunOnStart(true),
		WithInterval(10*time.Millisecond),
		WithLogger(discard),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sweeper.Start(ctx) }()

	for range 2 {
		select {
		case <-purger.calls:
		case <-time.After(2 * time.Second):
			t.Fatal("sweep did not run")
		}
	}
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
