package directory_test

//go:generate mockgen -source=client.go -destination=mocks/mocks.go -package=mocks Client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"agenda/internal/directory"
	"agenda/internal/directory/mocks"
	id "agenda/pkg/domain"
	dErrors "agenda/pkg/domain-errors"
	"agenda/pkg/platform/circuit"
	"agenda/pkg/platform/sentinel"
	"agenda/pkg/testutil"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type ResolverSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	client   *mocks.MockClient
	clock    *fakeClock
	registry *prometheus.Registry
	metrics  *directory.Metrics
	resolver *directory.Resolver
}

func TestResolverSuite(t *testing.T) {
	suite.Run(t, new(ResolverSuite))
}

func (s *ResolverSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.client = mocks.NewMockClient(s.ctrl)
	s.clock = &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	s.registry = prometheus.NewRegistry()
	s.metrics = directory.NewMetrics(s.registry)
	s.resolver = directory.NewResolver(s.client,
		directory.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		directory.WithMetrics(s.metrics),
		directory.WithTimeout(50*time.Millisecond),
		directory.WithBreakerOptions(
			circuit.WithClock(s.clock.Now),
			circuit.WithCoolDown(10*time.Second),
		),
	)
}

func (s *ResolverSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ResolverSuite) summary(userID id.UserID, email string) *directory.UserSummary {
	return &directory.UserSummary{ID: userID, TenantID: testutil.TestIDs.TenantA, Email: email, Role: id.RoleMember}
}

func (s *ResolverSuite) TestResolve() {
	ctx := context.Background()
	alice := testutil.TestIDs.Alice

	s.Run("returns user on success", func() {
		s.client.EXPECT().FetchUser(gomock.Any(), alice, "cred").Return(s.summary(alice, "alice@example.com"), nil)

		user, err := s.resolver.Resolve(ctx, alice, "cred")
		s.Require().NoError(err)
		s.Equal("alice@example.com", user.Email)
	})

	s.Run("unknown user maps to not found", func() {
		s.client.EXPECT().FetchUser(gomock.Any(), alice, "cred").Return(nil, sentinel.ErrNotFound)

		_, err := s.resolver.Resolve(ctx, alice, "cred")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("transport failure maps to communication error", func() {
		s.client.EXPECT().FetchUser(gomock.Any(), alice, "cred").Return(nil, errors.New("connection refused"))

		_, err := s.resolver.Resolve(ctx, alice, "cred")
		s.True(dErrors.HasCode(err, dErrors.CodeCommunication))
	})

	s.Run("slow directory is cut off by the call timeout", func() {
		s.client.EXPECT().FetchUser(gomock.Any(), alice, "cred").DoAndReturn(
			func(ctx context.Context, _ id.UserID, _ string) (*directory.UserSummary, error) {
				<-ctx.Done()
				return nil, ctx.Err()
			})

		_, err := s.resolver.Resolve(ctx, alice, "cred")
		s.True(dErrors.HasCode(err, dErrors.CodeCommunication))
		s.ErrorIs(err, context.DeadlineExceeded)
	})
}

func (s *ResolverSuite) TestCircuit() {
	ctx := context.Background()
	alice := testutil.TestIDs.Alice

	s.Run("failures open the circuit and later calls fail fast", func() {
		s.client.EXPECT().FetchUser(gomock.Any(), alice, "cred").Return(nil, errors.New("boom")).Times(5)
		for range 5 {
			_, _ = s.resolver.Resolve(ctx, alice, "cred")
		}
		s.Require().Equal(circuit.StateOpen, s.resolver.State())

		// no further client expectations: an invocation would fail the test
		_, err := s.resolver.Resolve(ctx, alice, "cred")
		s.True(dErrors.HasCode(err, dErrors.CodeServiceUnavailable))
		s.Equal(1.0, promtest.ToFloat64(s.metrics.Lookups.WithLabelValues("circuit_open")))
		s.Equal(float64(circuit.StateOpen), promtest.ToFloat64(s.metrics.CircuitState))
	})

	s.Run("successful trial after cool-down closes the circuit", func() {
		s.clock.Advance(11 * time.Second)
		s.client.EXPECT().FetchUser(gomock.Any(), alice, "cred").Return(s.summary(alice, "alice@example.com"), nil)

		_, err := s.resolver.Resolve(ctx, alice, "cred")
		s.NoError(err)
		s.Equal(circuit.StateClosed, s.resolver.State())
		s.Equal(float64(circuit.StateClosed), promtest.ToFloat64(s.metrics.CircuitState))
	})
}

func (s *ResolverSuite) TestCancelledTrialLeavesCircuitHalfOpen() {
	alice := testutil.TestIDs.Alice
	s.client.EXPECT().FetchUser(gomock.Any(), alice, "cred").Return(nil, errors.New("boom")).Times(5)
	for range 5 {
		_, _ = s.resolver.Resolve(context.Background(), alice, "cred")
	}
	s.Require().Equal(circuit.StateOpen, s.resolver.State())
	s.clock.Advance(11 * time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	s.client.EXPECT().FetchUser(gomock.Any(), alice, "cred").DoAndReturn(
		func(callCtx context.Context, _ id.UserID, _ string) (*directory.UserSummary, error) {
			cancel()
			<-callCtx.Done()
			return nil, callCtx.Err()
		})

	_, err := s.resolver.Resolve(ctx, alice, "cred")
	s.ErrorIs(err, context.Canceled)
	s.Equal(circuit.StateHalfOpen, s.resolver.State(), "the caller gave up; the directory was not proven healthy")

	s.Run("the next call is admitted as the trial", func() {
		s.client.EXPECT().FetchUser(gomock.Any(), alice, "cred").Return(nil, errors.New("still down"))

		_, err := s.resolver.Resolve(context.Background(), alice, "cred")
		s.True(dErrors.HasCode(err, dErrors.CodeCommunication))
		s.Equal(circuit.StateOpen, s.resolver.State())
	})
}

func (s *ResolverSuite) TestNotFoundKeepsCircuitClosed() {
	alice := testutil.TestIDs.Alice
	s.client.EXPECT().FetchUser(gomock.Any(), alice, "cred").Return(nil, sentinel.ErrNotFound).Times(10)

	for range 10 {
		_, _ = s.resolver.Resolve(context.Background(), alice, "cred")
	}
	s.Equal(circuit.StateClosed, s.resolver.State())
	s.Equal(0.0, s.resolver.Snapshot().FailureRate)
}

func (s *ResolverSuite) TestDisplayNames() {
	ctx := context.Background()
	ids := testutil.TestIDs

	s.Run("failed lookups fall back to the placeholder", func() {
		s.client.EXPECT().FetchUser(gomock.Any(), ids.Alice, "cred").Return(s.summary(ids.Alice, "alice@example.com"), nil)
		s.client.EXPECT().FetchUser(gomock.Any(), ids.Bob, "cred").Return(nil, errors.New("timeout"))
		s.client.EXPECT().FetchUser(gomock.Any(), ids.Carol, "cred").Return(nil, sentinel.ErrNotFound)

		names := s.resolver.DisplayNames(ctx, []id.UserID{ids.Alice, ids.Bob, ids.Carol, ids.Alice}, "cred")
		s.Len(names, 3)
		s.Equal("alice@example.com", names[ids.Alice])
		s.Equal(directory.UnknownUser, names[ids.Bob])
		s.Equal(directory.UnknownUser, names[ids.Carol])
		s.Equal(2.0, promtest.ToFloat64(s.metrics.Fallbacks))
	})

	s.Run("empty input yields empty map", func() {
		s.Empty(s.resolver.DisplayNames(ctx, nil, "cred"))
	})
}

func (s *ResolverSuite) TestResolveAll() {
	ctx := context.Background()
	ids := testutil.TestIDs

	s.Run("resolves distinct ids", func() {
		s.client.EXPECT().FetchUser(gomock.Any(), ids.Bob, "cred").Return(s.summary(ids.Bob, "bob@example.com"), nil)
		s.client.EXPECT().FetchUser(gomock.Any(), ids.Carol, "cred").Return(s.summary(ids.Carol, "carol@example.com"), nil)

		users, err := s.resolver.ResolveAll(ctx, []id.UserID{ids.Bob, ids.Carol, ids.Bob}, "cred")
		s.Require().NoError(err)
		s.Len(users, 2)
		s.Equal("carol@example.com", users[ids.Carol].Email)
	})

	s.Run("any unknown user fails the batch", func() {
		s.client.EXPECT().FetchUser(gomock.Any(), ids.Bob, "cred").Return(s.summary(ids.Bob, "bob@example.com"), nil).AnyTimes()
		s.client.EXPECT().FetchUser(gomock.Any(), ids.Mallory, "cred").Return(nil, sentinel.ErrNotFound)

		_, err := s.resolver.ResolveAll(ctx, []id.UserID{ids.Bob, ids.Mallory}, "cred")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
