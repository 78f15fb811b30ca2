package base

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/opgate/pkg/config"
	"github.com/ajitpratap0/opgate/pkg/errors"
)

func TestBaseConnector_Lifecycle(t *testing.T) {
	bc := NewBaseConnector("memory", "1.0.0")
	ctx := context.Background()

	assert.Error(t, bc.RequireInitialized())
	assert.Error(t, bc.Initialize(ctx, nil))
	assert.Error(t, bc.Initialize(ctx, &config.BaseConfig{}))

	cfg := config.NewBaseConfig("crm", "memory")
	require.NoError(t, bc.Initialize(ctx, cfg))
	assert.True(t, bc.IsInitialized())
	assert.Same(t, cfg, bc.Config())
	assert.Equal(t, "memory", bc.Name())
	assert.Equal(t, "1.0.0", bc.Version())
	assert.NoError(t, bc.RequireInitialized())
	assert.NoError(t, bc.CheckAlive(ctx))

	err := bc.Initialize(ctx, cfg)
	assert.True(t, errors.IsType(err, errors.ErrorTypeInternal))

	assert.True(t, bc.BeginDispose())
	assert.False(t, bc.BeginDispose())
	assert.Error(t, bc.RequireInitialized())
	assert.Error(t, bc.CheckAlive(ctx))
}

func TestBaseConnector_ExecuteWithRetry(t *testing.T) {
	bc := NewBaseConnector("memory", "1.0.0")
	cfg := config.NewBaseConfig("crm", "memory")
	cfg.Reliability.RetryAttempts = 3
	cfg.Reliability.RetryDelay = time.Millisecond
	require.NoError(t, bc.Initialize(context.Background(), cfg))

	calls := 0
	err := bc.ExecuteWithRetry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return stderrors.New("dial tcp: connection refused")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	authErr := stderrors.New("password authentication failed for user")
	calls = 0
	err = bc.ExecuteWithRetry(context.Background(), func() error {
		calls++
		return authErr
	})
	assert.Same(t, authErr, err)
	assert.Equal(t, 1, calls)
}

func TestBaseConnector_HealthCheck(t *testing.T) {
	bc := NewBaseConnector("memory", "1.0.0")
	require.NoError(t, bc.Initialize(context.Background(), config.NewBaseConfig("crm", "memory")))

	probeErr := stderrors.New("server closed the connection")
	bc.SetHealthCheck(func(ctx context.Context) error { return probeErr })

	err := bc.CheckAlive(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeHealth))
	assert.ErrorIs(t, err, probeErr)
}

func TestDialBackoff_Delay(t *testing.T) {
	b := NewDialBackoff(4, 10*time.Millisecond)
	b.Jitter = 0

	assert.Equal(t, 10*time.Millisecond, b.Delay(0))
	assert.Equal(t, 20*time.Millisecond, b.Delay(1))
	assert.Equal(t, 40*time.Millisecond, b.Delay(2))

	b.Max = 15 * time.Millisecond
	assert.Equal(t, 15*time.Millisecond, b.Delay(3))

	assert.Equal(t, 1, NewDialBackoff(0, 0).Attempts)
}

func TestDialBackoff_Jitter(t *testing.T) {
	b := NewDialBackoff(2, 100*time.Millisecond)
	for i := 0; i < 20; i++ {
		d := b.Delay(0)
		assert.GreaterOrEqual(t, d, 75*time.Millisecond)
		assert.LessOrEqual(t, d, 125*time.Millisecond)
	}
}

func TestDialBackoff_RetriesUntilSuccess(t *testing.T) {
	b := NewDialBackoff(3, time.Millisecond)
	var attempts []int
	calls := 0
	err := b.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return stderrors.New("connection refused")
		}
		return nil
	}, func(err error, attempt int) bool {
		attempts = append(attempts, attempt)
		return true
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestDialBackoff_ContextCancelled(t *testing.T) {
	b := NewDialBackoff(5, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := b.Do(ctx, func() error {
		calls++
		cancel()
		return stderrors.New("timeout")
	}, nil)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDialBackoff_ExhaustedReturnsLastError(t *testing.T) {
	last := stderrors.New("boom")
	assert.Same(t, last, SingleAttempt().Do(context.Background(), func() error { return last }, nil))

	rejected := stderrors.New("bad password")
	calls := 0
	err := NewDialBackoff(5, time.Millisecond).Do(context.Background(), func() error {
		calls++
		return rejected
	}, func(error, int) bool { return false })
	assert.Same(t, rejected, err)
	assert.Equal(t, 1, calls)
}

func TestErrorHandler_Classify(t *testing.T) {
	eh := NewErrorHandler()

	tests := []struct {
		err  error
		want errors.ErrorType
	}{
		{stderrors.New("i/o timeout"), errors.ErrorTypeTimeout},
		{stderrors.New("password authentication failed"), errors.ErrorTypeAuthentication},
		{stderrors.New("connection reset by peer"), errors.ErrorTypeConnection},
		{stderrors.New(`relation "users" does not exist`), errors.ErrorTypeNotFound},
		{stderrors.New("duplicate key value violates unique constraint"), errors.ErrorTypeConflict},
		{stderrors.New("syntax error at or near"), errors.ErrorTypeQuery},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			got := eh.Classify(tt.err, "query failed")
			assert.True(t, errors.IsType(got, tt.want), got.Error())
			assert.ErrorIs(t, got, tt.err)
		})
	}

	typed := errors.New(errors.ErrorTypeValidation, "bad")
	assert.Same(t, typed, eh.Classify(typed, "x"))
	assert.Equal(t, context.Canceled, eh.Classify(context.Canceled, "x"))
	assert.Nil(t, eh.Classify(nil, "x"))
}

func TestErrorHandler_ShouldRetry(t *testing.T) {
	eh := NewErrorHandler()

	assert.False(t, eh.ShouldRetry(nil))
	assert.False(t, eh.ShouldRetry(context.Canceled))
	assert.True(t, eh.ShouldRetry(stderrors.New("dial tcp 10.0.0.1:5432: connection refused")))
	assert.False(t, eh.ShouldRetry(stderrors.New("access denied for user")))
	assert.True(t, eh.ShouldRetry(errors.New(errors.ErrorTypeConnection, "lost")))
	assert.False(t, eh.ShouldRetry(errors.New(errors.ErrorTypeValidation, "bad")))
}

func TestHealthChecker_CachesSuccess(t *testing.T) {
	probes := 0
	hc := NewHealthChecker("memory", func(ctx context.Context) error {
		probes++
		return nil
	}).WithMinInterval(time.Hour)

	require.NoError(t, hc.Check(context.Background()))
	require.NoError(t, hc.Check(context.Background()))
	assert.Equal(t, 1, probes)
	assert.Equal(t, int64(1), hc.CheckCount())

	hc.Reset()
	require.NoError(t, hc.Check(context.Background()))
	assert.Equal(t, 2, probes)
	assert.Equal(t, int64(0), hc.FailureCount())
}
