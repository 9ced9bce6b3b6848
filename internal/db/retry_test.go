package db

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastRetry = RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"starting up", &pgconn.PgError{Code: "57P03"}, true},
		{"too many clients", eris.Wrap(&pgconn.PgError{Code: "53300"}, "db: ping database"), true},
		{"syntax error", &pgconn.PgError{Code: "42601"}, false},
		{"refused", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), true},
		{"message", errors.New("read tcp: i/o timeout"), true},
		{"permanent", errors.New("password authentication failed"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestRetry_SucceedsAfterTransient(t *testing.T) {
	calls := 0
	got, err := retry(context.Background(), fastRetry, "test", func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, syscall.ECONNREFUSED
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 3, calls)
}

func TestRetry_StopsOnPermanent(t *testing.T) {
	calls := 0
	_, err := retry(context.Background(), fastRetry, "test", func(context.Context) (int, error) {
		calls++
		return 0, errors.New("password authentication failed")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := retry(context.Background(), fastRetry, "test", func(context.Context) (int, error) {
		calls++
		return 0, syscall.ECONNRESET
	})
	assert.ErrorIs(t, err, syscall.ECONNRESET)
	assert.Equal(t, 3, calls)
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := retry(ctx, RetryConfig{MaxAttempts: 5, InitialBackoff: time.Hour}, "test", func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, syscall.ECONNREFUSED
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryConfig_Backoff(t *testing.T) {
	cfg := RetryConfig{InitialBackoff: 100 * time.Millisecond, MaxBackoff: 300 * time.Millisecond}.withDefaults()
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, cfg.backoff(0))
	assert.Equal(t, 200*time.Millisecond, cfg.backoff(1))
	assert.Equal(t, 300*time.Millisecond, cfg.backoff(5))
}
