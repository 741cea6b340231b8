package janitor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/gopherauth/internal/kvstore/memory"
	"github.com/nkiryanov/gopherauth/internal/logger"
	"github.com/nkiryanov/gopherauth/internal/testutil"
)

func TestJanitor(t *testing.T) {
	t.Run("sweep memory store", func(t *testing.T) {
		clock := testutil.NewClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
		store := memory.New(memory.WithClock(clock.Now))
		require.NoError(t, store.Set(t.Context(), "short", "v", time.Minute))
		require.NoError(t, store.Set(t.Context(), "long", "v", time.Hour))

		j := New(time.Second, logger.NewNoOpLogger(), map[string]Purger{"memory": PurgerFunc(store.Sweep)})
		clock.Advance(2 * time.Minute)

		removed := j.Sweep(t.Context())

		assert.Equal(t, int64(1), removed)
		assert.Equal(t, 1, store.Len(), "only expired entry has to be removed")
	})

	t.Run("failed purger does not stop others", func(t *testing.T) {
		failing := PurgerFunc(func(context.Context) (int64, error) { return 0, errors.New("db is down") })
		ok := PurgerFunc(func(context.Context) (int64, error) { return 3, nil })

		j := New(time.Second, logger.NewNoOpLogger(), map[string]Purger{"failing": failing, "ok": ok})

		assert.Equal(t, int64(3), j.Sweep(t.Context()))
	})

	t.Run("default interval", func(t *testing.T) {
		j := New(0, logger.NewNoOpLogger(), nil)

		assert.Equal(t, defaultInterval, j.interval)
	})

	t.Run("run until context done", func(t *testing.T) {
		var calls atomic.Int64
		counting := PurgerFunc(func(context.Context) (int64, error) {
			calls.Add(1)
			return 0, nil
		})

		ctx, cancel := context.WithCancel(t.Context())
		stopped := New(10*time.Millisecond, logger.NewNoOpLogger(), map[string]Purger{"counting": counting}).Run(ctx)

		require.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
		cancel()

		select {
		case <-stopped:
		case <-time.After(time.Second):
			t.Fatal("janitor has to stop when context is done")
		}
	})
}
