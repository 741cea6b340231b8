package redis

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/gopherauth/internal/apperrors"
	"github.com/nkiryanov/gopherauth/internal/kvstore"
	"github.com/nkiryanov/gopherauth/internal/kvstore/kvstoretest"
	"github.com/nkiryanov/gopherauth/internal/testutil"
)

func TestStore(t *testing.T) {
	t.Parallel()

	rc := testutil.StartRedisContainer(t)
	t.Cleanup(rc.Terminate)

	// Every subtest gets own prefix, so they not interfere
	newStore := func(t *testing.T) kvstore.Store {
		return New(rc.Client, fmt.Sprintf("test:%s:", uuid.NewString()))
	}

	kvstoretest.RunContract(t, newStore)

	t.Run("expiration", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(t.Context(), "k", "v", 100*time.Millisecond))

		require.Eventually(t, func() bool {
			_, err := s.Get(t.Context(), "k")
			return err == kvstore.ErrNotFound
		}, 2*time.Second, 50*time.Millisecond, "redis has to expire the key")
	})

	t.Run("prefix isolates keys", func(t *testing.T) {
		a := New(rc.Client, "a:")
		b := New(rc.Client, "b:")
		require.NoError(t, a.Set(t.Context(), "k", "v", time.Minute))

		_, err := b.Get(t.Context(), "k")

		require.ErrorIs(t, err, kvstore.ErrNotFound)
	})

	t.Run("connect", func(t *testing.T) {
		client, err := Connect(t.Context(), rc.Addr, "", 0)
		require.NoError(t, err)
		require.NoError(t, client.Close())
	})

	t.Run("unavailable", func(t *testing.T) {
		client, err := Connect(t.Context(), rc.Addr, "", 0)
		require.NoError(t, err)
		require.NoError(t, client.Close())

		_, err = New(client, "").Get(t.Context(), "k")

		require.ErrorIs(t, err, apperrors.ErrStorageUnavailable)
	})
}
