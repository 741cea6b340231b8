// Package kvstoretest holds behaviour every kvstore.Store implementation must share
package kvstoretest

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/gopherauth/internal/kvstore"
)

func RunContract(t *testing.T, newStore func(t *testing.T) kvstore.Store) {
	t.Run("get absent", func(t *testing.T) {
		s := newStore(t)

		_, err := s.Get(t.Context(), "absent")

		require.ErrorIs(t, err, kvstore.ErrNotFound)
	})

	t.Run("set and get", func(t *testing.T) {
		s := newStore(t)

		require.NoError(t, s.Set(t.Context(), "k", "v1", 0))
		require.NoError(t, s.Set(t.Context(), "k", "v2", 0), "set has to overwrite")

		got, err := s.Get(t.Context(), "k")
		require.NoError(t, err)
		require.Equal(t, "v2", got)
	})

	t.Run("set nx", func(t *testing.T) {
		s := newStore(t)

		ok, err := s.SetNX(t.Context(), "k", "first", 0)
		require.NoError(t, err)
		require.True(t, ok, "first SetNX must win")

		ok, err = s.SetNX(t.Context(), "k", "second", 0)
		require.NoError(t, err)
		require.False(t, ok, "second SetNX must lose")

		got, err := s.Get(t.Context(), "k")
		require.NoError(t, err)
		require.Equal(t, "first", got)
	})

	t.Run("get del", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(t.Context(), "k", "v", 0))

		got, err := s.GetDel(t.Context(), "k")
		require.NoError(t, err)
		require.Equal(t, "v", got)

		_, err = s.GetDel(t.Context(), "k")
		require.ErrorIs(t, err, kvstore.ErrNotFound, "value has to be deleted on first GetDel")
	})

	t.Run("delete", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(t.Context(), "k", "v", 0))

		require.NoError(t, s.Delete(t.Context(), "k"))
		require.NoError(t, s.Delete(t.Context(), "k"), "deleting absent key is not an error")

		_, err := s.Get(t.Context(), "k")
		require.ErrorIs(t, err, kvstore.ErrNotFound)
	})

	t.Run("concurrent get del has one winner", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(t.Context(), "k", "v", 0))

		var wins atomic.Int32
		var wg sync.WaitGroup
		for range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := s.GetDel(t.Context(), "k"); err == nil {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()

		require.EqualValues(t, 1, wins.Load())
	})
}
