package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisRecordStore, *miniredis.Miniredis) {
	t.Helper()
	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)

	client := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})
	t.Cleanup(func() { client.Close() })

	return NewRedisRecordStore(client), s
}

func TestRedisRecordStore(t *testing.T) {
	ctx := context.Background()
	store, _ := newRedisStore(t)

	t.Run("GetMissingKey", func(t *testing.T) {
		data, err := store.Get(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, data)
	})

	t.Run("SetAndGet", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "doc", []byte(`{"a":1}`)))

		data, err := store.Get(ctx, "doc")
		require.NoError(t, err)
		assert.JSONEq(t, `{"a":1}`, string(data))
	})

	t.Run("UpdateOnMissingKeyGetsNil", func(t *testing.T) {
		err := store.Update(ctx, "fresh", func(old []byte) ([]byte, error) {
			assert.Nil(t, old)
			return []byte(`[]`), nil
		})
		require.NoError(t, err)

		data, _ := store.Get(ctx, "fresh")
		assert.Equal(t, []byte(`[]`), data)
	})

	t.Run("UpdateReplacesDocument", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "doc2", []byte(`old`)))

		err := store.Update(ctx, "doc2", func(old []byte) ([]byte, error) {
			assert.Equal(t, []byte(`old`), old)
			return []byte(`new`), nil
		})
		require.NoError(t, err)

		data, _ := store.Get(ctx, "doc2")
		assert.Equal(t, []byte(`new`), data)
	})

	t.Run("UpdateAbortsWithoutWrite", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "doc3", []byte(`keep`)))

		wantErr := errors.New("conflict detected")
		err := store.Update(ctx, "doc3", func(old []byte) ([]byte, error) {
			return nil, wantErr
		})
		require.ErrorIs(t, err, wantErr)

		data, _ := store.Get(ctx, "doc3")
		assert.Equal(t, []byte(`keep`), data)
	})
}

func TestRedisRecordStoreNilClient(t *testing.T) {
	ctx := context.Background()
	store := NewRedisRecordStore(nil)

	_, err := store.Get(ctx, "k")
	assert.Error(t, err)

	assert.Error(t, store.Set(ctx, "k", []byte(`v`)))
	assert.Error(t, store.Update(ctx, "k", func(old []byte) ([]byte, error) { return old, nil }))
}
