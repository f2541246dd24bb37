package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinoosan/billy/internal/errs"
	"github.com/tinoosan/billy/internal/meta"
)

func TestTelegramKey(t *testing.T) {
	assert.Equal(t, "telegram:12345", TelegramKey("12345"))
	assert.True(t, ValidTelegramID("12345"))
	assert.True(t, ValidTelegramID("-100200"))
	assert.False(t, ValidTelegramID(""))
	assert.False(t, ValidTelegramID("12a"))
}

func TestMemory_PutGetExpire(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory().WithClock(func() time.Time { return now })
	id := uuid.New()

	require.NoError(t, m.Put(ctx, TelegramKey("7"), meta.Session(id, "a@b.co"), time.Minute))
	got, err := m.Get(ctx, TelegramKey("7"))
	require.NoError(t, err)
	gotID, err := got.AccountID()
	require.NoError(t, err)
	assert.Equal(t, id, gotID)

	now = now.Add(time.Minute)
	_, err = m.Get(ctx, TelegramKey("7"))
	assert.ErrorIs(t, err, errs.ErrNotFound)

	require.NoError(t, m.Put(ctx, "k", meta.Session(id, "a@b.co"), time.Second))
	now = now.Add(time.Hour)
	assert.Equal(t, 1, m.CleanExpired())
}

func TestMemory_Delete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Put(ctx, "k", meta.Session(uuid.New(), "a@b.co"), time.Hour))
	require.NoError(t, m.Delete(ctx, "k"))
	_, err := m.Get(ctx, "k")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestRedis_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	srv := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	c := NewRedis(rdb)
	defer c.Close()
	id := uuid.New()
	key := TelegramKey("99")

	require.NoError(t, c.Put(ctx, key, meta.Session(id, "b@c.co"), 30*time.Second))
	assert.Equal(t, id.String(), srv.HGet(key, meta.KeyAccountID))
	assert.Equal(t, 30*time.Second, srv.TTL(key))

	got, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "b@c.co", got.Email())

	srv.FastForward(31 * time.Second)
	_, err = c.Get(ctx, key)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	require.NoError(t, c.Put(ctx, key, meta.Session(id, "b@c.co"), time.Minute))
	require.NoError(t, c.Delete(ctx, key))
	_, err = c.Get(ctx, key)
	assert.ErrorIs(t, err, errs.ErrNotFound)
	require.NoError(t, c.Ready(ctx))
}
