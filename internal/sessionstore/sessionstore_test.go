package sessionstore

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	_ "github.com/mattn/go-sqlite3"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) (*RedisStore, *mr.Miniredis) {
	t.Helper()
	m, err := mr.Run()
	require.NoError(t, err)
	t.Cleanup(m.Close)

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	store := NewRedisStore(client, "test:session:")
	t.Cleanup(func() { _ = store.Close() })
	return store, m
}

func TestRedisStore_CommitFindDelete(t *testing.T) {
	store, m := newRedisStore(t)
	ctx := context.Background()

	require.NoError(t, store.CommitCtx(ctx, "tok1", []byte("payload"), time.Now().Add(time.Hour)))
	require.True(t, m.Exists("test:session:tok1"))

	b, found, err := store.FindCtx(ctx, "tok1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("payload"), b)

	require.NoError(t, store.DeleteCtx(ctx, "tok1"))
	_, found, err = store.FindCtx(ctx, "tok1")
	require.NoError(t, err)
	require.False(t, found)
}

func TestRedisStore_TTLExpiry(t *testing.T) {
	store, m := newRedisStore(t)

	require.NoError(t, store.Commit("tok2", []byte("x"), time.Now().Add(2*time.Second)))

	_, found, err := store.Find("tok2")
	require.NoError(t, err)
	require.True(t, found)

	// advance miniredis clock past TTL
	m.FastForward(3 * time.Second)

	_, found, err = store.Find("tok2")
	require.NoError(t, err)
	require.False(t, found)
}

func TestRedisStore_CommitExpiredDeletes(t *testing.T) {
	store, m := newRedisStore(t)

	require.NoError(t, store.Commit("tok3", []byte("x"), time.Now().Add(time.Hour)))
	require.NoError(t, store.Commit("tok3", []byte("x"), time.Now().Add(-time.Second)))
	require.False(t, m.Exists("test:session:tok3"))
}

func TestRedisStore_DefaultPrefixAndPing(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	store := NewRedisStore(redis.NewClient(&redis.Options{Addr: m.Addr()}), "")
	defer store.Close()

	require.NoError(t, store.Ping(context.Background()))
	require.NoError(t, store.Commit("abc", []byte("x"), time.Now().Add(time.Minute)))
	require.True(t, m.Exists("session:abc"))

	m.Close()
	require.Error(t, store.Ping(context.Background()))
}

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := NewSQLiteStore(db)
	require.NoError(t, err)
	return store
}

func TestSQLiteStore_CommitFindDelete(t *testing.T) {
	store := newSQLiteStore(t)

	require.NoError(t, store.Commit("tok1", []byte("payload"), time.Now().Add(time.Hour)))

	b, found, err := store.Find("tok1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("payload"), b)

	require.NoError(t, store.Delete("tok1"))
	_, found, err = store.Find("tok1")
	require.NoError(t, err)
	require.False(t, found)
}

func TestSQLiteStore_Sweep(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, store.Commit("live", []byte("a"), time.Now().Add(time.Hour)))
	require.NoError(t, store.Commit("dead", []byte("b"), time.Now().Add(-time.Hour)))

	// Expired rows are invisible before the sweep but still stored.
	_, found, err := store.Find("dead")
	require.NoError(t, err)
	require.False(t, found)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), n)

	removed, err := store.Sweep(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)

	n, err = store.Count(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), n)

	_, found, err = store.Find("live")
	require.NoError(t, err)
	require.True(t, found)
}

func TestNewSQLiteStore_Idempotent(t *testing.T) {
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "twice.db"))
	require.NoError(t, err)
	defer db.Close()

	_, err = NewSQLiteStore(db)
	require.NoError(t, err)
	store, err := NewSQLiteStore(db)
	require.NoError(t, err)
	require.NoError(t, store.Ping(context.Background()))
}
