package store

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allanpk716/creditor_letters/internal/logger"
)

func TestFileSource_Load(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "brief.docx"), []byte("zip"), 0644))
	src := NewFileSource(dir)

	data, err := src.Load(context.Background(), "brief.docx")
	require.NoError(t, err)
	assert.Equal(t, "zip", string(data))

	data, err = src.Load(context.Background(), filepath.Join(dir, "brief.docx"))
	require.NoError(t, err)
	assert.Equal(t, "zip", string(data))
}

func TestFileSource_Errors(t *testing.T) {
	src := NewFileSource(t.TempDir())

	_, err := src.Load(context.Background(), "fehlt.docx")
	assert.ErrorIs(t, err, ErrTemplateNotFound)

	_, err = src.Load(context.Background(), "")
	assert.Error(t, err)

	_, err = src.Load(context.Background(), "../../etc/passwd")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrTemplateNotFound)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.Load(ctx, "fehlt.docx")
	assert.ErrorIs(t, err, context.Canceled)
}

type countingSource struct {
	data  []byte
	err   error
	calls atomic.Int32
}

func (s *countingSource) Load(context.Context, string) ([]byte, error) {
	s.calls.Add(1)
	return s.data, s.err
}

func newCache(t *testing.T, next TemplateSource) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := NewRedisClient(RedisOptions{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisCache(client, next, time.Hour, "letters:template:", logger.NewTestLogger(t)), mr
}

func TestRedisCache_ReadThrough(t *testing.T) {
	next := &countingSource{data: []byte("vorlage")}
	cache, mr := newCache(t, next)
	ctx := context.Background()

	data, err := cache.Load(ctx, "nullplan.docx")
	require.NoError(t, err)
	assert.Equal(t, "vorlage", string(data))

	data, err = cache.Load(ctx, "nullplan.docx")
	require.NoError(t, err)
	assert.Equal(t, "vorlage", string(data))
	assert.Equal(t, int32(1), next.calls.Load())

	cached, err := mr.Get("letters:template:nullplan.docx")
	require.NoError(t, err)
	assert.Equal(t, "vorlage", cached)
	assert.Equal(t, time.Hour, mr.TTL("letters:template:nullplan.docx"))
}

func TestRedisCache_Expiry(t *testing.T) {
	next := &countingSource{data: []byte("vorlage")}
	cache, mr := newCache(t, next)
	ctx := context.Background()

	_, err := cache.Load(ctx, "a.docx")
	require.NoError(t, err)
	mr.FastForward(2 * time.Hour)

	_, err = cache.Load(ctx, "a.docx")
	require.NoError(t, err)
	assert.Equal(t, int32(2), next.calls.Load())
}

func TestRedisCache_Invalidate(t *testing.T) {
	next := &countingSource{data: []byte("vorlage")}
	cache, mr := newCache(t, next)
	ctx := context.Background()

	_, err := cache.Load(ctx, "a.docx")
	require.NoError(t, err)
	require.NoError(t, cache.Invalidate(ctx, "a.docx"))
	assert.False(t, mr.Exists("letters:template:a.docx"))
}

func TestRedisCache_ErrorsNotCached(t *testing.T) {
	next := &countingSource{err: ErrTemplateNotFound}
	cache, mr := newCache(t, next)

	_, err := cache.Load(context.Background(), "fehlt.docx")
	assert.ErrorIs(t, err, ErrTemplateNotFound)
	assert.False(t, mr.Exists("letters:template:fehlt.docx"))
}

func TestRedisCache_RedisUnavailable(t *testing.T) {
	next := &countingSource{data: []byte("vorlage")}
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	client := redis.NewClient(&redis.Options{Addr: addr, MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	t.Cleanup(func() { client.Close() })
	cache := NewRedisCache(client, next, time.Minute, "p:", nil)

	data, err := cache.Load(context.Background(), "a.docx")
	require.NoError(t, err)
	assert.Equal(t, "vorlage", string(data))
}
