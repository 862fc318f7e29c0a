package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	Name string `json:"name"`
}

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := New(mr.Addr(), "", 0)
	c.Prefix = "test:"
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestGetOrLoadJSON_CachesResult(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	var calls int32
	load := func(context.Context) ([]item, error) {
		atomic.AddInt32(&calls, 1)
		return []item{{Name: "a"}}, nil
	}

	got, err := GetOrLoadJSON(c, ctx, "items", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, []item{{Name: "a"}}, got)

	got, err = GetOrLoadJSON(c, ctx, "items", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, []item{{Name: "a"}}, got)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	assert.True(t, mr.Exists("test:items"))
}

func TestInvalidate(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	var calls int32
	load := func(context.Context) (item, error) {
		n := atomic.AddInt32(&calls, 1)
		return item{Name: string(rune('a' + n - 1))}, nil
	}

	first, err := GetOrLoadJSON(c, ctx, "one", time.Minute, load)
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(ctx, "one"))
	assert.False(t, mr.Exists("test:one"))

	second, err := GetOrLoadJSON(c, ctx, "one", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, "a", first.Name)
	assert.Equal(t, "b", second.Name)
}

func TestGetOrLoad_LoadErrorNotCached(t *testing.T) {
	c, mr := newTestCache(t)
	boom := errors.New("boom")
	_, err := c.GetOrLoad(context.Background(), "k", time.Minute, func(context.Context) ([]byte, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("test:k"))
}

func TestGetOrLoad_RedisDownFallsBack(t *testing.T) {
	c, mr := newTestCache(t)
	mr.SetError("LOADING redis is loading the dataset in memory")
	b, err := c.GetOrLoad(context.Background(), "k", time.Minute, func(context.Context) ([]byte, error) {
		return []byte(`"ok"`), nil
	})
	require.NoError(t, err)
	assert.Equal(t, `"ok"`, string(b))
}

func TestGetOrLoad_TTL(t *testing.T) {
	c, mr := newTestCache(t)
	_, err := c.GetOrLoad(context.Background(), "ttl", 5*time.Second, func(context.Context) ([]byte, error) {
		return []byte("1"), nil
	})
	require.NoError(t, err)
	mr.FastForward(6 * time.Second)
	assert.False(t, mr.Exists("test:ttl"))
}

func TestGetOrLoad_InvalidateDuringLoadDropsSnapshot(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()
	loading := make(chan struct{})
	release := make(chan struct{})

	done := make(chan []byte, 1)
	go func() {
		b, err := c.GetOrLoad(ctx, "list", time.Minute, func(context.Context) ([]byte, error) {
			close(loading)
			<-release
			return []byte("old"), nil
		})
		assert.NoError(t, err)
		done <- b
	}()

	<-loading
	require.NoError(t, c.Invalidate(ctx, "list"))
	close(release)
	assert.Equal(t, "old", string(<-done))
	assert.False(t, mr.Exists("test:list"))

	b, err := c.GetOrLoad(ctx, "list", time.Minute, func(context.Context) ([]byte, error) {
		return []byte("new"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "new", string(b))
	assert.True(t, mr.Exists("test:list"))
}

func TestGetOrLoad_NewGenerationDoesNotJoinOldFlight(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()
	loading := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_, _ = c.GetOrLoad(ctx, "list", time.Minute, func(context.Context) ([]byte, error) {
			close(loading)
			<-release
			return []byte("old"), nil
		})
	}()
	<-loading
	require.NoError(t, c.Invalidate(ctx, "list"))

	b, err := c.GetOrLoad(ctx, "list", time.Minute, func(context.Context) ([]byte, error) {
		return []byte("new"), nil
	})
	close(release)
	require.NoError(t, err)
	assert.Equal(t, "new", string(b))
}

func TestGetOrLoad_CancelledCallerDoesNotFailFlight(t *testing.T) {
	c, _ := newTestCache(t)
	loading := make(chan struct{})
	release := make(chan struct{})
	var loadErr atomic.Value
	load := func(lctx context.Context) ([]byte, error) {
		select {
		case <-loading:
		default:
			close(loading)
		}
		<-release
		if err := lctx.Err(); err != nil {
			loadErr.Store(err)
			return nil, err
		}
		return []byte("v"), nil
	}

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.GetOrLoad(first, "k", time.Minute, load)
		firstErr <- err
	}()
	<-loading

	second := make(chan []byte, 1)
	go func() {
		b, err := c.GetOrLoad(context.Background(), "k", time.Minute, load)
		assert.NoError(t, err)
		second <- b
	}()

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)
	close(release)
	assert.Equal(t, "v", string(<-second))
	assert.Nil(t, loadErr.Load())
}
