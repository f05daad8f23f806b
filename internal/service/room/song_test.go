package room

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamroom/server/internal/repository"
)

func TestSongInstanceStopsOnDuration(t *testing.T) {
	songs := newFakeSongRepo(repository.Song{Id: 1, Title: "song", DurationSeconds: 2})

	song, err := newSongInstance(context.Background(), songs, 1)
	require.NoError(t, err)

	var fired atomic.Int64
	song.OnStop(func(ctx context.Context) {
		fired.Add(1)
	})

	ctx := context.Background()

	song.IncrementTime(ctx, time.Second)
	assert.False(t, song.Stopped(), "song must not stop before its duration")
	assert.Equal(t, int64(0), fired.Load())

	song.IncrementTime(ctx, time.Second)
	assert.True(t, song.Stopped(), "song must stop when elapsed reaches duration")
	assert.Equal(t, int64(1), fired.Load())

	// further increments are no-ops
	song.IncrementTime(ctx, time.Second)
	song.IncrementTime(ctx, time.Second)
	assert.Equal(t, int64(1), fired.Load(), "stop observers must fire exactly once")
	assert.True(t, song.Stopped())
}

func TestSongInstanceObserverOrder(t *testing.T) {
	songs := newFakeSongRepo(repository.Song{Id: 1, DurationSeconds: 1})

	song, err := newSongInstance(context.Background(), songs, 1)
	require.NoError(t, err)

	var order []int
	song.OnStop(func(ctx context.Context) { order = append(order, 1) })
	song.OnStop(func(ctx context.Context) { order = append(order, 2) })
	song.OnStop(func(ctx context.Context) { order = append(order, 3) })

	song.IncrementTime(context.Background(), time.Second)
	assert.Equal(t, []int{1, 2, 3}, order, "observers must fire in registration order")
}

func TestSongInstanceConcurrentIncrements(t *testing.T) {
	songs := newFakeSongRepo(repository.Song{Id: 1, DurationSeconds: 5})

	song, err := newSongInstance(context.Background(), songs, 1)
	require.NoError(t, err)

	var fired atomic.Int64
	song.OnStop(func(ctx context.Context) {
		fired.Add(1)
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			song.IncrementTime(context.Background(), time.Second)
		}()
	}
	wg.Wait()

	assert.True(t, song.Stopped())
	assert.Equal(t, int64(1), fired.Load(), "racing increments must not double-notify")
}

func TestSongInstanceNotFound(t *testing.T) {
	songs := newFakeSongRepo()

	_, err := newSongInstance(context.Background(), songs, 42)
	require.Error(t, err)
	assert.ErrorIs(t, err, repository.ErrSongNotFound)
}
