package room

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// SongInstance tracks elapsed playback time for the song currently
// playing in a room. It latches into a terminal stopped state the first
// time elapsed reaches the song's duration and notifies its observers
// exactly once; a finished song is replaced, never resumed.
type SongInstance struct {
	songId   int64
	duration time.Duration

	elapsed atomic.Int64
	stopped atomic.Bool

	mu        sync.Mutex
	observers []func(ctx context.Context)
}

func newSongInstance(ctx context.Context, songs iSongRepo, songId int64) (*SongInstance, error) {
	song, err := songs.GetSong(ctx, songId)
	if err != nil {
		return nil, fmt.Errorf("failed to get song %d: %w", songId, err)
	}

	return &SongInstance{
		songId:   songId,
		duration: time.Duration(song.DurationSeconds) * time.Second,
	}, nil
}

func (s *SongInstance) SongId() int64 {
	return s.songId
}

func (s *SongInstance) Duration() time.Duration {
	return s.duration
}

func (s *SongInstance) Elapsed() time.Duration {
	return time.Duration(s.elapsed.Load())
}

func (s *SongInstance) Stopped() bool {
	return s.stopped.Load()
}

// OnStop registers a callback to run when the song finishes. Observers
// fire synchronously, in registration order, exactly once.
func (s *SongInstance) OnStop(fn func(ctx context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.observers = append(s.observers, fn)
}

// IncrementTime advances elapsed playback time. The compare-and-swap on
// the stopped flag makes double notification impossible even when the
// timer races a concurrent increment.
func (s *SongInstance) IncrementTime(ctx context.Context, delta time.Duration) {
	if s.stopped.Load() {
		return
	}

	elapsed := time.Duration(s.elapsed.Add(int64(delta)))
	if elapsed < s.duration {
		return
	}

	if !s.stopped.CompareAndSwap(false, true) {
		return
	}

	s.mu.Lock()
	observers := make([]func(ctx context.Context), len(s.observers))
	copy(observers, s.observers)
	s.mu.Unlock()

	for _, fn := range observers {
		fn(ctx)
	}
}
