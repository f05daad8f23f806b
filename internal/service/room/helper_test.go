package room

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jamroom/server/internal/repository"
	"github.com/jamroom/server/internal/scheduler"
)

type fakeSongRepo struct {
	mu         sync.Mutex
	songs      map[int64]repository.Song
	candidates []repository.Song
	getErr     error
	err        error
}

func newFakeSongRepo(songs ...repository.Song) *fakeSongRepo {
	r := fakeSongRepo{songs: make(map[int64]repository.Song)}
	for _, song := range songs {
		r.songs[song.Id] = song
	}

	return &r
}

func (r *fakeSongRepo) GetSong(ctx context.Context, songId int64) (repository.Song, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.getErr != nil {
		return repository.Song{}, r.getErr
	}

	song, ok := r.songs[songId]
	if !ok {
		return repository.Song{}, repository.ErrSongNotFound
	}

	return song, nil
}

func (r *fakeSongRepo) setGetErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.getErr = err
}

func (r *fakeSongRepo) GetSongCandidates(ctx context.Context, params *repository.GetSongCandidatesParams) ([]repository.Song, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil {
		return nil, r.err
	}

	return r.candidates, nil
}

type fakeRoomRepo struct {
	mu     sync.Mutex
	merges []repository.MergeRoomParams
	err    error
}

func (r *fakeRoomRepo) ListRooms(ctx context.Context) ([]repository.Room, error) {
	return nil, nil
}

func (r *fakeRoomRepo) MergeRoom(ctx context.Context, params *repository.MergeRoomParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.merges = append(r.merges, *params)
	return r.err
}

func (r *fakeRoomRepo) mergeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.merges)
}

func (r *fakeRoomRepo) lastMerge() repository.MergeRoomParams {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.merges[len(r.merges)-1]
}

// inlineScheduler runs immediate work synchronously and only records
// periodic schedules, so tests drive ticks by hand.
type inlineScheduler struct {
	mu        sync.Mutex
	periodics []string
}

func (s *inlineScheduler) Submit(task scheduler.Task) error {
	task(context.Background())
	return nil
}

func (s *inlineScheduler) SubmitPeriodic(name string, initialDelay, period time.Duration, task scheduler.Task) func() {
	s.mu.Lock()
	s.periodics = append(s.periodics, name)
	s.mu.Unlock()

	return func() {}
}

func (s *inlineScheduler) PerformInScope(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (s *inlineScheduler) Shutdown(ctx context.Context) error {
	return nil
}

func newTestInstance(t *testing.T, persisted repository.Room, songRepo *fakeSongRepo, roomRepo *fakeRoomRepo) *Instance {
	t.Helper()

	registry := NewRegistry(roomRepo, songRepo, NewMessageCodec(), &inlineScheduler{}, nil, &Config{}, slog.Default())

	instance, err := newInstance(context.Background(), persisted, registry)
	if err != nil {
		t.Fatalf("failed to build instance: %v", err)
	}

	return instance
}
