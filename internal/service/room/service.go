// Package room implements the playback and synchronization engine: one
// live instance per persisted room, driven by the shared scheduler and
// lazily merged back to the store.
package room

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/exp/maps"

	"github.com/jamroom/server/internal/repository"
	"github.com/jamroom/server/internal/scheduler"
)

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrQueueExhausted = errors.New("queue exhausted")
)

const (
	MaxMessageLength = 255

	DefaultMessagesLimit   = 100
	DefaultHistoryLimit    = 25
	DefaultCandidatesLimit = 25
	DefaultTickInterval    = time.Second
	DefaultSyncInterval    = 10 * time.Second
)

type iRoomRepo interface {
	ListRooms(ctx context.Context) ([]repository.Room, error)
	MergeRoom(ctx context.Context, params *repository.MergeRoomParams) error
}

type iSongRepo interface {
	GetSong(ctx context.Context, songId int64) (repository.Song, error)
	GetSongCandidates(ctx context.Context, params *repository.GetSongCandidatesParams) ([]repository.Song, error)
}

type iScheduler interface {
	Submit(task scheduler.Task) error
	SubmitPeriodic(name string, initialDelay, period time.Duration, task scheduler.Task) func()
	PerformInScope(ctx context.Context, fn func(ctx context.Context) error) error
	Shutdown(ctx context.Context) error
}

type iMessageCodec interface {
	ToRecord(msg Message) repository.ChatMessage
	FromRecord(record repository.ChatMessage) Message
}

type iPublisher interface {
	Publish(topic string, msg Message)
}

type Config struct {
	MessagesLimit   int
	HistoryLimit    int
	CandidatesLimit int
	TickInterval    time.Duration
	SyncInterval    time.Duration
}

func (cfg *Config) withDefaults() Config {
	out := *cfg
	if out.MessagesLimit < 1 {
		out.MessagesLimit = DefaultMessagesLimit
	}
	if out.HistoryLimit < 1 {
		out.HistoryLimit = DefaultHistoryLimit
	}
	if out.CandidatesLimit < 1 {
		out.CandidatesLimit = DefaultCandidatesLimit
	}
	if out.TickInterval <= 0 {
		out.TickInterval = DefaultTickInterval
	}
	if out.SyncInterval <= 0 {
		out.SyncInterval = DefaultSyncInterval
	}

	return out
}

// Registry owns the live room instances. It is the only path to an
// Instance; instances are created at bootstrap and live until shutdown.
type Registry struct {
	log      *slog.Logger
	roomRepo iRoomRepo
	songRepo iSongRepo
	codec    iMessageCodec
	sched    iScheduler
	pub      iPublisher
	cfg      Config

	rooms map[int64]*Instance
}

func NewRegistry(roomRepo iRoomRepo, songRepo iSongRepo, codec iMessageCodec, sched iScheduler, pub iPublisher, cfg *Config, log *slog.Logger) *Registry {
	return &Registry{
		log:      log,
		roomRepo: roomRepo,
		songRepo: songRepo,
		codec:    codec,
		sched:    sched,
		pub:      pub,
		cfg:      cfg.withDefaults(),
		rooms:    make(map[int64]*Instance),
	}
}

// InitializeRooms loads every persisted room and builds its live
// instance. It must be called exactly once, before any lookups; calling
// it twice is not supported.
func (r *Registry) InitializeRooms(ctx context.Context) error {
	err := r.sched.PerformInScope(ctx, func(ctx context.Context) error {
		rooms, err := r.roomRepo.ListRooms(ctx)
		if err != nil {
			return fmt.Errorf("failed to list rooms: %w", err)
		}

		for _, room := range rooms {
			instance, err := newInstance(ctx, room, r)
			if err != nil {
				return fmt.Errorf("failed to initialize room %d: %w", room.Id, err)
			}

			r.rooms[room.Id] = instance
		}

		return nil
	})
	if err != nil {
		return err
	}

	ids := maps.Keys(r.rooms)
	slices.Sort(ids)
	r.log.Info("initialized rooms", "count", len(ids), "ids", ids)

	return nil
}

func (r *Registry) GetRoomInstance(roomId int64) (*Instance, error) {
	instance, ok := r.rooms[roomId]
	if !ok {
		return nil, ErrRoomNotFound
	}

	return instance, nil
}

// Shutdown stops all per-room timers, flushes every dirty room
// synchronously, and then shuts the scheduler down.
func (r *Registry) Shutdown(ctx context.Context) error {
	for _, instance := range r.rooms {
		instance.stopTimers()
	}

	err := r.sched.PerformInScope(ctx, func(ctx context.Context) error {
		for id, instance := range r.rooms {
			if err := instance.Merge(ctx); err != nil {
				r.log.Error("failed to flush room", "room_id", id, "err", err)
			}
		}

		return nil
	})
	if err != nil && !errors.Is(err, scheduler.ErrSchedulerStopped) {
		r.log.Error("failed to flush rooms", "err", err)
	}

	return r.sched.Shutdown(ctx)
}
