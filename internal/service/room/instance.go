package room

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jamroom/server/internal/repository"
)

// Instance is the live state machine for one room: the currently playing
// song, the bounded chat ring, the play queue/history, and the dirty
// flag driving lazy persistence. All mutation goes through its methods;
// the fields below mu are guarded by it.
type Instance struct {
	id   int64
	name string

	log      *slog.Logger
	roomRepo iRoomRepo
	songRepo iSongRepo
	codec    iMessageCodec
	sched    iScheduler
	pub      iPublisher
	cfg      Config

	nextMessageId atomic.Int64
	dirty         atomic.Bool

	// playMu serializes transitions: two concurrent PlayNext calls must
	// never double-advance the queue.
	playMu sync.Mutex

	mu         sync.Mutex
	messages   []Message
	queue      []int64
	history    []int64
	repeat     bool
	current    *SongInstance
	cancelTick func()
	cancelSync func()
}

func newInstance(ctx context.Context, room repository.Room, r *Registry) (*Instance, error) {
	i := Instance{
		id:       room.Id,
		name:     room.Name,
		log:      r.log.With("room_id", room.Id),
		roomRepo: r.roomRepo,
		songRepo: r.songRepo,
		codec:    r.codec,
		sched:    r.sched,
		pub:      r.pub,
		cfg:      r.cfg,
		queue:    append([]int64(nil), room.Queue...),
		history:  append([]int64(nil), room.History...),
		repeat:   room.Repeat,
	}

	i.hydrateMessages(room.Messages)

	if room.CurrentSongId != 0 {
		song, err := newSongInstance(ctx, i.songRepo, room.CurrentSongId)
		switch {
		case err == nil:
			i.startSong(song)
		case errors.Is(err, repository.ErrSongNotFound):
			i.log.Warn("persisted current song is gone, advancing", "song_id", room.CurrentSongId)
		default:
			return nil, err
		}
	}

	if i.currentSong() == nil {
		if err := i.PlayNext(ctx); err != nil {
			if !errors.Is(err, ErrQueueExhausted) {
				return nil, err
			}
			i.log.Warn("room has nothing to play")
		}
	}

	cancelSync := i.sched.SubmitPeriodic(
		fmt.Sprintf("room-%d-sync", i.id),
		i.cfg.SyncInterval,
		i.cfg.SyncInterval,
		func(ctx context.Context) {
			if err := i.Merge(ctx); err != nil {
				i.log.Error("failed to sync room", "err", err)
			}
		},
	)

	i.mu.Lock()
	i.cancelSync = cancelSync
	i.mu.Unlock()

	return &i, nil
}

// hydrateMessages fills the ring from persisted history, keeping the
// most recent entries, and seeds the id counter past the max seen id so
// new ids never collide with persisted ones.
func (i *Instance) hydrateMessages(records []repository.ChatMessage) {
	if len(records) > i.cfg.MessagesLimit {
		records = records[len(records)-i.cfg.MessagesLimit:]
	}

	var maxId int64
	i.messages = make([]Message, 0, len(records))
	for _, record := range records {
		if record.Id > maxId {
			maxId = record.Id
		}

		i.messages = append(i.messages, i.codec.FromRecord(record))
	}

	i.nextMessageId.Store(maxId)
}

func (i *Instance) Id() int64 {
	return i.id
}

func (i *Instance) Name() string {
	return i.name
}

func (i *Instance) topic() string {
	return strconv.FormatInt(i.id, 10)
}

// SendMessage stores a chat message in the ring, evicting the oldest
// entry beyond capacity. Text longer than MaxMessageLength is truncated,
// not rejected. Ids are strictly increasing per room, concurrent senders
// included.
func (i *Instance) SendMessage(params *SendMessageParams) Message {
	text := params.Text
	if runes := []rune(text); len(runes) > MaxMessageLength {
		text = string(runes[:MaxMessageLength])
	}

	msg := Message{
		Id:       i.nextMessageId.Add(1),
		Username: params.Username,
		Text:     text,
		SentAt:   time.Now().UTC(),
	}

	i.mu.Lock()
	i.messages = append(i.messages, msg)
	if len(i.messages) > i.cfg.MessagesLimit {
		i.messages = append([]Message(nil), i.messages[len(i.messages)-i.cfg.MessagesLimit:]...)
	}
	i.mu.Unlock()

	i.dirty.Store(true)

	if i.pub != nil {
		i.pub.Publish(i.topic(), msg)
	}

	return msg
}

// Messages returns a snapshot of the ring contents.
func (i *Instance) Messages() []Message {
	i.mu.Lock()
	defer i.mu.Unlock()

	return append([]Message(nil), i.messages...)
}

// QueueSongs appends song ids to the play queue.
func (i *Instance) QueueSongs(params *QueueSongsParams) {
	if len(params.SongIds) == 0 {
		return
	}

	i.mu.Lock()
	i.queue = append(i.queue, params.SongIds...)
	i.mu.Unlock()

	i.dirty.Store(true)
}

func (i *Instance) currentSong() *SongInstance {
	i.mu.Lock()
	defer i.mu.Unlock()

	return i.current
}

func (i *Instance) Snapshot() Snapshot {
	i.mu.Lock()
	defer i.mu.Unlock()

	snapshot := Snapshot{
		RoomId:  i.id,
		Name:    i.name,
		Repeat:  i.repeat,
		Queue:   append([]int64(nil), i.queue...),
		History: append([]int64(nil), i.history...),
	}
	if i.current != nil {
		snapshot.CurrentSongId = i.current.SongId()
		snapshot.Elapsed = i.current.Elapsed().Seconds()
		snapshot.Stopped = i.current.Stopped()
	}

	return snapshot
}

// PlayNext advances the room to the next song: the finished song moves
// to history, an empty queue is refilled from the catalog or from a
// history replay, and the first playable queue entry becomes the new
// current song with a fresh tick timer. Queue entries whose song has
// been deleted are skipped. Playback never blocks on an empty catalog;
// only a room with empty queue, history, and catalog stays put,
// signalled by ErrQueueExhausted. Nothing is committed until the new
// song is known playable: a failed transition leaves the room exactly
// as it was.
func (i *Instance) PlayNext(ctx context.Context) error {
	i.playMu.Lock()
	defer i.playMu.Unlock()

	i.mu.Lock()
	finished := i.current
	queue := append([]int64(nil), i.queue...)
	repeat := i.repeat
	history := append([]int64(nil), i.history...)
	i.mu.Unlock()

	if finished != nil {
		history = append(history, finished.SongId())
		if len(history) > i.cfg.HistoryLimit {
			history = append([]int64(nil), history[len(history)-i.cfg.HistoryLimit:]...)
		}
	}

	song, dropCount, err := i.nextPlayable(ctx, queue)
	if err != nil {
		return err
	}

	var prepend []int64
	clearHistory := false
	if song == nil {
		var refill []int64
		refill, clearHistory = i.refill(ctx, repeat, history)

		var consumed int
		song, consumed, err = i.nextPlayable(ctx, refill)
		if err != nil {
			return err
		}
		prepend = refill[consumed:]
	}

	if song == nil {
		return ErrQueueExhausted
	}

	// commit: only the entries consumed above leave the live queue, so
	// ids appended concurrently survive the transition
	i.mu.Lock()
	cancelTick := i.cancelTick
	i.queue = append(append([]int64(nil), prepend...), i.queue[dropCount:]...)
	i.history = history
	if clearHistory {
		i.history = nil
	}
	i.mu.Unlock()

	if cancelTick != nil {
		cancelTick()
	}

	i.startSong(song)
	i.dirty.Store(true)

	i.log.Debug("advanced to next song", "song_id", song.SongId())

	return nil
}

// nextPlayable builds a SongInstance for the first id whose song still
// exists, returning how many ids it consumed. Deleted songs are logged
// and skipped; any other repository failure aborts the scan.
func (i *Instance) nextPlayable(ctx context.Context, ids []int64) (*SongInstance, int, error) {
	for n, id := range ids {
		song, err := newSongInstance(ctx, i.songRepo, id)
		if err == nil {
			return song, n + 1, nil
		}
		if errors.Is(err, repository.ErrSongNotFound) {
			i.log.Warn("queued song is gone, skipping", "song_id", id)
			continue
		}

		return nil, 0, fmt.Errorf("failed to start song %d: %w", id, err)
	}

	return nil, len(ids), nil
}

// refill produces the ids to feed an empty queue. Repeat-enabled rooms
// replay their history directly; otherwise the catalog is consulted
// first and an empty candidate set degrades to a history replay anyway.
func (i *Instance) refill(ctx context.Context, repeat bool, history []int64) ([]int64, bool) {
	if repeat && len(history) > 0 {
		return history, true
	}

	candidates, err := i.songRepo.GetSongCandidates(ctx, &repository.GetSongCandidatesParams{
		RoomId:         i.id,
		ExcludeSongIds: history,
		Limit:          i.cfg.CandidatesLimit,
	})
	if err != nil {
		i.log.Error("failed to get song candidates", "err", err)
	}

	if len(candidates) > 0 {
		ids := make([]int64, 0, len(candidates))
		for _, song := range candidates {
			ids = append(ids, song.Id)
		}

		return ids, false
	}

	if len(history) > 0 {
		return history, true
	}

	return nil, false
}

func (i *Instance) startSong(song *SongInstance) {
	song.OnStop(func(ctx context.Context) {
		if err := i.PlayNext(ctx); err != nil {
			i.log.Error("failed to play next song", "err", err)
		}
	})

	cancelTick := i.sched.SubmitPeriodic(
		fmt.Sprintf("room-%d-tick", i.id),
		i.cfg.TickInterval,
		i.cfg.TickInterval,
		func(ctx context.Context) {
			song.IncrementTime(ctx, i.cfg.TickInterval)
		},
	)

	i.mu.Lock()
	i.current = song
	i.cancelTick = cancelTick
	i.mu.Unlock()
}

// Merge writes the room's state to the repository when, and only when,
// something changed since the last successful sync. The read-and-clear
// of the dirty flag is atomic: a mutation racing the write re-dirties
// the room and survives to the next sync. A failed write is reported to
// the caller and not retried until a new mutation sets the flag again.
func (i *Instance) Merge(ctx context.Context) error {
	if !i.dirty.CompareAndSwap(true, false) {
		return nil
	}

	i.mu.Lock()
	params := repository.MergeRoomParams{
		RoomId:   i.id,
		Name:     i.name,
		Repeat:   i.repeat,
		Queue:    append([]int64(nil), i.queue...),
		History:  append([]int64(nil), i.history...),
		Messages: make([]repository.ChatMessage, 0, len(i.messages)),
	}
	if i.current != nil {
		params.CurrentSongId = i.current.SongId()
	}
	for _, msg := range i.messages {
		params.Messages = append(params.Messages, i.codec.ToRecord(msg))
	}
	i.mu.Unlock()

	if err := i.roomRepo.MergeRoom(ctx, &params); err != nil {
		return fmt.Errorf("failed to merge room %d: %w", i.id, err)
	}

	return nil
}

func (i *Instance) stopTimers() {
	i.mu.Lock()
	cancelTick := i.cancelTick
	cancelSync := i.cancelSync
	i.mu.Unlock()

	if cancelTick != nil {
		cancelTick()
	}
	if cancelSync != nil {
		cancelSync()
	}
}
