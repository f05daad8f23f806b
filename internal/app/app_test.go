package app

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamroom/server/internal/repository"
	redisrepo "github.com/jamroom/server/internal/repository/redis"
	"github.com/jamroom/server/internal/scheduler"
	"github.com/jamroom/server/internal/service/room"
	"github.com/jamroom/server/pkg/broker"
)

func TestRoomLifecycle(t *testing.T) {
	slog.SetLogLoggerLevel(slog.LevelDebug)
	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)

	rc := redis.NewClient(&redis.Options{
		Addr: s.Addr(),
	})
	t.Cleanup(func() { rc.Close() })

	repo := redisrepo.NewRepo(rc)
	ctx := context.Background()

	// seed the catalog and one room, the way an operator would
	require.NoError(t, repo.CreateSong(ctx, &repository.CreateSongParams{SongId: 1, Title: "one", Artist: "a", DurationSeconds: 180}))
	require.NoError(t, repo.CreateSong(ctx, &repository.CreateSongParams{SongId: 2, Title: "two", Artist: "b", DurationSeconds: 240}))
	require.NoError(t, repo.CreateRoom(ctx, &repository.CreateRoomParams{RoomId: 1, Name: "lounge", CurrentSongId: 1}))

	// same wiring as Run: scheduled tasks get a dedicated connection
	scope := func(ctx context.Context) (context.Context, func()) {
		conn := rc.Conn()
		return redisrepo.WithConn(ctx, conn), func() { conn.Close() }
	}

	sched := scheduler.NewScheduler(&scheduler.Config{
		Workers: 4,
		Scope:   scope,
	}, slog.Default())

	messageBroker := broker.New[room.Message](16)

	registry := room.NewRegistry(repo, repo, room.NewMessageCodec(), sched, messageBroker, &room.Config{
		TickInterval: time.Minute,
		SyncInterval: time.Minute,
	}, slog.Default())

	require.NoError(t, registry.InitializeRooms(ctx))
	t.Log("rooms initialized")

	lounge, err := registry.GetRoomInstance(1)
	require.NoError(t, err)
	assert.Equal(t, "lounge", lounge.Name())
	assert.Equal(t, int64(1), lounge.Snapshot().CurrentSongId)

	// a subscriber sees the chat message a sender pushes
	subId, messages := messageBroker.Subscribe("1")
	defer messageBroker.Unsubscribe("1", subId)

	sent := lounge.SendMessage(&room.SendMessageParams{Username: "user1", Text: "hello"})
	assert.Equal(t, int64(1), sent.Id)

	select {
	case received := <-messages:
		assert.Equal(t, sent.Id, received.Id)
		assert.Equal(t, "hello", received.Text)
	case <-time.After(time.Second):
		t.Fatal("message was not published")
	}
	t.Log("message sent")

	lounge.QueueSongs(&room.QueueSongsParams{SongIds: []int64{2}})
	assert.Equal(t, []int64{2}, lounge.Snapshot().Queue)
	t.Log("song queued")

	// shutdown flushes the dirty room before the scheduler stops
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, registry.Shutdown(shutdownCtx))

	persisted, err := repo.GetRoom(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), persisted.CurrentSongId)
	assert.Equal(t, []int64{2}, persisted.Queue)
	require.Len(t, persisted.Messages, 1)
	assert.Equal(t, "hello", persisted.Messages[0].Text)

	t.Log(rc.Keys(ctx, "*").Val())
}

func TestAppConfigValidate(t *testing.T) {
	cfg := AppConfig{Workers: 8, MessagesLimit: 100, HistoryLimit: 25}
	require.NoError(t, cfg.Validate())

	cfg.Workers = 0
	assert.Error(t, cfg.Validate())

	cfg = AppConfig{Workers: 8, MessagesLimit: 0, HistoryLimit: 25}
	assert.Error(t, cfg.Validate())

	cfg = AppConfig{Workers: 8, MessagesLimit: 100, HistoryLimit: 0}
	assert.Error(t, cfg.Validate())
}
