package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamroom/server/internal/repository"
)

func newTestRepo(t *testing.T) *Repo {
	t.Helper()

	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)

	rc := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { rc.Close() })

	return NewRepo(rc)
}

func TestRoomRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	err := repo.CreateRoom(ctx, &repository.CreateRoomParams{
		RoomId:        1,
		Name:          "lounge",
		CurrentSongId: 10,
		Repeat:        true,
		Queue:         []int64{11, 12},
	})
	require.NoError(t, err)

	room, err := repo.GetRoom(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), room.Id)
	assert.Equal(t, "lounge", room.Name)
	assert.Equal(t, int64(10), room.CurrentSongId)
	assert.True(t, room.Repeat)
	assert.Equal(t, []int64{11, 12}, room.Queue)
	assert.Empty(t, room.History)
	assert.Empty(t, room.Messages)
}

func TestGetRoomNotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.GetRoom(context.Background(), 404)
	assert.ErrorIs(t, err, repository.ErrRoomNotFound)
}

func TestMergeRoomReplacesState(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	err := repo.CreateRoom(ctx, &repository.CreateRoomParams{
		RoomId:        1,
		Name:          "lounge",
		CurrentSongId: 10,
		Queue:         []int64{11, 12},
	})
	require.NoError(t, err)

	err = repo.MergeRoom(ctx, &repository.MergeRoomParams{
		RoomId:        1,
		Name:          "lounge",
		CurrentSongId: 11,
		Queue:         []int64{12},
		History:       []int64{10},
		Messages: []repository.ChatMessage{
			{Id: 1, Username: "user1", Text: "hello", SentAt: 1000},
			{Id: 2, Username: "user2", Text: "hi", SentAt: 2000},
		},
	})
	require.NoError(t, err)

	room, err := repo.GetRoom(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(11), room.CurrentSongId)
	assert.Equal(t, []int64{12}, room.Queue)
	assert.Equal(t, []int64{10}, room.History)
	require.Len(t, room.Messages, 2)
	assert.Equal(t, "hello", room.Messages[0].Text)
	assert.Equal(t, int64(2), room.Messages[1].Id)
}

func TestMergeRoomClearsEmptiedLists(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	err := repo.CreateRoom(ctx, &repository.CreateRoomParams{
		RoomId:        1,
		Name:          "lounge",
		CurrentSongId: 10,
		Queue:         []int64{11},
	})
	require.NoError(t, err)

	err = repo.MergeRoom(ctx, &repository.MergeRoomParams{
		RoomId:        1,
		Name:          "lounge",
		CurrentSongId: 11,
	})
	require.NoError(t, err)

	room, err := repo.GetRoom(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, room.Queue, "merging an empty queue must clear the persisted one")
}

func TestListRooms(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateRoom(ctx, &repository.CreateRoomParams{RoomId: 2, Name: "garage"}))
	require.NoError(t, repo.CreateRoom(ctx, &repository.CreateRoomParams{RoomId: 1, Name: "lounge"}))

	rooms, err := repo.ListRooms(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	assert.Equal(t, "lounge", rooms[0].Name)
	assert.Equal(t, "garage", rooms[1].Name)
}

func TestSongRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	err := repo.CreateSong(ctx, &repository.CreateSongParams{
		SongId:          1,
		Title:           "one",
		Artist:          "somebody",
		DurationSeconds: 245,
	})
	require.NoError(t, err)

	song, err := repo.GetSong(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), song.Id)
	assert.Equal(t, "one", song.Title)
	assert.Equal(t, "somebody", song.Artist)
	assert.Equal(t, 245, song.DurationSeconds)

	_, err = repo.GetSong(ctx, 404)
	assert.ErrorIs(t, err, repository.ErrSongNotFound)
}

func TestGetSongCandidates(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for id := int64(1); id <= 5; id++ {
		require.NoError(t, repo.CreateSong(ctx, &repository.CreateSongParams{
			SongId:          id,
			Title:           "song",
			DurationSeconds: 100,
		}))
	}

	songs, err := repo.GetSongCandidates(ctx, &repository.GetSongCandidatesParams{
		RoomId:         1,
		ExcludeSongIds: []int64{2, 4},
		Limit:          2,
	})
	require.NoError(t, err)
	require.Len(t, songs, 2)
	assert.Equal(t, int64(1), songs[0].Id)
	assert.Equal(t, int64(3), songs[1].Id)
}

func TestScopedConnection(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(s.Close)

	rc := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { rc.Close() })

	repo := NewRepo(rc)

	conn := rc.Conn()
	defer conn.Close()

	ctx := WithConn(context.Background(), conn)
	require.NoError(t, repo.CreateRoom(ctx, &repository.CreateRoomParams{RoomId: 1, Name: "lounge"}))

	room, err := repo.GetRoom(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "lounge", room.Name)
}
