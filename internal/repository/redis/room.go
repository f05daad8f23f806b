package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"

	"github.com/jamroom/server/internal/repository"
)

func (r Repo) CreateRoom(ctx context.Context, params *repository.CreateRoomParams) error {
	room := repository.Room{
		Name:          params.Name,
		CurrentSongId: params.CurrentSongId,
		Repeat:        params.Repeat,
	}

	pipe := r.cmd(ctx).TxPipeline()

	roomKey := r.getRoomKey(params.RoomId)
	pipe.HSet(ctx, roomKey, room)
	if len(params.Queue) > 0 {
		pipe.RPush(ctx, r.getQueueKey(params.RoomId), formatIds(params.Queue)...)
	}
	pipe.SAdd(ctx, roomsIndexKey, strconv.FormatInt(params.RoomId, 10))

	_, err := pipe.Exec(ctx)
	return err
}

func (r Repo) GetRoom(ctx context.Context, roomId int64) (repository.Room, error) {
	roomKey := r.getRoomKey(roomId)

	cmd := r.cmd(ctx).HGetAll(ctx, roomKey)
	if err := cmd.Err(); err != nil {
		return repository.Room{}, err
	}
	if len(cmd.Val()) == 0 {
		return repository.Room{}, repository.ErrRoomNotFound
	}

	room := repository.Room{Id: roomId}
	if err := cmd.Scan(&room); err != nil {
		return repository.Room{}, err
	}

	queue, err := r.getIdList(ctx, r.getQueueKey(roomId))
	if err != nil {
		return repository.Room{}, fmt.Errorf("failed to get queue: %w", err)
	}
	room.Queue = queue

	history, err := r.getIdList(ctx, r.getHistoryKey(roomId))
	if err != nil {
		return repository.Room{}, fmt.Errorf("failed to get history: %w", err)
	}
	room.History = history

	messages, err := r.getMessages(ctx, roomId)
	if err != nil {
		return repository.Room{}, fmt.Errorf("failed to get messages: %w", err)
	}
	room.Messages = messages

	return room, nil
}

// MergeRoom replaces the persisted state of a room with the given
// snapshot in a single transactional pipeline.
func (r Repo) MergeRoom(ctx context.Context, params *repository.MergeRoomParams) error {
	room := repository.Room{
		Name:          params.Name,
		CurrentSongId: params.CurrentSongId,
		Repeat:        params.Repeat,
	}

	messages := make([]interface{}, 0, len(params.Messages))
	for _, message := range params.Messages {
		b, err := json.Marshal(message)
		if err != nil {
			return fmt.Errorf("failed to marshal message: %w", err)
		}

		messages = append(messages, string(b))
	}

	pipe := r.cmd(ctx).TxPipeline()

	pipe.HSet(ctx, r.getRoomKey(params.RoomId), room)

	queueKey := r.getQueueKey(params.RoomId)
	pipe.Del(ctx, queueKey)
	if len(params.Queue) > 0 {
		pipe.RPush(ctx, queueKey, formatIds(params.Queue)...)
	}

	historyKey := r.getHistoryKey(params.RoomId)
	pipe.Del(ctx, historyKey)
	if len(params.History) > 0 {
		pipe.RPush(ctx, historyKey, formatIds(params.History)...)
	}

	messagesKey := r.getMessagesKey(params.RoomId)
	pipe.Del(ctx, messagesKey)
	if len(messages) > 0 {
		pipe.RPush(ctx, messagesKey, messages...)
	}

	pipe.SAdd(ctx, roomsIndexKey, strconv.FormatInt(params.RoomId, 10))

	_, err := pipe.Exec(ctx)
	return err
}

func (r Repo) ListRooms(ctx context.Context) ([]repository.Room, error) {
	values, err := r.cmd(ctx).SMembers(ctx, roomsIndexKey).Result()
	if err != nil {
		return nil, err
	}

	ids, err := parseIds(values)
	if err != nil {
		return nil, fmt.Errorf("failed to parse room ids: %w", err)
	}
	slices.Sort(ids)

	rooms := make([]repository.Room, 0, len(ids))
	for _, id := range ids {
		room, err := r.GetRoom(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to get room %d: %w", id, err)
		}

		rooms = append(rooms, room)
	}

	return rooms, nil
}

func (r Repo) getIdList(ctx context.Context, key string) ([]int64, error) {
	values, err := r.cmd(ctx).LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	return parseIds(values)
}

func (r Repo) getMessages(ctx context.Context, roomId int64) ([]repository.ChatMessage, error) {
	values, err := r.cmd(ctx).LRange(ctx, r.getMessagesKey(roomId), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	messages := make([]repository.ChatMessage, 0, len(values))
	for _, v := range values {
		var message repository.ChatMessage
		if err := json.Unmarshal([]byte(v), &message); err != nil {
			return nil, fmt.Errorf("failed to unmarshal message: %w", err)
		}

		messages = append(messages, message)
	}

	return messages, nil
}
