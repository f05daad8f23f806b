package redis

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const (
	roomPrefix     = "room"
	songPrefix     = "song"
	roomsIndexKey  = "rooms"
	songCatalogKey = "songs:catalog"
)

type Repo struct {
	rc *redis.Client
}

func NewRepo(rc *redis.Client) *Repo {
	return &Repo{rc: rc}
}

type connKey struct{}

// WithConn returns a context carrying a dedicated connection. Repository
// calls made with that context run on the connection instead of the
// shared pool; the scheduler uses this to scope a task's repository
// traffic to one acquired resource.
func WithConn(ctx context.Context, conn *redis.Conn) context.Context {
	return context.WithValue(ctx, connKey{}, conn)
}

func (r Repo) cmd(ctx context.Context) redis.Cmdable {
	if conn, ok := ctx.Value(connKey{}).(*redis.Conn); ok {
		return conn
	}

	return r.rc
}

func (r Repo) getRoomKey(roomId int64) string {
	return roomPrefix + ":" + strconv.FormatInt(roomId, 10)
}

func (r Repo) getQueueKey(roomId int64) string {
	return r.getRoomKey(roomId) + ":" + "queue"
}

func (r Repo) getHistoryKey(roomId int64) string {
	return r.getRoomKey(roomId) + ":" + "history"
}

func (r Repo) getMessagesKey(roomId int64) string {
	return r.getRoomKey(roomId) + ":" + "messages"
}

func (r Repo) getSongKey(songId int64) string {
	return songPrefix + ":" + strconv.FormatInt(songId, 10)
}

func parseIds(values []string) ([]int64, error) {
	ids := make([]int64, 0, len(values))
	for _, v := range values {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, err
		}

		ids = append(ids, id)
	}

	return ids, nil
}

func formatIds(ids []int64) []interface{} {
	values := make([]interface{}, 0, len(ids))
	for _, id := range ids {
		values = append(values, strconv.FormatInt(id, 10))
	}

	return values
}
