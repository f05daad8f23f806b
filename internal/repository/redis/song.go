package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/jamroom/server/internal/repository"
)

func (r Repo) CreateSong(ctx context.Context, params *repository.CreateSongParams) error {
	song := repository.Song{
		Title:           params.Title,
		Artist:          params.Artist,
		DurationSeconds: params.DurationSeconds,
	}

	pipe := r.cmd(ctx).TxPipeline()

	pipe.HSet(ctx, r.getSongKey(params.SongId), song)
	pipe.ZAdd(ctx, songCatalogKey, redis.Z{
		Score:  float64(params.SongId),
		Member: strconv.FormatInt(params.SongId, 10),
	})

	_, err := pipe.Exec(ctx)
	return err
}

func (r Repo) GetSong(ctx context.Context, songId int64) (repository.Song, error) {
	cmd := r.cmd(ctx).HGetAll(ctx, r.getSongKey(songId))
	if err := cmd.Err(); err != nil {
		return repository.Song{}, err
	}
	if len(cmd.Val()) == 0 {
		return repository.Song{}, repository.ErrSongNotFound
	}

	song := repository.Song{Id: songId}
	if err := cmd.Scan(&song); err != nil {
		return repository.Song{}, err
	}

	return song, nil
}

// GetSongCandidates returns catalog songs eligible to refill a room's
// queue, skipping the excluded ids. The result may be empty.
func (r Repo) GetSongCandidates(ctx context.Context, params *repository.GetSongCandidatesParams) ([]repository.Song, error) {
	values, err := r.cmd(ctx).ZRange(ctx, songCatalogKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	ids, err := parseIds(values)
	if err != nil {
		return nil, fmt.Errorf("failed to parse song ids: %w", err)
	}

	excluded := make(map[int64]struct{}, len(params.ExcludeSongIds))
	for _, id := range params.ExcludeSongIds {
		excluded[id] = struct{}{}
	}

	songs := make([]repository.Song, 0, len(ids))
	for _, id := range ids {
		if _, ok := excluded[id]; ok {
			continue
		}

		song, err := r.GetSong(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to get song %d: %w", id, err)
		}

		songs = append(songs, song)
		if params.Limit > 0 && len(songs) >= params.Limit {
			break
		}
	}

	return songs, nil
}
