package room

import "time"

type Message struct {
	Id       int64     `json:"id"`
	Username string    `json:"username"`
	Text     string    `json:"text"`
	SentAt   time.Time `json:"sent_at"`
}

type SendMessageParams struct {
	Username string
	Text     string
}

type QueueSongsParams struct {
	SongIds []int64
}

// Snapshot is a point-in-time view of a room's playback state.
type Snapshot struct {
	RoomId        int64   `json:"room_id"`
	Name          string  `json:"name"`
	CurrentSongId int64   `json:"current_song_id"`
	Elapsed       float64 `json:"elapsed_seconds"`
	Stopped       bool    `json:"stopped"`
	Repeat        bool    `json:"repeat"`
	Queue         []int64 `json:"queue"`
	History       []int64 `json:"history"`
}
