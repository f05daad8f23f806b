package repository

type Room struct {
	Id            int64  `redis:"-"`
	Name          string `redis:"name"`
	CurrentSongId int64  `redis:"current_song_id"`
	Repeat        bool   `redis:"repeat"`
	Queue         []int64       `redis:"-"`
	History       []int64       `redis:"-"`
	Messages      []ChatMessage `redis:"-"`
}

type Song struct {
	Id              int64  `redis:"-"`
	Title           string `redis:"title"`
	Artist          string `redis:"artist"`
	DurationSeconds int    `redis:"duration_seconds"`
}

// ChatMessage is the persisted form of a chat entry, stored as one JSON
// value per list element.
type ChatMessage struct {
	Id       int64  `json:"id"`
	Username string `json:"username"`
	Text     string `json:"text"`
	SentAt   int64  `json:"sent_at"`
}
