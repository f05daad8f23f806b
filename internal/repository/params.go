package repository

type CreateRoomParams struct {
	RoomId        int64
	Name          string
	CurrentSongId int64
	Repeat        bool
	Queue         []int64
}

type MergeRoomParams struct {
	RoomId        int64
	Name          string
	CurrentSongId int64
	Repeat        bool
	Queue         []int64
	History       []int64
	Messages      []ChatMessage
}

type CreateSongParams struct {
	SongId          int64
	Title           string
	Artist          string
	DurationSeconds int
}

type GetSongCandidatesParams struct {
	RoomId         int64
	ExcludeSongIds []int64
	Limit          int
}
