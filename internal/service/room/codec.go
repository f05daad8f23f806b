package room

import (
	"time"

	"github.com/jamroom/server/internal/repository"
)

// MessageCodec translates between the in-memory chat message and its
// persisted record.
type MessageCodec struct{}

func NewMessageCodec() MessageCodec {
	return MessageCodec{}
}

func (MessageCodec) ToRecord(msg Message) repository.ChatMessage {
	return repository.ChatMessage{
		Id:       msg.Id,
		Username: msg.Username,
		Text:     msg.Text,
		SentAt:   msg.SentAt.UnixMilli(),
	}
}

func (MessageCodec) FromRecord(record repository.ChatMessage) Message {
	return Message{
		Id:       record.Id,
		Username: record.Username,
		Text:     record.Text,
		SentAt:   time.UnixMilli(record.SentAt).UTC(),
	}
}
