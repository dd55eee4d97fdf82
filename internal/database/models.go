package database

import (
	"time"

	"github.com/fixfusion/chat-server/internal/types"
)

// Message is a stored conversation message. Location is non-nil only for
// messages of type "location".
type Message struct {
	Id         int
	SenderId   int
	ReceiverId int
	Content    string
	Type       string
	Location   *types.Location
	CreatedAt  time.Time
	IsRead     bool
}

// Normalized returns the wire representation of the stored message.
func (m Message) Normalized() types.Message {
	return types.Message{
		Id:           m.Id,
		SenderId:     m.SenderId,
		ReceiverId:   m.ReceiverId,
		Content:      m.Content,
		MessageType:  m.Type,
		LocationData: m.Location,
		Timestamp:    m.CreatedAt,
		IsRead:       m.IsRead,
	}
}

type CreateMessageParams struct {
	SenderId   int
	ReceiverId int
	Content    string
	Type       string
	Location   *types.Location
}
