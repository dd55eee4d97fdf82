package database

// ChatRepository is the durable message store behind the chat server and the
// history API. Implementations must assign ids atomically with insertion so
// (created_at, id) is a total order per conversation.
type ChatRepository interface {
	Ping() error
	CreateMessage(params CreateMessageParams) (Message, error)
	GetConversation(userA, userB int) ([]Message, error)
	GetLocationMessages(userA, userB, limit int) ([]Message, error)
	MarkConversationRead(recipientId, counterpartId int) (int, error)
	UnreadCount(recipientId int) (int, error)
}
