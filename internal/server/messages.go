package server

import (
	"time"

	"github.com/fixfusion/chat-server/internal/types"
)

// ClientMessage is the envelope for every client-to-server event on the live
// channel. Exactly one event field is set per message.
type ClientMessage struct {
	Id     int          `json:"id,omitempty"`
	Join   *JoinRoom    `json:"joinRoom,omitempty"`
	Leave  *LeaveRoom   `json:"leaveRoom,omitempty"`
	Send   *SendMessage `json:"sendMessage,omitempty"`
	Typing *Typing      `json:"typing,omitempty"`
	client *Client
}

type JoinRoom struct {
	RoomId string `json:"roomId"`
}

type LeaveRoom struct {
	RoomId string `json:"roomId"`
}

type SendMessage struct {
	SenderId     int             `json:"senderId"`
	ReceiverId   int             `json:"receiverId"`
	Message      string          `json:"message"`
	MessageType  string          `json:"messageType,omitempty"`
	LocationData *types.Location `json:"locationData,omitempty"`
}

type Typing struct {
	SenderId   int  `json:"senderId"`
	ReceiverId int  `json:"receiverId"`
	IsTyping   bool `json:"isTyping"`
}

// ServerMessage is the envelope for server-to-client events. skipClient
// excludes a single connection from a room broadcast.
type ServerMessage struct {
	Timestamp  time.Time      `json:"timestamp"`
	RoomJoined *RoomJoined    `json:"roomJoined,omitempty"`
	Receive    *types.Message `json:"receiveMessage,omitempty"`
	Sent       *MessageSent   `json:"messageSent,omitempty"`
	Error      *MessageError  `json:"messageError,omitempty"`
	UserTyping *UserTyping    `json:"userTyping,omitempty"`
	skipClient *Client
}

type RoomJoined struct {
	RoomId  string `json:"roomId"`
	Message string `json:"message"`
}

type MessageSent struct {
	Success     bool   `json:"success"`
	MessageId   int    `json:"messageId"`
	MessageType string `json:"messageType"`
}

type MessageError struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type UserTyping struct {
	SenderId int  `json:"senderId"`
	IsTyping bool `json:"isTyping"`
}

func RoomJoinedMsg(roomId string) *ServerMessage {
	return &ServerMessage{
		Timestamp: Now(),
		RoomJoined: &RoomJoined{
			RoomId:  roomId,
			Message: "Successfully joined room",
		},
	}
}

func ReceiveMsg(msg types.Message) *ServerMessage {
	return &ServerMessage{
		Timestamp: Now(),
		Receive:   &msg,
	}
}

func MessageSentMsg(messageId int, messageType string) *ServerMessage {
	return &ServerMessage{
		Timestamp: Now(),
		Sent: &MessageSent{
			Success:     true,
			MessageId:   messageId,
			MessageType: messageType,
		},
	}
}

func UserTypingMsg(senderId int, isTyping bool, skip *Client) *ServerMessage {
	return &ServerMessage{
		Timestamp: Now(),
		UserTyping: &UserTyping{
			SenderId: senderId,
			IsTyping: isTyping,
		},
		skipClient: skip,
	}
}

func ErrMissingFields() *ServerMessage {
	return &ServerMessage{
		Timestamp: Now(),
		Error:     &MessageError{Error: "Missing required fields"},
	}
}

func ErrInvalidMessage(details string) *ServerMessage {
	return &ServerMessage{
		Timestamp: Now(),
		Error: &MessageError{
			Error:   "Invalid message",
			Details: details,
		},
	}
}

func ErrSaveFailed() *ServerMessage {
	return &ServerMessage{
		Timestamp: Now(),
		Error:     &MessageError{Error: "Failed to save message"},
	}
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
