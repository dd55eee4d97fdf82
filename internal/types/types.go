package types

import (
	"time"
)

const (
	MessageTypeText     = "text"
	MessageTypeLocation = "location"
)

// Location is the structured payload carried by a location message. Latitude
// and longitude are preserved to full float64 precision through storage.
type Location struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Address    string    `json:"address,omitempty"`
	Accuracy   float64   `json:"accuracy,omitempty"`
	CapturedAt time.Time `json:"capturedAt,omitempty"`
}

// Message is the normalized wire shape shared by the history API and the
// live channel. LocationData is nil for anything but location messages.
type Message struct {
	Id           int       `json:"id"`
	SenderId     int       `json:"senderId"`
	ReceiverId   int       `json:"receiverId"`
	Content      string    `json:"message"`
	MessageType  string    `json:"messageType"`
	LocationData *Location `json:"locationData,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	IsRead       bool      `json:"isRead"`
}
