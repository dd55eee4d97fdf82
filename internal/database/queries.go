package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fixfusion/chat-server/internal/types"
)

const (
	createMessageQuery = "INSERT INTO messages (sender_id, receiver_id, message, type, location_data, created_at, is_read) " +
		"VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, created_at"
	getConversationQuery = "SELECT id, sender_id, receiver_id, message, type, location_data, created_at, is_read FROM messages " +
		"WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1) " +
		"ORDER BY created_at ASC, id ASC"
	getLocationMessagesQuery = "SELECT id, sender_id, receiver_id, message, type, location_data, created_at, is_read FROM messages " +
		"WHERE ((sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)) " +
		"AND type = 'location' AND location_data IS NOT NULL " +
		"ORDER BY created_at DESC, id DESC LIMIT $3"
	markConversationReadQuery = "UPDATE messages SET is_read = true " +
		"WHERE receiver_id = $1 AND sender_id = $2 AND is_read = false"
	unreadCountQuery = "SELECT COUNT(*) FROM messages WHERE receiver_id = $1 AND is_read = false"
)

// CreateMessage validates and persists a message, assigning its id and
// timestamp at insertion time. Messages are never broadcast before this
// returns successfully.
func (db *PgChatRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	if params.Type == "" {
		params.Type = types.MessageTypeText
	}

	var locData sql.NullString
	if params.Type == types.MessageTypeLocation {
		if err := validateLocation(params.Location); err != nil {
			return Message{}, err
		}

		raw, err := json.Marshal(params.Location)
		if err != nil {
			return Message{}, fmt.Errorf("serialize location data: %w", err)
		}
		locData = sql.NullString{String: string(raw), Valid: true}
	} else if params.Location != nil {
		return Message{}, &ValidationError{Field: "locationData", Reason: "only valid for location messages"}
	}

	msg := Message{
		SenderId:   params.SenderId,
		ReceiverId: params.ReceiverId,
		Content:    params.Content,
		Type:       params.Type,
		Location:   params.Location,
		IsRead:     false,
	}

	row := db.conn.QueryRow(
		createMessageQuery,
		params.SenderId,
		params.ReceiverId,
		params.Content,
		params.Type,
		locData,
		time.Now().UTC(),
		false,
	)

	if err := row.Scan(&msg.Id, &msg.CreatedAt); err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}

	return msg, nil
}

// GetConversation returns every message exchanged between the two users, in
// either direction, oldest first. An unknown pair yields an empty slice.
func (db *PgChatRepository) GetConversation(userA, userB int) ([]Message, error) {
	rows, err := db.conn.Query(getConversationQuery, userA, userB)
	if err != nil {
		return nil, fmt.Errorf("query conversation: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// GetLocationMessages returns the most recent location messages for the
// pair, newest first, capped at limit.
func (db *PgChatRepository) GetLocationMessages(userA, userB, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = DefaultLocationHistoryLimit
	}

	rows, err := db.conn.Query(getLocationMessagesQuery, userA, userB, limit)
	if err != nil {
		return nil, fmt.Errorf("query location messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// DefaultLocationHistoryLimit caps the location-only history used for
// map/trail rendering.
const DefaultLocationHistoryLimit = 20

// MarkConversationRead flips is_read on every unread message sent by
// counterpartId to recipientId and reports how many rows changed. Calling it
// again immediately returns zero.
func (db *PgChatRepository) MarkConversationRead(recipientId, counterpartId int) (int, error) {
	res, err := db.conn.Exec(markConversationReadQuery, recipientId, counterpartId)
	if err != nil {
		return 0, fmt.Errorf("mark conversation read: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	return int(n), nil
}

// UnreadCount counts unread messages for the recipient across all
// counterparts.
func (db *PgChatRepository) UnreadCount(recipientId int) (int, error) {
	var count int
	err := db.conn.QueryRow(unreadCountQuery, recipientId).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("query unread count: %w", err)
	}

	return count, nil
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	var messages []Message
	for rows.Next() {
		var (
			m       Message
			locData sql.NullString
		)

		err := rows.Scan(
			&m.Id,
			&m.SenderId,
			&m.ReceiverId,
			&m.Content,
			&m.Type,
			&locData,
			&m.CreatedAt,
			&m.IsRead,
		)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}

		if locData.Valid {
			var loc types.Location
			if err := json.Unmarshal([]byte(locData.String), &loc); err != nil {
				return nil, fmt.Errorf("parse location data: %w", err)
			}
			m.Location = &loc
		}

		messages = append(messages, m)
	}

	return messages, rows.Err()
}
