package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/fixfusion/chat-server/internal/api"
	"github.com/fixfusion/chat-server/internal/types"
)

// Synchronous history/read calls, decoupled from the live channel so a
// client can act on read state without a connection.

func (s *Session) fetchHistory(ctx context.Context) ([]types.Message, error) {
	path := "/api/messages/" + strconv.Itoa(s.cfg.UserId) + "/" + strconv.Itoa(s.cfg.PeerId)

	var history []types.Message
	if err := s.doJson(ctx, http.MethodGet, path, nil, &history); err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}

	return history, nil
}

// LocationHistory returns the counterpart pair's most recent location
// shares, newest first.
func (s *Session) LocationHistory(ctx context.Context) ([]types.Message, error) {
	path := "/api/locations/" + strconv.Itoa(s.cfg.UserId) + "/" + strconv.Itoa(s.cfg.PeerId)

	var locations []types.Message
	if err := s.doJson(ctx, http.MethodGet, path, nil, &locations); err != nil {
		return nil, fmt.Errorf("fetch location history: %w", err)
	}

	return locations, nil
}

// MarkRead flips every unread message from the peer to read and reports how
// many changed. Idempotent.
func (s *Session) MarkRead(ctx context.Context) (int, error) {
	req := api.MarkReadRequest{
		UserId:       s.cfg.UserId,
		TechnicianId: s.cfg.PeerId,
	}

	var resp api.MarkReadResponse
	if err := s.doJson(ctx, http.MethodPut, "/api/messages/read", req, &resp); err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}

	return resp.UpdatedCount, nil
}

// Unread returns the session user's unread count across all counterparts.
func (s *Session) Unread(ctx context.Context) (int, error) {
	path := "/api/messages/unread/" + strconv.Itoa(s.cfg.UserId)

	var resp api.UnreadCountResponse
	if err := s.doJson(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return 0, fmt.Errorf("unread count: %w", err)
	}

	return resp.UnreadCount, nil
}

func (s *Session) doJson(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.cfg.ServerURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.Token)
	}

	resp, err := s.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
