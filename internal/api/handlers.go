package api

import (
	"encoding/json"
	"net/http"
	"slices"
	"strconv"

	"github.com/fixfusion/chat-server/internal/database"
	"github.com/fixfusion/chat-server/internal/server"
	"github.com/fixfusion/chat-server/internal/types"
	"github.com/gorilla/websocket"
)

type MarkReadRequest struct {
	UserId       int `json:"userId"`
	TechnicianId int `json:"technicianId"`
}

type MarkReadResponse struct {
	Success      bool `json:"success"`
	UpdatedCount int  `json:"updatedCount"`
}

type UnreadCountResponse struct {
	UnreadCount int `json:"unreadCount"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

func (s *ChatApp) writeJson(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if v == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Printf("json encode: %v", err)
	}
}

// pairFromPath parses the two participant ids from the request path.
func pairFromPath(r *http.Request) (int, int, error) {
	userId, err := strconv.Atoi(r.PathValue("userId"))
	if err != nil {
		return 0, 0, err
	}

	technicianId, err := strconv.Atoi(r.PathValue("technicianId"))
	if err != nil {
		return 0, 0, err
	}

	return userId, technicianId, nil
}

// getMessages serves the full ordered history for a participant pair. An
// unknown pair yields an empty list, not an error: clients call this on
// every chat-view activation before trusting live events.
func (s *ChatApp) getMessages(w http.ResponseWriter, r *http.Request) {
	userId, technicianId, err := pairFromPath(r)
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbMessages, err := s.db.GetConversation(userId, technicianId)
	if err != nil {
		s.log.Println("get conversation:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	messages := make([]types.Message, 0, len(dbMessages))
	for _, msg := range dbMessages {
		messages = append(messages, msg.Normalized())
	}

	s.writeJson(w, http.StatusOK, messages)
}

// getLocations serves the most recent location shares for the pair, newest
// first, for map/trail rendering.
func (s *ChatApp) getLocations(w http.ResponseWriter, r *http.Request) {
	userId, technicianId, err := pairFromPath(r)
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	dbMessages, err := s.db.GetLocationMessages(userId, technicianId, database.DefaultLocationHistoryLimit)
	if err != nil {
		s.log.Println("get location messages:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	messages := make([]types.Message, 0, len(dbMessages))
	for _, msg := range dbMessages {
		messages = append(messages, msg.Normalized())
	}

	s.writeJson(w, http.StatusOK, messages)
}

func (s *ChatApp) markRead(w http.ResponseWriter, r *http.Request) {
	var req MarkReadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if req.UserId == 0 || req.TechnicianId == 0 {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	count, err := s.db.MarkConversationRead(req.UserId, req.TechnicianId)
	if err != nil {
		s.log.Println("mark conversation read:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, MarkReadResponse{
		Success:      true,
		UpdatedCount: count,
	})
}

func (s *ChatApp) unreadCount(w http.ResponseWriter, r *http.Request) {
	userId, err := strconv.Atoi(r.PathValue("userId"))
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	count, err := s.db.UnreadCount(userId)
	if err != nil {
		s.log.Println("unread count:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, UnreadCountResponse{UnreadCount: count})
}

func (s *ChatApp) health(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(); err != nil {
		s.log.Println("health check:", err)
		errResp := NewServiceUnavailableError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *ChatApp) serveWs(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				// native mobile clients send no origin header
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	client := server.NewClient(userId, conn, s.cs, s.log)

	s.cs.RegisterClient(client)
	go client.Write()
	go client.Read()
}
