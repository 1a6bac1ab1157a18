package handler

import (
	"net/http"

	"github.com/google/uuid"
)

// CreateChatRequest is the body of POST /chats. The caller is added to the
// group automatically and must not be listed.
type CreateChatRequest struct {
	Name    string      `json:"name"`
	UserIDs []uuid.UUID `json:"userIds"`
}

// SendMessageRequest is the body of POST /chats/{id}/messages.
type SendMessageRequest struct {
	Message string `json:"message"`
}

// OnlineMembersResponse is the body of GET /chats/{id}/online.
type OnlineMembersResponse struct {
	UserIDs []uuid.UUID `json:"userIds"`
}

// CreateChat handles POST /chats.
func (s *Server) CreateChat(w http.ResponseWriter, r *http.Request) {
	user, err := actor(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var body CreateChatRequest
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	g, err := s.Chats.CreateGroup(r.Context(), user, body.Name, body.UserIDs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

// SendMessage handles POST /chats/{id}/messages.
func (s *Server) SendMessage(w http.ResponseWriter, r *http.Request) {
	user, groupID, ok := s.actorAndID(w, r)
	if !ok {
		return
	}
	var body SendMessageRequest
	if err := decodeJSON(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	msg, err := s.Chats.Send(r.Context(), user, groupID, body.Message)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

// DeleteMessage handles DELETE /messages/{id}.
func (s *Server) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	user, id, ok := s.actorAndID(w, r)
	if !ok {
		return
	}
	if err := s.Chats.DeleteMessage(r.Context(), user, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListOnlineMembers handles GET /chats/{id}/online.
func (s *Server) ListOnlineMembers(w http.ResponseWriter, r *http.Request) {
	user, groupID, ok := s.actorAndID(w, r)
	if !ok {
		return
	}
	ids, err := s.Chats.OnlineMembers(r.Context(), user, groupID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if ids == nil {
		ids = []uuid.UUID{}
	}
	writeJSON(w, http.StatusOK, OnlineMembersResponse{UserIDs: ids})
}
