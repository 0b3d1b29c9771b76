package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"slices"

	"github.com/gorilla/websocket"
	"github.com/samber/lo"

	"github.com/mharkness/go-chatrelay/internal/relay"
	"github.com/mharkness/go-chatrelay/internal/store"
	"github.com/mharkness/go-chatrelay/internal/types"
)

func (s *RelayApp) writeJson(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Println("write json:", err)
	}
}

func (s *RelayApp) health(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(); err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, map[string]string{"status": "ok"})
}

// getMessages serves a group's backlog over plain HTTP, same read as the
// websocket join path.
func (s *RelayApp) getMessages(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	groupId := r.URL.Query().Get("group_id")
	if groupId == "" {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if !s.db.IsMember(userId, groupId) {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	messages, err := s.db.ListMessages(groupId)
	if err != nil {
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, lo.Map(messages, func(m store.Message, _ int) types.ChatMessage {
		return types.ChatMessage{
			Id:        m.Id,
			GroupId:   m.GroupId,
			SenderId:  m.SenderId,
			Content:   m.Content,
			FirstName: m.FirstName,
			LastName:  m.LastName,
			CreatedAt: m.CreatedAt,
		}
	}))
}

func (s *RelayApp) serveWs(w http.ResponseWriter, r *http.Request) {
	id, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	user, err := s.db.GetUser(id)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			// only allow connections from allowed origins
			origin := r.Header.Get("Origin")
			if origin == "" {
				// if no origin header, allow the request
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

	client := relay.NewClient(types.User{
		Id:        user.Id,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	}, conn, s.rs, s.log)

	if err := s.rs.Register(client); err != nil {
		s.log.Println("error registering client:", err)
		conn.Close()
		return
	}

	go client.Write()
	go client.Read()
}
