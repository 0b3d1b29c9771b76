package relay

import (
	"net/http"
	"time"

	"github.com/mharkness/go-chatrelay/internal/types"
)

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ClientMessage struct {
	BaseMessage
	JoinGroup   *JoinGroup   `json:"join_group,omitempty"`
	LeaveGroup  *LeaveGroup  `json:"leave_group,omitempty"`
	SendMessage *SendMessage `json:"send_message,omitempty"`
	client      *Client      `json:"-"`
}

type JoinGroup struct {
	GroupId string `json:"group_id"`
}

type LeaveGroup struct {
	GroupId string `json:"group_id"`
}

type SendMessage struct {
	GroupId string `json:"group_id"`
	Content string `json:"content"`
}

type ServerMessage struct {
	BaseMessage
	Response         *Response         `json:"response,omitempty"`
	NewMessage       *NewMessage       `json:"new_message,omitempty"`
	PreviousMessages *PreviousMessages `json:"previous_messages,omitempty"`
}

// PreviousMessages is unicast to a joining connection only, never
// broadcast. An empty backlog is still sent so the client can render the
// group as loaded.
type PreviousMessages struct {
	GroupId  string              `json:"group_id"`
	Messages []types.ChatMessage `json:"messages"`
}

// NewMessage is the live broadcast payload. It carries the envelope, not
// the persisted row: a storage id may not exist yet.
type NewMessage struct {
	Id        string    `json:"id"`
	GroupId   string    `json:"group_id"`
	SenderId  string    `json:"sender_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type Response struct {
	ResponseCode int    `json:"response_code"`
	Error        string `json:"error,omitempty"`
}

func NoErrOK(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusOK,
		},
	}
}

func NoErrAccepted(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusAccepted,
		},
	}
}

func ErrGroupNotFound(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusNotFound,
			Error:        "group not found",
		},
	}
}

func ErrNotMember(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusForbidden,
			Error:        "not a member of this group",
		},
	}
}

func ErrInternalError(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusInternalServerError,
			Error:        "internal server error",
		},
	}
}

func ErrServiceUnavailable(id int) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusServiceUnavailable,
			Error:        "service unavailable",
		},
	}
}

func ErrInvalidMessage(id int) *ServerMessage {
	msg := &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusBadRequest,
			Error:        "invalid message format",
		},
	}

	if id > 0 {
		msg.Id = id
	}
	return msg
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
