package types

import (
	"time"
)

type User struct {
	Id        string    `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

type Group struct {
	Id        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// ChatMessage is a persisted message with sender display data joined in.
type ChatMessage struct {
	Id        int       `json:"id"`
	GroupId   string    `json:"group_id"`
	SenderId  string    `json:"sender_id"`
	Content   string    `json:"content"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	CreatedAt time.Time `json:"created_at"`
}

// Envelope is the transient payload carried across the fan-out bus and the
// durable log. It has no storage id: one is assigned at persistence time.
type Envelope struct {
	Id        string    `json:"id"`
	GroupId   string    `json:"group_id" validate:"required"`
	SenderId  string    `json:"sender_id" validate:"required"`
	Content   string    `json:"content" validate:"required"`
	CreatedAt time.Time `json:"created_at"`
}
