package store

import "time"

type User struct {
	Id        string
	FirstName string
	LastName  string
	Email     string
	CreatedAt time.Time
}

type Group struct {
	Id        string
	Name      string
	CreatedAt time.Time
}

type Message struct {
	Id        int
	GroupId   string
	SenderId  string
	Content   string
	FirstName string
	LastName  string
	CreatedAt time.Time
}

type CreateMessageParams struct {
	GroupId   string
	SenderId  string
	Content   string
	CreatedAt time.Time
}
