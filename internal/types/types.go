package types

import (
	"time"
)

type User struct {
	Id        int       `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	Avatar    string    `json:"avatar,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

type Room struct {
	Id           int       `json:"id"`
	Name         string    `json:"name"`
	Creator      string    `json:"creator"`
	Members      []string  `json:"members"`
	JoinRequests []string  `json:"join_requests"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

type Message struct {
	Id          int       `json:"id"`
	SenderEmail string    `json:"sender_email"`
	SenderName  string    `json:"sender_name"`
	Receiver    string    `json:"receiver"`
	Content     string    `json:"content"`
	File        string    `json:"file,omitempty"`
	IsRoom      bool      `json:"is_room"`
	Timestamp   time.Time `json:"timestamp"`
}
