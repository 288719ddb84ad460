package database

import "time"

type User struct {
	Id           int
	Name         string
	Email        string
	PasswordHash string
	Avatar       string
	CreatedAt    time.Time
}

type Room struct {
	Id           int
	Name         string
	Creator      string
	Members      []string
	JoinRequests []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Message struct {
	Id          int
	SenderEmail string
	SenderName  string
	Receiver    string
	Content     string
	FilePath    string
	IsRoom      bool
	CreatedAt   time.Time
}

type CreateAccountParams struct {
	Name         string
	Email        string
	PasswordHash string
	Avatar       string
}

type CreateRoomParams struct {
	Name    string
	Creator string
}

type CreateMessageParams struct {
	SenderEmail string
	SenderName  string
	Receiver    string
	Content     string
	FilePath    string
	IsRoom      bool
}
