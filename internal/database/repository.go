package database

import "errors"

var (
	// ErrNotFound is returned when a user or room does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique key (email, room name) is taken.
	ErrDuplicate = errors.New("already exists")
)

type ChatRepository interface {
	Ping() error
	CreateAccount(params CreateAccountParams) (User, error)
	GetAccountByEmail(email string) (User, error)
	ListAccounts() ([]User, error)
	CreateRoom(params CreateRoomParams) (Room, error)
	GetRoomByName(name string) (Room, error)
	ListRooms() ([]Room, error)
	AddJoinRequest(roomName, email string) error
	ApproveJoinRequest(roomName, email string) error
	IsMember(roomName, email string) (bool, error)
	DeleteRoom(name string) error
	CreateMessage(params CreateMessageParams) (Message, error)
	GetRoomMessages(roomName string) ([]Message, error)
	GetPrivateMessages(email, peer string) ([]Message, error)
}
