package database

import (
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
)

const uniqueViolation = "23505"

func isDuplicateKey(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func (db *PgChatRepository) CreateAccount(params CreateAccountParams) (User, error) {
	res := db.conn.QueryRow(
		"INSERT INTO users (name, email, password_hash, avatar, created_at) "+
			"VALUES ($1, $2, $3, $4, $5) RETURNING id, name, email, avatar, created_at",
		params.Name,
		params.Email,
		params.PasswordHash,
		params.Avatar,
		time.Now().UTC(),
	)

	var u User
	err := res.Scan(
		&u.Id,
		&u.Name,
		&u.Email,
		&u.Avatar,
		&u.CreatedAt,
	)
	if isDuplicateKey(err) {
		return User{}, ErrDuplicate
	}

	return u, err
}

func (db *PgChatRepository) GetAccountByEmail(email string) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, name, email, password_hash, avatar, created_at FROM users "+
			"WHERE email = $1 LIMIT 1",
		email,
	)

	var u User
	err := row.Scan(
		&u.Id,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&u.Avatar,
		&u.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}

	return u, err
}

func (db *PgChatRepository) ListAccounts() ([]User, error) {
	rows, err := db.conn.Query(
		"SELECT id, name, email, avatar, created_at FROM users ORDER BY id",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.Id, &u.Name, &u.Email, &u.Avatar, &u.CreatedAt); err != nil {
			return nil, err
		}

		users = append(users, u)
	}

	return users, rows.Err()
}

func (db *PgChatRepository) CreateRoom(params CreateRoomParams) (Room, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return Room{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res := tx.QueryRow(
		"INSERT INTO rooms (name, creator_email, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $3) RETURNING id, name, creator_email, created_at, updated_at",
		params.Name,
		params.Creator,
		time.Now().UTC(),
	)

	var room Room
	err = res.Scan(
		&room.Id,
		&room.Name,
		&room.Creator,
		&room.CreatedAt,
		&room.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return Room{}, ErrDuplicate
		}
		return Room{}, err
	}

	// the creator is a member from the start
	_, err = tx.Exec(
		"INSERT INTO room_members (room_id, email, pending, created_at) VALUES ($1, $2, FALSE, $3)",
		room.Id,
		params.Creator,
		time.Now().UTC(),
	)
	if err != nil {
		return Room{}, err
	}

	if err = tx.Commit(); err != nil {
		return Room{}, err
	}

	room.Members = []string{params.Creator}
	room.JoinRequests = []string{}

	return room, nil
}

func (db *PgChatRepository) GetRoomByName(name string) (Room, error) {
	rows, err := db.conn.Query(
		"SELECT r.id, r.name, r.creator_email, r.created_at, r.updated_at, m.email, m.pending "+
			"FROM rooms r LEFT JOIN room_members m ON r.id = m.room_id "+
			"WHERE r.name = $1",
		name,
	)
	if err != nil {
		return Room{}, err
	}
	defer rows.Close()

	var room *Room
	for rows.Next() {
		var r Room
		var email sql.NullString
		var pending sql.NullBool

		if err := rows.Scan(&r.Id, &r.Name, &r.Creator, &r.CreatedAt, &r.UpdatedAt, &email, &pending); err != nil {
			return Room{}, err
		}

		if room == nil {
			r.Members = []string{}
			r.JoinRequests = []string{}
			room = &r
		}

		if email.Valid {
			if pending.Bool {
				room.JoinRequests = append(room.JoinRequests, email.String)
			} else {
				room.Members = append(room.Members, email.String)
			}
		}
	}

	if err := rows.Err(); err != nil {
		return Room{}, err
	}

	if room == nil {
		return Room{}, ErrNotFound
	}

	return *room, nil
}

func (db *PgChatRepository) ListRooms() ([]Room, error) {
	rows, err := db.conn.Query(
		"SELECT r.id, r.name, r.creator_email, r.created_at, r.updated_at, m.email, m.pending "+
			"FROM rooms r LEFT JOIN room_members m ON r.id = m.room_id ORDER BY r.id",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []Room
	index := make(map[int]int)
	for rows.Next() {
		var r Room
		var email sql.NullString
		var pending sql.NullBool

		if err := rows.Scan(&r.Id, &r.Name, &r.Creator, &r.CreatedAt, &r.UpdatedAt, &email, &pending); err != nil {
			return nil, err
		}

		i, ok := index[r.Id]
		if !ok {
			r.Members = []string{}
			r.JoinRequests = []string{}
			rooms = append(rooms, r)
			i = len(rooms) - 1
			index[r.Id] = i
		}

		if email.Valid {
			if pending.Bool {
				rooms[i].JoinRequests = append(rooms[i].JoinRequests, email.String)
			} else {
				rooms[i].Members = append(rooms[i].Members, email.String)
			}
		}
	}

	return rooms, rows.Err()
}

func (db *PgChatRepository) roomIdByName(name string) (int, error) {
	row := db.conn.QueryRow("SELECT id FROM rooms WHERE name = $1 LIMIT 1", name)

	var id int
	err := row.Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}

	return id, err
}

// AddJoinRequest records a pending join request. The conditional insert makes
// it idempotent and a no-op when the email is already a member or already
// pending, so the member and request sets stay disjoint without a
// read-modify-write cycle.
func (db *PgChatRepository) AddJoinRequest(roomName, email string) error {
	roomId, err := db.roomIdByName(roomName)
	if err != nil {
		return err
	}

	_, err = db.conn.Exec(
		"INSERT INTO room_members (room_id, email, pending, created_at) VALUES ($1, $2, TRUE, $3) "+
			"ON CONFLICT (room_id, email) DO NOTHING",
		roomId,
		email,
		time.Now().UTC(),
	)

	return err
}

// ApproveJoinRequest admits the email as a member and clears any pending
// request in a single atomic statement, so there is no window where the email
// is in both sets or in neither. Approving twice is a no-op.
func (db *PgChatRepository) ApproveJoinRequest(roomName, email string) error {
	roomId, err := db.roomIdByName(roomName)
	if err != nil {
		return err
	}

	_, err = db.conn.Exec(
		"INSERT INTO room_members (room_id, email, pending, created_at) VALUES ($1, $2, FALSE, $3) "+
			"ON CONFLICT (room_id, email) DO UPDATE SET pending = FALSE",
		roomId,
		email,
		time.Now().UTC(),
	)

	return err
}

func (db *PgChatRepository) IsMember(roomName, email string) (bool, error) {
	row := db.conn.QueryRow(
		"SELECT 1 FROM room_members m JOIN rooms r ON r.id = m.room_id "+
			"WHERE r.name = $1 AND m.email = $2 AND NOT m.pending LIMIT 1",
		roomName,
		email,
	)

	var one int
	err := row.Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}

	return err == nil, err
}

// DeleteRoom removes the room, its membership rows and all room-addressed
// messages in one transaction. Private messages are never cascade-deleted.
func (db *PgChatRepository) DeleteRoom(name string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	_, err = tx.Exec("DELETE FROM messages WHERE receiver = $1 AND is_room", name)
	if err != nil {
		return err
	}

	res, err := tx.Exec("DELETE FROM rooms WHERE name = $1", name)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		err = ErrNotFound
		return err
	}

	return tx.Commit()
}

func (db *PgChatRepository) CreateMessage(params CreateMessageParams) (Message, error) {
	res := db.conn.QueryRow(
		"INSERT INTO messages (sender_email, sender_name, receiver, content, file_path, is_room, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id, created_at",
		params.SenderEmail,
		params.SenderName,
		params.Receiver,
		params.Content,
		params.FilePath,
		params.IsRoom,
		time.Now().UTC(),
	)

	msg := Message{
		SenderEmail: params.SenderEmail,
		SenderName:  params.SenderName,
		Receiver:    params.Receiver,
		Content:     params.Content,
		FilePath:    params.FilePath,
		IsRoom:      params.IsRoom,
	}
	err := res.Scan(&msg.Id, &msg.CreatedAt)

	return msg, err
}

func (db *PgChatRepository) GetRoomMessages(roomName string) ([]Message, error) {
	rows, err := db.conn.Query(
		"SELECT id, sender_email, sender_name, receiver, content, file_path, is_room, created_at "+
			"FROM messages WHERE receiver = $1 AND is_room ORDER BY created_at, id",
		roomName,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMessages(rows)
}

// GetPrivateMessages returns the two-party conversation in both directions,
// so the result is the same whichever side asks.
func (db *PgChatRepository) GetPrivateMessages(email, peer string) ([]Message, error) {
	rows, err := db.conn.Query(
		"SELECT id, sender_email, sender_name, receiver, content, file_path, is_room, created_at "+
			"FROM messages WHERE NOT is_room AND "+
			"((sender_email = $1 AND receiver = $2) OR (sender_email = $2 AND receiver = $1)) "+
			"ORDER BY created_at, id",
		email,
		peer,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	var messages []Message
	for rows.Next() {
		var msg Message
		err := rows.Scan(
			&msg.Id,
			&msg.SenderEmail,
			&msg.SenderName,
			&msg.Receiver,
			&msg.Content,
			&msg.FilePath,
			&msg.IsRoom,
			&msg.CreatedAt,
		)
		if err != nil {
			return nil, err
		}

		messages = append(messages, msg)
	}

	return messages, rows.Err()
}
