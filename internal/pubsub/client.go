package pubsub

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
	"github.com/roomchat/roomchat/internal/database"
	"github.com/roomchat/roomchat/internal/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 4096
)

type Client struct {
	conn *websocket.Conn
	hub  *Hub
	log  *log.Logger
	user types.User
	send chan *ServerMessage
	stop chan struct{}
}

func NewClient(user types.User, conn *websocket.Conn, hub *Hub, l *log.Logger) *Client {
	return &Client{
		conn: conn,
		hub:  hub,
		log:  l,
		user: user,
		send: make(chan *ServerMessage, 256),
		stop: make(chan struct{}),
	}
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := json.Marshal(msg)
			if err != nil {
				c.log.Println("failed to serialize message:", err)
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.hub.deregisterChan <- c
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Println("error parsing message:", err)
			c.queueMessage(ErrInvalidMessage(-1))
			continue
		}

		msg.client = c
		msg.Timestamp = Now()

		switch {
		case msg.Join != nil:
			c.handleJoin(&msg)
		case msg.Leave != nil:
			c.handleLeave(&msg)
		case msg.Publish != nil:
			c.handlePublish(&msg)
		default:
			c.queueMessage(ErrInvalidMessage(msg.Id))
		}
	}
}

// handleJoin subscribes the client to a topic. Room topics require
// membership; the client's own email topic is joined at registration.
func (c *Client) handleJoin(msg *ClientMessage) {
	topic := msg.Join.Topic
	if topic != c.user.Email {
		ok, err := c.hub.db.IsMember(topic, c.user.Email)
		if err != nil {
			c.log.Println("membership check:", err)
			c.queueMessage(ErrInternalError(msg.Id))
			return
		}
		if !ok {
			c.queueMessage(ErrNotAMember(msg.Id))
			return
		}
	}

	select {
	case c.hub.joinChan <- subscription{topic: topic, client: c, msgId: msg.Id, ack: true}:
	default:
		c.queueMessage(ErrServiceUnavailable(msg.Id))
	}
}

func (c *Client) handleLeave(msg *ClientMessage) {
	select {
	case c.hub.leaveChan <- subscription{topic: msg.Leave.Topic, client: c, msgId: msg.Id, ack: true}:
	default:
		c.queueMessage(ErrServiceUnavailable(msg.Id))
	}
}

// handlePublish mirrors the HTTP send path: persist through the shared
// repository, then fan out to the receiver topic.
func (c *Client) handlePublish(msg *ClientMessage) {
	pub := msg.Publish
	if pub.Receiver == "" || (pub.Content == "" && pub.File == "") {
		c.queueMessage(ErrInvalidMessage(msg.Id))
		return
	}

	if pub.IsRoom {
		// a missing room and a non-membership look the same here: no row
		ok, err := c.hub.db.IsMember(pub.Receiver, c.user.Email)
		if err != nil {
			c.log.Println("membership check:", err)
			c.queueMessage(ErrInternalError(msg.Id))
			return
		}
		if !ok {
			c.queueMessage(ErrNotAMember(msg.Id))
			return
		}
	}

	saved, err := c.hub.db.CreateMessage(database.CreateMessageParams{
		SenderEmail: c.user.Email,
		SenderName:  c.user.Name,
		Receiver:    pub.Receiver,
		Content:     pub.Content,
		FilePath:    pub.File,
		IsRoom:      pub.IsRoom,
	})
	if err != nil {
		c.log.Println("create message:", err)
		c.queueMessage(ErrInternalError(msg.Id))
		return
	}

	c.queueMessage(NoErrOK(msg.Id))
	c.hub.Publish(&types.Message{
		Id:          saved.Id,
		SenderEmail: saved.SenderEmail,
		SenderName:  saved.SenderName,
		Receiver:    saved.Receiver,
		Content:     saved.Content,
		File:        saved.FilePath,
		IsRoom:      saved.IsRoom,
		Timestamp:   saved.CreatedAt,
	})
}

func (c *Client) queueMessage(msg *ServerMessage) bool {
	select {
	case c.send <- msg:
	default:
		c.log.Println("failed to send message to client, channel is full")
		return false
	}

	return true
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

func (c *Client) stopClient() {
	close(c.stop)
}
