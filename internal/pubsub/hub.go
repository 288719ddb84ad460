// Package pubsub is the real-time delivery layer. Messages are broadcast to
// subscribers keyed by topic, where a topic is either a room name or a user
// email. The HTTP handlers publish into the same hub, so polling and push
// share one message-store core.
package pubsub

import (
	"context"
	"log"

	"github.com/roomchat/roomchat/internal/database"
	"github.com/roomchat/roomchat/internal/stats"
	"github.com/roomchat/roomchat/internal/types"
)

type subscription struct {
	topic  string
	client *Client
	msgId  int
	ack    bool
}

type broadcast struct {
	topic string
	msg   *ServerMessage
}

type Hub struct {
	log            *log.Logger
	db             database.ChatRepository
	stats          stats.StatsProvider
	topics         map[string]map[*Client]struct{}
	clients        map[*Client]struct{}
	registerChan   chan *Client
	deregisterChan chan *Client
	joinChan       chan subscription
	leaveChan      chan subscription
	broadcastChan  chan broadcast
	stop           chan struct{}
	done           chan struct{}
}

func NewHub(logger *log.Logger, db database.ChatRepository, sp stats.StatsProvider) *Hub {
	return &Hub{
		log:            logger,
		db:             db,
		stats:          sp,
		topics:         make(map[string]map[*Client]struct{}),
		clients:        make(map[*Client]struct{}),
		registerChan:   make(chan *Client),
		deregisterChan: make(chan *Client),
		joinChan:       make(chan subscription, 256),
		leaveChan:      make(chan subscription, 256),
		broadcastChan:  make(chan broadcast, 256),
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}
}

// Run owns the topic and client maps. All mutation happens on this goroutine.
func (h *Hub) Run() {
	for {
		select {
		case c := <-h.registerChan:
			h.log.Printf("adding connection from %q", c.user.Email)
			h.clients[c] = struct{}{}
			// every client receives its own private-message topic
			h.subscribe(c.user.Email, c)
			h.stats.Incr(stats.ActiveConnections)
		case c := <-h.deregisterChan:
			h.log.Printf("removing connection from %q", c.user.Email)
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				h.dropClient(c)
				h.stats.Decr(stats.ActiveConnections)
			}
		case sub := <-h.joinChan:
			h.subscribe(sub.topic, sub.client)
			if sub.ack {
				sub.client.queueMessage(NoErrOK(sub.msgId))
			}
		case sub := <-h.leaveChan:
			h.unsubscribe(sub.topic, sub.client)
			if sub.ack {
				sub.client.queueMessage(NoErrOK(sub.msgId))
			}
		case b := <-h.broadcastChan:
			for c := range h.topics[b.topic] {
				c.queueMessage(b.msg)
			}
		case <-h.stop:
			h.log.Println("closing client connections")
			for c := range h.clients {
				c.stopClient()
			}

			close(h.done)
			return
		}
	}
}

func (h *Hub) subscribe(topic string, c *Client) {
	subs, ok := h.topics[topic]
	if !ok {
		subs = make(map[*Client]struct{})
		h.topics[topic] = subs
	}
	subs[c] = struct{}{}
}

func (h *Hub) unsubscribe(topic string, c *Client) {
	if subs, ok := h.topics[topic]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.topics, topic)
		}
	}
}

func (h *Hub) dropClient(c *Client) {
	for topic := range h.topics {
		h.unsubscribe(topic, c)
	}
}

// Publish broadcasts a persisted message to every subscriber of its receiver
// topic. Callers persist first; the hub only fans out.
func (h *Hub) Publish(msg *types.Message) {
	h.stats.Incr(stats.MessagesPublished)
	h.send(broadcast{
		topic: msg.Receiver,
		msg: &ServerMessage{
			BaseMessage: BaseMessage{Timestamp: msg.Timestamp},
			Message:     msg,
		},
	})
}

// NotifyRoomDeleted tells room subscribers the room is gone and drops the
// topic on the next broadcast cycle.
func (h *Hub) NotifyRoomDeleted(room string) {
	h.send(broadcast{
		topic: room,
		msg: &ServerMessage{
			BaseMessage:  BaseMessage{Timestamp: Now()},
			Notification: &Notification{RoomDeleted: &RoomDeleted{Room: room}},
		},
	})
}

func (h *Hub) send(b broadcast) {
	select {
	case h.broadcastChan <- b:
	default:
		h.log.Printf("broadcast channel full, dropping message for topic %q", b.topic)
	}
}

func (h *Hub) Register(c *Client) {
	h.registerChan <- c
}

func (h *Hub) Shutdown(ctx context.Context) error {
	close(h.stop)

	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
