package server

import (
	"context"
	"fmt"
	"log"

	"github.com/npezzotti/go-praat/internal/database"
	"github.com/npezzotti/go-praat/internal/stats"
	"github.com/npezzotti/go-praat/internal/types"
)

type subscriptionReq struct {
	msgId     int
	channelId int
	client    *Client
}

type stopReq struct {
	done chan struct{}
}

// ChatServer fans out newly posted messages to the sockets subscribed to
// their channel. All of its maps are owned by the Run goroutine.
type ChatServer struct {
	log             *log.Logger
	db              database.PraatRepository
	stats           stats.StatsProvider
	clients         map[*Client]struct{}
	rooms           map[int]*Room
	registerChan    chan *Client
	deregisterChan  chan *Client
	subscribeChan   chan *subscriptionReq
	unsubscribeChan chan *subscriptionReq
	broadcastChan   chan types.Message
	stop            chan stopReq
	done            chan struct{}
}

func NewChatServer(logger *log.Logger, db database.PraatRepository, su stats.StatsProvider) (*ChatServer, error) {
	if db == nil {
		return nil, fmt.Errorf("chat server requires a repository")
	}

	su.RegisterMetric(stats.MetricActiveSockets)
	su.RegisterMetric(stats.MetricSubscriptions)

	return &ChatServer{
		log:             logger,
		db:              db,
		stats:           su,
		clients:         make(map[*Client]struct{}),
		rooms:           make(map[int]*Room),
		registerChan:    make(chan *Client),
		deregisterChan:  make(chan *Client),
		subscribeChan:   make(chan *subscriptionReq, 64),
		unsubscribeChan: make(chan *subscriptionReq, 64),
		broadcastChan:   make(chan types.Message, 256),
		stop:            make(chan stopReq),
		done:            make(chan struct{}),
	}, nil
}

func (cs *ChatServer) Run() {
	defer close(cs.done)

	for {
		select {
		case c := <-cs.registerChan:
			cs.log.Printf("adding connection from %q", c.user.Username)
			cs.clients[c] = struct{}{}
			cs.stats.Incr(stats.MetricActiveSockets)
		case c := <-cs.deregisterChan:
			cs.removeClient(c)
		case req := <-cs.subscribeChan:
			cs.handleSubscribe(req)
		case req := <-cs.unsubscribeChan:
			cs.handleUnsubscribe(req)
		case msg := <-cs.broadcastChan:
			cs.handleBroadcast(msg)
		case req := <-cs.stop:
			cs.log.Println("closing all connections")
			for c := range cs.clients {
				c.stopClient()
			}
			cs.clients = make(map[*Client]struct{})
			cs.rooms = make(map[int]*Room)
			close(req.done)
			return
		}
	}
}

func (cs *ChatServer) removeClient(c *Client) {
	if _, ok := cs.clients[c]; !ok {
		return
	}

	cs.log.Printf("removing connection from %q", c.user.Username)
	for id, room := range cs.rooms {
		if room.removeClient(c) {
			cs.stats.Decr(stats.MetricSubscriptions)
		}
		if room.empty() {
			delete(cs.rooms, id)
		}
	}

	delete(cs.clients, c)
	cs.stats.Decr(stats.MetricActiveSockets)
}

func (cs *ChatServer) handleSubscribe(req *subscriptionReq) {
	if _, ok := cs.clients[req.client]; !ok {
		return
	}

	room, ok := cs.rooms[req.channelId]
	if !ok {
		room = newRoom(req.channelId)
		cs.rooms[req.channelId] = room
	}

	if room.addClient(req.client) {
		cs.stats.Incr(stats.MetricSubscriptions)
	}

	req.client.queueMessage(NoErrOK(req.msgId, map[string]any{"channel_id": req.channelId}))
}

func (cs *ChatServer) handleUnsubscribe(req *subscriptionReq) {
	room, ok := cs.rooms[req.channelId]
	if !ok || !room.removeClient(req.client) {
		req.client.queueMessage(ErrChannelNotFound(req.msgId))
		return
	}

	cs.stats.Decr(stats.MetricSubscriptions)
	if room.empty() {
		delete(cs.rooms, req.channelId)
	}

	req.client.queueMessage(NoErrOK(req.msgId, map[string]any{"channel_id": req.channelId}))
}

func (cs *ChatServer) handleBroadcast(msg types.Message) {
	room, ok := cs.rooms[msg.ChatId]
	if !ok {
		return
	}

	room.broadcast(NewMessage(msg))
}

// Publish queues msg for delivery to the sockets subscribed to its
// channel. It never blocks; when the queue is full the message is dropped
// and subscribers catch up on their next poll.
func (cs *ChatServer) Publish(msg types.Message) {
	select {
	case cs.broadcastChan <- msg:
	default:
		cs.log.Printf("broadcast queue full, dropping message %d for channel %d", msg.Id, msg.ChatId)
	}
}

func (cs *ChatServer) RegisterClient(c *Client) {
	select {
	case cs.registerChan <- c:
	case <-cs.done:
		c.stopClient()
	}
}

func (cs *ChatServer) deregisterClient(c *Client) {
	select {
	case cs.deregisterChan <- c:
	case <-cs.done:
	}
}

func (cs *ChatServer) subscribe(req *subscriptionReq) bool {
	select {
	case cs.subscribeChan <- req:
		return true
	case <-cs.done:
		return false
	default:
		return false
	}
}

func (cs *ChatServer) unsubscribe(req *subscriptionReq) bool {
	select {
	case cs.unsubscribeChan <- req:
		return true
	case <-cs.done:
		return false
	default:
		return false
	}
}

// Shutdown closes every socket and stops the run loop.
func (cs *ChatServer) Shutdown(ctx context.Context) error {
	req := stopReq{done: make(chan struct{})}

	select {
	case cs.stop <- req:
	case <-cs.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("send stop: %w", ctx.Err())
	}

	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for stop: %w", ctx.Err())
	}
}
