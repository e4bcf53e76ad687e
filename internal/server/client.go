package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/npezzotti/go-praat/internal/database"
	"github.com/npezzotti/go-praat/internal/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 1024
	authorizeWait  = 5 * time.Second
)

// Client is one websocket connection of an authenticated user.
type Client struct {
	conn       *websocket.Conn
	chatServer *ChatServer
	log        *log.Logger
	user       types.User
	send       chan *ServerMessage
	stop       chan struct{}
	stopOnce   sync.Once
}

func NewClient(user types.User, conn *websocket.Conn, cs *ChatServer, l *log.Logger) *Client {
	return &Client{
		conn:       conn,
		chatServer: cs,
		log:        l,
		user:       user,
		send:       make(chan *ServerMessage, 256),
		stop:       make(chan struct{}),
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
		case msg := <-c.send:
			bytes, err := serializeMessage(msg)
			if err != nil {
				c.log.Println("failed to serialize message:", err)
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
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
		c.chatServer.deregisterClient(c)
		c.stopClient()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.queueMessage(ErrInvalidMessage(0))
			continue
		}

		msg.client = c
		msg.UserId = c.user.Id
		msg.Timestamp = Now()
		c.handleMessage(&msg)
	}
}

func (c *Client) handleMessage(msg *ClientMessage) {
	switch {
	case msg.Subscribe != nil:
		if errMsg := c.authorize(msg.Id, msg.Subscribe.ChannelId); errMsg != nil {
			c.queueMessage(errMsg)
			return
		}

		req := &subscriptionReq{msgId: msg.Id, channelId: msg.Subscribe.ChannelId, client: c}
		if !c.chatServer.subscribe(req) {
			c.queueMessage(ErrServiceUnavailable(msg.Id))
		}
	case msg.Unsubscribe != nil:
		req := &subscriptionReq{msgId: msg.Id, channelId: msg.Unsubscribe.ChannelId, client: c}
		if !c.chatServer.unsubscribe(req) {
			c.queueMessage(ErrServiceUnavailable(msg.Id))
		}
	default:
		c.queueMessage(ErrInvalidMessage(msg.Id))
	}
}

// authorize checks that the channel exists and is active, and that the
// user participates in it unless it is public. It returns the error frame
// to send back, or nil.
func (c *Client) authorize(msgId, channelId int) *ServerMessage {
	ctx, cancel := context.WithTimeout(context.Background(), authorizeWait)
	defer cancel()

	channel, err := c.chatServer.db.GetChannel(ctx, channelId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrChannelNotFound(msgId)
		}
		c.log.Printf("get channel %d: %v", channelId, err)
		return ErrInternalError(msgId)
	}

	if !channel.IsActive {
		return ErrChannelNotFound(msgId)
	}

	if channel.Type == database.ChannelTypePublic {
		return nil
	}

	ok, err := c.chatServer.db.IsParticipant(ctx, channelId, c.user.Id)
	if err != nil {
		c.log.Printf("check participant of channel %d: %v", channelId, err)
		return ErrInternalError(msgId)
	}
	if !ok {
		return ErrForbidden(msgId)
	}

	return nil
}

func (c *Client) queueMessage(msg *ServerMessage) bool {
	select {
	case c.send <- msg:
	default:
		c.log.Printf("send buffer full for %q, dropping frame", c.user.Username)
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
	c.stopOnce.Do(func() { close(c.stop) })
}
