package server

// Room is the set of sockets subscribed to one channel. It is owned by the
// ChatServer run loop and never touched from other goroutines.
type Room struct {
	channelId int
	clients   map[*Client]struct{}
}

func newRoom(channelId int) *Room {
	return &Room{
		channelId: channelId,
		clients:   make(map[*Client]struct{}),
	}
}

// addClient reports whether c was not yet subscribed.
func (r *Room) addClient(c *Client) bool {
	if _, ok := r.clients[c]; ok {
		return false
	}

	r.clients[c] = struct{}{}
	return true
}

// removeClient reports whether c was subscribed.
func (r *Room) removeClient(c *Client) bool {
	if _, ok := r.clients[c]; !ok {
		return false
	}

	delete(r.clients, c)
	return true
}

func (r *Room) empty() bool {
	return len(r.clients) == 0
}

func (r *Room) broadcast(msg *ServerMessage) {
	for c := range r.clients {
		c.queueMessage(msg)
	}
}
