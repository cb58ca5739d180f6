package gateway

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"team-pulse/internal/realtime"
)

const (
	writeWait      = 10 * time.Second    // Time allowed to write a message to the peer.
	pongWait       = 60 * time.Second    // Time allowed to read the next pong message from the peer.
	pingPeriod     = (pongWait * 9) / 10 // Send pings to peer with this period. Must be less than pongWait.
	maxMessageSize = 4096                // Maximum control message size allowed from peer.
)

// Client is the middleman between one websocket connection and the pipeline.
// It implements realtime.Subscriber; the multiplexer hands it events and the
// write pump drains them onto the wire.
type Client struct {
	userID   string
	username string
	conn     *websocket.Conn
	send     chan []byte
	done     chan struct{}
	gw       *Gateway

	mu   sync.Mutex
	subs map[realtime.Scope]*realtime.Subscription
}

func (c *Client) UserID() string { return c.userID }

// Send queues an event for the connection. It fails instead of blocking when
// the outbound buffer stays full past the caller's deadline or the connection
// is gone, which is how a slow or dead client gets detected.
func (c *Client) Send(ctx context.Context, ev realtime.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return realtime.ErrSubscriberUnreachable
	case <-ctx.Done():
		return realtime.ErrSubscriberUnreachable
	}
}

// subscribe registers the client on a scope, keeping the handle so teardown
// can cancel everything. Resubscribing to a held scope is a no-op.
func (c *Client) subscribe(scope realtime.Scope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.subs[scope]; ok {
		return
	}
	c.subs[scope] = c.gw.mux.Subscribe(scope, c)
}

func (c *Client) unsubscribe(scope realtime.Scope) {
	c.mu.Lock()
	sub, ok := c.subs[scope]
	if ok {
		delete(c.subs, scope)
	}
	c.mu.Unlock()
	if ok {
		sub.Cancel()
	}
}

func (c *Client) teardown() {
	c.mu.Lock()
	subs := c.subs
	c.subs = map[realtime.Scope]*realtime.Subscription{}
	c.mu.Unlock()
	for _, sub := range subs {
		sub.Cancel()
	}
}

// controlMessage is what the browser sends us over the socket. Everything
// else (messages themselves) goes through the REST API.
type controlMessage struct {
	Action     string `json:"action"` // subscribe | unsubscribe | typing | status
	Peer       string `json:"peer,omitempty"`
	IsTyping   bool   `json:"is_typing,omitempty"`
	StatusText string `json:"status_text,omitempty"`
}

func (c *Client) scopeFor(peer string) realtime.Scope {
	if peer == "" {
		return realtime.Global
	}
	return realtime.Direct(c.userID, peer)
}

// readPump pumps control messages from the websocket into the stores.
func (c *Client) readPump() {
	defer func() {
		close(c.done)
		c.teardown()
		c.gw.presence.SetOffline(c.userID)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		// A live socket is a heartbeat; crashed tabs stop answering pings
		// and the presence sweep catches them.
		c.gw.presence.Heartbeat(c.userID)
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("gateway: read error for %s: %v", c.userID, err)
			}
			return
		}
		var msg controlMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch msg.Action {
		case "subscribe":
			c.subscribe(c.scopeFor(msg.Peer))
		case "unsubscribe":
			c.unsubscribe(c.scopeFor(msg.Peer))
		case "typing":
			if msg.IsTyping {
				c.gw.typing.StartTyping(c.userID, msg.Peer)
			} else {
				c.gw.typing.StopTyping(c.userID, msg.Peer)
			}
		case "status":
			c.gw.presence.SetCustomStatus(c.userID, msg.StatusText)
		}
	}
}

// writePump pumps queued events to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(data)

			// Drain whatever else is queued in one write to save syscalls.
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}
