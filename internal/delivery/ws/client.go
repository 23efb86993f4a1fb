package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Abhishekverma657/AroundU-backend/internal/domain"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10
)

// MatchState tracks where a connection is in the match-attempt protocol
type MatchState string

const (
	MatchIdle        MatchState = "idle"
	MatchSeekingReal MatchState = "seeking_real"
	MatchSeekingAny  MatchState = "seeking_any"
	MatchMatched     MatchState = "matched"
)

// Client represents a single websocket connection
type Client struct {
	ID   string
	orch *Orchestrator
	conn *websocket.Conn
	send chan []byte

	mu    sync.Mutex
	state MatchState
}

// NewClient creates a new Client in the idle match state
func NewClient(orch *Orchestrator, conn *websocket.Conn, connID string) *Client {
	return &Client{
		ID:    connID,
		orch:  orch,
		conn:  conn,
		send:  make(chan []byte, 256),
		state: MatchIdle,
	}
}

// State returns the client's current match state
func (c *Client) State() MatchState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// setState moves the match state machine
func (c *Client) setState(s MatchState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// ReadPump pumps events from the websocket connection to the orchestrator
func (c *Client) ReadPump() {
	defer func() {
		c.orch.HandleDisconnect(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(domain.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			break
		}

		var ev domain.Event
		if err := json.Unmarshal(message, &ev); err != nil {
			c.SendEvent(domain.NewEvent(domain.EventTypeError, domain.ErrorPayload{
				Code:    "invalid_input",
				Message: "malformed event",
			}))
			continue
		}

		c.orch.HandleEvent(c, ev)
	}
}

// WritePump pumps events from the send channel to the websocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendEvent queues an event for delivery, dropping it if the buffer is full
func (c *Client) SendEvent(ev domain.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	defer func() {
		// Send channel may close while a delivery is in flight
		recover()
	}()
	select {
	case c.send <- data:
	default:
		// Buffer full
	}
}
