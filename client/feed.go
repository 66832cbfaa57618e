package client

import (
	"encoding/json"
	"log"
	"net/url"
	"sync"

	"grantlink/models"

	"github.com/gorilla/websocket"
)

// Event is the wire shape of one change-feed notification.
type Event struct {
	Table        string               `json:"table"`
	Type         string               `json:"type"`
	Message      *models.Message      `json:"message,omitempty"`
	Conversation *models.Conversation `json:"conversation,omitempty"`
}

// FeedClient FeedClient是变更推送的 WebSocket 连接
type FeedClient struct {
	Conn   *websocket.Conn
	Events chan Event

	closeOnce sync.Once
}

// Dial connects to the server's change feed. The returned handle must be
// released with Close exactly once when the owner is no longer interested.
func Dial(serverURL, token string) (*FeedClient, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, err
	}

	c := &FeedClient{
		Conn:   conn,
		Events: make(chan Event, 256),
	}
	go c.readPump()
	return c, nil
}

// readPump 读取服务端推送，心跳直接应答
func (c *FeedClient) readPump() {
	// Events closes here, and only here, once the pump has stopped sending.
	defer close(c.Events)
	for {
		_, payload, err := c.Conn.ReadMessage()
		if err != nil {
			log.Printf("Feed connection closed: %v", err)
			return
		}
		if string(payload) == "ping" {
			if err := c.Conn.WriteMessage(websocket.TextMessage, []byte("pong")); err != nil {
				log.Printf("Feed pong failed: %v", err)
				return
			}
			continue
		}

		var event Event
		if err := json.Unmarshal(payload, &event); err != nil {
			log.Println("Invalid feed event:", string(payload))
			continue
		}

		select {
		case c.Events <- event:
		default:
			// Buffer full: drop and rely on the next full fetch, the feed is
			// best-effort by contract.
			log.Println("Feed event buffer full, dropping event")
		}
	}
}

// Close releases the subscription. Safe to call more than once; only the
// first call takes effect. The Events channel closes once the read pump has
// drained, not here, so a concurrent Close cannot race a pending send.
func (c *FeedClient) Close() {
	c.closeOnce.Do(func() {
		c.Conn.Close()
	})
}
