package services

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"grantlink/config"
	"grantlink/models"

	"github.com/gorilla/websocket"
)

const (
	pingInterval = 10 * time.Second // 发送 Ping 的间隔
	pongTimeout  = 15 * time.Second // 超过 15 秒未收到 Pong 断开连接

	// 在线状态用带 TTL 的 key，心跳续期；实例崩溃后自动过期下线
	onlineKeyPrefix = "online:"
	onlineTTL       = 3 * pingInterval
)

// FeedEvent mirrors a row-level change on the messages or conversations
// table. Delivery is at-least-once and best-effort: a slow subscriber's
// buffer is dropped rather than blocking the sender, and clients re-fetch on
// reconnect. Events of a single conversation are published in creation order.
type FeedEvent struct {
	Table        string               `json:"table"` // "messages" or "conversations"
	Type         string               `json:"type"`  // "insert" or "update"
	Message      *models.Message      `json:"message,omitempty"`
	Conversation *models.Conversation `json:"conversation,omitempty"`
}

// Subscriber 一条已订阅的客户端连接
type Subscriber struct {
	Conn      *websocket.Conn
	Send      chan []byte
	UserID    string
	LastPing  time.Time
	mu        sync.Mutex
	closeOnce sync.Once
}

// FeedManager fans row-change events out to every connected subscriber whose
// user id matches the event's participant filter. One user may hold several
// sockets (multiple tabs), all keyed under the same id.
type FeedManager struct {
	subscribers map[string][]*Subscriber
	mu          sync.Mutex
}

// Feed 全局变更推送管理器
var Feed = &FeedManager{
	subscribers: make(map[string][]*Subscriber),
}

// Subscribe registers the connection and marks the user online.
func (m *FeedManager) Subscribe(sub *Subscriber) {
	m.mu.Lock()
	m.subscribers[sub.UserID] = append(m.subscribers[sub.UserID], sub)
	m.mu.Unlock()
	log.Printf("🔵 Feed subscriber connected: %s", sub.UserID)

	setOnline(sub.UserID, true)
}

// Unsubscribe removes the connection; the user goes offline when their last
// socket is gone.
func (m *FeedManager) Unsubscribe(sub *Subscriber) {
	m.mu.Lock()
	subs := m.subscribers[sub.UserID]
	for i, s := range subs {
		if s == sub {
			m.subscribers[sub.UserID] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	last := len(m.subscribers[sub.UserID]) == 0
	if last {
		delete(m.subscribers, sub.UserID)
	}
	m.mu.Unlock()

	sub.closeSend()
	if last {
		setOnline(sub.UserID, false)
	}
	log.Printf("🔴 Feed subscriber disconnected: %s", sub.UserID)
}

// PublishMessageInsert notifies both halves of the conversation of a new row.
func (m *FeedManager) PublishMessageInsert(message *models.Message) {
	m.deliver([]string{message.SenderID, message.ReceiverID}, FeedEvent{
		Table:   "messages",
		Type:    "insert",
		Message: message,
	})
}

// PublishMessageRead notifies the original sender that the read flag flipped.
func (m *FeedManager) PublishMessageRead(message *models.Message) {
	m.deliver([]string{message.SenderID}, FeedEvent{
		Table:   "messages",
		Type:    "update",
		Message: message,
	})
}

// PublishConversationUpdate notifies both participants of a preview change.
func (m *FeedManager) PublishConversationUpdate(conversation *models.Conversation) {
	m.deliver([]string{conversation.Participant1ID, conversation.Participant2ID}, FeedEvent{
		Table:        "conversations",
		Type:         "update",
		Conversation: conversation,
	})
}

func (m *FeedManager) deliver(userIDs []string, event FeedEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Println("⚠️ Failed to marshal feed event:", err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, userID := range userIDs {
		for _, sub := range m.subscribers[userID] {
			select {
			case sub.Send <- payload:
			default:
				log.Printf("⚠️ Feed buffer full, dropping event for user %s", userID)
			}
		}
	}
}

// Connected reports whether the user holds at least one socket on this
// process.
func (m *FeedManager) Connected(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subscribers[userID]) > 0
}

// UserOnline checks local sockets first, then the shared presence set so
// peers connected to another instance still show as online.
func UserOnline(userID string) bool {
	if Feed.Connected(userID) {
		return true
	}
	if config.Redis == nil {
		return false
	}
	exists, err := config.Redis.Exists(context.Background(), onlineKeyPrefix+userID).Result()
	if err != nil {
		return false
	}
	return exists > 0
}

func setOnline(userID string, online bool) {
	if config.Redis == nil {
		return
	}
	ctx := context.Background()
	var err error
	if online {
		err = config.Redis.Set(ctx, onlineKeyPrefix+userID, "1", onlineTTL).Err()
	} else {
		err = config.Redis.Del(ctx, onlineKeyPrefix+userID).Err()
	}
	if err != nil {
		log.Println("⚠️ Failed to update presence key:", err)
	}
}

func (s *Subscriber) closeSend() {
	s.closeOnce.Do(func() {
		close(s.Send)
	})
}

// WritePump Send 通道的消息写入 WebSocket
func (s *Subscriber) WritePump() {
	defer s.Conn.Close()
	for payload := range s.Send {
		s.mu.Lock()
		err := s.Conn.WriteMessage(websocket.TextMessage, payload)
		s.mu.Unlock()
		if err != nil {
			log.Printf("⚠️ Error writing to subscriber %s: %v", s.UserID, err)
			return
		}
	}
}

// ReadPump drains the socket so pings are answered and disconnects are seen.
// The feed is push-only; client operations go over HTTP.
func (s *Subscriber) ReadPump() {
	defer func() {
		Feed.Unsubscribe(s)
		s.Conn.Close()
	}()
	for {
		_, payload, err := s.Conn.ReadMessage()
		if err != nil {
			break
		}
		if string(payload) == "pong" {
			s.mu.Lock()
			s.LastPing = time.Now()
			s.mu.Unlock()
		}
	}
}

// StartHeartbeat 心跳检测
func (s *Subscriber) StartHeartbeat() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for range ticker.C {
		s.mu.Lock()
		err := s.Conn.WriteMessage(websocket.TextMessage, []byte("ping"))
		timedOut := time.Since(s.LastPing) > pongTimeout
		s.mu.Unlock()

		if err != nil || timedOut {
			log.Println("Subscriber timeout, closing connection:", s.UserID)
			s.Conn.Close()
			return
		}

		// 心跳续期在线状态 TTL
		setOnline(s.UserID, true)
	}
}
