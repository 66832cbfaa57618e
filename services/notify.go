package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"grantlink/config"
	"grantlink/models"

	"github.com/hibiken/asynq"
)

// TaskMessageReceived 离线消息推送任务
const TaskMessageReceived = "message:received"

type messageReceivedPayload struct {
	MessageID      string `json:"message_id"`
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	ReceiverID     string `json:"receiver_id"`
	Preview        string `json:"preview"`
}

var notifyClient *asynq.Client

func notifyRedisOpt() asynq.RedisClientOpt {
	addr := os.Getenv("REDIS_URL")
	if addr == "" {
		addr = "localhost:6379"
	}
	return asynq.RedisClientOpt{Addr: addr, Password: os.Getenv("REDIS_PASSWORD")}
}

// InitNotifyQueue 初始化通知任务队列
func InitNotifyQueue() {
	notifyClient = asynq.NewClient(notifyRedisOpt())
}

// NotifyNewMessage enqueues a push-notification task for a receiver with no
// live feed connection. Enqueue failures are logged only; delivery of the
// message itself already succeeded.
func NotifyNewMessage(message *models.Message) {
	if notifyClient == nil {
		return
	}

	payload, err := json.Marshal(messageReceivedPayload{
		MessageID:      message.ID,
		ConversationID: message.ConversationID,
		SenderID:       message.SenderID,
		ReceiverID:     message.ReceiverID,
		Preview:        truncatePreview(message.Content),
	})
	if err != nil {
		log.Println("⚠️ Failed to marshal notification payload:", err)
		return
	}

	task := asynq.NewTask(TaskMessageReceived, payload)
	if _, err := notifyClient.Enqueue(task, asynq.Queue("chat"), asynq.MaxRetry(3)); err != nil {
		log.Println("⚠️ Failed to enqueue notification task:", err)
	}
}

// RunNotifyWorker consumes notification tasks in-process. Blocks; run it on
// its own goroutine.
func RunNotifyWorker() {
	srv := asynq.NewServer(notifyRedisOpt(), asynq.Config{
		Concurrency: 5,
		Queues:      map[string]int{"default": 1, "chat": 2},
	})

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskMessageReceived, handleMessageReceived)

	if err := srv.Run(mux); err != nil {
		log.Println("⚠️ Notification worker stopped:", err)
	}
}

func handleMessageReceived(ctx context.Context, task *asynq.Task) error {
	var payload messageReceivedPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal %s payload: %w", task.Type(), err)
	}

	// Skip if the receiver came online while the task sat in the queue; the
	// feed already delivered the message.
	if UserOnline(payload.ReceiverID) {
		return nil
	}

	var sender models.User
	if err := config.DB.Where("id = ?", payload.SenderID).First(&sender).Error; err != nil {
		return fmt.Errorf("load sender %s: %w", payload.SenderID, err)
	}

	// Push gateway integration lives outside this service; record the intent.
	log.Printf("📩 Push notification for %s: new message from %s: %q",
		payload.ReceiverID, sender.DisplayName(), payload.Preview)
	return nil
}
