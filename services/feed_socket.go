package services

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleFeedSocket upgrades the connection and attaches it to the change
// feed. The token travels in the query string because browsers cannot set
// headers on a WebSocket handshake.
func HandleFeedSocket(ctx *gin.Context) {
	claims, err := ParseToken(ctx.Query("token"))
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or missing token"})
		return
	}

	conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upgrade connection"})
		return
	}

	sub := &Subscriber{
		Conn:     conn,
		Send:     make(chan []byte, 256),
		UserID:   claims.UserID,
		LastPing: time.Now(), // 初始化心跳时间
	}

	Feed.Subscribe(sub)

	go sub.WritePump()
	go sub.ReadPump()
	go sub.StartHeartbeat()
}
