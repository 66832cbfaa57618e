package controllers

import (
	"errors"
	"log"
	"net/http"

	"grantlink/services"
	"grantlink/utils"

	"github.com/gin-gonic/gin"
)

// 发送消息
func SendMessage(c *gin.Context) {
	userInfo, ok := currentUser(c)
	if !ok {
		return
	}

	var input struct {
		ConversationID string `json:"conversation_id" binding:"required"`
		Content        string `json:"content" binding:"required"`
		MessageType    string `json:"message_type" binding:"omitempty,oneof=text file"`
		FileURL        string `json:"file_url"`
		FileName       string `json:"file_name"`
		FileType       string `json:"file_type"`
		FileSize       int64  `json:"file_size"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var file *services.FileMeta
	if input.MessageType == "file" {
		file = &services.FileMeta{
			URL:  input.FileURL,
			Name: input.FileName,
			Type: input.FileType,
			Size: input.FileSize,
		}
	}

	message, err := services.SendMessage(userInfo.ID, input.ConversationID, input.Content, input.MessageType, file)
	if err != nil {
		respondMessageError(c, err, "Failed to send message")
		return
	}

	utils.RespondSuccess(c, message, nil)
}

// 获取会话的消息列表（读取即标记已读）
func GetMessagesByConversationID(c *gin.Context) {
	userInfo, ok := currentUser(c)
	if !ok {
		return
	}

	conversationID := c.Param("conversation_id") // 从 URL 获取 conversation_id
	messages, err := services.FetchMessages(conversationID, userInfo.ID)
	if err != nil {
		respondMessageError(c, err, "Failed to fetch messages")
		return
	}

	utils.RespondSuccess(c, messages, nil)
}

// respondMessageError 将服务层错误映射为 HTTP 状态码
func respondMessageError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
	case errors.Is(err, services.ErrUnauthorized):
		// Generic denial; existence details stay hidden from non-participants.
		c.JSON(http.StatusForbidden, gin.H{"error": "You are not part of this conversation"})
	case errors.Is(err, services.ErrInvalidContent):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message content cannot be empty"})
	default:
		log.Println(fallback+":", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}
