package controllers

import (
	"errors"
	"log"
	"net/http"

	"grantlink/config"
	"grantlink/models"
	"grantlink/services"
	"grantlink/utils"

	"github.com/gin-gonic/gin"
)

func GetConversations(c *gin.Context) {
	userInfo, ok := currentUser(c)
	if !ok {
		return
	}

	entries, err := services.ListConversations(userInfo.ID)
	if err != nil {
		log.Println("Error fetching conversations:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch conversations"})
		return
	}

	utils.RespondSuccess(c, entries, nil)
}

// CreateConversationHandler 创建会话（使用POST请求）
func CreateConversationHandler(c *gin.Context) {
	userInfo, ok := currentUser(c)
	if !ok {
		return
	}

	var requestData struct {
		OtherUserID   string `json:"other_user_id" binding:"required"` // 目标用户ID
		ApplicationID string `json:"application_id"`
		GrantID       string `json:"grant_id"`
	}
	if err := c.ShouldBindJSON(&requestData); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	// 校验目标用户是否存在
	var otherUser models.User
	if err := config.DB.Where("id = ?", requestData.OtherUserID).First(&otherUser).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User does not exist"})
		return
	}

	var scope *services.ConversationScope
	if requestData.ApplicationID != "" || requestData.GrantID != "" {
		scope = &services.ConversationScope{
			ApplicationID: requestData.ApplicationID,
			GrantID:       requestData.GrantID,
		}
	}

	conversationID, err := services.GetOrCreateConversation(userInfo.ID, requestData.OtherUserID, scope)
	if err != nil {
		if errors.Is(err, services.ErrInvalidParticipants) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot create a conversation with yourself"})
			return
		}
		log.Println("Error creating conversation:", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create conversation"})
		return
	}

	utils.RespondSuccess(c, gin.H{"conversation_id": conversationID}, nil)
}
