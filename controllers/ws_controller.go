package controllers

import (
	"grantlink/services"

	"github.com/gin-gonic/gin"
)

func WSController(ctx *gin.Context) {
	services.HandleFeedSocket(ctx)
}
