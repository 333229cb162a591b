package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/wspjoy2011/assistant-relay/internal/common"
)

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true})
}
