package handler

import (
	"github.com/gin-gonic/gin"

	appconv "github.com/aiview/backend/internal/application/conversation"
	"github.com/aiview/backend/internal/interfaces/http/response"
)

// HealthHandler 平台健康检查处理器
type HealthHandler struct {
	service *appconv.Service
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(service *appconv.Service) *HealthHandler {
	return &HealthHandler{service: service}
}

// Health 各平台可用状态与规模
func (h *HealthHandler) Health(c *gin.Context) {
	statuses := h.service.Health(c.Request.Context())

	available := 0
	for _, s := range statuses {
		if s.Available {
			available++
		}
	}
	response.Success(c, gin.H{
		"sources":   statuses,
		"available": available,
	})
}
