package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/aiview/backend/internal/infrastructure/cache"
	"github.com/aiview/backend/internal/interfaces/http/response"
)

// CacheHandler 缓存管理处理器
type CacheHandler struct {
	manager *cache.Manager
}

// NewCacheHandler 创建缓存管理处理器
func NewCacheHandler(manager *cache.Manager) *CacheHandler {
	return &CacheHandler{manager: manager}
}

// Stats 缓存统计
func (h *CacheHandler) Stats(c *gin.Context) {
	response.Success(c, h.manager.Stats())
}

// Clear 清空缓存
// prefix 参数非空时只按前缀失效，否则全清
func (h *CacheHandler) Clear(c *gin.Context) {
	if prefix := c.Query("prefix"); prefix != "" {
		removed := h.manager.InvalidatePrefix(prefix)
		response.Success(c, gin.H{"removed": removed})
		return
	}

	h.manager.Clear()
	response.Success(c, gin.H{"cleared": true})
}
