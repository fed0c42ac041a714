package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	appsearch "github.com/aiview/backend/internal/application/search"
	"github.com/aiview/backend/internal/domain/conversation"
	"github.com/aiview/backend/internal/interfaces/http/response"
)

// SearchHandler 全局搜索处理器
type SearchHandler struct {
	aggregator *appsearch.Aggregator
}

// NewSearchHandler 创建全局搜索处理器
func NewSearchHandler(aggregator *appsearch.Aggregator) *SearchHandler {
	return &SearchHandler{aggregator: aggregator}
}

// Global 跨平台搜索
// q 必填；sources 为逗号分隔的平台列表，缺省搜全部
func (h *SearchHandler) Global(c *gin.Context) {
	query := c.Query("q")
	if strings.TrimSpace(query) == "" {
		response.Error(c, http.StatusBadRequest, codeInvalidParam, "query parameter q is required")
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		value, err := strconv.Atoi(raw)
		if err != nil || value < 1 {
			response.Error(c, http.StatusBadRequest, codeInvalidParam, "invalid limit: "+raw)
			return
		}
		limit = value
	}

	var sources []conversation.Source
	if raw := c.Query("sources"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			src, err := conversation.ParseSource(strings.TrimSpace(part))
			if err != nil {
				response.Error(c, http.StatusBadRequest, codeInvalidParam, err.Error())
				return
			}
			sources = append(sources, src)
		}
	}

	result, err := h.aggregator.SearchGlobal(c.Request.Context(), query, limit, sources)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	response.Success(c, result)
}
