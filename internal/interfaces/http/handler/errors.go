package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aiview/backend/internal/domain/conversation"
	"github.com/aiview/backend/internal/interfaces/http/response"
)

// 业务错误码
const (
	codeInvalidParam      = 100001
	codeSourceUnavailable = 200001
	codeProjectNotFound   = 200002
	codeSessionNotFound   = 200003
	codeInternal          = 500001
)

// writeDomainError 领域错误到 HTTP 响应的统一映射
func writeDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, conversation.ErrSourceUnavailable):
		response.Error(c, http.StatusServiceUnavailable, codeSourceUnavailable, err.Error())
	case errors.Is(err, conversation.ErrProjectNotFound):
		response.Error(c, http.StatusNotFound, codeProjectNotFound, err.Error())
	case errors.Is(err, conversation.ErrSessionNotFound):
		response.Error(c, http.StatusNotFound, codeSessionNotFound, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, codeInternal, err.Error())
	}
}

// parseSource 解析路径里的平台参数
func parseSource(c *gin.Context) (conversation.Source, bool) {
	src, err := conversation.ParseSource(c.Param("source"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, codeInvalidParam, "unknown source: "+c.Param("source"))
		return "", false
	}
	return src, true
}
