package handler

import (
	appconv "github.com/aiview/backend/internal/application/conversation"
	"github.com/aiview/backend/internal/interfaces/http/response"
	"github.com/gin-gonic/gin"
)

// ProjectHandler 项目查询处理器
type ProjectHandler struct {
	service *appconv.Service
}

// NewProjectHandler 创建项目查询处理器
func NewProjectHandler(service *appconv.Service) *ProjectHandler {
	return &ProjectHandler{service: service}
}

// ListAll 列出全部平台的项目
func (h *ProjectHandler) ListAll(c *gin.Context) {
	projects, err := h.service.ListAllProjects(c.Request.Context())
	if err != nil {
		writeDomainError(c, err)
		return
	}

	response.Success(c, gin.H{
		"projects": projects,
		"total":    len(projects),
	})
}

// ListBySource 列出单个平台的项目
func (h *ProjectHandler) ListBySource(c *gin.Context) {
	src, ok := parseSource(c)
	if !ok {
		return
	}

	projects, err := h.service.ListProjects(c.Request.Context(), src)
	if err != nil {
		writeDomainError(c, err)
		return
	}

	response.Success(c, gin.H{
		"source":   src,
		"projects": projects,
		"total":    len(projects),
	})
}
