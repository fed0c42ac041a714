package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	appconv "github.com/aiview/backend/internal/application/conversation"
	"github.com/aiview/backend/internal/domain/conversation"
	"github.com/aiview/backend/internal/domain/favorites"
	"github.com/aiview/backend/internal/interfaces/http/response"
)

// SessionHandler 会话查询处理器
// favorites 是外部协作方提供的收藏存储，未接入时为 nil
type SessionHandler struct {
	service   *appconv.Service
	favorites favorites.Store
}

// NewSessionHandler 创建会话查询处理器
func NewSessionHandler(service *appconv.Service, favStore favorites.Store) *SessionHandler {
	return &SessionHandler{
		service:   service,
		favorites: favStore,
	}
}

// ListSessions 列出项目下的会话
func (h *SessionHandler) ListSessions(c *gin.Context) {
	src, ok := parseSource(c)
	if !ok {
		return
	}
	projectID := c.Param("project_id")

	sessions, err := h.service.ListSessions(c.Request.Context(), src, projectID)
	if err != nil {
		writeDomainError(c, err)
		return
	}

	response.Success(c, gin.H{
		"source":   src,
		"project":  projectID,
		"sessions": sessions,
		"total":    len(sessions),
	})
}

// GetSession 查询单个会话元数据
func (h *SessionHandler) GetSession(c *gin.Context) {
	src, ok := parseSource(c)
	if !ok {
		return
	}

	session, err := h.service.GetSession(c.Request.Context(), src, c.Param("project_id"), c.Param("session_id"))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	response.Success(c, session)
}

// GetSummary 查询会话摘要
func (h *SessionHandler) GetSummary(c *gin.Context) {
	src, ok := parseSource(c)
	if !ok {
		return
	}
	projectID := c.Param("project_id")
	sessionID := c.Param("session_id")

	summary, err := h.service.GetSessionSummary(c.Request.Context(), src, projectID, sessionID)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	response.Success(c, gin.H{
		"source":     src,
		"project_id": projectID,
		"session_id": sessionID,
		"summary":    summary,
	})
}

// GetConversation 读取会话消息（分页、搜索、角色过滤）
func (h *SessionHandler) GetConversation(c *gin.Context) {
	src, ok := parseSource(c)
	if !ok {
		return
	}
	projectID := c.Param("project_id")
	sessionID := c.Param("session_id")

	opts := appconv.ConversationOptions{
		Page:    queryInt(c, "page", appconv.DefaultPage),
		PerPage: queryInt(c, "per_page", appconv.DefaultPerPage),
		Search:  c.Query("search"),
	}
	if role := c.Query("role"); role != "" {
		opts.Role = conversation.Role(role)
	}

	page, err := h.service.GetConversation(c.Request.Context(), src, projectID, sessionID, opts)
	if err != nil {
		writeDomainError(c, err)
		return
	}

	data := gin.H{
		"messages": page.Messages,
	}
	if page.MatchOccurrences > 0 {
		data["match_occurrences"] = page.MatchOccurrences
	}
	if lines := h.favoriteLines(c, src, projectID, sessionID); lines != nil {
		data["favorite_lines"] = lines
	}

	response.SuccessWithPage(c, data, page.Page, page.PerPage, page.Total)
}

// favoriteLines 查询收藏存储，未接入或查询失败时返回 nil
func (h *SessionHandler) favoriteLines(c *gin.Context, src conversation.Source, projectID, sessionID string) []int {
	if h.favorites == nil {
		return nil
	}
	key := conversation.SessionKey{Source: src, ProjectID: projectID, SessionID: sessionID}
	lines, err := h.favorites.ListBySession(c.Request.Context(), key)
	if err != nil {
		return nil
	}
	return lines
}

// queryInt 解析整型查询参数，非法值用默认值
func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return fallback
	}
	return value
}
