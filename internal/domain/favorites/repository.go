// Package favorites 定义收藏存储的查询边界
// 收藏数据由外部服务持有，核心只暴露身份元组，从不自行查询收藏状态
package favorites

import (
	"context"

	"github.com/aiview/backend/internal/domain/conversation"
)

// Store 收藏查询接口，由外部收藏服务实现
// 核心以 conversation.SessionKey / MessageKey 作为不透明外键传递
type Store interface {
	// IsFavorite 查询单条消息是否被收藏
	IsFavorite(ctx context.Context, key conversation.MessageKey) (bool, error)

	// ListBySession 返回会话内所有被收藏消息的 line_index
	ListBySession(ctx context.Context, key conversation.SessionKey) ([]int, error)
}
