package log

import (
	"context"
	"log/slog"
)

// 上下文键定义
type contextKey string

const (
	// RequestContextID HTTP 请求 ID
	RequestContextID contextKey = "request_id"

	// SourceContextID 平台标识
	SourceContextID contextKey = "source"

	// ProjectContextID 项目 ID
	ProjectContextID contextKey = "project_id"

	// SessionContextID 会话 ID
	SessionContextID contextKey = "session_id"
)

// WithRequestID 在上下文中添加请求 ID
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestContextID, requestID)
}

// WithSource 在上下文中添加平台标识
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, SourceContextID, source)
}

// WithProjectID 在上下文中添加项目 ID
func WithProjectID(ctx context.Context, projectID string) context.Context {
	return context.WithValue(ctx, ProjectContextID, projectID)
}

// WithSessionID 在上下文中添加会话 ID
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, SessionContextID, sessionID)
}

// AttrsFromContext 从上下文中提取日志字段
func AttrsFromContext(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr

	for _, key := range []contextKey{RequestContextID, SourceContextID, ProjectContextID, SessionContextID} {
		if v := ctx.Value(key); v != nil {
			if s, ok := v.(string); ok {
				attrs = append(attrs, slog.String(string(key), s))
			}
		}
	}

	return attrs
}
