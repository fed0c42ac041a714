package conversation

import "errors"

var (
	// ErrSourceUnavailable 平台根目录不存在或不可读
	// 多平台请求中该错误只跳过对应平台，不中断其他平台
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrProjectNotFound 项目不存在
	ErrProjectNotFound = errors.New("project not found")

	// ErrSessionNotFound 会话不存在
	ErrSessionNotFound = errors.New("session not found")
)
