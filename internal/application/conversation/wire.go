package conversation

import "github.com/google/wire"

// ProviderSet 会话服务依赖注入集合
var ProviderSet = wire.NewSet(
	NewNormalizer,
	NewService,
)
