package cache

import "github.com/google/wire"

// ProviderSet 缓存依赖注入集合
var ProviderSet = wire.NewSet(
	NewManager,
)
