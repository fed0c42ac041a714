package source

import "github.com/google/wire"

// ProviderSet 平台适配器依赖注入集合
var ProviderSet = wire.NewSet(
	NewRegistry,
)
