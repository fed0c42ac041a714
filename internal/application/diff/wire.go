package diff

import "github.com/google/wire"

// ProviderSet 差异引擎依赖注入集合
var ProviderSet = wire.NewSet(
	NewEngine,
)
