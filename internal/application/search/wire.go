package search

import "github.com/google/wire"

// ProviderSet 搜索聚合依赖注入集合
var ProviderSet = wire.NewSet(
	NewAggregator,
)
