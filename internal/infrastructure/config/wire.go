package config

import "github.com/google/wire"

// ProviderSet 配置层 Provider 集合
var ProviderSet = wire.NewSet(
	NewConfig,
	NewServerConfig,
	NewSourcesConfig,
	NewCacheConfig,
	NewSearchConfig,
	NewDiffConfig,
)
