package watcher

import (
	"github.com/google/wire"

	"github.com/aiview/backend/internal/infrastructure/cache"
)

// ProviderSet 监视器依赖注入集合
var ProviderSet = wire.NewSet(
	NewWatcher,
	wire.Bind(new(Invalidator), new(*cache.Manager)),
)
