package http

import (
	"github.com/google/wire"

	"github.com/aiview/backend/internal/domain/favorites"
	"github.com/aiview/backend/internal/interfaces/http/handler"
)

// NewFavoritesStore 收藏存储由宿主应用接入，本服务不内置实现
func NewFavoritesStore() favorites.Store {
	return nil
}

// ProviderSet HTTP 层依赖注入集合
var ProviderSet = wire.NewSet(
	NewFavoritesStore,
	handler.NewProjectHandler,
	handler.NewSessionHandler,
	handler.NewSearchHandler,
	handler.NewHealthHandler,
	handler.NewCacheHandler,
	NewServer,
)
