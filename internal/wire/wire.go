//go:build wireinject
// +build wireinject

package wire

import (
	"github.com/google/wire"

	appconv "github.com/aiview/backend/internal/application/conversation"
	appdiff "github.com/aiview/backend/internal/application/diff"
	appsearch "github.com/aiview/backend/internal/application/search"
	"github.com/aiview/backend/internal/infrastructure/cache"
	"github.com/aiview/backend/internal/infrastructure/config"
	"github.com/aiview/backend/internal/infrastructure/source"
	"github.com/aiview/backend/internal/infrastructure/watcher"
	ifacehttp "github.com/aiview/backend/internal/interfaces/http"
)

// InitializeApp 初始化应用
func InitializeApp() (*App, error) {
	wire.Build(
		config.ProviderSet,
		source.ProviderSet,
		cache.ProviderSet,
		appdiff.ProviderSet,
		appconv.ProviderSet,
		appsearch.ProviderSet,
		watcher.ProviderSet,
		ifacehttp.ProviderSet,
		NewApp,
	)
	return nil, nil
}
