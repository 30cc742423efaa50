//go:build wireinject
// +build wireinject

// Wire依赖注入配置，修改后运行 `wire gen ./cmd/api` 重新生成wire_gen.go

package main

import (
	"github.com/google/wire"

	"github.com/xiebiao/biblioteca/internal/infrastructure/config"
	"github.com/xiebiao/biblioteca/internal/infrastructure/persistence/redis"
	"github.com/xiebiao/biblioteca/internal/interface/http/router"
)

// infrastructureSet 日志、数据库、Redis与消息通知
var infrastructureSet = wire.NewSet(
	provideLogger,
	provideDB,
	provideRedis,
	provideNotifier,
)

// authSet JWT与登录会话
var authSet = wire.NewSet(
	provideJWTManager,
	provideSessionStore,
	wire.Bind(new(router.SessionBackend), new(*redis.SessionStore)),
)

// httpSet 流通引擎、用例与路由
var httpSet = wire.NewSet(
	provideCore,
	provideDeps,
	router.NewHandlers,
	provideRouter,
)

// InitializeApp 组装api进程
func InitializeApp(cfg *config.Config) (*App, func(), error) {
	wire.Build(
		infrastructureSet,
		authSet,
		httpSet,
		wire.Struct(new(App), "*"),
	)
	return nil, nil, nil
}
