package main

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/xiebiao/biblioteca/internal/bootstrap"
	"github.com/xiebiao/biblioteca/internal/domain/circulation"
	"github.com/xiebiao/biblioteca/internal/infrastructure/config"
	"github.com/xiebiao/biblioteca/internal/infrastructure/persistence/mysql"
	"github.com/xiebiao/biblioteca/internal/infrastructure/persistence/redis"
	"github.com/xiebiao/biblioteca/internal/interface/http/router"
	"github.com/xiebiao/biblioteca/pkg/jwt"
)

// App api进程运行所需的全部组件
type App struct {
	Config *config.Config
	Logger *zap.Logger
	Engine *gin.Engine
}

// redisPingTimeout 启动时检查Redis连通性的超时
const redisPingTimeout = 3 * time.Second

func provideLogger(cfg *config.Config) (*zap.Logger, func()) {
	log := bootstrap.NewLogger(cfg.Log)
	return log, func() { _ = log.Sync() }
}

func provideDB(cfg *config.Config, log *zap.Logger) (*gorm.DB, func(), error) {
	db, err := mysql.NewDB(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return db, func() { bootstrap.CloseDB(db, log) }, nil
}

func provideRedis(cfg *config.Config, log *zap.Logger) (*goredis.Client, func(), error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()

	client, err := redis.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		return nil, nil, err
	}
	return client, func() { _ = client.Close() }, nil
}

func provideSessionStore(client *goredis.Client) *redis.SessionStore {
	return redis.NewSessionStore(client)
}

// provideJWTManager jwt.NewManager只需要JWT相关配置，从Config中提取
func provideJWTManager(cfg *config.Config) *jwt.Manager {
	return jwt.NewManager(
		cfg.JWT.Secret,
		cfg.JWT.Issuer,
		cfg.JWT.AccessTokenExpire,
		cfg.JWT.RefreshTokenExpire,
	)
}

func provideNotifier(cfg *config.Config, log *zap.Logger) (circulation.Notifier, func(), error) {
	return bootstrap.NewNotifier(cfg.RabbitMQ, log)
}

func provideCore(cfg *config.Config, db *gorm.DB, notifier circulation.Notifier, log *zap.Logger) *bootstrap.Core {
	return bootstrap.NewCore(db, notifier, cfg.Circulation, log)
}

// provideDeps 会话有效期与Refresh Token一致
func provideDeps(cfg *config.Config, core *bootstrap.Core, jwtManager *jwt.Manager, sessions router.SessionBackend, log *zap.Logger) router.Deps {
	return router.Deps{
		Tx:          core.Tx,
		Repos:       core.Repos,
		Engine:      core.Engine,
		UserService: core.UserService,
		BookService: core.BookService,
		JWT:         jwtManager,
		Sessions:    sessions,
		SessionTTL:  cfg.JWT.RefreshTokenExpire,
		Logger:      log,
	}
}

// provideRouter release模式下不暴露Swagger
func provideRouter(cfg *config.Config, h router.Handlers, log *zap.Logger) *gin.Engine {
	return router.New(router.Options{
		Mode:    cfg.Server.Mode,
		Swagger: cfg.Server.Mode != "release",
		Logger:  log,
	}, h)
}
