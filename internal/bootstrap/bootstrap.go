// Package bootstrap 各进程共用的组装代码
//
// api、bibliotecactl、notifier三个进程都从配置构建日志、数据库和流通引擎，
// 组装顺序：Config → Logger → DB → Repository → Engine
package bootstrap

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/xiebiao/biblioteca/internal/domain/book"
	"github.com/xiebiao/biblioteca/internal/domain/circulation"
	"github.com/xiebiao/biblioteca/internal/domain/user"
	"github.com/xiebiao/biblioteca/internal/infrastructure/config"
	"github.com/xiebiao/biblioteca/internal/infrastructure/notify"
	"github.com/xiebiao/biblioteca/internal/infrastructure/persistence/mysql"
	"github.com/xiebiao/biblioteca/pkg/logger"
	"github.com/xiebiao/biblioteca/pkg/mq"
)

// NewLogger 按配置创建Logger并替换zap全局Logger
func NewLogger(cfg config.LogConfig) *zap.Logger {
	log := logger.New(logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableCaller: cfg.EnableCaller,
		MaxSizeMB:    cfg.MaxSizeMB,
		MaxBackups:   cfg.MaxBackups,
		MaxAgeDays:   cfg.MaxAgeDays,
		Compress:     cfg.Compress,
	})
	zap.ReplaceGlobals(log)
	return log
}

// Policy 流通规则（配置在加载时已校验）
func Policy(cfg config.CirculationConfig) circulation.Policy {
	return circulation.Policy{
		LoanPeriodDays:     cfg.LoanPeriodDays,
		MaxRenewals:        cfg.MaxRenewals,
		ReservationTTLDays: cfg.ReservationTTLDays,
		AllocationRetries:  cfg.AllocationRetries,
		PickupGraceDays:    cfg.PickupGraceDays,
	}
}

// UTCClock 流通引擎的时钟，日期一律按UTC计算
func UTCClock() time.Time {
	return time.Now().UTC()
}

// NewNotifier 启用RabbitMQ时发布到书事件，否则只写日志
// 返回的cleanup负责关闭连接
func NewNotifier(cfg config.RabbitMQConfig, log *zap.Logger) (circulation.Notifier, func(), error) {
	if !cfg.Enabled {
		return notify.NewLogNotifier(log), func() {}, nil
	}

	publisher, err := mq.NewPublisher(cfg.URL, cfg.Exchange, cfg.ExchangeType, log)
	if err != nil {
		return nil, nil, fmt.Errorf("创建消息发布者失败: %w", err)
	}
	cleanup := func() {
		if err := publisher.Close(); err != nil {
			log.Warn("关闭消息发布者失败", zap.Error(err))
		}
	}
	return notify.NewAMQPNotifier(publisher, nil, log), cleanup, nil
}

// Core 数据库之上的领域组件
type Core struct {
	DB          *gorm.DB
	Tx          *mysql.TxManager
	Repos       circulation.Repositories
	Engine      *circulation.Engine
	UserService user.Service
	BookService book.Service
}

// NewRepositories 基于同一个DB创建全部仓储
func NewRepositories(db *gorm.DB) circulation.Repositories {
	return circulation.Repositories{
		Books:        mysql.NewBookRepository(db),
		Copies:       mysql.NewCopyRepository(db),
		Loans:        mysql.NewLoanRepository(db),
		Reservations: mysql.NewReservationRepository(db),
		Users:        mysql.NewUserRepository(db),
	}
}

// NewCore 组装仓储、领域服务与流通引擎
func NewCore(db *gorm.DB, notifier circulation.Notifier, cfg config.CirculationConfig, log *zap.Logger, userOpts ...user.Option) *Core {
	tx := mysql.NewTxManager(db)
	repos := NewRepositories(db)
	return &Core{
		DB:          db,
		Tx:          tx,
		Repos:       repos,
		Engine:      circulation.NewEngine(tx, repos, notifier, Policy(cfg), UTCClock, log),
		UserService: user.NewService(repos.Users, userOpts...),
		BookService: book.NewService(repos.Books),
	}
}

// CloseDB 关闭底层连接池
func CloseDB(db *gorm.DB, log *zap.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Warn("关闭数据库连接失败", zap.Error(err))
	}
}
