// notifier 消费reservation.*事件并发送到书通知
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/xiebiao/biblioteca/internal/bootstrap"
	"github.com/xiebiao/biblioteca/internal/infrastructure/config"
	"github.com/xiebiao/biblioteca/internal/infrastructure/notify"
	"github.com/xiebiao/biblioteca/pkg/metrics"
	"github.com/xiebiao/biblioteca/pkg/mq"
)

// routingKeys 订阅的事件
var routingKeys = []string{"reservation.*"}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	logger := bootstrap.NewLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	metrics.InitMetrics()

	consumer, err := mq.NewConsumer(
		cfg.RabbitMQ.URL,
		cfg.RabbitMQ.Exchange,
		cfg.RabbitMQ.ExchangeType,
		cfg.RabbitMQ.Queue,
		routingKeys,
		logger,
	)
	if err != nil {
		logger.Fatal("创建消费者失败", zap.Error(err))
	}
	defer func() {
		if err := consumer.Close(); err != nil {
			logger.Warn("关闭消费者失败", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := consumer.Consume(ctx, notify.NewConsumerHandler(logger)); err != nil {
		logger.Error("消费异常退出", zap.Error(err))
		return
	}
	logger.Info("notifier已安全关闭")
}
