// Package notify 到书通知的投递实现
package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xiebiao/biblioteca/internal/domain/circulation"
	"github.com/xiebiao/biblioteca/pkg/circuitbreaker"
	"github.com/xiebiao/biblioteca/pkg/logger"
)

// Publisher 消息发布端口（由mq.Publisher实现）
type Publisher interface {
	Publish(ctx context.Context, routingKey, messageID string, message interface{}) error
}

// AMQPNotifier 把到书通知发布到RabbitMQ
// 熔断器打开时直接返回错误，不阻塞借阅流程
type AMQPNotifier struct {
	publisher Publisher
	breaker   *circuitbreaker.CircuitBreaker
	now       func() time.Time
	logger    *zap.Logger
}

var _ circulation.Notifier = (*AMQPNotifier)(nil)

// NewAMQPNotifier 创建RabbitMQ通知器，breaker为nil时使用默认熔断配置
func NewAMQPNotifier(publisher Publisher, breaker *circuitbreaker.CircuitBreaker, log *zap.Logger) *AMQPNotifier {
	log = logger.OrNop(log).Named("notifier")
	if breaker == nil {
		breaker = circuitbreaker.NewCircuitBreaker("notifier", circuitbreaker.Config{
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
		})
	}
	breaker.SetStateChangeCallback(func(name string, from, to circuitbreaker.State) {
		log.Warn("熔断器状态变化",
			zap.String("breaker", name),
			zap.Stringer("from", from),
			zap.Stringer("to", to),
		)
	})
	return &AMQPNotifier{
		publisher: publisher,
		breaker:   breaker,
		now:       time.Now,
		logger:    log,
	}
}

// NotifyBookAvailable 发布reservation.promoted事件
func (n *AMQPNotifier) NotifyBookAvailable(ctx context.Context, notice circulation.BookAvailableNotice) error {
	event := NewBookAvailableEvent(notice, n.now())
	err := n.breaker.Execute(func() error {
		return n.publisher.Publish(ctx, RoutingKeyBookAvailable, event.EventID, event)
	})
	if err != nil {
		return fmt.Errorf("发布到书通知失败: %w", err)
	}

	n.logger.Info("到书通知已发布",
		zap.String("event_id", event.EventID),
		zap.Uint("reservation_id", event.ReservationID),
		zap.Uint("user_id", event.UserID),
	)
	return nil
}

// LogNotifier 只写日志（未启用RabbitMQ时使用）
type LogNotifier struct {
	logger *zap.Logger
}

var _ circulation.Notifier = (*LogNotifier)(nil)

// NewLogNotifier 创建日志通知器
func NewLogNotifier(log *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.OrNop(log).Named("notifier")}
}

// NotifyBookAvailable 记录通知内容
func (n *LogNotifier) NotifyBookAvailable(_ context.Context, notice circulation.BookAvailableNotice) error {
	event := NewBookAvailableEvent(notice, time.Now())
	n.logger.Info("到书通知",
		zap.String("event_id", event.EventID),
		zap.String("to", event.UserEmail),
		zap.String("body", event.Render()),
	)
	return nil
}
