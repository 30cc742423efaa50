package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/xiebiao/biblioteca/pkg/logger"
	"github.com/xiebiao/biblioteca/pkg/mq"
)

// NewConsumerHandler 通知进程的消息处理函数
// 格式错误的消息无法通过重试修复，记录后确认丢弃
func NewConsumerHandler(log *zap.Logger) mq.Handler {
	log = logger.OrNop(log).Named("notifier")
	return func(_ context.Context, routingKey string, body []byte) error {
		event, err := DecodeBookAvailableEvent(body)
		if err != nil {
			log.Error("丢弃无法解析的消息", zap.String("routing_key", routingKey), zap.Error(err))
			return nil
		}

		log.Info("到书通知",
			zap.String("event_id", event.EventID),
			zap.Uint("user_id", event.UserID),
			zap.String("to", event.UserEmail),
			zap.String("body", event.Render()),
		)
		return nil
	}
}
