package reservation

import (
	"context"

	"go.uber.org/zap"

	"github.com/xiebiao/biblioteca/internal/domain/circulation"
	"github.com/xiebiao/biblioteca/internal/domain/user"
	"github.com/xiebiao/biblioteca/pkg/logger"
	"github.com/xiebiao/biblioteca/pkg/tracing"
)

// CancelReservationUseCase 取消预约（本人或馆员）
type CancelReservationUseCase struct {
	engine *circulation.Engine
	logger *zap.Logger
}

// NewCancelReservationUseCase 创建取消用例
func NewCancelReservationUseCase(engine *circulation.Engine, log *zap.Logger) *CancelReservationUseCase {
	return &CancelReservationUseCase{engine: engine, logger: logger.OrNop(log).Named("reservation")}
}

// Execute 执行取消
// 队列前移后下一位可能已经可以借到，提交后处理一次队首
func (uc *CancelReservationUseCase) Execute(ctx context.Context, actor user.Actor, reservationID uint) (info *ReservationInfo, err error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "CancelReservation")
	defer func() {
		tracing.RecordError(span, err)
		span.End()
	}()

	r, err := uc.engine.Queue.Cancel(ctx, reservationID, actor)
	if err != nil {
		return nil, err
	}
	uc.logger.Info("预约已取消",
		zap.Uint("reservation_id", r.ID),
		zap.Uint("book_id", r.BookID),
		zap.Uint("actor_id", actor.UserID),
	)

	if _, err := uc.engine.Queue.ProcessBookAvailability(ctx, r.BookID); err != nil {
		uc.logger.Error("取消后处理队首失败", zap.Uint("book_id", r.BookID), zap.Error(err))
	}

	out := NewReservationInfo(r)
	return &out, nil
}
