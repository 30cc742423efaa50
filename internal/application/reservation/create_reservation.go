package reservation

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/xiebiao/biblioteca/internal/domain/book"
	"github.com/xiebiao/biblioteca/internal/domain/circulation"
	"github.com/xiebiao/biblioteca/internal/domain/reservation"
	"github.com/xiebiao/biblioteca/internal/domain/user"
	apperrors "github.com/xiebiao/biblioteca/pkg/errors"
	"github.com/xiebiao/biblioteca/pkg/logger"
	"github.com/xiebiao/biblioteca/pkg/tracing"
)

// CreateReservationUseCase 加入预约队列
// 入队后立即尝试处理队首：有空闲容量时预约当场转为借阅
type CreateReservationUseCase struct {
	books        book.Repository
	reservations reservation.Repository
	engine       *circulation.Engine
	logger       *zap.Logger
}

// NewCreateReservationUseCase 创建预约用例
func NewCreateReservationUseCase(repos circulation.Repositories, engine *circulation.Engine, log *zap.Logger) *CreateReservationUseCase {
	return &CreateReservationUseCase{
		books:        repos.Books,
		reservations: repos.Reservations,
		engine:       engine,
		logger:       logger.OrNop(log).Named("reservation"),
	}
}

// CreateReservationRequest 预约请求
type CreateReservationRequest struct {
	Actor  user.Actor
	BookID uint
	UserID uint // 馆员代读者预约时填写，为0表示本人
	Start  *time.Time
	End    *time.Time
}

// Execute 执行预约
func (uc *CreateReservationUseCase) Execute(ctx context.Context, req CreateReservationRequest) (info *ReservationInfo, err error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "CreateReservation")
	defer func() {
		tracing.RecordError(span, err)
		span.End()
	}()
	span.SetAttributes(attribute.Int64("book.id", int64(req.BookID)))

	userID := req.UserID
	if userID == 0 {
		userID = req.Actor.UserID
	}
	if !req.Actor.CanActOn(userID) {
		return nil, apperrors.ErrForbidden
	}

	r, err := uc.engine.Queue.Enqueue(ctx, circulation.EnqueueRequest{
		BookID: req.BookID,
		UserID: userID,
		Start:  req.Start,
		End:    req.End,
	})
	if err != nil {
		return nil, err
	}

	if _, err := uc.engine.Queue.ProcessBookAvailability(ctx, req.BookID); err != nil {
		uc.logger.Error("入队后处理队首失败", zap.Uint("book_id", req.BookID), zap.Error(err))
	}

	// 重新读取，可能已转为借阅
	if fresh, err := uc.reservations.FindByID(ctx, r.ID); err == nil {
		r = fresh
	}
	out := NewReservationInfo(r)
	return &out, nil
}
