package reservation

import (
	"context"

	"go.uber.org/zap"

	"github.com/xiebiao/biblioteca/internal/domain/book"
	"github.com/xiebiao/biblioteca/internal/domain/circulation"
	"github.com/xiebiao/biblioteca/internal/domain/reservation"
	"github.com/xiebiao/biblioteca/internal/domain/user"
	apperrors "github.com/xiebiao/biblioteca/pkg/errors"
	"github.com/xiebiao/biblioteca/pkg/logger"
	"github.com/xiebiao/biblioteca/pkg/tracing"
)

// ListQueueUseCase 图书的排队预约（馆员）
type ListQueueUseCase struct {
	books        book.Repository
	reservations reservation.Repository
}

// NewListQueueUseCase 创建队列查询用例
func NewListQueueUseCase(books book.Repository, reservations reservation.Repository) *ListQueueUseCase {
	return &ListQueueUseCase{books: books, reservations: reservations}
}

// Execute 按排位返回队列
func (uc *ListQueueUseCase) Execute(ctx context.Context, actor user.Actor, bookID uint) ([]ReservationInfo, error) {
	if !actor.IsStaff() {
		return nil, apperrors.ErrForbidden
	}
	if _, err := uc.books.FindByID(ctx, bookID); err != nil {
		return nil, err
	}
	queue, err := uc.reservations.ListActiveByBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	return toInfos(queue), nil
}

// ListMyReservationsUseCase 读者的预约
type ListMyReservationsUseCase struct {
	reservations reservation.Repository
}

// NewListMyReservationsUseCase 创建查询用例
func NewListMyReservationsUseCase(reservations reservation.Repository) *ListMyReservationsUseCase {
	return &ListMyReservationsUseCase{reservations: reservations}
}

// Execute 按创建时间倒序返回
func (uc *ListMyReservationsUseCase) Execute(ctx context.Context, actor user.Actor) ([]ReservationInfo, error) {
	list, err := uc.reservations.ListByUser(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	return toInfos(list), nil
}

// ProcessQueueUseCase 馆员手动处理队列
type ProcessQueueUseCase struct {
	books  book.Repository
	engine *circulation.Engine
	logger *zap.Logger
}

// NewProcessQueueUseCase 创建队列处理用例
func NewProcessQueueUseCase(books book.Repository, engine *circulation.Engine, log *zap.Logger) *ProcessQueueUseCase {
	return &ProcessQueueUseCase{books: books, engine: engine, logger: logger.OrNop(log).Named("reservation")}
}

// ProcessQueueResponse 处理结果
type ProcessQueueResponse struct {
	BookID   uint `json:"book_id"`
	Promoted int  `json:"promoted"`
}

// Execute 连续处理队首直到无法转借阅，limit<=0表示不限
func (uc *ProcessQueueUseCase) Execute(ctx context.Context, actor user.Actor, bookID uint, limit int) (resp *ProcessQueueResponse, err error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "ProcessQueue")
	defer func() {
		tracing.RecordError(span, err)
		span.End()
	}()

	if !actor.IsStaff() {
		return nil, apperrors.ErrForbidden
	}
	if _, err := uc.books.FindByID(ctx, bookID); err != nil {
		return nil, err
	}

	n, err := uc.engine.Queue.DrainQueue(ctx, bookID, limit)
	if err != nil {
		return nil, err
	}
	uc.logger.Info("队列处理完成", zap.Uint("book_id", bookID), zap.Int("promoted", n))
	return &ProcessQueueResponse{BookID: bookID, Promoted: n}, nil
}
