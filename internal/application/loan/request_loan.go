package loan

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/xiebiao/biblioteca/internal/domain/book"
	"github.com/xiebiao/biblioteca/internal/domain/circulation"
	"github.com/xiebiao/biblioteca/internal/domain/loan"
	"github.com/xiebiao/biblioteca/internal/domain/user"
	"github.com/xiebiao/biblioteca/pkg/dates"
	"github.com/xiebiao/biblioteca/pkg/metrics"
	"github.com/xiebiao/biblioteca/pkg/tracing"
)

// RequestLoanUseCase 读者申请借阅
// 有容量时分配副本并创建待审批借阅；无容量时返回不可借，或按请求自动排队
type RequestLoanUseCase struct {
	alloc  *allocator
	engine *circulation.Engine
	logger *zap.Logger
}

// NewRequestLoanUseCase 创建申请借阅用例
func NewRequestLoanUseCase(tx circulation.Transactor, books book.Repository, engine *circulation.Engine, log *zap.Logger) *RequestLoanUseCase {
	a := newAllocator(tx, books, engine, log)
	return &RequestLoanUseCase{alloc: a, engine: engine, logger: a.logger}
}

// RequestLoanRequest 申请借阅请求
type RequestLoanRequest struct {
	Actor              user.Actor
	BookID             uint
	Start              *time.Time // 为空表示今天
	End                *time.Time // 为空按借期推算
	QueueIfUnavailable bool       // 不可借时自动加入预约队列
}

// QueuedReservation 自动排队结果
type QueuedReservation struct {
	ID            uint `json:"id"`
	QueuePosition int  `json:"queue_position"`
}

// RequestLoanResponse 申请结果，Loan与Reservation二选一
type RequestLoanResponse struct {
	Loan        *LoanInfo          `json:"loan,omitempty"`
	Reservation *QueuedReservation `json:"reservation,omitempty"`
}

// Execute 执行申请
func (uc *RequestLoanUseCase) Execute(ctx context.Context, req RequestLoanRequest) (resp *RequestLoanResponse, err error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "RequestLoan")
	defer func() {
		tracing.RecordError(span, err)
		span.End()
	}()
	span.SetAttributes(attribute.Int64("book.id", int64(req.BookID)))

	today := dates.Today(uc.engine.Now)
	start, end, err := resolveWindow(req.Start, req.End, today, uc.engine.Policy.LoanPeriodDays)
	if err != nil {
		return nil, err
	}

	l, err := uc.alloc.allocate(ctx, circulation.AllocationRequest{
		BookID: req.BookID,
		UserID: req.Actor.UserID,
		Start:  start,
		End:    end,
		Status: loan.StatusPending,
	})
	if err == nil {
		metrics.IncLoanTransition("", loan.StatusPending.String())
		uc.logger.Info("借阅申请已创建",
			zap.Uint("loan_id", l.ID),
			zap.Uint("book_id", l.BookID),
			zap.Uint("user_id", l.UserID),
		)
		info := NewLoanInfo(l)
		return &RequestLoanResponse{Loan: &info}, nil
	}
	if !errors.Is(err, circulation.ErrNotAvailable) || !req.QueueIfUnavailable {
		return nil, err
	}

	// 不可借，转为预约（指定了起借日时保留区间）
	enq := circulation.EnqueueRequest{BookID: req.BookID, UserID: req.Actor.UserID}
	if req.Start != nil {
		enq.Start, enq.End = &start, &end
	}
	r, err := uc.engine.Queue.Enqueue(ctx, enq)
	if err != nil {
		return nil, err
	}
	return &RequestLoanResponse{
		Reservation: &QueuedReservation{ID: r.ID, QueuePosition: r.QueuePosition},
	}, nil
}
