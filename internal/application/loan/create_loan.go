package loan

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/xiebiao/biblioteca/internal/domain/book"
	"github.com/xiebiao/biblioteca/internal/domain/circulation"
	"github.com/xiebiao/biblioteca/internal/domain/user"
	"github.com/xiebiao/biblioteca/pkg/dates"
	apperrors "github.com/xiebiao/biblioteca/pkg/errors"
	"github.com/xiebiao/biblioteca/pkg/metrics"
	"github.com/xiebiao/biblioteca/pkg/tracing"
)

// CreateLoanUseCase 馆员直接办理借阅
// 起借日为今天时立即借出（in_corso），否则预留副本（prenotato）
type CreateLoanUseCase struct {
	alloc  *allocator
	users  user.Repository
	engine *circulation.Engine
	logger *zap.Logger
}

// NewCreateLoanUseCase 创建直借用例
func NewCreateLoanUseCase(tx circulation.Transactor, books book.Repository, users user.Repository, engine *circulation.Engine, log *zap.Logger) *CreateLoanUseCase {
	a := newAllocator(tx, books, engine, log)
	return &CreateLoanUseCase{alloc: a, users: users, engine: engine, logger: a.logger}
}

// CreateLoanRequest 直借请求
type CreateLoanRequest struct {
	Actor  user.Actor
	BookID uint
	UserID uint // 借阅读者
	Start  *time.Time
	End    *time.Time
	Notes  string
}

// Execute 执行直借
func (uc *CreateLoanUseCase) Execute(ctx context.Context, req CreateLoanRequest) (info *LoanInfo, err error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "CreateLoan")
	defer func() {
		tracing.RecordError(span, err)
		span.End()
	}()
	span.SetAttributes(
		attribute.Int64("book.id", int64(req.BookID)),
		attribute.Int64("user.id", int64(req.UserID)),
	)

	if !req.Actor.IsStaff() {
		return nil, apperrors.ErrForbidden
	}
	if _, err := uc.users.FindByID(ctx, req.UserID); err != nil {
		return nil, err
	}

	today := dates.Today(uc.engine.Now)
	start, end, err := resolveWindow(req.Start, req.End, today, uc.engine.Policy.LoanPeriodDays)
	if err != nil {
		return nil, err
	}

	l, err := uc.alloc.allocate(ctx, circulation.AllocationRequest{
		BookID:      req.BookID,
		UserID:      req.UserID,
		Start:       start,
		End:         end,
		ProcessedBy: req.Actor.StaffID(),
		Notes:       req.Notes,
	})
	if err != nil {
		return nil, err
	}

	metrics.IncLoanTransition("", l.Status.String())
	uc.logger.Info("馆员办理借阅",
		zap.Uint("loan_id", l.ID),
		zap.Uint("book_id", l.BookID),
		zap.Uint("user_id", l.UserID),
		zap.Stringer("status", l.Status),
		zap.Uint("staff_id", req.Actor.UserID),
	)
	out := NewLoanInfo(l)
	return &out, nil
}
