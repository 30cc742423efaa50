package loan

import (
	"context"

	"go.uber.org/zap"

	"github.com/xiebiao/biblioteca/internal/domain/book"
	"github.com/xiebiao/biblioteca/internal/domain/bookcopy"
	"github.com/xiebiao/biblioteca/internal/domain/circulation"
	"github.com/xiebiao/biblioteca/internal/domain/loan"
	"github.com/xiebiao/biblioteca/internal/domain/user"
	"github.com/xiebiao/biblioteca/pkg/dates"
	apperrors "github.com/xiebiao/biblioteca/pkg/errors"
	"github.com/xiebiao/biblioteca/pkg/logger"
	"github.com/xiebiao/biblioteca/pkg/metrics"
	"github.com/xiebiao/biblioteca/pkg/tracing"
)

// PickupLoanUseCase 读者到馆取书（prenotato → in_corso）
type PickupLoanUseCase struct {
	tx     circulation.Transactor
	books  book.Repository
	copies bookcopy.Repository
	loans  loan.Repository
	engine *circulation.Engine
	logger *zap.Logger
}

// NewPickupLoanUseCase 创建取书用例
func NewPickupLoanUseCase(tx circulation.Transactor, repos circulation.Repositories, engine *circulation.Engine, log *zap.Logger) *PickupLoanUseCase {
	return &PickupLoanUseCase{
		tx:     tx,
		books:  repos.Books,
		copies: repos.Copies,
		loans:  repos.Loans,
		engine: engine,
		logger: logger.OrNop(log).Named("loan"),
	}
}

// Execute 执行取书
// 提前取书时起借日改为今天，需确认副本在提前的日期内没有被其他借阅占用
func (uc *PickupLoanUseCase) Execute(ctx context.Context, actor user.Actor, loanID uint) (info *LoanInfo, err error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "PickupLoan")
	defer func() {
		tracing.RecordError(span, err)
		span.End()
	}()

	if !actor.IsStaff() {
		return nil, apperrors.ErrForbidden
	}

	today := dates.Today(uc.engine.Now)
	var l *loan.Loan
	err = uc.tx.Transaction(ctx, func(ctx context.Context) error {
		var err error
		if l, err = lockLoan(ctx, uc.books, uc.loans, loanID); err != nil {
			return err
		}
		if l.Status != loan.StatusReserved {
			return loan.ErrInvalidTransition
		}
		if l.CopyID != nil && today.Before(l.StartDate) {
			busy, err := uc.loans.HasOverlapOnCopy(ctx, *l.CopyID, today, l.DueDate, l.ID)
			if err != nil {
				return err
			}
			if busy {
				return circulation.ErrNotAvailable
			}
		}

		if err := l.Pickup(today); err != nil {
			return err
		}
		if err := uc.loans.Update(ctx, l); err != nil {
			return err
		}
		if l.CopyID != nil {
			if err := uc.copies.UpdateStatus(ctx, *l.CopyID, bookcopy.StatusLoaned); err != nil {
				return err
			}
		}
		_, err = uc.engine.Reconciler.RecalculateBookAvailability(ctx, l.BookID)
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.IncLoanTransition(loan.StatusReserved.String(), loan.StatusActive.String())
	revalidate(ctx, uc.engine, l)
	uc.logger.Info("读者已取书", zap.Uint("loan_id", l.ID), zap.Uint("user_id", l.UserID))
	out := NewLoanInfo(l)
	return &out, nil
}
