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

// ApproveLoanUseCase 馆员审批借阅申请
// pendente → in_corso（起借日已到，副本借出）或 prenotato（副本保留）
type ApproveLoanUseCase struct {
	tx     circulation.Transactor
	books  book.Repository
	copies bookcopy.Repository
	loans  loan.Repository
	engine *circulation.Engine
	logger *zap.Logger
}

// NewApproveLoanUseCase 创建审批用例
func NewApproveLoanUseCase(tx circulation.Transactor, repos circulation.Repositories, engine *circulation.Engine, log *zap.Logger) *ApproveLoanUseCase {
	return &ApproveLoanUseCase{
		tx:     tx,
		books:  repos.Books,
		copies: repos.Copies,
		loans:  repos.Loans,
		engine: engine,
		logger: logger.OrNop(log).Named("loan"),
	}
}

// Execute 执行审批
func (uc *ApproveLoanUseCase) Execute(ctx context.Context, actor user.Actor, loanID uint) (info *LoanInfo, err error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "ApproveLoan")
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
		if err := l.Approve(today, actor.UserID); err != nil {
			return err
		}
		if err := uc.loans.Update(ctx, l); err != nil {
			return err
		}
		if l.CopyID != nil {
			if err := uc.copies.UpdateStatus(ctx, *l.CopyID, loan.CopyStatusWhileOpen(l.Status)); err != nil {
				return err
			}
		}
		_, err = uc.engine.Reconciler.RecalculateBookAvailability(ctx, l.BookID)
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.IncLoanTransition(loan.StatusPending.String(), l.Status.String())
	revalidate(ctx, uc.engine, l)
	uc.logger.Info("借阅申请已审批",
		zap.Uint("loan_id", l.ID),
		zap.Stringer("status", l.Status),
		zap.Uint("staff_id", actor.UserID),
	)
	out := NewLoanInfo(l)
	return &out, nil
}

// lockLoan 先锁图书行再锁借阅行，与分配、队列处理的加锁顺序一致
func lockLoan(ctx context.Context, books book.Repository, loans loan.Repository, loanID uint) (*loan.Loan, error) {
	l, err := loans.FindByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if _, err := books.LockByID(ctx, l.BookID); err != nil {
		return nil, err
	}
	return loans.LockByID(ctx, loanID)
}
