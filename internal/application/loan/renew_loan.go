package loan

import (
	"context"

	"go.uber.org/zap"

	"github.com/xiebiao/biblioteca/internal/domain/book"
	"github.com/xiebiao/biblioteca/internal/domain/circulation"
	"github.com/xiebiao/biblioteca/internal/domain/loan"
	"github.com/xiebiao/biblioteca/internal/domain/user"
	"github.com/xiebiao/biblioteca/pkg/dates"
	"github.com/xiebiao/biblioteca/pkg/logger"
	"github.com/xiebiao/biblioteca/pkg/tracing"
)

// RenewLoanUseCase 续借（本人或馆员）
// 延长区间(旧到期日, 新到期日]内同副本已被占用，或图书容量不足以同时满足排队预约时拒绝
type RenewLoanUseCase struct {
	tx     circulation.Transactor
	books  book.Repository
	loans  loan.Repository
	engine *circulation.Engine
	logger *zap.Logger
}

// NewRenewLoanUseCase 创建续借用例
func NewRenewLoanUseCase(tx circulation.Transactor, repos circulation.Repositories, engine *circulation.Engine, log *zap.Logger) *RenewLoanUseCase {
	return &RenewLoanUseCase{
		tx:     tx,
		books:  repos.Books,
		loans:  repos.Loans,
		engine: engine,
		logger: logger.OrNop(log).Named("loan"),
	}
}

// Execute 执行续借
func (uc *RenewLoanUseCase) Execute(ctx context.Context, actor user.Actor, loanID uint) (info *LoanInfo, err error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "RenewLoan")
	defer func() {
		tracing.RecordError(span, err)
		span.End()
	}()

	policy := uc.engine.Policy
	today := dates.Today(uc.engine.Now)
	var l *loan.Loan
	err = uc.tx.Transaction(ctx, func(ctx context.Context) error {
		var err error
		if l, err = lockLoan(ctx, uc.books, uc.loans, loanID); err != nil {
			return err
		}
		if !actor.CanActOn(l.UserID) {
			return loan.ErrNotOwner
		}

		// 先在副本上校验状态与次数，通过后再检查冲突
		renewed := *l
		if err := renewed.Renew(policy.LoanPeriodDays, policy.MaxRenewals, today); err != nil {
			return err
		}

		winStart, winEnd := l.RenewalWindow(policy.LoanPeriodDays)
		if l.CopyID != nil {
			busy, err := uc.loans.HasOverlapOnCopy(ctx, *l.CopyID, winStart, winEnd, l.ID)
			if err != nil {
				return err
			}
			if busy {
				return loan.ErrRenewalConflict
			}
		}
		// 自身不计入，其余借阅加排队预约仍要留出一册
		ok, err := uc.engine.Calculator.IsDateRangeAvailable(ctx, l.BookID, winStart, winEnd, circulation.ExcludeLoan(l.ID))
		if err != nil {
			return err
		}
		if !ok {
			return loan.ErrRenewalConflict
		}

		*l = renewed
		if err := uc.loans.Update(ctx, l); err != nil {
			return err
		}
		_, err = uc.engine.Reconciler.RecalculateBookAvailability(ctx, l.BookID)
		return err
	})
	if err != nil {
		return nil, err
	}

	revalidate(ctx, uc.engine, l)

	uc.logger.Info("借阅已续借",
		zap.Uint("loan_id", l.ID),
		zap.Int("renewals", l.Renewals),
		zap.String("due_date", dates.Format(l.DueDate)),
	)
	out := NewLoanInfo(l)
	return &out, nil
}
