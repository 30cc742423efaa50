package loan

import (
	"context"

	"go.uber.org/zap"

	"github.com/xiebiao/biblioteca/internal/domain/book"
	"github.com/xiebiao/biblioteca/internal/domain/circulation"
	"github.com/xiebiao/biblioteca/internal/domain/loan"
	"github.com/xiebiao/biblioteca/internal/domain/user"
	"github.com/xiebiao/biblioteca/pkg/dates"
	apperrors "github.com/xiebiao/biblioteca/pkg/errors"
	"github.com/xiebiao/biblioteca/pkg/logger"
	"github.com/xiebiao/biblioteca/pkg/metrics"
	"github.com/xiebiao/biblioteca/pkg/tracing"
)

// ReturnLoanUseCase 归还（或登记遗失、损坏）
//
// 流程：
//  1. 事务内：借阅置为终态 → 释放副本（按映射表，仍有后续借阅时保留） → 重算计数
//  2. 提交后：尝试把队首预约转为借阅
type ReturnLoanUseCase struct {
	tx     circulation.Transactor
	books  book.Repository
	loans  loan.Repository
	engine *circulation.Engine
	logger *zap.Logger
}

// NewReturnLoanUseCase 创建归还用例
func NewReturnLoanUseCase(tx circulation.Transactor, repos circulation.Repositories, engine *circulation.Engine, log *zap.Logger) *ReturnLoanUseCase {
	return &ReturnLoanUseCase{
		tx:     tx,
		books:  repos.Books,
		loans:  repos.Loans,
		engine: engine,
		logger: logger.OrNop(log).Named("loan"),
	}
}

// ReturnLoanRequest 归还请求
type ReturnLoanRequest struct {
	Actor   user.Actor
	LoanID  uint
	Outcome string // restituito|perso|danneggiato，为空表示restituito
	Notes   string
}

// ReturnLoanResponse 归还结果
type ReturnLoanResponse struct {
	Loan       LoanInfo `json:"loan"`
	CopyStatus string   `json:"copy_status"`
	Promoted   bool     `json:"queue_promoted"` // 是否有预约因此转为借阅
}

// Execute 执行归还
func (uc *ReturnLoanUseCase) Execute(ctx context.Context, req ReturnLoanRequest) (resp *ReturnLoanResponse, err error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "ReturnLoan")
	defer func() {
		tracing.RecordError(span, err)
		span.End()
	}()

	if !req.Actor.IsStaff() {
		return nil, apperrors.ErrForbidden
	}

	outcome := loan.StatusReturned
	if req.Outcome != "" {
		if outcome, err = loan.ParseStatus(req.Outcome); err != nil {
			return nil, err
		}
	}
	copyStatus, ok := loan.CopyStatusOnClose(outcome)
	if !ok || outcome == loan.StatusCancelled {
		return nil, loan.ErrInvalidOutcome
	}

	today := dates.Today(uc.engine.Now)
	var (
		l    *loan.Loan
		from loan.Status
	)
	err = uc.tx.Transaction(ctx, func(ctx context.Context) error {
		var err error
		if l, err = lockLoan(ctx, uc.books, uc.loans, req.LoanID); err != nil {
			return err
		}
		from = l.Status
		if err := l.Close(outcome, today); err != nil {
			return err
		}
		if req.Notes != "" {
			l.Notes = req.Notes
		}
		if err := uc.loans.Update(ctx, l); err != nil {
			return err
		}

		if l.CopyID != nil {
			// 副本上还有后续借阅时继续为其保留
			if copyStatus, err = uc.engine.Reconciler.ReleaseCopy(ctx, *l.CopyID, outcome); err != nil {
				return err
			}
		}
		_, err = uc.engine.Reconciler.RecalculateBookAvailability(ctx, l.BookID)
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.IncLoanTransition(from.String(), outcome.String())
	uc.logger.Info("借阅已结束",
		zap.Uint("loan_id", l.ID),
		zap.Stringer("outcome", outcome),
		zap.Stringer("copy_status", copyStatus),
	)

	// 队列处理失败不影响已提交的归还
	promoted, qerr := uc.engine.Queue.ProcessBookAvailability(ctx, l.BookID)
	if qerr != nil {
		uc.logger.Error("归还后处理预约队列失败", zap.Uint("book_id", l.BookID), zap.Error(qerr))
	}

	return &ReturnLoanResponse{
		Loan:       NewLoanInfo(l),
		CopyStatus: copyStatus.String(),
		Promoted:   promoted,
	}, nil
}
