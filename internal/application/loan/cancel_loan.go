package loan

import (
	"context"

	"go.uber.org/zap"

	"github.com/xiebiao/biblioteca/internal/domain/book"
	"github.com/xiebiao/biblioteca/internal/domain/circulation"
	"github.com/xiebiao/biblioteca/internal/domain/loan"
	"github.com/xiebiao/biblioteca/internal/domain/user"
	"github.com/xiebiao/biblioteca/pkg/logger"
	"github.com/xiebiao/biblioteca/pkg/metrics"
	"github.com/xiebiao/biblioteca/pkg/tracing"
)

// CancelLoanUseCase 取消尚未取书的借阅
// 馆员驳回申请或释放预约，读者撤回自己的申请或预约
// pendente/prenotato → annullato，副本释放后尝试处理排队
type CancelLoanUseCase struct {
	tx     circulation.Transactor
	books  book.Repository
	loans  loan.Repository
	engine *circulation.Engine
	logger *zap.Logger
}

// NewCancelLoanUseCase 创建取消用例
func NewCancelLoanUseCase(tx circulation.Transactor, repos circulation.Repositories, engine *circulation.Engine, log *zap.Logger) *CancelLoanUseCase {
	return &CancelLoanUseCase{
		tx:     tx,
		books:  repos.Books,
		loans:  repos.Loans,
		engine: engine,
		logger: logger.OrNop(log).Named("loan"),
	}
}

// CancelLoanRequest 取消请求
type CancelLoanRequest struct {
	Actor  user.Actor
	LoanID uint
	Notes  string
}

// CancelLoanResponse 取消结果
type CancelLoanResponse struct {
	Loan       LoanInfo `json:"loan"`
	CopyStatus string   `json:"copy_status,omitempty"`
	Promoted   bool     `json:"queue_promoted"`
}

// Execute 执行取消
func (uc *CancelLoanUseCase) Execute(ctx context.Context, req CancelLoanRequest) (resp *CancelLoanResponse, err error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "CancelLoan")
	defer func() {
		tracing.RecordError(span, err)
		span.End()
	}()

	var (
		l          *loan.Loan
		from       loan.Status
		copyStatus string
	)
	err = uc.tx.Transaction(ctx, func(ctx context.Context) error {
		var err error
		if l, err = lockLoan(ctx, uc.books, uc.loans, req.LoanID); err != nil {
			return err
		}
		if !req.Actor.CanActOn(l.UserID) {
			return loan.ErrNotOwner
		}
		from = l.Status
		if err := l.Cancel(); err != nil {
			return err
		}
		if req.Notes != "" {
			l.Notes = req.Notes
		}
		if err := uc.loans.Update(ctx, l); err != nil {
			return err
		}

		if l.CopyID != nil {
			st, err := uc.engine.Reconciler.ReleaseCopy(ctx, *l.CopyID, l.Status)
			if err != nil {
				return err
			}
			copyStatus = st.String()
		}
		_, err = uc.engine.Reconciler.RecalculateBookAvailability(ctx, l.BookID)
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.IncLoanTransition(from.String(), l.Status.String())
	uc.logger.Info("借阅已取消",
		zap.Uint("loan_id", l.ID),
		zap.Stringer("from", from),
		zap.Uint("actor_id", req.Actor.UserID),
		zap.Bool("by_staff", req.Actor.IsStaff()),
	)

	promoted, qerr := uc.engine.Queue.ProcessBookAvailability(ctx, l.BookID)
	if qerr != nil {
		uc.logger.Error("取消后处理预约队列失败", zap.Uint("book_id", l.BookID), zap.Error(qerr))
	}

	return &CancelLoanResponse{
		Loan:       NewLoanInfo(l),
		CopyStatus: copyStatus,
		Promoted:   promoted,
	}, nil
}
