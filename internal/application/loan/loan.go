// Package loan 借阅用例：申请、馆员直借、审批、取书、归还、续借与查询
package loan

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xiebiao/biblioteca/internal/domain/book"
	"github.com/xiebiao/biblioteca/internal/domain/circulation"
	"github.com/xiebiao/biblioteca/internal/domain/loan"
	"github.com/xiebiao/biblioteca/pkg/dates"
	apperrors "github.com/xiebiao/biblioteca/pkg/errors"
	"github.com/xiebiao/biblioteca/pkg/logger"
	"github.com/xiebiao/biblioteca/pkg/retry"
)

const tracerName = "biblioteca/application/loan"

// LoanInfo 借阅信息
type LoanInfo struct {
	ID          uint   `json:"id"`
	BookID      uint   `json:"book_id"`
	CopyID      *uint  `json:"copy_id,omitempty"`
	UserID      uint   `json:"user_id"`
	StartDate   string `json:"start_date"`
	DueDate     string `json:"due_date"`
	ReturnedAt  string `json:"returned_at,omitempty"`
	Status      string `json:"status"`
	Active      bool   `json:"active"`
	Renewals    int    `json:"renewals"`
	ProcessedBy *uint  `json:"processed_by,omitempty"`
	Notes       string `json:"notes,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// NewLoanInfo 实体转DTO
func NewLoanInfo(l *loan.Loan) LoanInfo {
	return LoanInfo{
		ID:          l.ID,
		BookID:      l.BookID,
		CopyID:      l.CopyID,
		UserID:      l.UserID,
		StartDate:   dates.Format(l.StartDate),
		DueDate:     dates.Format(l.DueDate),
		ReturnedAt:  dates.FormatPtr(l.ReturnedAt),
		Status:      l.Status.String(),
		Active:      l.Active,
		Renewals:    l.Renewals,
		ProcessedBy: l.ProcessedBy,
		Notes:       l.Notes,
		CreatedAt:   l.CreatedAt.Format(time.RFC3339),
	}
}

// revalidate 事务提交后按今天的日期校验借阅（如取书时已过到期日）
// 失败由Reconciler记录日志，不影响已提交的操作
func revalidate(ctx context.Context, engine *circulation.Engine, l *loan.Loan) {
	if v := engine.Reconciler.ValidateAndUpdateLoan(ctx, l.ID); v.Success && v.Changed {
		l.Status = v.To
	}
}

// resolveWindow 补全借阅区间：起借日默认今天，到期日默认起借日+借期
// 起借日不能早于今天
func resolveWindow(start, end *time.Time, today time.Time, periodDays int) (time.Time, time.Time, error) {
	s := today
	if start != nil {
		s = dates.Truncate(*start)
	}
	if s.Before(today) {
		return time.Time{}, time.Time{}, circulation.ErrInvalidDateRange
	}
	e := dates.AddDays(s, periodDays)
	if end != nil {
		e = dates.Truncate(*end)
	}
	if e.Before(s) {
		return time.Time{}, time.Time{}, circulation.ErrInvalidDateRange
	}
	return s, e, nil
}

// allocator 申请借阅与馆员直借共用的分配流程
type allocator struct {
	tx     circulation.Transactor
	books  book.Repository
	engine *circulation.Engine
	logger *zap.Logger
}

// allocate 锁图书行 → 容量检查 → 分配副本 → 重算
// 分配竞态按指数退避重试，仍失败时对读者统一为"不可借"
func (a *allocator) allocate(ctx context.Context, req circulation.AllocationRequest) (*loan.Loan, error) {
	var allocated *loan.Loan
	attempt := func(ctx context.Context) error {
		return a.tx.Transaction(ctx, func(ctx context.Context) error {
			if _, err := a.books.LockByID(ctx, req.BookID); err != nil {
				return err
			}
			available, err := a.engine.Calculator.IsDateRangeAvailable(ctx, req.BookID, req.Start, req.End)
			if err != nil {
				return err
			}
			if !available {
				return circulation.ErrNotAvailable
			}

			res, err := a.engine.Allocator.AllocateCopy(ctx, req)
			if err != nil {
				return err
			}
			if !res.Allocated() {
				return res.Err()
			}
			if _, err := a.engine.Reconciler.RecalculateBookAvailability(ctx, req.BookID); err != nil {
				return err
			}
			allocated = res.Loan
			return nil
		})
	}

	err := retry.WithExponentialBackoff(ctx, attempt,
		retry.RetryIf(func(err error) bool {
			return apperrors.HasCode(err, apperrors.ErrCodeAllocationRace)
		}),
		retry.OnRetry(func(n int, err error) {
			a.logger.Info("副本分配冲突，重试", zap.Uint("book_id", req.BookID), zap.Int("attempt", n))
		}),
	)
	if apperrors.HasCode(err, apperrors.ErrCodeAllocationRace) {
		return nil, circulation.ErrNotAvailable.WithDetail(err)
	}
	if err != nil {
		return nil, err
	}
	return allocated, nil
}

func newAllocator(tx circulation.Transactor, books book.Repository, engine *circulation.Engine, log *zap.Logger) *allocator {
	return &allocator{tx: tx, books: books, engine: engine, logger: logger.OrNop(log).Named("loan")}
}
