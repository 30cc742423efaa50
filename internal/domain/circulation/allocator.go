package circulation

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xiebiao/biblioteca/internal/domain/bookcopy"
	"github.com/xiebiao/biblioteca/internal/domain/loan"
	"github.com/xiebiao/biblioteca/pkg/dates"
	"github.com/xiebiao/biblioteca/pkg/logger"
	"github.com/xiebiao/biblioteca/pkg/metrics"
)

// Outcome 分配结果
type Outcome int

const (
	// OutcomeAllocated 已绑定副本并创建借阅
	OutcomeAllocated Outcome = iota + 1
	// OutcomeConflict 候选副本在加锁复核时被抢占，可重试
	OutcomeConflict
	// OutcomeExhausted 首次查询就没有候选副本，确实不可借
	OutcomeExhausted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAllocated:
		return "allocated"
	case OutcomeConflict:
		return "conflict"
	case OutcomeExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// AllocationRequest 分配请求
type AllocationRequest struct {
	BookID      uint
	UserID      uint
	Start       time.Time
	End         time.Time
	Status      loan.Status // 为空时按起借日推导（今天及以前为in_corso，否则prenotato）
	ProcessedBy *uint
	Notes       string
}

// AllocationResult 分配结果，Allocated时CopyID与Loan有值
type AllocationResult struct {
	Outcome Outcome
	CopyID  uint
	Loan    *loan.Loan
}

// Allocated 是否分配成功
func (r AllocationResult) Allocated() bool {
	return r.Outcome == OutcomeAllocated
}

// Err 把失败结果转换为错误
// 容量耗尽对读者是"不可借"，竞态失败保留可重试错误码
func (r AllocationResult) Err() error {
	switch r.Outcome {
	case OutcomeAllocated:
		return nil
	case OutcomeConflict:
		return ErrAllocationConflict
	default:
		return ErrNotAvailable
	}
}

// Allocator 副本分配器
//
// 两阶段：
//  1. 乐观查询（不加锁）找出状态可分配且区间内无占用借阅的候选副本
//  2. SELECT ... FOR UPDATE锁定候选副本，复核状态与同副本重叠后插入借阅
//
// 正确性完全由第2步的行锁保证，第1步只是提示。复核失败时排除该副本重试。
type Allocator struct {
	tx      Transactor
	copies  bookcopy.Repository
	loans   loan.Repository
	retries int
	now     Clock
	logger  *zap.Logger
}

// NewAllocator 创建副本分配器
func NewAllocator(tx Transactor, copies bookcopy.Repository, loans loan.Repository, policy Policy, now Clock, log *zap.Logger) *Allocator {
	if now == nil {
		now = time.Now
	}
	retries := policy.AllocationRetries
	if retries < 0 {
		retries = 0
	}
	return &Allocator{
		tx:      tx,
		copies:  copies,
		loans:   loans,
		retries: retries,
		now:     now,
		logger:  logger.OrNop(log).Named("allocator"),
	}
}

// AllocateCopy 为区间[Start, End]绑定一册副本
// 已在事务中时加入调用方事务；容量耗尽与竞态失败不是错误，通过Outcome区分
func (a *Allocator) AllocateCopy(ctx context.Context, req AllocationRequest) (AllocationResult, error) {
	start, end := dates.Truncate(req.Start), dates.Truncate(req.End)
	if end.Before(start) {
		return AllocationResult{}, ErrInvalidDateRange
	}

	status := req.Status
	if status == "" {
		status = loan.InitialStatus(start, dates.Today(a.now))
	}
	if !status.OccupiesSlot() {
		return AllocationResult{}, loan.ErrInvalidStatus
	}

	began := time.Now()
	var result AllocationResult
	err := a.tx.Transaction(ctx, func(ctx context.Context) error {
		var exclude []uint
		for attempt := 0; attempt <= a.retries; attempt++ {
			// 阶段1：乐观候选
			candidates, err := a.copies.FindAllocationCandidates(ctx, req.BookID, start, end, exclude, 1)
			if err != nil {
				return err
			}
			if len(candidates) == 0 {
				if attempt == 0 {
					result = AllocationResult{Outcome: OutcomeExhausted}
				} else {
					result = AllocationResult{Outcome: OutcomeConflict}
				}
				return nil
			}
			copyID := candidates[0].ID

			// 阶段2：加锁复核
			ok, err := a.claim(ctx, copyID, start, end)
			if err != nil {
				return err
			}
			if !ok {
				a.logger.Info("候选副本复核失败",
					zap.Uint("book_id", req.BookID),
					zap.Uint("copy_id", copyID),
					zap.Int("attempt", attempt+1),
				)
				exclude = append(exclude, copyID)
				continue
			}

			l := loan.NewLoan(req.BookID, copyID, req.UserID, start, end, status, req.ProcessedBy)
			l.Notes = req.Notes
			if err := a.loans.Create(ctx, l); err != nil {
				return err
			}
			if err := a.copies.UpdateStatus(ctx, copyID, loan.CopyStatusWhileOpen(status)); err != nil {
				return err
			}

			result = AllocationResult{Outcome: OutcomeAllocated, CopyID: copyID, Loan: l}
			return nil
		}

		result = AllocationResult{Outcome: OutcomeConflict}
		return nil
	})
	if err != nil {
		return AllocationResult{}, err
	}

	metrics.ObserveAllocation(result.Outcome.String(), time.Since(began))
	a.logger.Debug("副本分配完成",
		zap.Uint("book_id", req.BookID),
		zap.Stringer("outcome", result.Outcome),
		zap.Uint("copy_id", result.CopyID),
	)
	return result, nil
}

// claim 锁定副本并复核：状态仍可分配，且同副本没有重叠的占用借阅
func (a *Allocator) claim(ctx context.Context, copyID uint, start, end time.Time) (bool, error) {
	c, err := a.copies.LockByID(ctx, copyID)
	if err != nil {
		return false, err
	}
	if !c.Status.IsAllocatable() {
		return false, nil
	}

	overlap, err := a.loans.HasOverlapOnCopy(ctx, copyID, start, end, 0)
	if err != nil {
		return false, err
	}
	return !overlap, nil
}
