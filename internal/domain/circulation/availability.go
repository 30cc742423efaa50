package circulation

import (
	"context"
	"time"

	"github.com/xiebiao/biblioteca/internal/domain/bookcopy"
	"github.com/xiebiao/biblioteca/internal/domain/loan"
	"github.com/xiebiao/biblioteca/internal/domain/reservation"
	"github.com/xiebiao/biblioteca/pkg/dates"
)

// Snapshot 一次可借判断的计数明细
type Snapshot struct {
	Lendable     int64 // 可流通副本数
	Loans        int64 // 重叠的占用型借阅数
	Reservations int64 // 重叠的排队预约数
	Available    bool
}

// CheckOption 可借判断选项
type CheckOption func(*checkOptions)

type checkOptions struct {
	excludeLoanID uint
	aheadOf       int
}

// ExcludeLoan 不统计指定借阅（续借时复核自身的延长区间）
func ExcludeLoan(loanID uint) CheckOption {
	return func(o *checkOptions) {
		o.excludeLoanID = loanID
	}
}

// QueueAheadOf 只统计排位在position之前的预约
// 队首处理时使用，队首不会被自己或排在后面的预约挡住
func QueueAheadOf(position int) CheckOption {
	return func(o *checkOptions) {
		o.aheadOf = position
	}
}

// Calculator 可借计算器（只读）
// 可借条件：重叠借阅数 + 重叠预约数 < 可流通副本数
type Calculator struct {
	copies       bookcopy.Repository
	loans        loan.Repository
	reservations reservation.Repository
	now          Clock
}

// NewCalculator 创建可借计算器
func NewCalculator(copies bookcopy.Repository, loans loan.Repository, reservations reservation.Repository, now Clock) *Calculator {
	if now == nil {
		now = time.Now
	}
	return &Calculator{copies: copies, loans: loans, reservations: reservations, now: now}
}

// Snapshot 计算区间[start, end]的容量明细
// 没有可流通副本时直接返回不可借，不再统计借阅与预约
func (c *Calculator) Snapshot(ctx context.Context, bookID uint, start, end time.Time, opts ...CheckOption) (Snapshot, error) {
	start, end = dates.Truncate(start), dates.Truncate(end)
	if end.Before(start) {
		return Snapshot{}, ErrInvalidDateRange
	}

	var o checkOptions
	for _, opt := range opts {
		opt(&o)
	}

	var snap Snapshot
	var err error

	snap.Lendable, err = c.copies.CountLendable(ctx, bookID)
	if err != nil {
		return Snapshot{}, err
	}
	if snap.Lendable == 0 {
		return snap, nil
	}

	snap.Loans, err = c.loans.CountOverlapping(ctx, bookID, start, end, o.excludeLoanID)
	if err != nil {
		return Snapshot{}, err
	}

	snap.Reservations, err = c.reservations.CountOverlapping(ctx, bookID, start, end, o.aheadOf)
	if err != nil {
		return Snapshot{}, err
	}

	snap.Available = snap.Loans+snap.Reservations < snap.Lendable
	return snap, nil
}

// IsDateRangeAvailable 区间[start, end]是否还有容量
func (c *Calculator) IsDateRangeAvailable(ctx context.Context, bookID uint, start, end time.Time, opts ...CheckOption) (bool, error) {
	snap, err := c.Snapshot(ctx, bookID, start, end, opts...)
	if err != nil {
		return false, err
	}
	return snap.Available, nil
}

// IsBookAvailableForImmediateLoan 今天是否可借
func (c *Calculator) IsBookAvailableForImmediateLoan(ctx context.Context, bookID uint) (bool, error) {
	today := dates.Today(c.now)
	return c.IsDateRangeAvailable(ctx, bookID, today, today)
}
