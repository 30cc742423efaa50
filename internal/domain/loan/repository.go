package loan

import (
	"context"
	"time"
)

// Repository 借阅仓储接口
// 所有重叠判断使用闭区间：existing.start <= end AND existing.end >= start，
// 且只统计 attivo=1 并处于占用状态的借阅
type Repository interface {
	// Create 创建借阅
	Create(ctx context.Context, l *Loan) error

	// FindByID 根据ID查找借阅
	FindByID(ctx context.Context, id uint) (*Loan, error)

	// LockByID 悲观锁查询借阅（归还、审批时防止并发处理同一借阅）
	LockByID(ctx context.Context, id uint) (*Loan, error)

	// Update 保存借阅全部字段
	Update(ctx context.Context, l *Loan) error

	// CountOverlapping 图书在区间内的占用型借阅数
	// excludeLoanID非0时排除该借阅（续借复核自身时使用）
	CountOverlapping(ctx context.Context, bookID uint, start, end time.Time, excludeLoanID uint) (int64, error)

	// HasOverlapOnCopy 同一副本在区间内是否已有占用型借阅
	HasOverlapOnCopy(ctx context.Context, copyID uint, start, end time.Time, excludeLoanID uint) (bool, error)

	// CountActiveByCopy 副本上 attivo=1 的借阅数
	CountActiveByCopy(ctx context.Context, copyID uint) (int64, error)

	// CountByCopy 副本的借阅历史条数（删除副本前检查）
	CountByCopy(ctx context.Context, copyID uint) (int64, error)

	// CountActiveByBook 图书上 attivo=1 的借阅数
	CountActiveByBook(ctx context.Context, bookID uint) (int64, error)

	// ListActive 全部 attivo=1 的借阅（维护任务逐条校验）
	ListActive(ctx context.Context) ([]*Loan, error)

	// ListActiveByCopy 副本上attivo=1的借阅
	ListActiveByCopy(ctx context.Context, copyID uint) ([]*Loan, error)

	// ListUnclaimed 起借日早于startedBefore仍未取书的预约
	ListUnclaimed(ctx context.Context, startedBefore time.Time) ([]*Loan, error)

	// ListByUser 读者的借阅（按创建时间倒序）
	ListByUser(ctx context.Context, userID uint) ([]*Loan, error)
}
