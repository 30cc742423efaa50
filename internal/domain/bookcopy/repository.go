package bookcopy

import (
	"context"
	"time"
)

// Repository 副本仓储接口（副本台账）
// 说明：UpdateStatus不校验状态流转是否合法，业务规则由调用方负责；
// 调用方修改状态后必须触发所属图书的计数重算。
type Repository interface {
	// Create 创建副本
	Create(ctx context.Context, c *Copy) error

	// FindByID 根据ID查找副本
	FindByID(ctx context.Context, id uint) (*Copy, error)

	// LockByID 悲观锁查询副本（SELECT ... FOR UPDATE）
	// 分配器在最终重叠复核前锁定候选副本
	LockByID(ctx context.Context, id uint) (*Copy, error)

	// UpdateStatus 更新副本状态
	UpdateStatus(ctx context.Context, id uint, status Status) error

	// Delete 删除副本
	Delete(ctx context.Context, id uint) error

	// ListByBookID 图书的全部副本（按ID升序）
	ListByBookID(ctx context.Context, bookID uint) ([]*Copy, error)

	// ListAvailableByBookID 当前在架可借的副本
	ListAvailableByBookID(ctx context.Context, bookID uint) ([]*Copy, error)

	// ListStatusesByBookID 图书全部副本的状态（重算计数用）
	ListStatusesByBookID(ctx context.Context, bookID uint) ([]Status, error)

	// CountLendable 可流通副本数（排除遗失、损坏、维护中）
	CountLendable(ctx context.Context, bookID uint) (int64, error)

	// FindAllocationCandidates 乐观候选查询（不加锁）
	// 条件：状态为可借或预约保留，且没有与[start, end]重叠的占用型借阅；
	// exclude中的副本跳过；按ID升序最多返回limit个
	FindAllocationCandidates(ctx context.Context, bookID uint, start, end time.Time, exclude []uint, limit int) ([]*Copy, error)
}
