// Package circulation 流通引擎：可借计算、副本分配、预约队列与计数重算
//
// 控制流：借阅/归还/副本状态变更 → Reconciler重算计数 → QueueManager检查队首
// → Calculator判断容量 → Allocator绑定副本 → 再次重算
//
// 所有写操作都运行在Transactor开启（或加入）的事务中，
// 图书行锁串行化同一本书的借阅创建与队列处理，副本行锁关闭分配竞态窗口。
package circulation

import (
	"context"
	"time"
)

// Transactor 事务管理端口
// 已在事务中时加入当前事务（fn直接在ctx上执行），否则开启新事务
type Transactor interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Clock 当前时间来源（测试中固定日期）
type Clock func() time.Time

// BookAvailableNotice 预约转借阅后的到书通知
type BookAvailableNotice struct {
	EventID       string
	ReservationID uint
	LoanID        uint
	BookID        uint
	BookTitle     string
	UserID        uint
	UserEmail     string
	StartDate     time.Time
	DueDate       time.Time
}

// Notifier 通知端口
// 投递失败不影响已提交的事务，由调用方记录日志
type Notifier interface {
	NotifyBookAvailable(ctx context.Context, notice BookAvailableNotice) error
}

// Policy 流通规则参数
type Policy struct {
	LoanPeriodDays     int // 借期天数
	MaxRenewals        int // 最大续借次数
	ReservationTTLDays int // 预约有效天数
	AllocationRetries  int // 分配复核失败后的重试次数
	PickupGraceDays    int // 起借日过后保留副本等待取书的天数
}

// DefaultPolicy 默认流通规则
func DefaultPolicy() Policy {
	return Policy{
		LoanPeriodDays:     14,
		MaxRenewals:        3,
		ReservationTTLDays: 30,
		AllocationRetries:  1,
		PickupGraceDays:    3,
	}
}
