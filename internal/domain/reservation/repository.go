package reservation

import (
	"context"
	"time"
)

// Repository 预约仓储接口
type Repository interface {
	// Create 创建预约
	Create(ctx context.Context, r *Reservation) error

	// FindByID 根据ID查找预约
	FindByID(ctx context.Context, id uint) (*Reservation, error)

	// Update 保存预约全部字段
	Update(ctx context.Context, r *Reservation) error

	// FindQueueHead 队首预约（attiva中queue_position最小者），没有返回nil
	FindQueueHead(ctx context.Context, bookID uint) (*Reservation, error)

	// ListActiveByBook 图书的排队预约，按(queue_position, id)升序
	ListActiveByBook(ctx context.Context, bookID uint) ([]*Reservation, error)

	// MaxQueuePosition 当前最大排位，空队列返回0
	MaxQueuePosition(ctx context.Context, bookID uint) (int, error)

	// UpdateQueuePosition 只更新排位
	UpdateQueuePosition(ctx context.Context, id uint, position int) error

	// CountOverlapping 与区间重叠的排队预约数
	// 预约区间为空时使用 [data_prenotazione, data_scadenza_prenotazione]；
	// aheadOf>0时只统计排位小于aheadOf的预约
	CountOverlapping(ctx context.Context, bookID uint, start, end time.Time, aheadOf int) (int64, error)

	// ListExpired 有效期截止日早于today的排队预约
	ListExpired(ctx context.Context, today time.Time) ([]*Reservation, error)

	// ExistsActive 读者是否已在该书队列中
	ExistsActive(ctx context.Context, bookID, userID uint) (bool, error)

	// ListByUser 读者的预约（按创建时间倒序）
	ListByUser(ctx context.Context, userID uint) ([]*Reservation, error)

	// ListBooksWithQueue 有排队预约的图书ID
	ListBooksWithQueue(ctx context.Context) ([]uint, error)

	// MarkNotified 标记已发送到书通知
	MarkNotified(ctx context.Context, id uint) error
}
