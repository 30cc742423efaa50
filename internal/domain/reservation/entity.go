package reservation

import (
	"time"

	"github.com/xiebiao/biblioteca/pkg/dates"
)

// Status 预约状态
// attiva --[分配成功]--> completata
// attiva --[过期清理/取消]--> annullata
type Status string

const (
	StatusActive    Status = "attiva"     // 排队中
	StatusCompleted Status = "completata" // 已转为借阅
	StatusCancelled Status = "annullata"  // 已取消/过期
)

func (s Status) String() string {
	return string(s)
}

// IsTerminal 是否终态
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Reservation 预约实体：无可借副本时读者排队等待
type Reservation struct {
	ID               uint
	BookID           uint
	UserID           uint
	RequestedStart   *time.Time // data_inizio_richiesta
	RequestedEnd     *time.Time // data_fine_richiesta
	ReservedAt       time.Time  // data_prenotazione
	ExpiresAt        time.Time  // data_scadenza_prenotazione
	QueuePosition    int        // 从1开始的FIFO排位
	Status           Status
	NotificationSent bool  // notifica_inviata
	LoanID           *uint // 转为借阅后的借阅ID
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewReservation 创建排队中的预约（排位由队列管理器分配）
func NewReservation(bookID, userID uint, start, end *time.Time, reservedAt, expiresAt time.Time) *Reservation {
	now := time.Now()
	return &Reservation{
		BookID:         bookID,
		UserID:         userID,
		RequestedStart: truncatePtr(start),
		RequestedEnd:   truncatePtr(end),
		ReservedAt:     dates.Truncate(reservedAt),
		ExpiresAt:      dates.Truncate(expiresAt),
		Status:         StatusActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// CoverageWindow 计算可借容量时预约所占的区间
// 未指定区间时退回到预约本身的生命周期 [data_prenotazione, data_scadenza_prenotazione]
func (r *Reservation) CoverageWindow() (time.Time, time.Time) {
	start, end := r.ReservedAt, r.ExpiresAt
	if r.RequestedStart != nil {
		start = *r.RequestedStart
	}
	if r.RequestedEnd != nil {
		end = *r.RequestedEnd
	}
	return start, end
}

// LoanWindow 预约转借阅时的借阅区间
// 起借日不早于今天；未指定结束日时按借期天数推算；
// 结束日已过返回ok=false（该预约已无法满足）
func (r *Reservation) LoanWindow(today time.Time, loanPeriodDays int) (start, end time.Time, ok bool) {
	today = dates.Truncate(today)
	start = today
	if r.RequestedStart != nil && r.RequestedStart.After(today) {
		start = *r.RequestedStart
	}
	if r.RequestedEnd != nil {
		end = *r.RequestedEnd
	} else {
		end = dates.AddDays(start, loanPeriodDays)
	}
	if end.Before(start) {
		return start, end, false
	}
	return start, end, true
}

// IsExpired 预约是否过期（有效期截止日早于今天）
func (r *Reservation) IsExpired(today time.Time) bool {
	return r.ExpiresAt.Before(dates.Truncate(today))
}

// Complete 预约成功转为借阅
func (r *Reservation) Complete(loanID uint) error {
	if r.Status != StatusActive {
		return ErrNotActive
	}
	r.Status = StatusCompleted
	r.LoanID = &loanID
	r.UpdatedAt = time.Now()
	return nil
}

// Cancel 取消预约（读者取消或过期清理）
func (r *Reservation) Cancel() error {
	if r.Status != StatusActive {
		return ErrNotActive
	}
	r.Status = StatusCancelled
	r.UpdatedAt = time.Now()
	return nil
}

// IsOwnedBy 是否属于指定读者
func (r *Reservation) IsOwnedBy(userID uint) bool {
	return r.UserID == userID
}

func truncatePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := dates.Truncate(*t)
	return &v
}
