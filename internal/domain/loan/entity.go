package loan

import (
	"time"

	"github.com/xiebiao/biblioteca/internal/domain/bookcopy"
	"github.com/xiebiao/biblioteca/pkg/dates"
)

// Status 借阅状态（封闭枚举）
type Status string

const (
	StatusPending   Status = "pendente"    // 待审批（会员申请）
	StatusActive    Status = "in_corso"    // 借阅中
	StatusReserved  Status = "prenotato"   // 已分配副本，起借日在未来
	StatusOverdue   Status = "in_ritardo"  // 逾期
	StatusReturned  Status = "restituito"  // 已归还
	StatusLost      Status = "perso"       // 遗失
	StatusDamaged   Status = "danneggiato" // 损坏
	StatusCancelled Status = "annullato"   // 未开始即取消（驳回/撤回/逾期未取）
)

// SlotStatuses 占用副本时段的状态
// 可借容量计算与同副本重叠检查只看这四种
var SlotStatuses = []Status{StatusActive, StatusOverdue, StatusReserved, StatusPending}

// ParseStatus 解析状态字符串
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusActive, StatusReserved, StatusOverdue,
		StatusReturned, StatusLost, StatusDamaged, StatusCancelled:
		return st, nil
	}
	return "", ErrInvalidStatus
}

// OccupiesSlot 是否占用副本时段
func (s Status) OccupiesSlot() bool {
	for _, st := range SlotStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// IsTerminal 是否终态
func (s Status) IsTerminal() bool {
	return s == StatusReturned || s == StatusLost || s == StatusDamaged || s == StatusCancelled
}

// IsStarted 读者是否已取走副本
func (s Status) IsStarted() bool {
	return s == StatusActive || s == StatusOverdue
}

func (s Status) String() string {
	return string(s)
}

// returnCopyStatus 终态 → 副本状态的映射表（归还流程使用）
var returnCopyStatus = map[Status]bookcopy.Status{
	StatusReturned: bookcopy.StatusAvailable,
	StatusLost:     bookcopy.StatusLost,
	StatusDamaged:  bookcopy.StatusDamaged,
	// 副本从未离馆
	StatusCancelled: bookcopy.StatusAvailable,
}

// CopyStatusOnClose 借阅结束后副本应处的状态
func CopyStatusOnClose(outcome Status) (bookcopy.Status, bool) {
	st, ok := returnCopyStatus[outcome]
	return st, ok
}

// CopyStatusWhileOpen 借阅占用期间副本应处的状态
// 借阅中/逾期 → 已借出；待审批/预约 → 预约保留
func CopyStatusWhileOpen(s Status) bookcopy.Status {
	if s.IsStarted() {
		return bookcopy.StatusLoaned
	}
	return bookcopy.StatusReserved
}

// InitialStatus 直接建立借阅时的初始状态
// 起借日不晚于今天即借阅中，否则为预约
func InitialStatus(start, today time.Time) Status {
	if start.After(today) {
		return StatusReserved
	}
	return StatusActive
}

// Loan 借阅实体：一册副本在一个日期区间内绑定给一位读者
type Loan struct {
	ID          uint
	BookID      uint
	CopyID      *uint      // 历史数据可能为空，新借阅必填
	UserID      uint       // 读者
	StartDate   time.Time  // data_prestito
	DueDate     time.Time  // data_scadenza
	ReturnedAt  *time.Time // data_restituzione
	Status      Status
	Active      bool  // attivo：占用副本时段期间为true
	Renewals    int   // 已续借次数
	ProcessedBy *uint // 经办馆员
	Notes       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewLoan 创建借阅（工厂方法）
func NewLoan(bookID, copyID, userID uint, start, due time.Time, status Status, processedBy *uint) *Loan {
	now := time.Now()
	cid := copyID
	return &Loan{
		BookID:      bookID,
		CopyID:      &cid,
		UserID:      userID,
		StartDate:   dates.Truncate(start),
		DueDate:     dates.Truncate(due),
		Status:      status,
		Active:      true,
		ProcessedBy: processedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// transitions 合法的状态流转
var transitions = map[Status][]Status{
	StatusPending:   {StatusActive, StatusReserved, StatusCancelled},
	StatusReserved:  {StatusActive, StatusCancelled},
	StatusActive:    {StatusOverdue, StatusReturned, StatusLost, StatusDamaged},
	StatusOverdue:   {StatusActive, StatusReturned, StatusLost, StatusDamaged},
	StatusReturned:  {},
	StatusLost:      {},
	StatusDamaged:   {},
	StatusCancelled: {},
}

// CanTransitionTo 检查是否可以流转到目标状态
func (l *Loan) CanTransitionTo(target Status) bool {
	for _, allowed := range transitions[l.Status] {
		if allowed == target {
			return true
		}
	}
	return false
}

// TransitionTo 状态流转
func (l *Loan) TransitionTo(target Status) error {
	if !l.CanTransitionTo(target) {
		return ErrInvalidTransition
	}
	l.Status = target
	l.UpdatedAt = time.Now()
	return nil
}

// Approve 审批待处理借阅
// 起借日已到 → 借阅中，否则 → 预约
func (l *Loan) Approve(today time.Time, staffID uint) error {
	if l.Status != StatusPending {
		return ErrInvalidTransition
	}
	if err := l.TransitionTo(InitialStatus(l.StartDate, today)); err != nil {
		return err
	}
	l.ProcessedBy = &staffID
	return nil
}

// Pickup 读者取书，预约转为借阅中
func (l *Loan) Pickup(today time.Time) error {
	if l.Status != StatusReserved {
		return ErrInvalidTransition
	}
	if err := l.TransitionTo(StatusActive); err != nil {
		return err
	}
	// 提前取书时起借日改为当天
	if today.Before(l.StartDate) {
		l.StartDate = today
	}
	return nil
}

// Close 结束借阅（归还/遗失/损坏）
// 未取书的借阅走Cancel
func (l *Loan) Close(outcome Status, today time.Time) error {
	if !outcome.IsTerminal() || outcome == StatusCancelled {
		return ErrInvalidOutcome
	}
	if err := l.TransitionTo(outcome); err != nil {
		return err
	}
	l.Active = false
	returned := dates.Truncate(today)
	l.ReturnedAt = &returned
	return nil
}

// Cancel 取消尚未取书的借阅（待审批或预约），释放副本时段
// 副本没有离馆，data_restituzione保持为空
func (l *Loan) Cancel() error {
	if l.Status != StatusPending && l.Status != StatusReserved {
		return ErrInvalidTransition
	}
	if err := l.TransitionTo(StatusCancelled); err != nil {
		return err
	}
	l.Active = false
	return nil
}

// RenewalWindow 续借新增的日期区间 (旧到期日, 新到期日]
func (l *Loan) RenewalWindow(periodDays int) (time.Time, time.Time) {
	return dates.AddDays(l.DueDate, 1), dates.AddDays(l.DueDate, periodDays)
}

// Renew 续借：只有借阅中且未逾期的借阅可续，次数有上限
func (l *Loan) Renew(periodDays, maxRenewals int, today time.Time) error {
	if l.Status != StatusActive || l.IsOverdue(today) {
		return ErrNotRenewable
	}
	if l.Renewals >= maxRenewals {
		return ErrRenewalLimit
	}
	l.DueDate = dates.AddDays(l.DueDate, periodDays)
	l.Renewals++
	l.UpdatedAt = time.Now()
	return nil
}

// IsOverdue 是否已过到期日且未归还
func (l *Loan) IsOverdue(today time.Time) bool {
	return l.ReturnedAt == nil && l.DueDate.Before(dates.Truncate(today))
}

// IsOwnedBy 是否属于指定读者
func (l *Loan) IsOwnedBy(userID uint) bool {
	return l.UserID == userID
}
