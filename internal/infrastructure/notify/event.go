package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/xiebiao/biblioteca/internal/domain/circulation"
	"github.com/xiebiao/biblioteca/pkg/dates"
)

// RoutingKeyBookAvailable 预约转借阅事件的路由键
const RoutingKeyBookAvailable = "reservation.promoted"

// BookAvailableEvent 消息体（JSON）
type BookAvailableEvent struct {
	EventID       string    `json:"event_id"`
	ReservationID uint      `json:"reservation_id"`
	LoanID        uint      `json:"loan_id"`
	BookID        uint      `json:"book_id"`
	BookTitle     string    `json:"book_title"`
	UserID        uint      `json:"user_id"`
	UserEmail     string    `json:"user_email"`
	StartDate     string    `json:"start_date"` // YYYY-MM-DD
	DueDate       string    `json:"due_date"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// NewBookAvailableEvent 由领域通知构造消息
func NewBookAvailableEvent(n circulation.BookAvailableNotice, occurredAt time.Time) BookAvailableEvent {
	return BookAvailableEvent{
		EventID:       n.EventID,
		ReservationID: n.ReservationID,
		LoanID:        n.LoanID,
		BookID:        n.BookID,
		BookTitle:     n.BookTitle,
		UserID:        n.UserID,
		UserEmail:     n.UserEmail,
		StartDate:     dates.Format(n.StartDate),
		DueDate:       dates.Format(n.DueDate),
		OccurredAt:    occurredAt.UTC(),
	}
}

// DecodeBookAvailableEvent 解析消息体
func DecodeBookAvailableEvent(body []byte) (BookAvailableEvent, error) {
	var e BookAvailableEvent
	if err := json.Unmarshal(body, &e); err != nil {
		return e, fmt.Errorf("解析到书通知失败: %w", err)
	}
	if e.ReservationID == 0 || e.UserID == 0 {
		return e, fmt.Errorf("到书通知缺少预约或读者ID")
	}
	return e, nil
}

// Render 通知正文（邮件投递不在本服务内，消费端只记录）
func (e BookAvailableEvent) Render() string {
	return fmt.Sprintf("您预约的《%s》已为您保留，请于%s起到馆取书，应还日期%s。（预约号%d，借阅号%d）",
		e.BookTitle, e.StartDate, e.DueDate, e.ReservationID, e.LoanID)
}
