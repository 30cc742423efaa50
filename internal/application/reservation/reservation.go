// Package reservation 预约用例：排队、取消、队列查询与手动处理队首
package reservation

import (
	"time"

	"github.com/xiebiao/biblioteca/internal/domain/reservation"
	"github.com/xiebiao/biblioteca/pkg/dates"
)

const tracerName = "biblioteca/application/reservation"

// ReservationInfo 预约信息
type ReservationInfo struct {
	ID               uint   `json:"id"`
	BookID           uint   `json:"book_id"`
	UserID           uint   `json:"user_id"`
	RequestedStart   string `json:"requested_start,omitempty"`
	RequestedEnd     string `json:"requested_end,omitempty"`
	ReservedAt       string `json:"reserved_at"`
	ExpiresAt        string `json:"expires_at"`
	QueuePosition    int    `json:"queue_position"`
	Status           string `json:"status"`
	NotificationSent bool   `json:"notification_sent"`
	LoanID           *uint  `json:"loan_id,omitempty"`
	CreatedAt        string `json:"created_at"`
}

// NewReservationInfo 实体转DTO
func NewReservationInfo(r *reservation.Reservation) ReservationInfo {
	return ReservationInfo{
		ID:               r.ID,
		BookID:           r.BookID,
		UserID:           r.UserID,
		RequestedStart:   dates.FormatPtr(r.RequestedStart),
		RequestedEnd:     dates.FormatPtr(r.RequestedEnd),
		ReservedAt:       dates.Format(r.ReservedAt),
		ExpiresAt:        dates.Format(r.ExpiresAt),
		QueuePosition:    r.QueuePosition,
		Status:           r.Status.String(),
		NotificationSent: r.NotificationSent,
		LoanID:           r.LoanID,
		CreatedAt:        r.CreatedAt.Format(time.RFC3339),
	}
}

func toInfos(list []*reservation.Reservation) []ReservationInfo {
	out := make([]ReservationInfo, 0, len(list))
	for _, r := range list {
		out = append(out, NewReservationInfo(r))
	}
	return out
}
