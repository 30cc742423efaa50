package dto

import (
	"fmt"
	"time"

	"github.com/xiebiao/biblioteca/pkg/dates"
	apperrors "github.com/xiebiao/biblioteca/pkg/errors"
)

// AddCopiesRequest 登记副本请求
// inventory_numbers为空时按count生成登记号
type AddCopiesRequest struct {
	Count            int      `json:"count" binding:"omitempty,min=1,max=200" example:"2"`
	InventoryNumbers []string `json:"inventory_numbers" binding:"omitempty,max=200,dive,required,max=50"`
	ShelfPosition    *string  `json:"shelf_position" binding:"omitempty,max=50" example:"A-12"`
}

// UpdateCopyStatusRequest 手动变更副本状态
type UpdateCopyStatusRequest struct {
	Status string `json:"status" binding:"required" example:"manutenzione"`
}

// RequestLoanRequest 读者申请借阅
type RequestLoanRequest struct {
	BookID             uint   `json:"book_id" binding:"required" example:"1"`
	Start              string `json:"start" example:"2025-06-01"`
	End                string `json:"end" example:"2025-06-15"`
	QueueIfUnavailable bool   `json:"queue_if_unavailable"`
}

// CreateLoanRequest 馆员直借
type CreateLoanRequest struct {
	BookID uint   `json:"book_id" binding:"required" example:"1"`
	UserID uint   `json:"user_id" binding:"required" example:"2"`
	Start  string `json:"start" example:"2025-06-01"`
	End    string `json:"end" example:"2025-06-15"`
	Notes  string `json:"notes" binding:"max=500"`
}

// ReturnLoanRequest 归还
type ReturnLoanRequest struct {
	Outcome string `json:"outcome" binding:"omitempty,oneof=restituito perso danneggiato" example:"restituito"`
	Notes   string `json:"notes" binding:"max=500"`
}

// CancelLoanRequest 取消尚未取书的借阅
type CancelLoanRequest struct {
	Notes string `json:"notes" binding:"max=500" example:"读者不再需要"`
}

// CreateReservationRequest 预约
type CreateReservationRequest struct {
	BookID uint   `json:"book_id" binding:"required" example:"1"`
	UserID uint   `json:"user_id" example:"0"` // 馆员代读者预约时填写
	Start  string `json:"start" example:"2025-07-01"`
	End    string `json:"end" example:"2025-07-15"`
}

// ProcessQueueRequest 手动处理预约队列
type ProcessQueueRequest struct {
	Limit int `json:"limit" binding:"omitempty,min=0,max=100"` // 0表示处理到不能再转借阅为止
}

// ParseDate 解析可选日期，空串返回nil
func ParseDate(field, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := dates.Parse(s)
	if err != nil {
		return nil, apperrors.ErrInvalidParams.WithDetail(fmt.Errorf("%s日期格式应为YYYY-MM-DD: %w", field, err))
	}
	return &t, nil
}

// ParseDateRange 解析起止日期
func ParseDateRange(start, end string) (*time.Time, *time.Time, error) {
	s, err := ParseDate("start", start)
	if err != nil {
		return nil, nil, err
	}
	e, err := ParseDate("end", end)
	if err != nil {
		return nil, nil, err
	}
	return s, e, nil
}
