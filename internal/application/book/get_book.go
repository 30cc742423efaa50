package book

import (
	"context"
	"time"

	"github.com/xiebiao/biblioteca/internal/domain/book"
	"github.com/xiebiao/biblioteca/internal/domain/circulation"
	"github.com/xiebiao/biblioteca/internal/domain/user"
	"github.com/xiebiao/biblioteca/pkg/dates"
	apperrors "github.com/xiebiao/biblioteca/pkg/errors"
)

// GetBookUseCase 图书详情
type GetBookUseCase struct {
	bookService book.Service
}

// NewGetBookUseCase 创建详情用例
func NewGetBookUseCase(bookService book.Service) *GetBookUseCase {
	return &GetBookUseCase{bookService: bookService}
}

// Execute 查询详情
func (uc *GetBookUseCase) Execute(ctx context.Context, id uint) (*BookDetail, error) {
	b, err := uc.bookService.GetBookByID(ctx, id)
	if err != nil {
		return nil, err
	}
	out := NewBookDetail(b)
	return &out, nil
}

// GetAvailabilityUseCase 查询指定日期区间是否可借
type GetAvailabilityUseCase struct {
	bookService book.Service
	engine      *circulation.Engine
}

// NewGetAvailabilityUseCase 创建可借查询用例
func NewGetAvailabilityUseCase(bookService book.Service, engine *circulation.Engine) *GetAvailabilityUseCase {
	return &GetAvailabilityUseCase{bookService: bookService, engine: engine}
}

// AvailabilityResponse 可借查询结果
type AvailabilityResponse struct {
	BookID       uint   `json:"book_id"`
	Start        string `json:"start"`
	End          string `json:"end"`
	Available    bool   `json:"available"`
	Immediate    bool   `json:"available_today"` // 今天能否直接借出
	Lendable     int64  `json:"lendable_copies"`
	Loans        int64  `json:"overlapping_loans"`
	Reservations int64  `json:"overlapping_reservations"`
}

// Execute 区间默认为 [今天, 今天+借期]
func (uc *GetAvailabilityUseCase) Execute(ctx context.Context, bookID uint, start, end *time.Time) (*AvailabilityResponse, error) {
	if _, err := uc.bookService.GetBookByID(ctx, bookID); err != nil {
		return nil, err
	}

	today := dates.Today(uc.engine.Now)
	s := today
	if start != nil {
		s = dates.Truncate(*start)
	}
	e := dates.AddDays(s, uc.engine.Policy.LoanPeriodDays)
	if end != nil {
		e = dates.Truncate(*end)
	}
	if e.Before(s) {
		return nil, circulation.ErrInvalidDateRange
	}

	snap, err := uc.engine.Calculator.Snapshot(ctx, bookID, s, e)
	if err != nil {
		return nil, err
	}
	immediate, err := uc.engine.Calculator.IsBookAvailableForImmediateLoan(ctx, bookID)
	if err != nil {
		return nil, err
	}

	return &AvailabilityResponse{
		BookID:       bookID,
		Start:        dates.Format(s),
		End:          dates.Format(e),
		Available:    snap.Available,
		Immediate:    immediate,
		Lendable:     snap.Lendable,
		Loans:        snap.Loans,
		Reservations: snap.Reservations,
	}, nil
}

// DeleteBookUseCase 删除图书（馆员），仍有副本或在借借阅时拒绝
type DeleteBookUseCase struct {
	bookService book.Service
}

// NewDeleteBookUseCase 创建删除用例
func NewDeleteBookUseCase(bookService book.Service) *DeleteBookUseCase {
	return &DeleteBookUseCase{bookService: bookService}
}

// Execute 执行删除
func (uc *DeleteBookUseCase) Execute(ctx context.Context, actor user.Actor, id uint) error {
	if !actor.IsStaff() {
		return apperrors.ErrForbidden
	}
	return uc.bookService.DeleteBook(ctx, id)
}
