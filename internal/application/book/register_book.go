package book

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xiebiao/biblioteca/internal/application/copies"
	"github.com/xiebiao/biblioteca/internal/domain/book"
	"github.com/xiebiao/biblioteca/internal/domain/bookcopy"
	"github.com/xiebiao/biblioteca/internal/domain/circulation"
	"github.com/xiebiao/biblioteca/internal/domain/user"
	apperrors "github.com/xiebiao/biblioteca/pkg/errors"
	"github.com/xiebiao/biblioteca/pkg/logger"
	"github.com/xiebiao/biblioteca/pkg/tracing"
)

const tracerName = "biblioteca/application/book"

// maxInitialCopies 登记时一次最多创建的副本数
const maxInitialCopies = 200

// RegisterBookUseCase 图书登记用例
// 图书与初始副本在同一事务中创建，提交前重算计数
type RegisterBookUseCase struct {
	tx          circulation.Transactor
	bookService book.Service
	copies      bookcopy.Repository
	engine      *circulation.Engine
	logger      *zap.Logger
}

// NewRegisterBookUseCase 创建登记用例
func NewRegisterBookUseCase(tx circulation.Transactor, bookService book.Service, copyRepo bookcopy.Repository, engine *circulation.Engine, log *zap.Logger) *RegisterBookUseCase {
	return &RegisterBookUseCase{
		tx:          tx,
		bookService: bookService,
		copies:      copyRepo,
		engine:      engine,
		logger:      logger.OrNop(log).Named("book"),
	}
}

// RegisterBookRequest 登记请求DTO
type RegisterBookRequest struct {
	Actor         user.Actor
	ISBN          string
	Title         string
	Author        string
	Publisher     string
	CoverURL      string
	Description   string
	Copies        int     // 初始副本数
	ShelfPosition *string // 初始副本架位
}

// Execute 执行登记
func (uc *RegisterBookUseCase) Execute(ctx context.Context, req RegisterBookRequest) (detail *BookDetail, err error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "RegisterBook")
	defer func() {
		tracing.RecordError(span, err)
		span.End()
	}()

	if !req.Actor.IsStaff() {
		return nil, apperrors.ErrForbidden
	}
	if req.Copies < 0 || req.Copies > maxInitialCopies {
		return nil, apperrors.ErrInvalidParams.WithDetail(fmt.Errorf("初始副本数需在0-%d之间", maxInitialCopies))
	}

	var b *book.Book
	err = uc.tx.Transaction(ctx, func(ctx context.Context) error {
		var err error
		b, err = uc.bookService.RegisterBook(ctx, req.ISBN, req.Title, req.Author, req.Publisher, req.CoverURL, req.Description, req.Actor.UserID)
		if err != nil {
			return err
		}
		for _, n := range copies.GenerateInventoryNumbers(b.ISBN, 0, req.Copies) {
			if err := uc.copies.Create(ctx, bookcopy.NewCopy(b.ID, n, req.ShelfPosition)); err != nil {
				return err
			}
		}
		counters, err := uc.engine.Reconciler.RecalculateBookAvailability(ctx, b.ID)
		if err != nil {
			return err
		}
		b.ApplyCounters(counters.Total, counters.Available, counters.Lendable)
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.logger.Info("图书已登记",
		zap.Uint("book_id", b.ID),
		zap.String("isbn", b.ISBN),
		zap.Int("copies", req.Copies),
	)
	out := NewBookDetail(b)
	return &out, nil
}

// BookDetail 图书详情DTO
type BookDetail struct {
	ID              uint   `json:"id"`
	ISBN            string `json:"isbn"`
	Title           string `json:"title"`
	Author          string `json:"author"`
	Publisher       string `json:"publisher"`
	Description     string `json:"description"`
	CoverURL        string `json:"cover_url"`
	TotalCopies     int    `json:"total_copies"`
	AvailableCopies int    `json:"available_copies"`
	Status          string `json:"status"`
	CreatedBy       uint   `json:"created_by"`
	CreatedAt       string `json:"created_at"`
}

// NewBookDetail 实体转DTO
func NewBookDetail(b *book.Book) BookDetail {
	return BookDetail{
		ID:              b.ID,
		ISBN:            b.ISBN,
		Title:           b.Title,
		Author:          b.Author,
		Publisher:       b.Publisher,
		Description:     b.Description,
		CoverURL:        b.CoverURL,
		TotalCopies:     b.TotalCopies,
		AvailableCopies: b.AvailableCopies,
		Status:          b.Status.String(),
		CreatedBy:       b.CreatedBy,
		CreatedAt:       b.CreatedAt.Format(time.RFC3339),
	}
}
