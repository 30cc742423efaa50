// Package copies 副本台账用例：登记、状态变更、删除与列表
package copies

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xiebiao/biblioteca/internal/domain/book"
	"github.com/xiebiao/biblioteca/internal/domain/bookcopy"
	"github.com/xiebiao/biblioteca/internal/domain/circulation"
	"github.com/xiebiao/biblioteca/internal/domain/loan"
	"github.com/xiebiao/biblioteca/internal/domain/user"
	apperrors "github.com/xiebiao/biblioteca/pkg/errors"
	"github.com/xiebiao/biblioteca/pkg/logger"
	"github.com/xiebiao/biblioteca/pkg/tracing"
)

const tracerName = "biblioteca/application/copies"

// CopyInfo 副本信息
type CopyInfo struct {
	ID              uint    `json:"id"`
	BookID          uint    `json:"book_id"`
	InventoryNumber string  `json:"inventory_number"`
	Status          string  `json:"status"`
	Notes           string  `json:"notes,omitempty"`
	ShelfPosition   *string `json:"shelf_position,omitempty"`
	UpdatedAt       string  `json:"updated_at"`
}

// NewCopyInfo 实体转DTO
func NewCopyInfo(c *bookcopy.Copy) CopyInfo {
	return CopyInfo{
		ID:              c.ID,
		BookID:          c.BookID,
		InventoryNumber: c.InventoryNumber,
		Status:          c.Status.String(),
		Notes:           c.Notes,
		ShelfPosition:   c.ShelfPosition,
		UpdatedAt:       c.UpdatedAt.Format(time.RFC3339),
	}
}

// Service 副本用例集合（馆员操作）
type Service struct {
	tx     circulation.Transactor
	books  book.Repository
	copies bookcopy.Repository
	loans  loan.Repository
	engine *circulation.Engine
	logger *zap.Logger
}

// NewService 创建副本用例
func NewService(tx circulation.Transactor, repos circulation.Repositories, engine *circulation.Engine, log *zap.Logger) *Service {
	return &Service{
		tx:     tx,
		books:  repos.Books,
		copies: repos.Copies,
		loans:  repos.Loans,
		engine: engine,
		logger: logger.OrNop(log).Named("copies"),
	}
}

// AddCopiesRequest 登记副本请求
// InventoryNumbers为空时按 ISBN-序号 生成Count个登记号
type AddCopiesRequest struct {
	Actor            user.Actor
	BookID           uint
	Count            int
	InventoryNumbers []string
	ShelfPosition    *string
}

// AddCopies 登记新副本，提交后处理预约队列
func (s *Service) AddCopies(ctx context.Context, req AddCopiesRequest) (out []CopyInfo, err error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "AddCopies")
	defer func() {
		tracing.RecordError(span, err)
		span.End()
	}()

	if !req.Actor.IsStaff() {
		return nil, apperrors.ErrForbidden
	}
	if len(req.InventoryNumbers) == 0 && req.Count <= 0 {
		return nil, apperrors.ErrInvalidParams.WithDetail(fmt.Errorf("副本数量必须大于0"))
	}

	var created []*bookcopy.Copy
	err = s.tx.Transaction(ctx, func(ctx context.Context) error {
		b, err := s.books.LockByID(ctx, req.BookID)
		if err != nil {
			return err
		}

		numbers := req.InventoryNumbers
		if len(numbers) == 0 {
			existing, err := s.copies.ListByBookID(ctx, b.ID)
			if err != nil {
				return err
			}
			numbers = GenerateInventoryNumbers(b.ISBN, len(existing), req.Count)
		}

		for _, n := range numbers {
			n = strings.TrimSpace(n)
			if n == "" {
				return apperrors.ErrInvalidParams.WithDetail(fmt.Errorf("登记号不能为空"))
			}
			c := bookcopy.NewCopy(b.ID, n, req.ShelfPosition)
			if err := s.copies.Create(ctx, c); err != nil {
				return err
			}
			created = append(created, c)
		}
		_, err = s.engine.Reconciler.RecalculateBookAvailability(ctx, b.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("副本已登记", zap.Uint("book_id", req.BookID), zap.Int("count", len(created)))
	s.drain(ctx, req.BookID)

	out = make([]CopyInfo, 0, len(created))
	for _, c := range created {
		out = append(out, NewCopyInfo(c))
	}
	return out, nil
}

// UpdateStatusRequest 状态变更请求
type UpdateStatusRequest struct {
	Actor  user.Actor
	CopyID uint
	Status string
}

// UpdateStatus 手动变更副本状态
//   - 不能手动设为prestato/prenotato（只能由借阅流程产生）
//   - 副本上还有进行中的借阅时拒绝
//   - 变为disponibile后处理预约队列
func (s *Service) UpdateStatus(ctx context.Context, req UpdateStatusRequest) (info *CopyInfo, err error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "UpdateCopyStatus")
	defer func() {
		tracing.RecordError(span, err)
		span.End()
	}()

	if !req.Actor.IsStaff() {
		return nil, apperrors.ErrForbidden
	}
	status, err := bookcopy.ParseStatus(req.Status)
	if err != nil {
		return nil, err
	}
	if !status.IsManuallySettable() {
		return nil, bookcopy.ErrManualStatusForbidden
	}

	var c *bookcopy.Copy
	err = s.tx.Transaction(ctx, func(ctx context.Context) error {
		var err error
		if c, err = s.lockCopy(ctx, req.CopyID); err != nil {
			return err
		}
		busy, err := s.loans.CountActiveByCopy(ctx, c.ID)
		if err != nil {
			return err
		}
		if busy > 0 {
			return bookcopy.ErrCopyInUse
		}
		if err := s.copies.UpdateStatus(ctx, c.ID, status); err != nil {
			return err
		}
		c.Status = status
		_, err = s.engine.Reconciler.RecalculateBookAvailability(ctx, c.BookID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("副本状态已变更",
		zap.Uint("copy_id", c.ID),
		zap.Stringer("status", status),
		zap.Uint("staff_id", req.Actor.UserID),
	)
	if status == bookcopy.StatusAvailable {
		s.drain(ctx, c.BookID)
	}

	out := NewCopyInfo(c)
	return &out, nil
}

// Delete 删除副本：只允许遗失、损坏、维护中且从未被借阅的副本
func (s *Service) Delete(ctx context.Context, actor user.Actor, copyID uint) error {
	if !actor.IsStaff() {
		return apperrors.ErrForbidden
	}

	return s.tx.Transaction(ctx, func(ctx context.Context) error {
		c, err := s.lockCopy(ctx, copyID)
		if err != nil {
			return err
		}
		if !c.Status.IsRemovable() {
			return bookcopy.ErrNotRemovable
		}
		history, err := s.loans.CountByCopy(ctx, c.ID)
		if err != nil {
			return err
		}
		if history > 0 {
			return bookcopy.ErrCopyInUse
		}
		if err := s.copies.Delete(ctx, c.ID); err != nil {
			return err
		}
		_, err = s.engine.Reconciler.RecalculateBookAvailability(ctx, c.BookID)
		return err
	})
}

// List 图书的全部副本
func (s *Service) List(ctx context.Context, bookID uint) ([]CopyInfo, error) {
	if _, err := s.books.FindByID(ctx, bookID); err != nil {
		return nil, err
	}
	list, err := s.copies.ListByBookID(ctx, bookID)
	if err != nil {
		return nil, err
	}
	out := make([]CopyInfo, 0, len(list))
	for _, c := range list {
		out = append(out, NewCopyInfo(c))
	}
	return out, nil
}

// lockCopy 先锁图书行再锁副本行
func (s *Service) lockCopy(ctx context.Context, copyID uint) (*bookcopy.Copy, error) {
	c, err := s.copies.FindByID(ctx, copyID)
	if err != nil {
		return nil, err
	}
	if _, err := s.books.LockByID(ctx, c.BookID); err != nil {
		return nil, err
	}
	return s.copies.LockByID(ctx, copyID)
}

// drain 副本增加后尽量满足排队预约，失败只记日志
func (s *Service) drain(ctx context.Context, bookID uint) {
	n, err := s.engine.Queue.DrainQueue(ctx, bookID, 0)
	if err != nil {
		s.logger.Error("处理预约队列失败", zap.Uint("book_id", bookID), zap.Error(err))
		return
	}
	if n > 0 {
		s.logger.Info("预约已转为借阅", zap.Uint("book_id", bookID), zap.Int("promoted", n))
	}
}

// GenerateInventoryNumbers 生成登记号 ISBN-001 起，从已有数量之后续编
func GenerateInventoryNumbers(isbn string, existing, count int) []string {
	out := make([]string, count)
	for i := range out {
		out[i] = fmt.Sprintf("%s-%03d", isbn, existing+i+1)
	}
	return out
}
