package book

import (
	"context"

	"go.uber.org/zap"

	"github.com/xiebiao/biblioteca/internal/domain/circulation"
	"github.com/xiebiao/biblioteca/internal/domain/user"
	apperrors "github.com/xiebiao/biblioteca/pkg/errors"
	"github.com/xiebiao/biblioteca/pkg/logger"
	"github.com/xiebiao/biblioteca/pkg/tracing"
)

// RecalculateUseCase 手动重算图书计数
type RecalculateUseCase struct {
	engine *circulation.Engine
	logger *zap.Logger
}

// NewRecalculateUseCase 创建重算用例
func NewRecalculateUseCase(engine *circulation.Engine, log *zap.Logger) *RecalculateUseCase {
	return &RecalculateUseCase{engine: engine, logger: logger.OrNop(log).Named("book")}
}

// RecalculateResponse 重算结果
type RecalculateResponse struct {
	BookID          uint           `json:"book_id,omitempty"`
	TotalCopies     int            `json:"total_copies"`
	AvailableCopies int            `json:"available_copies"`
	Status          string         `json:"status,omitempty"`
	ByStatus        map[string]int `json:"by_status,omitempty"`
	Corrected       int            `json:"corrected,omitempty"` // 全量重算时修正的图书数
}

// Execute 重算单本图书
func (uc *RecalculateUseCase) Execute(ctx context.Context, actor user.Actor, bookID uint) (resp *RecalculateResponse, err error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "Recalculate")
	defer func() {
		tracing.RecordError(span, err)
		span.End()
	}()

	if !actor.IsStaff() {
		return nil, apperrors.ErrForbidden
	}

	c, err := uc.engine.Reconciler.RecalculateBookAvailability(ctx, bookID)
	if err != nil {
		return nil, err
	}
	byStatus := make(map[string]int, len(c.ByStatus))
	for st, n := range c.ByStatus {
		byStatus[st.String()] = n
	}
	return &RecalculateResponse{
		BookID:          bookID,
		TotalCopies:     c.Total,
		AvailableCopies: c.Available,
		Status:          c.BookStatus().String(),
		ByStatus:        byStatus,
	}, nil
}

// ExecuteAll 全量重算，返回修正的图书数
func (uc *RecalculateUseCase) ExecuteAll(ctx context.Context, actor user.Actor) (*RecalculateResponse, error) {
	if !actor.IsStaff() {
		return nil, apperrors.ErrForbidden
	}
	n, err := uc.engine.Reconciler.RecalculateAll(ctx)
	if err != nil {
		return nil, err
	}
	uc.logger.Info("全量重算完成", zap.Int("corrected", n))
	return &RecalculateResponse{Corrected: n}, nil
}
