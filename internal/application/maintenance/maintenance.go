// Package maintenance 定时维护：清理过期预约与逾期未取的借阅，校验借阅，重算计数，处理排队
package maintenance

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xiebiao/biblioteca/internal/domain/circulation"
	"github.com/xiebiao/biblioteca/internal/domain/loan"
	"github.com/xiebiao/biblioteca/internal/domain/reservation"
	"github.com/xiebiao/biblioteca/internal/domain/user"
	apperrors "github.com/xiebiao/biblioteca/pkg/errors"
	"github.com/xiebiao/biblioteca/pkg/logger"
	"github.com/xiebiao/biblioteca/pkg/tracing"
)

const tracerName = "biblioteca/application/maintenance"

// LoanIssue 校验失败或需要人工处理的借阅
type LoanIssue struct {
	LoanID  uint   `json:"loan_id"`
	Message string `json:"message"`
}

// Report 一次维护的结果
type Report struct {
	StartedAt           time.Time   `json:"started_at"`
	FinishedAt          time.Time   `json:"finished_at"`
	ExpiredReservations int         `json:"expired_reservations"`
	ExpiredHolds        int         `json:"expired_holds"`
	LoansChecked        int         `json:"loans_checked"`
	LoansChanged        int         `json:"loans_changed"`
	LoanIssues          []LoanIssue `json:"loan_issues,omitempty"`
	BooksCorrected      int         `json:"books_corrected"`
	QueuesProcessed     int         `json:"queues_processed"`
	Promoted            int         `json:"promoted"`
}

// RunMaintenanceUseCase 维护用例
type RunMaintenanceUseCase struct {
	loans        loan.Repository
	reservations reservation.Repository
	engine       *circulation.Engine
	logger       *zap.Logger
}

// NewRunMaintenanceUseCase 创建维护用例
func NewRunMaintenanceUseCase(loans loan.Repository, reservations reservation.Repository, engine *circulation.Engine, log *zap.Logger) *RunMaintenanceUseCase {
	return &RunMaintenanceUseCase{
		loans:        loans,
		reservations: reservations,
		engine:       engine,
		logger:       logger.OrNop(log).Named("maintenance"),
	}
}

// Execute 馆员触发维护
func (uc *RunMaintenanceUseCase) Execute(ctx context.Context, actor user.Actor) (*Report, error) {
	if !actor.IsStaff() {
		return nil, apperrors.ErrForbidden
	}
	return uc.Run(ctx)
}

// Run 依次执行各步骤，出错时返回已完成部分的报告
// 单本图书的排队处理失败只记录日志，不中断后续图书
func (uc *RunMaintenanceUseCase) Run(ctx context.Context) (report *Report, err error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "RunMaintenance")
	defer func() {
		tracing.RecordError(span, err)
		span.End()
	}()

	report = &Report{StartedAt: uc.engine.Now()}
	defer func() { report.FinishedAt = uc.engine.Now() }()

	// 1. 过期预约
	if report.ExpiredReservations, err = uc.engine.Queue.SweepExpired(ctx); err != nil {
		return report, err
	}

	// 2. 逾期未取书的预约借阅，释放的副本在第5步分配给排队读者
	if report.ExpiredHolds, err = uc.engine.Queue.ExpireUnclaimed(ctx); err != nil {
		return report, err
	}

	// 3. 在借借阅
	active, err := uc.loans.ListActive(ctx)
	if err != nil {
		return report, err
	}
	for _, l := range active {
		res := uc.engine.Reconciler.ValidateAndUpdateLoan(ctx, l.ID)
		report.LoansChecked++
		if res.Changed {
			report.LoansChanged++
		}
		if !res.Success {
			report.LoanIssues = append(report.LoanIssues, LoanIssue{LoanID: res.LoanID, Message: res.Message})
		}
	}

	// 4. 计数
	if report.BooksCorrected, err = uc.engine.Reconciler.RecalculateAll(ctx); err != nil {
		return report, err
	}

	// 5. 排队
	bookIDs, err := uc.reservations.ListBooksWithQueue(ctx)
	if err != nil {
		return report, err
	}
	for _, bookID := range bookIDs {
		n, err := uc.engine.Queue.DrainQueue(ctx, bookID, 0)
		report.Promoted += n
		if err != nil {
			uc.logger.Error("处理排队失败", zap.Uint("book_id", bookID), zap.Error(err))
			continue
		}
		report.QueuesProcessed++
	}

	uc.logger.Info("维护完成",
		zap.Int("expired_reservations", report.ExpiredReservations),
		zap.Int("expired_holds", report.ExpiredHolds),
		zap.Int("loans_checked", report.LoansChecked),
		zap.Int("loans_changed", report.LoansChanged),
		zap.Int("loan_issues", len(report.LoanIssues)),
		zap.Int("books_corrected", report.BooksCorrected),
		zap.Int("promoted", report.Promoted),
	)
	return report, nil
}
