package circulation

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xiebiao/biblioteca/internal/domain/book"
	"github.com/xiebiao/biblioteca/internal/domain/bookcopy"
	"github.com/xiebiao/biblioteca/internal/domain/loan"
	"github.com/xiebiao/biblioteca/pkg/dates"
	"github.com/xiebiao/biblioteca/pkg/logger"
	"github.com/xiebiao/biblioteca/pkg/metrics"
)

// LoanValidation 单条借阅校验结果
type LoanValidation struct {
	LoanID  uint
	Success bool
	Changed bool
	From    loan.Status
	To      loan.Status
	Message string
}

// Reconciler 计数与状态重算器
// 计数从副本表全量重算后覆盖写入，任何修改路径之后调用都是幂等的
type Reconciler struct {
	tx     Transactor
	books  book.Repository
	copies bookcopy.Repository
	loans  loan.Repository
	now    Clock
	logger *zap.Logger
}

// NewReconciler 创建重算器
func NewReconciler(tx Transactor, books book.Repository, copies bookcopy.Repository, loans loan.Repository, now Clock, log *zap.Logger) *Reconciler {
	if now == nil {
		now = time.Now
	}
	return &Reconciler{
		tx:     tx,
		books:  books,
		copies: copies,
		loans:  loans,
		now:    now,
		logger: logger.OrNop(log).Named("reconciler"),
	}
}

// RecalculateBookAvailability 重算并写入copie_totali、copie_disponibili、stato
// 副本状态变更、借阅创建/归还/续借、预约变化之后都要调用
func (r *Reconciler) RecalculateBookAvailability(ctx context.Context, bookID uint) (Counters, error) {
	counters, _, err := r.recalculate(ctx, bookID)
	return counters, err
}

func (r *Reconciler) recalculate(ctx context.Context, bookID uint) (Counters, bool, error) {
	var counters Counters
	var changed bool
	err := r.tx.Transaction(ctx, func(ctx context.Context) error {
		b, err := r.books.FindByID(ctx, bookID)
		if err != nil {
			return err
		}

		statuses, err := r.copies.ListStatusesByBookID(ctx, bookID)
		if err != nil {
			return err
		}
		counters = ComputeCounters(statuses)

		oldTotal, oldAvailable := b.TotalCopies, b.AvailableCopies
		changed = b.ApplyCounters(counters.Total, counters.Available, counters.Lendable)
		if !changed {
			return nil
		}

		r.logger.Debug("图书计数更新",
			zap.Uint("book_id", bookID),
			zap.Int("total_before", oldTotal),
			zap.Int("total", counters.Total),
			zap.Int("available_before", oldAvailable),
			zap.Int("available", counters.Available),
			zap.String("status", b.Status.String()),
		)
		return r.books.UpdateAvailability(ctx, bookID, b.TotalCopies, b.AvailableCopies, b.Status)
	})
	return counters, changed, err
}

// RecalculateAll 全量重算所有图书
// 正常路径每次修改后都会重算，这里发现的差异都是漂移，记录告警
func (r *Reconciler) RecalculateAll(ctx context.Context) (int, error) {
	ids, err := r.books.ListIDs(ctx)
	if err != nil {
		return 0, err
	}

	corrected := 0
	for _, id := range ids {
		counters, changed, err := r.recalculate(ctx, id)
		if err != nil {
			return corrected, fmt.Errorf("重算图书%d失败: %w", id, err)
		}
		if changed {
			corrected++
			metrics.IncCounterDrift()
			r.logger.Warn("图书计数漂移已修正",
				zap.Uint("book_id", id),
				zap.Int("total", counters.Total),
				zap.Int("available", counters.Available),
			)
		}
	}
	return corrected, nil
}

// ValidateAndUpdateLoan 按今天的日期校验借阅状态
//   - in_corso 已过到期日 → in_ritardo
//   - in_ritardo 到期日已延后（续借/改期）→ in_corso
//   - 终态但仍attivo → 置为非活动，副本按结果对齐并重算计数
//   - 占用状态但attivo=0 → 报告失败，不自动修复
//   - 借出中的借阅其副本却在架 → 副本改回prestato
//
// 作为事务提交后的尽力而为校验，错误只记录日志并体现在结果中
func (r *Reconciler) ValidateAndUpdateLoan(ctx context.Context, loanID uint) LoanValidation {
	res := LoanValidation{LoanID: loanID}
	today := dates.Today(r.now)

	err := r.tx.Transaction(ctx, func(ctx context.Context) error {
		l, err := r.loans.LockByID(ctx, loanID)
		if err != nil {
			return err
		}
		res.From, res.To = l.Status, l.Status

		switch {
		case !l.Active && l.Status.OccupiesSlot():
			res.Message = fmt.Sprintf("借阅状态为%s但已非活动，需要人工处理", l.Status)
			return nil

		case l.Active && l.Status.IsTerminal():
			l.Active = false
			if l.ReturnedAt == nil && l.Status != loan.StatusCancelled {
				l.ReturnedAt = &today
			}
			if err := r.loans.Update(ctx, l); err != nil {
				return err
			}
			res.Changed = true
			res.Message = "终态借阅已置为非活动"
			return r.realignClosedCopy(ctx, l)

		case l.Status == loan.StatusActive && l.IsOverdue(today):
			if err := l.TransitionTo(loan.StatusOverdue); err != nil {
				return err
			}
			res.Changed = true
			res.Message = "借阅已逾期"

		case l.Status == loan.StatusOverdue && !l.IsOverdue(today):
			if err := l.TransitionTo(loan.StatusActive); err != nil {
				return err
			}
			res.Changed = true
			res.Message = "到期日已延后，恢复为借阅中"
		}

		res.To = l.Status
		if res.Changed {
			if err := r.loans.Update(ctx, l); err != nil {
				return err
			}
			if res.From != res.To {
				metrics.IncLoanTransition(res.From.String(), res.To.String())
			}
		}

		fixed, err := r.repairCopyStatus(ctx, l)
		if err != nil {
			return err
		}
		if fixed {
			res.Changed = true
			if res.Message == "" {
				res.Message = "副本状态已与借阅对齐"
			}
			if _, err := r.RecalculateBookAvailability(ctx, l.BookID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		res.Success = false
		res.Message = err.Error()
		r.logger.Error("借阅校验失败", zap.Uint("loan_id", loanID), zap.Error(err))
		return res
	}

	if res.Message != "" && !res.Changed {
		r.logger.Warn("借阅状态异常", zap.Uint("loan_id", loanID), zap.String("message", res.Message))
		return res
	}

	res.Success = true
	if res.Changed {
		r.logger.Info("借阅状态已校正",
			zap.Uint("loan_id", loanID),
			zap.String("from", res.From.String()),
			zap.String("to", res.To.String()),
			zap.String("message", res.Message),
		)
	}
	return res
}

// ReleaseCopy 借阅结束后按结果写入副本状态，返回写入的状态
// 须在同一事务内、借阅已保存为非活动之后调用
// 结果为在架但副本上仍有其他活动借阅时，按这些借阅继续保留副本
func (r *Reconciler) ReleaseCopy(ctx context.Context, copyID uint, outcome loan.Status) (bookcopy.Status, error) {
	target, ok := loan.CopyStatusOnClose(outcome)
	if !ok {
		return "", loan.ErrInvalidOutcome
	}

	if target == bookcopy.StatusAvailable {
		others, err := r.loans.ListActiveByCopy(ctx, copyID)
		if err != nil {
			return "", err
		}
		for _, o := range others {
			if !o.Status.OccupiesSlot() || target == bookcopy.StatusLoaned {
				continue
			}
			target = loan.CopyStatusWhileOpen(o.Status)
		}
	}

	if err := r.copies.UpdateStatus(ctx, copyID, target); err != nil {
		return "", err
	}
	return target, nil
}

// realignClosedCopy 终态借阅的副本仍显示借出或保留时按结果改写
// 馆员手工设置的维修、遗失等状态不覆盖
func (r *Reconciler) realignClosedCopy(ctx context.Context, l *loan.Loan) error {
	if l.CopyID == nil {
		return nil
	}
	c, err := r.copies.FindByID(ctx, *l.CopyID)
	if err != nil {
		return err
	}
	if c.Status != bookcopy.StatusLoaned && c.Status != bookcopy.StatusReserved {
		return nil
	}

	st, err := r.ReleaseCopy(ctx, c.ID, l.Status)
	if err != nil {
		return err
	}
	if st != c.Status {
		r.logger.Warn("终态借阅的副本状态已修正",
			zap.Uint("loan_id", l.ID),
			zap.Uint("copy_id", c.ID),
			zap.Stringer("from", c.Status),
			zap.Stringer("to", st),
		)
	}
	_, err = r.RecalculateBookAvailability(ctx, l.BookID)
	return err
}

// repairCopyStatus 借出中的借阅引用的副本显示在架时改回prestato
// 遗失、损坏等人工状态不覆盖
func (r *Reconciler) repairCopyStatus(ctx context.Context, l *loan.Loan) (bool, error) {
	if !l.Active || l.CopyID == nil {
		return false, nil
	}
	if l.Status != loan.StatusActive && l.Status != loan.StatusOverdue {
		return false, nil
	}

	c, err := r.copies.FindByID(ctx, *l.CopyID)
	if err != nil {
		return false, err
	}
	if c.Status != bookcopy.StatusAvailable {
		return false, nil
	}
	if err := r.copies.UpdateStatus(ctx, c.ID, bookcopy.StatusLoaned); err != nil {
		return false, err
	}
	r.logger.Warn("副本状态与借阅不一致，已修正",
		zap.Uint("loan_id", l.ID),
		zap.Uint("copy_id", c.ID),
	)
	return true, nil
}
