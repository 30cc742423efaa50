package circulation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xiebiao/biblioteca/internal/domain/book"
	"github.com/xiebiao/biblioteca/internal/domain/loan"
	"github.com/xiebiao/biblioteca/internal/domain/reservation"
	"github.com/xiebiao/biblioteca/internal/domain/user"
	"github.com/xiebiao/biblioteca/pkg/dates"
	"github.com/xiebiao/biblioteca/pkg/logger"
	"github.com/xiebiao/biblioteca/pkg/metrics"
)

// EnqueueRequest 排队请求
// Start、End都为空表示"有书就借"；只给Start时按借期推算End
type EnqueueRequest struct {
	BookID uint
	UserID uint
	Start  *time.Time
	End    *time.Time
}

// QueueManager 预约队列管理器
// 每本书的attiva预约按queue_position维持1..k的FIFO顺序
type QueueManager struct {
	tx           Transactor
	books        book.Repository
	loans        loan.Repository
	reservations reservation.Repository
	users        user.Repository
	calc         *Calculator
	alloc        *Allocator
	rec          *Reconciler
	notifier     Notifier
	policy       Policy
	now          Clock
	logger       *zap.Logger
}

// NewQueueManager 创建队列管理器，notifier为nil时不发送到书通知
func NewQueueManager(tx Transactor, repos Repositories, calc *Calculator, alloc *Allocator, rec *Reconciler, notifier Notifier, policy Policy, now Clock, log *zap.Logger) *QueueManager {
	if now == nil {
		now = time.Now
	}
	return &QueueManager{
		tx:           tx,
		books:        repos.Books,
		loans:        repos.Loans,
		reservations: repos.Reservations,
		users:        repos.Users,
		calc:         calc,
		alloc:        alloc,
		rec:          rec,
		notifier:     notifier,
		policy:       policy,
		now:          now,
		logger:       logger.OrNop(log).Named("queue"),
	}
}

// Enqueue 加入队尾
// 在图书行锁下取MAX(queue_position)+1，并发排队不会得到重复排位
func (q *QueueManager) Enqueue(ctx context.Context, req EnqueueRequest) (*reservation.Reservation, error) {
	today := dates.Today(q.now)

	start, end := req.Start, req.End
	if end != nil && start == nil {
		return nil, ErrInvalidDateRange
	}
	if start != nil {
		s := dates.Truncate(*start)
		if s.Before(today) {
			return nil, ErrInvalidDateRange
		}
		start = &s
		if end == nil {
			e := dates.AddDays(s, q.policy.LoanPeriodDays)
			end = &e
		}
		if end.Before(s) {
			return nil, ErrInvalidDateRange
		}
	}

	// 预约有效期：指定区间时到区间结束，否则按有效天数
	expires := dates.AddDays(today, q.policy.ReservationTTLDays)
	if end != nil {
		expires = dates.Truncate(*end)
	}

	r := reservation.NewReservation(req.BookID, req.UserID, start, end, today, expires)
	err := q.tx.Transaction(ctx, func(ctx context.Context) error {
		if _, err := q.books.LockByID(ctx, req.BookID); err != nil {
			return err
		}

		exists, err := q.reservations.ExistsActive(ctx, req.BookID, req.UserID)
		if err != nil {
			return err
		}
		if exists {
			return reservation.ErrAlreadyQueued
		}

		maxPos, err := q.reservations.MaxQueuePosition(ctx, req.BookID)
		if err != nil {
			return err
		}
		r.QueuePosition = maxPos + 1

		if err := q.reservations.Create(ctx, r); err != nil {
			return err
		}
		_, err = q.rec.RecalculateBookAvailability(ctx, req.BookID)
		return err
	})
	if err != nil {
		return nil, err
	}

	q.logger.Info("预约已入队",
		zap.Uint("reservation_id", r.ID),
		zap.Uint("book_id", r.BookID),
		zap.Uint("user_id", r.UserID),
		zap.Int("queue_position", r.QueuePosition),
	)
	return r, nil
}

// ProcessBookAvailability 尝试把队首预约转为借阅
//
// 一个事务内：锁图书行 → 取队首 → 计算借阅区间 → 容量检查（只计排在前面的预约）→ 分配副本。
// 分配失败直接返回false不重试，等下一次归还或状态变更再触发。
// 成功后预约置为completata并重排队列；提交后尽力发送通知，失败只记日志。
func (q *QueueManager) ProcessBookAvailability(ctx context.Context, bookID uint) (bool, error) {
	today := dates.Today(q.now)
	var notice *BookAvailableNotice

	err := q.tx.Transaction(ctx, func(ctx context.Context) error {
		b, err := q.books.LockByID(ctx, bookID)
		if err != nil {
			return err
		}

		for {
			head, err := q.reservations.FindQueueHead(ctx, bookID)
			if err != nil {
				return err
			}
			if head == nil {
				metrics.IncQueueProcessing("empty")
				return nil
			}

			start, end, ok := head.LoanWindow(today, q.policy.LoanPeriodDays)
			if !ok {
				// 请求区间已整体过去，队首永远无法满足，取消后看下一位
				if err := q.cancelInTx(ctx, head); err != nil {
					return err
				}
				metrics.IncQueueProcessing("expired_window")
				q.logger.Info("队首预约区间已过，自动取消",
					zap.Uint("reservation_id", head.ID),
					zap.Uint("book_id", bookID),
				)
				continue
			}

			available, err := q.calc.IsDateRangeAvailable(ctx, bookID, start, end, QueueAheadOf(head.QueuePosition))
			if err != nil {
				return err
			}
			if !available {
				metrics.IncQueueProcessing("unavailable")
				return nil
			}

			res, err := q.alloc.AllocateCopy(ctx, AllocationRequest{
				BookID: bookID,
				UserID: head.UserID,
				Start:  start,
				End:    end,
				Status: loan.StatusReserved, // 等待读者取书
				Notes:  "预约转借阅",
			})
			if err != nil {
				return err
			}
			if !res.Allocated() {
				metrics.IncQueueProcessing(res.Outcome.String())
				return nil
			}

			if err := head.Complete(res.Loan.ID); err != nil {
				return err
			}
			if err := q.reservations.Update(ctx, head); err != nil {
				return err
			}
			if err := q.Renumber(ctx, bookID); err != nil {
				return err
			}
			if _, err := q.rec.RecalculateBookAvailability(ctx, bookID); err != nil {
				return err
			}

			metrics.IncQueueProcessing("promoted")
			notice = &BookAvailableNotice{
				EventID:       uuid.NewString(),
				ReservationID: head.ID,
				LoanID:        res.Loan.ID,
				BookID:        bookID,
				BookTitle:     b.Title,
				UserID:        head.UserID,
				StartDate:     res.Loan.StartDate,
				DueDate:       res.Loan.DueDate,
			}
			return nil
		}
	})
	if err != nil {
		return false, err
	}
	if notice == nil {
		return false, nil
	}

	q.logger.Info("预约已转为借阅",
		zap.Uint("reservation_id", notice.ReservationID),
		zap.Uint("loan_id", notice.LoanID),
		zap.Uint("book_id", bookID),
	)
	q.notify(ctx, *notice)
	return true, nil
}

// DrainQueue 反复处理队首直到无法再转借阅，limit<=0表示不限
func (q *QueueManager) DrainQueue(ctx context.Context, bookID uint, limit int) (int, error) {
	promoted := 0
	for limit <= 0 || promoted < limit {
		ok, err := q.ProcessBookAvailability(ctx, bookID)
		if err != nil {
			return promoted, err
		}
		if !ok {
			break
		}
		promoted++
	}
	return promoted, nil
}

// Cancel 取消预约（本人或馆员）
func (q *QueueManager) Cancel(ctx context.Context, reservationID uint, actor user.Actor) (*reservation.Reservation, error) {
	var r *reservation.Reservation
	err := q.tx.Transaction(ctx, func(ctx context.Context) error {
		var err error
		r, err = q.reservations.FindByID(ctx, reservationID)
		if err != nil {
			return err
		}
		if !actor.CanActOn(r.UserID) {
			return reservation.ErrNotOwner
		}
		if _, err := q.books.LockByID(ctx, r.BookID); err != nil {
			return err
		}
		return q.cancelInTx(ctx, r)
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// SweepExpired 清理过期预约（data_scadenza_prenotazione早于今天）并重排各书队列
func (q *QueueManager) SweepExpired(ctx context.Context) (int, error) {
	today := dates.Today(q.now)
	expired, err := q.reservations.ListExpired(ctx, today)
	if err != nil {
		return 0, err
	}

	byBook := make(map[uint][]uint)
	var order []uint
	for _, r := range expired {
		if _, seen := byBook[r.BookID]; !seen {
			order = append(order, r.BookID)
		}
		byBook[r.BookID] = append(byBook[r.BookID], r.ID)
	}

	swept := 0
	for _, bookID := range order {
		ids := byBook[bookID]
		n := 0
		err := q.tx.Transaction(ctx, func(ctx context.Context) error {
			if _, err := q.books.LockByID(ctx, bookID); err != nil {
				return err
			}
			for _, id := range ids {
				r, err := q.reservations.FindByID(ctx, id)
				if err != nil {
					return err
				}
				// 加锁前可能已被处理
				if r.Status != reservation.StatusActive || !r.IsExpired(today) {
					continue
				}
				if err := r.Cancel(); err != nil {
					return err
				}
				if err := q.reservations.Update(ctx, r); err != nil {
					return err
				}
				n++
			}
			if err := q.Renumber(ctx, bookID); err != nil {
				return err
			}
			_, err := q.rec.RecalculateBookAvailability(ctx, bookID)
			return err
		})
		if err != nil {
			return swept, err
		}
		swept += n
	}

	metrics.AddReservationsExpired(swept)
	if swept > 0 {
		q.logger.Info("过期预约已清理", zap.Int("count", swept), zap.Int("books", len(order)))
	}
	return swept, nil
}

// ExpireUnclaimed 取消起借日之后超过PickupGraceDays仍未取书的预约借阅
// 副本按取消结果释放并重算计数；释放出的副本由调用方随后处理排队
func (q *QueueManager) ExpireUnclaimed(ctx context.Context) (int, error) {
	today := dates.Today(q.now)
	cutoff := dates.AddDays(today, -q.policy.PickupGraceDays)
	stale, err := q.loans.ListUnclaimed(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, candidate := range stale {
		cancelled := false
		err := q.tx.Transaction(ctx, func(ctx context.Context) error {
			if _, err := q.books.LockByID(ctx, candidate.BookID); err != nil {
				return err
			}
			l, err := q.loans.LockByID(ctx, candidate.ID)
			if err != nil {
				return err
			}
			// 加锁前可能已取书或被取消
			if !l.Active || l.Status != loan.StatusReserved || !l.StartDate.Before(cutoff) {
				return nil
			}
			if err := l.Cancel(); err != nil {
				return err
			}
			l.Notes = "逾期未取书，自动取消"
			if err := q.loans.Update(ctx, l); err != nil {
				return err
			}
			if l.CopyID != nil {
				if _, err := q.rec.ReleaseCopy(ctx, *l.CopyID, l.Status); err != nil {
					return err
				}
			}
			cancelled = true
			_, err = q.rec.RecalculateBookAvailability(ctx, l.BookID)
			return err
		})
		if err != nil {
			return expired, err
		}
		if cancelled {
			expired++
			metrics.IncLoanTransition(loan.StatusReserved.String(), loan.StatusCancelled.String())
			q.logger.Info("预约借阅逾期未取，已取消",
				zap.Uint("loan_id", candidate.ID),
				zap.Uint("book_id", candidate.BookID),
				zap.Uint("user_id", candidate.UserID),
			)
		}
	}
	return expired, nil
}

// Renumber 按(queue_position, id)重新编号为1..k
// 幂等：没有状态变化时重复调用不写库
func (q *QueueManager) Renumber(ctx context.Context, bookID uint) error {
	return q.tx.Transaction(ctx, func(ctx context.Context) error {
		queue, err := q.reservations.ListActiveByBook(ctx, bookID)
		if err != nil {
			return err
		}
		for i, r := range queue {
			want := i + 1
			if r.QueuePosition == want {
				continue
			}
			if err := q.reservations.UpdateQueuePosition(ctx, r.ID, want); err != nil {
				return err
			}
			r.QueuePosition = want
		}
		return nil
	})
}

// cancelInTx 取消并重排，调用方已持有图书行锁
func (q *QueueManager) cancelInTx(ctx context.Context, r *reservation.Reservation) error {
	if err := r.Cancel(); err != nil {
		return err
	}
	if err := q.reservations.Update(ctx, r); err != nil {
		return err
	}
	if err := q.Renumber(ctx, r.BookID); err != nil {
		return err
	}
	_, err := q.rec.RecalculateBookAvailability(ctx, r.BookID)
	return err
}

// notify 到书通知，失败不回滚已提交的转借阅
func (q *QueueManager) notify(ctx context.Context, notice BookAvailableNotice) {
	if q.notifier == nil {
		return
	}

	if q.users != nil {
		u, err := q.users.FindByID(ctx, notice.UserID)
		if err != nil {
			q.logger.Warn("查询读者邮箱失败", zap.Uint("user_id", notice.UserID), zap.Error(err))
		} else {
			notice.UserEmail = u.Email
		}
	}

	if err := q.notifier.NotifyBookAvailable(ctx, notice); err != nil {
		metrics.IncNotification("failed")
		q.logger.Warn("到书通知发送失败",
			zap.Uint("reservation_id", notice.ReservationID),
			zap.Uint("user_id", notice.UserID),
			zap.Error(err),
		)
		return
	}
	metrics.IncNotification("sent")

	if err := q.reservations.MarkNotified(ctx, notice.ReservationID); err != nil {
		q.logger.Warn("标记通知状态失败", zap.Uint("reservation_id", notice.ReservationID), zap.Error(err))
	}
}
