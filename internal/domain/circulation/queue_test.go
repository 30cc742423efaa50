package circulation_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiebiao/biblioteca/internal/domain/book"
	"github.com/xiebiao/biblioteca/internal/domain/bookcopy"
	"github.com/xiebiao/biblioteca/internal/domain/circulation"
	"github.com/xiebiao/biblioteca/internal/domain/loan"
	"github.com/xiebiao/biblioteca/internal/domain/reservation"
	"github.com/xiebiao/biblioteca/internal/domain/user"
)

// 唯一副本借出中，两人排队；归还后队首转为借阅，剩余预约重排为1
func TestScenarioC_ReturnPromotesHead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, copies := f.AddBook(t, "9788804492948", 1)
	borrower := f.addUser(t, "borrower@example.it")
	first := f.addUser(t, "first@example.it")
	second := f.addUser(t, "second@example.it")

	current, err := f.Engine.Allocator.AllocateCopy(ctx, circulation.AllocationRequest{
		BookID: b.ID, UserID: borrower.ID, Start: today, End: day("2025-06-14"),
	})
	require.NoError(t, err)
	require.True(t, current.Allocated())

	r1, err := f.Engine.Queue.Enqueue(ctx, circulation.EnqueueRequest{BookID: b.ID, UserID: first.ID})
	require.NoError(t, err)
	r2, err := f.Engine.Queue.Enqueue(ctx, circulation.EnqueueRequest{BookID: b.ID, UserID: second.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, r1.QueuePosition)
	assert.Equal(t, 2, r2.QueuePosition)

	// 副本仍借出，队首无法满足
	promoted, err := f.Engine.Queue.ProcessBookAvailability(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, promoted)

	// 归还
	l := current.Loan
	require.NoError(t, l.Close(loan.StatusReturned, today))
	require.NoError(t, f.Repos.Loans.Update(ctx, l))
	require.NoError(t, f.Repos.Copies.UpdateStatus(ctx, copies[0].ID, bookcopy.StatusAvailable))
	_, err = f.Engine.Reconciler.RecalculateBookAvailability(ctx, b.ID)
	require.NoError(t, err)

	promoted, err = f.Engine.Queue.ProcessBookAvailability(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, promoted)

	done, err := f.Repos.Reservations.FindByID(ctx, r1.ID)
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusCompleted, done.Status)
	require.NotNil(t, done.LoanID)
	assert.True(t, done.NotificationSent)

	newLoan, err := f.Repos.Loans.FindByID(ctx, *done.LoanID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, newLoan.UserID)
	assert.Equal(t, loan.StatusReserved, newLoan.Status)
	assert.True(t, today.Equal(newLoan.StartDate))
	assert.True(t, day("2025-06-15").Equal(newLoan.DueDate))
	assert.Equal(t, bookcopy.StatusReserved, f.CopyStatus(t, copies[0].ID))

	assert.Equal(t, []int{1}, f.queuePositions(t, b.ID))
	rest, err := f.Repos.Reservations.FindByID(ctx, r2.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, rest.QueuePosition)

	// 计数与副本状态一致
	got := f.Book(t, b.ID)
	assert.Equal(t, 1, got.TotalCopies)
	assert.Equal(t, 0, got.AvailableCopies)
	assert.Equal(t, book.StatusOnLoan, got.Status)

	require.Len(t, f.Notifier.Notices(), 1)
	notice := f.Notifier.Notices()[0]
	assert.Equal(t, r1.ID, notice.ReservationID)
	assert.Equal(t, "first@example.it", notice.UserEmail)
	assert.Equal(t, b.Title, notice.BookTitle)
	assert.NotEmpty(t, notice.EventID)

	// 第二位读者被新借阅挡住
	promoted, err = f.Engine.Queue.ProcessBookAvailability(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, promoted)
}

func TestQueue_NotificationFailureKeepsPromotion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, _ := f.AddBook(t, "9788804492948", 1)
	u := f.addUser(t, "reader@example.it")

	r, err := f.Engine.Queue.Enqueue(ctx, circulation.EnqueueRequest{BookID: b.ID, UserID: u.ID})
	require.NoError(t, err)

	f.Notifier.FailWith(errors.New("broker down"))
	promoted, err := f.Engine.Queue.ProcessBookAvailability(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, promoted)

	got, err := f.Repos.Reservations.FindByID(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusCompleted, got.Status)
	assert.False(t, got.NotificationSent)
}

func TestQueue_EnqueueValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, _ := f.AddBook(t, "9788804492948", 1)

	_, err := f.Engine.Queue.Enqueue(ctx, circulation.EnqueueRequest{BookID: b.ID, UserID: 1, End: ptr(day("2025-06-10"))})
	assert.ErrorIs(t, err, circulation.ErrInvalidDateRange)

	_, err = f.Engine.Queue.Enqueue(ctx, circulation.EnqueueRequest{BookID: b.ID, UserID: 1, Start: ptr(day("2025-05-20"))})
	assert.ErrorIs(t, err, circulation.ErrInvalidDateRange)

	_, err = f.Engine.Queue.Enqueue(ctx, circulation.EnqueueRequest{
		BookID: b.ID, UserID: 1, Start: ptr(day("2025-06-10")), End: ptr(day("2025-06-05")),
	})
	assert.ErrorIs(t, err, circulation.ErrInvalidDateRange)

	_, err = f.Engine.Queue.Enqueue(ctx, circulation.EnqueueRequest{BookID: 999, UserID: 1})
	assert.ErrorIs(t, err, book.ErrBookNotFound)

	// 只给起始日：按借期推算结束日，有效期到结束日
	r, err := f.Engine.Queue.Enqueue(ctx, circulation.EnqueueRequest{BookID: b.ID, UserID: 1, Start: ptr(day("2025-06-10"))})
	require.NoError(t, err)
	require.NotNil(t, r.RequestedEnd)
	assert.True(t, day("2025-06-24").Equal(*r.RequestedEnd))
	assert.True(t, day("2025-06-24").Equal(r.ExpiresAt))

	_, err = f.Engine.Queue.Enqueue(ctx, circulation.EnqueueRequest{BookID: b.ID, UserID: 1})
	assert.ErrorIs(t, err, reservation.ErrAlreadyQueued)

	// 无区间：有效期按天数
	r2, err := f.Engine.Queue.Enqueue(ctx, circulation.EnqueueRequest{BookID: b.ID, UserID: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, r2.QueuePosition)
	assert.True(t, day("2025-07-01").Equal(r2.ExpiresAt))
}

func TestQueue_Cancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, _ := f.AddBook(t, "9788804492948", 0)

	var ids []uint
	for userID := uint(1); userID <= 3; userID++ {
		r, err := f.Engine.Queue.Enqueue(ctx, circulation.EnqueueRequest{BookID: b.ID, UserID: userID})
		require.NoError(t, err)
		ids = append(ids, r.ID)
	}

	_, err := f.Engine.Queue.Cancel(ctx, ids[0], user.Actor{UserID: 2, Role: user.RoleMember})
	assert.ErrorIs(t, err, reservation.ErrNotOwner)

	cancelled, err := f.Engine.Queue.Cancel(ctx, ids[0], user.Actor{UserID: 1, Role: user.RoleMember})
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusCancelled, cancelled.Status)
	assert.Equal(t, []int{1, 2}, f.queuePositions(t, b.ID))

	// 馆员可以取消任何人的预约，已取消的不能再取消
	_, err = f.Engine.Queue.Cancel(ctx, ids[2], user.Actor{UserID: 99, Role: user.RoleStaff})
	require.NoError(t, err)
	_, err = f.Engine.Queue.Cancel(ctx, ids[2], user.Actor{UserID: 99, Role: user.RoleStaff})
	assert.ErrorIs(t, err, reservation.ErrNotActive)
	assert.Equal(t, []int{1}, f.queuePositions(t, b.ID))
}

// 过期预约被清理，剩余队列无空位
func TestScenarioE_SweepExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, _ := f.AddBook(t, "9788804492948", 0)

	expiries := []string{"2025-06-30", "2025-05-31", "2025-06-20", "2025-05-01"}
	var created []*reservation.Reservation
	for i, exp := range expiries {
		r := reservation.NewReservation(b.ID, uint(i+1), nil, nil, day("2025-05-01"), day(exp))
		r.QueuePosition = i + 1
		require.NoError(t, f.Repos.Reservations.Create(ctx, r))
		created = append(created, r)
	}

	swept, err := f.Engine.Queue.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, swept)

	for _, idx := range []int{1, 3} {
		r, err := f.Repos.Reservations.FindByID(ctx, created[idx].ID)
		require.NoError(t, err)
		assert.Equal(t, reservation.StatusCancelled, r.Status)
	}

	queue, err := f.Repos.Reservations.ListActiveByBook(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, queue, 2)
	assert.Equal(t, created[0].ID, queue[0].ID)
	assert.Equal(t, 1, queue[0].QueuePosition)
	assert.Equal(t, created[2].ID, queue[1].ID)
	assert.Equal(t, 2, queue[1].QueuePosition)

	// 再次清理无事可做
	swept, err = f.Engine.Queue.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, swept)
}

func TestQueue_RenumberIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, _ := f.AddBook(t, "9788804492948", 0)

	for i, pos := range []int{3, 7, 7, 12} {
		r := reservation.NewReservation(b.ID, uint(i+1), nil, nil, today, day("2025-06-30"))
		r.QueuePosition = pos
		require.NoError(t, f.Repos.Reservations.Create(ctx, r))
	}

	require.NoError(t, f.Engine.Queue.Renumber(ctx, b.ID))
	before, err := f.Repos.Reservations.ListActiveByBook(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4}, f.queuePositions(t, b.ID))

	require.NoError(t, f.Engine.Queue.Renumber(ctx, b.ID))
	after, err := f.Repos.Reservations.ListActiveByBook(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].ID, after[i].ID)
		assert.Equal(t, before[i].QueuePosition, after[i].QueuePosition)
	}
}

// 队首的请求区间已整体过去：自动取消，继续处理下一位
func TestQueue_SkipsHeadWithPastWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, _ := f.AddBook(t, "9788804492948", 1)

	stale := reservation.NewReservation(b.ID, 1, ptr(day("2025-05-20")), ptr(day("2025-05-25")), day("2025-05-10"), day("2025-06-05"))
	stale.QueuePosition = 1
	require.NoError(t, f.Repos.Reservations.Create(ctx, stale))
	next := reservation.NewReservation(b.ID, 2, nil, nil, day("2025-05-11"), day("2025-06-10"))
	next.QueuePosition = 2
	require.NoError(t, f.Repos.Reservations.Create(ctx, next))

	promoted, err := f.Engine.Queue.ProcessBookAvailability(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, promoted)

	got, err := f.Repos.Reservations.FindByID(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusCancelled, got.Status)

	got, err = f.Repos.Reservations.FindByID(ctx, next.ID)
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusCompleted, got.Status)
	assert.Empty(t, f.queuePositions(t, b.ID))
}

func TestQueue_DrainQueue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, _ := f.AddBook(t, "9788804492948", 2)

	for userID := uint(1); userID <= 3; userID++ {
		_, err := f.Engine.Queue.Enqueue(ctx, circulation.EnqueueRequest{BookID: b.ID, UserID: userID})
		require.NoError(t, err)
	}

	promoted, err := f.Engine.Queue.DrainQueue(ctx, b.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, promoted)
	assert.Equal(t, []int{1}, f.queuePositions(t, b.ID))

	got := f.Book(t, b.ID)
	assert.Equal(t, 0, got.AvailableCopies)
	assert.Equal(t, book.StatusOnLoan, got.Status)
}
