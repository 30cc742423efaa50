package circulation_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiebiao/biblioteca/internal/domain/book"
	"github.com/xiebiao/biblioteca/internal/domain/bookcopy"
	"github.com/xiebiao/biblioteca/internal/domain/loan"
)

func TestReconciler_RecalculateBookAvailability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, copies := f.AddBook(t, "9788817058438", 3)

	got := f.Book(t, b.ID)
	assert.Equal(t, 3, got.TotalCopies)
	assert.Equal(t, 3, got.AvailableCopies)
	assert.Equal(t, book.StatusAvailable, got.Status)

	require.NoError(t, f.Repos.Copies.UpdateStatus(ctx, copies[0].ID, bookcopy.StatusLoaned))
	require.NoError(t, f.Repos.Copies.UpdateStatus(ctx, copies[1].ID, bookcopy.StatusLost))
	require.NoError(t, f.Repos.Copies.UpdateStatus(ctx, copies[2].ID, bookcopy.StatusDamaged))

	counters, err := f.Engine.Reconciler.RecalculateBookAvailability(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, counters.Total)
	assert.Equal(t, 0, counters.Available)
	assert.Equal(t, 1, counters.Lendable)

	got = f.Book(t, b.ID)
	assert.Equal(t, 0, got.AvailableCopies)
	assert.Equal(t, book.StatusOnLoan, got.Status)

	_, err = f.Engine.Reconciler.RecalculateBookAvailability(ctx, 999)
	assert.ErrorIs(t, err, book.ErrBookNotFound)
}

func TestReconciler_RecalculateAllFixesDrift(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b1, _ := f.AddBook(t, "9788817058438", 2)
	b2, _ := f.AddBook(t, "9788804668237", 1)

	// 人为制造漂移
	require.NoError(t, f.Repos.Books.UpdateAvailability(ctx, b1.ID, 5, 0, book.StatusUnavailable))

	corrected, err := f.Engine.Reconciler.RecalculateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, corrected)

	got := f.Book(t, b1.ID)
	assert.Equal(t, 2, got.TotalCopies)
	assert.Equal(t, 2, got.AvailableCopies)
	assert.Equal(t, book.StatusAvailable, got.Status)
	assert.Equal(t, 1, f.Book(t, b2.ID).TotalCopies)

	// 再跑一次没有差异
	corrected, err = f.Engine.Reconciler.RecalculateAll(ctx)
	require.NoError(t, err)
	assert.Zero(t, corrected)
}

func TestReconciler_ValidateAndUpdateLoan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, copies := f.AddBook(t, "9788817058438", 3)

	newLoan := func(copyID uint, start, due string, status loan.Status) *loan.Loan {
		l := loan.NewLoan(b.ID, copyID, 1, day(start), day(due), status, nil)
		require.NoError(t, f.Repos.Loans.Create(ctx, l))
		return l
	}

	t.Run("逾期", func(t *testing.T) {
		l := newLoan(copies[0].ID, "2025-05-01", "2025-05-15", loan.StatusActive)
		require.NoError(t, f.Repos.Copies.UpdateStatus(ctx, copies[0].ID, bookcopy.StatusLoaned))

		res := f.Engine.Reconciler.ValidateAndUpdateLoan(ctx, l.ID)
		assert.True(t, res.Success)
		assert.True(t, res.Changed)
		assert.Equal(t, loan.StatusActive, res.From)
		assert.Equal(t, loan.StatusOverdue, res.To)

		got, err := f.Repos.Loans.FindByID(ctx, l.ID)
		require.NoError(t, err)
		assert.Equal(t, loan.StatusOverdue, got.Status)

		// 幂等
		res = f.Engine.Reconciler.ValidateAndUpdateLoan(ctx, l.ID)
		assert.True(t, res.Success)
		assert.False(t, res.Changed)
	})

	t.Run("到期日延后恢复借阅中", func(t *testing.T) {
		l := newLoan(copies[1].ID, "2025-05-20", "2025-06-10", loan.StatusOverdue)
		require.NoError(t, f.Repos.Copies.UpdateStatus(ctx, copies[1].ID, bookcopy.StatusLoaned))

		res := f.Engine.Reconciler.ValidateAndUpdateLoan(ctx, l.ID)
		assert.True(t, res.Success)
		assert.Equal(t, loan.StatusActive, res.To)
	})

	t.Run("终态仍活动", func(t *testing.T) {
		l := newLoan(copies[2].ID, "2025-05-01", "2025-05-14", loan.StatusReturned)

		res := f.Engine.Reconciler.ValidateAndUpdateLoan(ctx, l.ID)
		assert.True(t, res.Success)
		assert.True(t, res.Changed)

		got, err := f.Repos.Loans.FindByID(ctx, l.ID)
		require.NoError(t, err)
		assert.False(t, got.Active)
		assert.NotNil(t, got.ReturnedAt)
	})

	t.Run("占用状态却非活动", func(t *testing.T) {
		l := newLoan(copies[2].ID, "2025-06-01", "2025-06-14", loan.StatusReserved)
		l.Active = false
		require.NoError(t, f.Repos.Loans.Update(ctx, l))

		res := f.Engine.Reconciler.ValidateAndUpdateLoan(ctx, l.ID)
		assert.False(t, res.Success)
		assert.False(t, res.Changed)
		assert.NotEmpty(t, res.Message)
	})

	t.Run("副本状态修复", func(t *testing.T) {
		l := newLoan(copies[2].ID, "2025-06-01", "2025-06-14", loan.StatusActive)
		require.NoError(t, f.Repos.Copies.UpdateStatus(ctx, copies[2].ID, bookcopy.StatusAvailable))

		res := f.Engine.Reconciler.ValidateAndUpdateLoan(ctx, l.ID)
		assert.True(t, res.Success)
		assert.True(t, res.Changed)
		assert.Equal(t, bookcopy.StatusLoaned, f.CopyStatus(t, copies[2].ID))
		assert.Equal(t, 0, f.Book(t, b.ID).AvailableCopies)
	})

	t.Run("借阅不存在", func(t *testing.T) {
		res := f.Engine.Reconciler.ValidateAndUpdateLoan(ctx, 999)
		assert.False(t, res.Success)
		assert.NotEmpty(t, res.Message)
	})
}

// 终态仍活动的借阅：副本按结果释放，副本上有后续借阅时继续保留
func TestReconciler_ValidateAndUpdateLoan_ReleasesClosedCopy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, copies := f.AddBook(t, "9788845292613", 3)

	stuck := func(copyID uint, status loan.Status) *loan.Loan {
		l := loan.NewLoan(b.ID, copyID, 1, day("2025-05-01"), day("2025-05-15"), status, nil)
		require.NoError(t, f.Repos.Loans.Create(ctx, l))
		require.NoError(t, f.Repos.Copies.UpdateStatus(ctx, copyID, bookcopy.StatusLoaned))
		return l
	}
	returned := stuck(copies[0].ID, loan.StatusReturned)
	lost := stuck(copies[1].ID, loan.StatusLost)
	shared := stuck(copies[2].ID, loan.StatusReturned)
	next := loan.NewLoan(b.ID, copies[2].ID, 2, day("2025-06-05"), day("2025-06-19"), loan.StatusReserved, nil)
	require.NoError(t, f.Repos.Loans.Create(ctx, next))

	_, err := f.Engine.Reconciler.RecalculateBookAvailability(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, f.Book(t, b.ID).AvailableCopies)

	for _, l := range []*loan.Loan{returned, lost, shared} {
		res := f.Engine.Reconciler.ValidateAndUpdateLoan(ctx, l.ID)
		assert.True(t, res.Success, res.Message)
		assert.True(t, res.Changed)
	}

	assert.Equal(t, bookcopy.StatusAvailable, f.CopyStatus(t, copies[0].ID))
	assert.Equal(t, bookcopy.StatusLost, f.CopyStatus(t, copies[1].ID))
	assert.Equal(t, bookcopy.StatusReserved, f.CopyStatus(t, copies[2].ID))

	got := f.Book(t, b.ID)
	assert.Equal(t, 3, got.TotalCopies)
	assert.Equal(t, 1, got.AvailableCopies)
	assert.Equal(t, book.StatusAvailable, got.Status)

	// 幂等
	res := f.Engine.Reconciler.ValidateAndUpdateLoan(ctx, returned.ID)
	assert.True(t, res.Success)
	assert.False(t, res.Changed)
}
