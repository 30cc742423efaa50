package circulation_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiebiao/biblioteca/internal/domain/bookcopy"
	"github.com/xiebiao/biblioteca/internal/domain/circulation"
	"github.com/xiebiao/biblioteca/internal/domain/loan"
)

// 两册副本，一册已借出：重叠请求必须落到另一册
func TestScenarioB_PicksFreeCopy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, copies := f.AddBook(t, "9788806222048", 2)

	first, err := f.Engine.Allocator.AllocateCopy(ctx, circulation.AllocationRequest{
		BookID: b.ID, UserID: 1, Start: day("2025-06-01"), End: day("2025-06-10"),
	})
	require.NoError(t, err)
	require.True(t, first.Allocated())
	assert.Equal(t, copies[0].ID, first.CopyID)
	assert.Equal(t, bookcopy.StatusLoaned, f.CopyStatus(t, copies[0].ID))

	ok, err := f.Engine.Calculator.IsDateRangeAvailable(ctx, b.ID, day("2025-06-03"), day("2025-06-05"))
	require.NoError(t, err)
	assert.True(t, ok)

	second, err := f.Engine.Allocator.AllocateCopy(ctx, circulation.AllocationRequest{
		BookID: b.ID, UserID: 2, Start: day("2025-06-03"), End: day("2025-06-05"),
	})
	require.NoError(t, err)
	require.True(t, second.Allocated())
	assert.Equal(t, copies[1].ID, second.CopyID)

	// 两册都已占用
	third, err := f.Engine.Allocator.AllocateCopy(ctx, circulation.AllocationRequest{
		BookID: b.ID, UserID: 3, Start: day("2025-06-04"), End: day("2025-06-04"),
	})
	require.NoError(t, err)
	assert.Equal(t, circulation.OutcomeExhausted, third.Outcome)
	assert.ErrorIs(t, third.Err(), circulation.ErrNotAvailable)
}

func TestAllocator_FutureLoanReservesCopy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, copies := f.AddBook(t, "9788806222048", 1)

	res, err := f.Engine.Allocator.AllocateCopy(ctx, circulation.AllocationRequest{
		BookID: b.ID, UserID: 1, Start: day("2025-06-20"), End: day("2025-06-30"),
	})
	require.NoError(t, err)
	require.True(t, res.Allocated())
	assert.Equal(t, loan.StatusReserved, res.Loan.Status)
	assert.Equal(t, bookcopy.StatusReserved, f.CopyStatus(t, copies[0].ID))

	// 预约保留的副本在不重叠的区间仍可分配
	res, err = f.Engine.Allocator.AllocateCopy(ctx, circulation.AllocationRequest{
		BookID: b.ID, UserID: 2, Start: day("2025-06-01"), End: day("2025-06-14"),
	})
	require.NoError(t, err)
	require.True(t, res.Allocated())
	assert.Equal(t, loan.StatusActive, res.Loan.Status)
	assert.Equal(t, copies[0].ID, res.CopyID)
}

func TestAllocator_RejectsBadRequests(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, _ := f.AddBook(t, "9788806222048", 1)

	_, err := f.Engine.Allocator.AllocateCopy(ctx, circulation.AllocationRequest{
		BookID: b.ID, UserID: 1, Start: day("2025-06-10"), End: day("2025-06-01"),
	})
	assert.ErrorIs(t, err, circulation.ErrInvalidDateRange)

	_, err = f.Engine.Allocator.AllocateCopy(ctx, circulation.AllocationRequest{
		BookID: b.ID, UserID: 1, Start: today, End: today, Status: loan.StatusReturned,
	})
	assert.ErrorIs(t, err, loan.ErrInvalidStatus)
}

// 同一册副本上的并发分配：恰好一个成功
func TestScenarioD_ConcurrentAllocation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, copies := f.AddBook(t, "9788806222048", 1)

	requests := []circulation.AllocationRequest{
		{BookID: b.ID, UserID: 1, Start: day("2025-06-01"), End: day("2025-06-10")},
		{BookID: b.ID, UserID: 2, Start: day("2025-06-05"), End: day("2025-06-15")},
	}

	results := make([]circulation.AllocationResult, len(requests))
	errs := make([]error, len(requests))
	var wg sync.WaitGroup
	for i, req := range requests {
		wg.Add(1)
		go func(i int, req circulation.AllocationRequest) {
			defer wg.Done()
			results[i], errs[i] = f.Engine.Allocator.AllocateCopy(ctx, req)
		}(i, req)
	}
	wg.Wait()

	allocated := 0
	for i := range results {
		require.NoError(t, errs[i])
		if results[i].Allocated() {
			allocated++
		} else {
			assert.Error(t, results[i].Err())
		}
	}
	assert.Equal(t, 1, allocated)

	n, err := f.Repos.Loans.CountActiveByCopy(ctx, copies[0].ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n, "副本不能被重复占用")
}

// staleCandidates 模拟乐观查询读到旧数据：忽略借阅，返回全部副本
type staleCandidates struct {
	bookcopy.Repository
}

func (s staleCandidates) FindAllocationCandidates(ctx context.Context, bookID uint, _, _ time.Time, exclude []uint, limit int) ([]*bookcopy.Copy, error) {
	all, err := s.ListByBookID(ctx, bookID)
	if err != nil {
		return nil, err
	}
	skip := make(map[uint]bool, len(exclude))
	for _, id := range exclude {
		skip[id] = true
	}
	var out []*bookcopy.Copy
	for _, c := range all {
		if skip[c.ID] {
			continue
		}
		out = append(out, c)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func TestAllocator_RecheckRejectsStaleCandidate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, copies := f.AddBook(t, "9788806222048", 2)

	first, err := f.Engine.Allocator.AllocateCopy(ctx, circulation.AllocationRequest{
		BookID: b.ID, UserID: 1, Start: day("2025-06-01"), End: day("2025-06-14"),
	})
	require.NoError(t, err)
	require.Equal(t, copies[0].ID, first.CopyID)

	stale := circulation.NewAllocator(f.Tx, staleCandidates{f.Repos.Copies}, f.Repos.Loans, circulation.DefaultPolicy(), fixedClock, nil)

	// 第一个候选复核失败，重试拿到第二册
	res, err := stale.AllocateCopy(ctx, circulation.AllocationRequest{
		BookID: b.ID, UserID: 2, Start: day("2025-06-02"), End: day("2025-06-04"),
	})
	require.NoError(t, err)
	require.True(t, res.Allocated())
	assert.Equal(t, copies[1].ID, res.CopyID)

	// 两册都被占用，旧候选全部复核失败 → 竞态失败而非容量耗尽
	res, err = stale.AllocateCopy(ctx, circulation.AllocationRequest{
		BookID: b.ID, UserID: 3, Start: day("2025-06-03"), End: day("2025-06-03"),
	})
	require.NoError(t, err)
	assert.Equal(t, circulation.OutcomeConflict, res.Outcome)
	assert.ErrorIs(t, res.Err(), circulation.ErrAllocationConflict)

	n, err := f.Repos.Loans.CountOverlapping(ctx, b.ID, day("2025-06-03"), day("2025-06-03"), 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}
