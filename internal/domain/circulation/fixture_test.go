package circulation_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xiebiao/biblioteca/internal/domain/user"
	"github.com/xiebiao/biblioteca/internal/testutil/circtest"
)

var (
	today      = circtest.Today
	day        = circtest.Day
	ptr        = circtest.Ptr
	fixedClock = circtest.Clock
)

type fixture struct {
	*circtest.Env
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{Env: circtest.New(t)}
}

func (f *fixture) addUser(t *testing.T, email string) *user.User {
	t.Helper()
	u, _ := f.AddUser(t, email, false)
	return u
}

func (f *fixture) queuePositions(t *testing.T, bookID uint) []int {
	t.Helper()
	queue, err := f.Repos.Reservations.ListActiveByBook(context.Background(), bookID)
	require.NoError(t, err)
	out := make([]int, len(queue))
	for i, r := range queue {
		out[i] = r.QueuePosition
	}
	return out
}
