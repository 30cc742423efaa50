package circulation

import (
	"go.uber.org/zap"

	"github.com/xiebiao/biblioteca/internal/domain/book"
	"github.com/xiebiao/biblioteca/internal/domain/bookcopy"
	"github.com/xiebiao/biblioteca/internal/domain/loan"
	"github.com/xiebiao/biblioteca/internal/domain/reservation"
	"github.com/xiebiao/biblioteca/internal/domain/user"
)

// Repositories 引擎依赖的仓储集合
type Repositories struct {
	Books        book.Repository
	Copies       bookcopy.Repository
	Loans        loan.Repository
	Reservations reservation.Repository
	Users        user.Repository
}

// Engine 流通引擎的四个组件，共享同一事务管理器与时钟
type Engine struct {
	Calculator *Calculator
	Allocator  *Allocator
	Queue      *QueueManager
	Reconciler *Reconciler
	Policy     Policy
	Now        Clock
}

// NewEngine 组装流通引擎
func NewEngine(tx Transactor, repos Repositories, notifier Notifier, policy Policy, now Clock, log *zap.Logger) *Engine {
	calc := NewCalculator(repos.Copies, repos.Loans, repos.Reservations, now)
	alloc := NewAllocator(tx, repos.Copies, repos.Loans, policy, now, log)
	rec := NewReconciler(tx, repos.Books, repos.Copies, repos.Loans, now, log)
	queue := NewQueueManager(tx, repos, calc, alloc, rec, notifier, policy, now, log)
	return &Engine{
		Calculator: calc,
		Allocator:  alloc,
		Queue:      queue,
		Reconciler: rec,
		Policy:     policy,
		Now:        queue.now,
	}
}
