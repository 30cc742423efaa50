// Package circtest 用例层测试的装配：SQLite仓储 + 固定日期的流通引擎
package circtest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/xiebiao/biblioteca/internal/domain/book"
	"github.com/xiebiao/biblioteca/internal/domain/bookcopy"
	"github.com/xiebiao/biblioteca/internal/domain/circulation"
	"github.com/xiebiao/biblioteca/internal/domain/user"
	"github.com/xiebiao/biblioteca/internal/infrastructure/persistence/mysql"
	"github.com/xiebiao/biblioteca/internal/testutil/sqlitedb"
	"github.com/xiebiao/biblioteca/pkg/dates"
)

// Today 测试中的"今天"
var Today = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

// Clock 固定在Today上午9点
func Clock() time.Time {
	return Today.Add(9 * time.Hour)
}

// Day 解析YYYY-MM-DD，格式错误直接panic
func Day(s string) time.Time {
	t, err := dates.Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}

// Ptr 取地址
func Ptr(t time.Time) *time.Time {
	return &t
}

// Notifier 记录到书通知
type Notifier struct {
	mu      sync.Mutex
	notices []circulation.BookAvailableNotice
	err     error
}

// NotifyBookAvailable 实现circulation.Notifier
func (n *Notifier) NotifyBookAvailable(_ context.Context, notice circulation.BookAvailableNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.notices = append(n.notices, notice)
	return nil
}

// FailWith 之后的通知都返回err，传nil恢复
func (n *Notifier) FailWith(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.err = err
}

// Notices 已记录的通知副本
func (n *Notifier) Notices() []circulation.BookAvailableNotice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]circulation.BookAvailableNotice(nil), n.notices...)
}

// Env 测试环境
type Env struct {
	DB       *gorm.DB
	Tx       *mysql.TxManager
	Repos    circulation.Repositories
	Engine   *circulation.Engine
	Notifier *Notifier
}

// New 创建测试环境
func New(t testing.TB) *Env {
	t.Helper()
	db := sqlitedb.New(t)
	env := &Env{
		DB: db,
		Tx: mysql.NewTxManager(db),
		Repos: circulation.Repositories{
			Books:        mysql.NewBookRepository(db),
			Copies:       mysql.NewCopyRepository(db),
			Loans:        mysql.NewLoanRepository(db),
			Reservations: mysql.NewReservationRepository(db),
			Users:        mysql.NewUserRepository(db),
		},
		Notifier: &Notifier{},
	}
	env.Engine = circulation.NewEngine(env.Tx, env.Repos, env.Notifier, circulation.DefaultPolicy(), Clock, nil)
	return env
}

// AddBook 登记图书与n册在架副本，登记号为 isbn-1..isbn-n
func (e *Env) AddBook(t testing.TB, isbn string, n int) (*book.Book, []*bookcopy.Copy) {
	t.Helper()
	ctx := context.Background()

	b := book.NewBook(isbn, "Il nome della rosa", "Umberto Eco", "Bompiani", "", "", 1)
	require.NoError(t, e.Repos.Books.Create(ctx, b))

	copies := make([]*bookcopy.Copy, n)
	for i := range copies {
		c := bookcopy.NewCopy(b.ID, fmt.Sprintf("%s-%d", isbn, i+1), nil)
		require.NoError(t, e.Repos.Copies.Create(ctx, c))
		copies[i] = c
	}
	_, err := e.Engine.Reconciler.RecalculateBookAvailability(ctx, b.ID)
	require.NoError(t, err)
	return e.Book(t, b.ID), copies
}

// AddUser 创建用户，staff为true时设为馆员
func (e *Env) AddUser(t testing.TB, email string, staff bool) (*user.User, user.Actor) {
	t.Helper()
	u := user.NewUser(email, "hash", email)
	if staff {
		u.Role = user.RoleStaff
	}
	require.NoError(t, e.Repos.Users.Create(context.Background(), u))
	return u, user.Actor{UserID: u.ID, Role: u.Role}
}

// Book 重新读取图书
func (e *Env) Book(t testing.TB, id uint) *book.Book {
	t.Helper()
	b, err := e.Repos.Books.FindByID(context.Background(), id)
	require.NoError(t, err)
	return b
}

// CopyStatus 副本当前状态
func (e *Env) CopyStatus(t testing.TB, id uint) bookcopy.Status {
	t.Helper()
	c, err := e.Repos.Copies.FindByID(context.Background(), id)
	require.NoError(t, err)
	return c.Status
}

// MemberActor 读者身份（不落库，用于权限判断）
func MemberActor(id uint) user.Actor {
	return user.Actor{UserID: id, Role: user.RoleMember}
}
