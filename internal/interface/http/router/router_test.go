package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	appbook "github.com/xiebiao/biblioteca/internal/application/book"
	apploan "github.com/xiebiao/biblioteca/internal/application/loan"
	appres "github.com/xiebiao/biblioteca/internal/application/reservation"
	appuser "github.com/xiebiao/biblioteca/internal/application/user"
	"github.com/xiebiao/biblioteca/internal/domain/book"
	"github.com/xiebiao/biblioteca/internal/domain/user"
	"github.com/xiebiao/biblioteca/internal/interface/http/router"
	"github.com/xiebiao/biblioteca/internal/testutil/circtest"
	apperrors "github.com/xiebiao/biblioteca/pkg/errors"
	"github.com/xiebiao/biblioteca/pkg/jwt"
)

type memSessions struct {
	mu       sync.Mutex
	revoked  map[string]bool
	sessions map[uint]map[string]interface{}
}

func newMemSessions() *memSessions {
	return &memSessions{revoked: map[string]bool{}, sessions: map[uint]map[string]interface{}{}}
}

func (m *memSessions) SaveSession(_ context.Context, userID uint, data map[string]interface{}, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[userID] = data
	return nil
}

func (m *memSessions) DeleteSession(_ context.Context, userID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
	return nil
}

func (m *memSessions) Revoke(_ context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[tokenID] = true
	return nil
}

func (m *memSessions) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.revoked[tokenID], nil
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type server struct {
	t        *testing.T
	env      *circtest.Env
	engine   *gin.Engine
	jwt      *jwt.Manager
	sessions *memSessions
}

func newServer(t *testing.T) *server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := circtest.New(t)
	manager := jwt.NewManager("test-secret", "", time.Hour, 24*time.Hour)
	sessions := newMemSessions()

	h := router.NewHandlers(router.Deps{
		Tx:          env.Tx,
		Repos:       env.Repos,
		Engine:      env.Engine,
		UserService: user.NewService(env.Repos.Users, user.WithBcryptCost(bcrypt.MinCost)),
		BookService: book.NewService(env.Repos.Books),
		JWT:         manager,
		Sessions:    sessions,
		SessionTTL:  24 * time.Hour,
	})
	return &server{
		t:        t,
		env:      env,
		engine:   router.New(router.Options{Mode: gin.TestMode}, h),
		jwt:      manager,
		sessions: sessions,
	}
}

// token 为已存在的用户签发Access Token
func (s *server) token(u *user.User) string {
	pair, err := s.jwt.GenerateToken(u.ID, u.Email, u.Nickname, string(u.Role))
	require.NoError(s.t, err)
	return pair.AccessToken
}

func (s *server) do(method, path, token string, body interface{}) envelope {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	require.Equal(s.t, http.StatusOK, w.Code)

	var out envelope
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func decode[T any](t *testing.T, e envelope) T {
	t.Helper()
	require.Equal(t, 0, e.Code, e.Message)
	var v T
	require.NoError(t, json.Unmarshal(e.Data, &v))
	return v
}

func TestRouter_Ping(t *testing.T) {
	s := newServer(t)
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRouter_UserFlow(t *testing.T) {
	s := newServer(t)

	info := decode[appuser.UserInfo](t, s.do(http.MethodPost, "/api/v1/users/register", "", map[string]string{
		"email": "lettore@biblioteca.it", "password": "password123", "nickname": "Lettore",
	}))
	assert.Equal(t, "member", info.Role)

	t.Run("参数校验失败", func(t *testing.T) {
		resp := s.do(http.MethodPost, "/api/v1/users/register", "", map[string]string{"email": "x"})
		assert.Equal(t, apperrors.ErrCodeInvalidParams, resp.Code)
	})

	login := decode[appuser.LoginResponse](t, s.do(http.MethodPost, "/api/v1/users/login", "", map[string]string{
		"email": "lettore@biblioteca.it", "password": "password123",
	}))
	require.NotEmpty(t, login.AccessToken)

	me := decode[map[string]interface{}](t, s.do(http.MethodGet, "/api/v1/users/me", login.AccessToken, nil))
	assert.Equal(t, "member", me["role"])

	// 登出后同一Token不可再用
	require.Equal(t, 0, s.do(http.MethodPost, "/api/v1/users/logout", login.AccessToken, nil).Code)
	resp := s.do(http.MethodGet, "/api/v1/users/me", login.AccessToken, nil)
	assert.Equal(t, apperrors.ErrCodeTokenExpired, resp.Code)
}

func TestRouter_Auth(t *testing.T) {
	s := newServer(t)
	member, _ := s.env.AddUser(t, "lettore@biblioteca.it", false)

	assert.Equal(t, apperrors.ErrCodeUnauthorized, s.do(http.MethodGet, "/api/v1/loans", "", nil).Code)
	assert.Equal(t, apperrors.ErrCodeInvalidToken, s.do(http.MethodGet, "/api/v1/loans", "garbage", nil).Code)

	// 读者访问馆员接口
	resp := s.do(http.MethodPost, "/api/v1/books", s.token(member), map[string]interface{}{
		"isbn": "9788845292613", "title": "Il nome della rosa", "author": "Umberto Eco",
	})
	assert.Equal(t, apperrors.ErrCodeForbidden, resp.Code)
	assert.Equal(t, apperrors.ErrCodeForbidden, s.do(http.MethodPost, "/api/v1/admin/maintenance", s.token(member), nil).Code)
}

func TestRouter_CirculationFlow(t *testing.T) {
	s := newServer(t)
	staffUser, _ := s.env.AddUser(t, "staff@biblioteca.it", true)
	first, _ := s.env.AddUser(t, "primo@biblioteca.it", false)
	second, _ := s.env.AddUser(t, "secondo@biblioteca.it", false)
	staff, firstTok, secondTok := s.token(staffUser), s.token(first), s.token(second)

	detail := decode[appbook.BookDetail](t, s.do(http.MethodPost, "/api/v1/books", staff, map[string]interface{}{
		"isbn": "9788845292613", "title": "Il nome della rosa", "author": "Umberto Eco",
		"publisher": "Bompiani", "copies": 1,
	}))
	assert.Equal(t, 1, detail.TotalCopies)
	assert.Equal(t, 1, detail.AvailableCopies)

	avail := decode[appbook.AvailabilityResponse](t, s.do(http.MethodGet,
		fmt.Sprintf("/api/v1/books/%d/availability", detail.ID), "", nil))
	assert.True(t, avail.Available)
	assert.Equal(t, "2025-06-01", avail.Start)

	bad := s.do(http.MethodGet, fmt.Sprintf("/api/v1/books/%d/availability?start=domani", detail.ID), "", nil)
	assert.Equal(t, apperrors.ErrCodeInvalidParams, bad.Code)

	// 第一位读者申请，占用唯一副本
	requested := decode[apploan.RequestLoanResponse](t, s.do(http.MethodPost, "/api/v1/loans", firstTok, map[string]interface{}{
		"book_id": detail.ID,
	}))
	require.NotNil(t, requested.Loan)
	assert.Equal(t, "pendente", requested.Loan.Status)
	loanID := requested.Loan.ID

	// 第二位读者不可借
	resp := s.do(http.MethodPost, "/api/v1/loans", secondTok, map[string]interface{}{"book_id": detail.ID})
	assert.Equal(t, apperrors.ErrCodeNotAvailable, resp.Code)

	queued := decode[apploan.RequestLoanResponse](t, s.do(http.MethodPost, "/api/v1/loans", secondTok, map[string]interface{}{
		"book_id": detail.ID, "queue_if_unavailable": true,
	}))
	require.NotNil(t, queued.Reservation)
	assert.Equal(t, 1, queued.Reservation.QueuePosition)

	queue := decode[[]appres.ReservationInfo](t, s.do(http.MethodGet,
		fmt.Sprintf("/api/v1/books/%d/queue", detail.ID), staff, nil))
	require.Len(t, queue, 1)
	assert.Equal(t, second.ID, queue[0].UserID)

	approved := decode[apploan.LoanInfo](t, s.do(http.MethodPost,
		fmt.Sprintf("/api/v1/loans/%d/approve", loanID), staff, nil))
	assert.Equal(t, "in_corso", approved.Status)

	// 读者不能替别人查询
	resp = s.do(http.MethodGet, fmt.Sprintf("/api/v1/loans?user_id=%d", second.ID), firstTok, nil)
	assert.Equal(t, apperrors.ErrCodeForbidden, resp.Code)

	returned := decode[apploan.ReturnLoanResponse](t, s.do(http.MethodPost,
		fmt.Sprintf("/api/v1/loans/%d/return", loanID), staff, nil))
	assert.Equal(t, "restituito", returned.Loan.Status)
	assert.True(t, returned.Promoted)

	mine := decode[[]appres.ReservationInfo](t, s.do(http.MethodGet, "/api/v1/reservations", secondTok, nil))
	require.Len(t, mine, 1)
	assert.Equal(t, "completata", mine[0].Status)

	loans := decode[[]apploan.LoanInfo](t, s.do(http.MethodGet, "/api/v1/loans", secondTok, nil))
	require.Len(t, loans, 1)
	assert.Equal(t, "prenotato", loans[0].Status)
	assert.Equal(t, "2025-06-15", loans[0].DueDate)

	picked := decode[apploan.LoanInfo](t, s.do(http.MethodPost,
		fmt.Sprintf("/api/v1/loans/%d/pickup", loans[0].ID), staff, nil))
	assert.Equal(t, "in_corso", picked.Status)

	renewed := decode[apploan.LoanInfo](t, s.do(http.MethodPost,
		fmt.Sprintf("/api/v1/loans/%d/renew", loans[0].ID), secondTok, nil))
	assert.Equal(t, 1, renewed.Renewals)
	assert.Equal(t, "2025-06-29", renewed.DueDate)

	report := decode[map[string]interface{}](t, s.do(http.MethodPost, "/api/v1/admin/maintenance", staff, nil))
	assert.EqualValues(t, 1, report["loans_checked"])
}

func TestRouter_CancelLoan(t *testing.T) {
	s := newServer(t)
	staffUser, _ := s.env.AddUser(t, "staff@biblioteca.it", true)
	first, _ := s.env.AddUser(t, "primo@biblioteca.it", false)
	second, _ := s.env.AddUser(t, "secondo@biblioteca.it", false)
	staff, firstTok, secondTok := s.token(staffUser), s.token(first), s.token(second)

	b, copies := s.env.AddBook(t, "9788845292613", 1)

	requested := decode[apploan.RequestLoanResponse](t, s.do(http.MethodPost, "/api/v1/loans", firstTok, map[string]interface{}{
		"book_id": b.ID,
	}))
	require.NotNil(t, requested.Loan)
	loanID := requested.Loan.ID

	// 不能撤回别人的申请
	resp := s.do(http.MethodPost, fmt.Sprintf("/api/v1/loans/%d/cancel", loanID), secondTok, nil)
	assert.Equal(t, apperrors.ErrCodeForbidden, resp.Code)

	cancelled := decode[apploan.CancelLoanResponse](t, s.do(http.MethodPost,
		fmt.Sprintf("/api/v1/loans/%d/cancel", loanID), firstTok, map[string]interface{}{"notes": "non serve più"}))
	assert.Equal(t, "annullato", cancelled.Loan.Status)
	assert.False(t, cancelled.Loan.Active)
	assert.Equal(t, "disponibile", cancelled.CopyStatus)
	assert.Equal(t, "disponibile", s.env.CopyStatus(t, copies[0].ID).String())

	// 副本释放后第二位读者可以申请，馆员驳回
	again := decode[apploan.RequestLoanResponse](t, s.do(http.MethodPost, "/api/v1/loans", secondTok, map[string]interface{}{
		"book_id": b.ID,
	}))
	require.NotNil(t, again.Loan)

	rejected := decode[apploan.CancelLoanResponse](t, s.do(http.MethodPost,
		fmt.Sprintf("/api/v1/loans/%d/cancel", again.Loan.ID), staff, nil))
	assert.Equal(t, "annullato", rejected.Loan.Status)

	resp = s.do(http.MethodPost, fmt.Sprintf("/api/v1/loans/%d/cancel", again.Loan.ID), staff, nil)
	assert.Equal(t, apperrors.ErrCodeInvalidLoanStatus, resp.Code)
}
