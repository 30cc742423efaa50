package user

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/xiebiao/biblioteca/internal/domain/user"
	"github.com/xiebiao/biblioteca/internal/infrastructure/persistence/mysql"
	"github.com/xiebiao/biblioteca/internal/testutil/sqlitedb"
	apperrors "github.com/xiebiao/biblioteca/pkg/errors"
	"github.com/xiebiao/biblioteca/pkg/jwt"
)

type mockSessionStore struct {
	mock.Mock
}

func (m *mockSessionStore) SaveSession(ctx context.Context, userID uint, data map[string]interface{}, ttl time.Duration) error {
	return m.Called(ctx, userID, data, ttl).Error(0)
}

func (m *mockSessionStore) DeleteSession(ctx context.Context, userID uint) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *mockSessionStore) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	return m.Called(ctx, tokenID, ttl).Error(0)
}

func newUserService(t *testing.T) user.Service {
	t.Helper()
	return user.NewService(mysql.NewUserRepository(sqlitedb.New(t)), user.WithBcryptCost(bcrypt.MinCost))
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc := newUserService(t)
	manager := jwt.NewManager("test-secret", "", time.Hour, 24*time.Hour)

	info, err := NewRegisterUseCase(svc).Execute(ctx, RegisterRequest{
		Email: "lettore@biblioteca.it", Password: "password123", Nickname: "Lettore",
	})
	require.NoError(t, err)
	assert.Equal(t, string(user.RoleMember), info.Role)

	t.Run("登录成功并保存会话", func(t *testing.T) {
		store := new(mockSessionStore)
		store.On("SaveSession", mock.Anything, info.ID, mock.Anything, 24*time.Hour).Return(nil).Once()

		resp, err := NewLoginUseCase(svc, manager, store, 24*time.Hour, nil).Execute(ctx, LoginRequest{
			Email: "lettore@biblioteca.it", Password: "password123", ClientIP: "10.0.0.1",
		})
		require.NoError(t, err)
		assert.Equal(t, info.ID, resp.User.ID)
		assert.Equal(t, int64(3600), resp.ExpiresIn)

		claims, err := manager.ParseToken(resp.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "member", claims.Role)
		store.AssertExpectations(t)
	})

	t.Run("会话保存失败不影响登录", func(t *testing.T) {
		store := new(mockSessionStore)
		store.On("SaveSession", mock.Anything, info.ID, mock.Anything, mock.Anything).
			Return(apperrors.ErrRedisError).Once()

		resp, err := NewLoginUseCase(svc, manager, store, time.Hour, nil).Execute(ctx, LoginRequest{
			Email: "lettore@biblioteca.it", Password: "password123",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, resp.AccessToken)
	})

	t.Run("密码错误", func(t *testing.T) {
		store := new(mockSessionStore)
		_, err := NewLoginUseCase(svc, manager, store, time.Hour, nil).Execute(ctx, LoginRequest{
			Email: "lettore@biblioteca.it", Password: "wrongpass1",
		})
		assert.ErrorIs(t, err, apperrors.ErrInvalidPassword)
		store.AssertNotCalled(t, "SaveSession", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	t.Run("剩余有效期写入黑名单", func(t *testing.T) {
		store := new(mockSessionStore)
		store.On("Revoke", mock.Anything, "jti-1", 30*time.Minute).Return(nil).Once()
		store.On("DeleteSession", mock.Anything, uint(7)).Return(nil).Once()

		uc := NewLogoutUseCase(store)
		uc.now = func() time.Time { return now }
		require.NoError(t, uc.Execute(ctx, LogoutRequest{UserID: 7, TokenID: "jti-1", ExpiresAt: now.Add(30 * time.Minute)}))
		store.AssertExpectations(t)
	})

	t.Run("黑名单失败直接返回", func(t *testing.T) {
		store := new(mockSessionStore)
		store.On("Revoke", mock.Anything, "jti-2", mock.Anything).Return(errors.New("redis down")).Once()

		uc := NewLogoutUseCase(store)
		uc.now = func() time.Time { return now }
		assert.Error(t, uc.Execute(ctx, LogoutRequest{UserID: 7, TokenID: "jti-2", ExpiresAt: now.Add(time.Minute)}))
		store.AssertNotCalled(t, "DeleteSession", mock.Anything, mock.Anything)
	})
}

func TestPromote(t *testing.T) {
	ctx := context.Background()
	svc := newUserService(t)
	_, err := svc.Register(ctx, "staff@biblioteca.it", "password123", "Bibliotecario")
	require.NoError(t, err)

	uc := NewPromoteUseCase(svc, nil)
	info, err := uc.Execute(ctx, "staff@biblioteca.it")
	require.NoError(t, err)
	assert.Equal(t, string(user.RoleStaff), info.Role)

	// 重复执行
	info, err = uc.Execute(ctx, "staff@biblioteca.it")
	require.NoError(t, err)
	assert.Equal(t, string(user.RoleStaff), info.Role)

	_, err = uc.Execute(ctx, "nessuno@biblioteca.it")
	assert.ErrorIs(t, err, apperrors.ErrUserNotFound)
}
