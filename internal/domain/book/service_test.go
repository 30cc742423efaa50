package book

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockRepo 图书仓储Mock
type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) Create(ctx context.Context, b *Book) error {
	args := m.Called(ctx, b)
	b.ID = 1
	return args.Error(0)
}

func (m *mockRepo) FindByID(ctx context.Context, id uint) (*Book, error) {
	args := m.Called(ctx, id)
	b, _ := args.Get(0).(*Book)
	return b, args.Error(1)
}

func (m *mockRepo) FindByISBN(ctx context.Context, isbn string) (*Book, error) {
	args := m.Called(ctx, isbn)
	b, _ := args.Get(0).(*Book)
	return b, args.Error(1)
}

func (m *mockRepo) Update(ctx context.Context, b *Book) error {
	return m.Called(ctx, b).Error(0)
}

func (m *mockRepo) Delete(ctx context.Context, id uint) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockRepo) List(ctx context.Context, params ListParams) ([]*Book, int64, error) {
	args := m.Called(ctx, params)
	return args.Get(0).([]*Book), args.Get(1).(int64), args.Error(2)
}

func (m *mockRepo) LockByID(ctx context.Context, id uint) (*Book, error) {
	args := m.Called(ctx, id)
	b, _ := args.Get(0).(*Book)
	return b, args.Error(1)
}

func (m *mockRepo) UpdateAvailability(ctx context.Context, id uint, total, available int, status Status) error {
	return m.Called(ctx, id, total, available, status).Error(0)
}

func (m *mockRepo) CountReferences(ctx context.Context, id uint) (int64, int64, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(int64), args.Get(1).(int64), args.Error(2)
}

func (m *mockRepo) ListIDs(ctx context.Context) ([]uint, error) {
	args := m.Called(ctx)
	return args.Get(0).([]uint), args.Error(1)
}

func TestDeriveStatus(t *testing.T) {
	assert.Equal(t, StatusAvailable, DeriveStatus(1, 3))
	assert.Equal(t, StatusOnLoan, DeriveStatus(0, 3))
	assert.Equal(t, StatusUnavailable, DeriveStatus(0, 0))
}

func TestBook_ApplyCounters(t *testing.T) {
	b := NewBook("9788804668289", "Il nome della rosa", "Umberto Eco", "Bompiani", "", "", 1)
	assert.True(t, b.ApplyCounters(2, 1, 2), "新书首次写入计数视为漂移")
	assert.False(t, b.ApplyCounters(2, 1, 2), "计数未变不应视为漂移")
	assert.Equal(t, StatusAvailable, b.Status)
}

func TestService_RegisterBook(t *testing.T) {
	ctx := context.Background()

	t.Run("ISBN带分隔符时规范化后保存", func(t *testing.T) {
		repo := new(mockRepo)
		repo.On("FindByISBN", ctx, "9788804668289").Return(nil, ErrBookNotFound)
		repo.On("Create", ctx, mock.AnythingOfType("*book.Book")).Return(nil)

		b, err := NewService(repo).RegisterBook(ctx, "978-88-04-66828-9", "Il nome della rosa", "Umberto Eco", "Bompiani", "", "", 7)
		require.NoError(t, err)
		assert.Equal(t, "9788804668289", b.ISBN)
		assert.Equal(t, StatusUnavailable, b.Status)
		assert.Equal(t, uint(7), b.CreatedBy)
		repo.AssertExpectations(t)
	})

	t.Run("ISBN格式错误", func(t *testing.T) {
		repo := new(mockRepo)
		_, err := NewService(repo).RegisterBook(ctx, "12345", "Titolo", "", "", "", "", 1)
		assert.ErrorIs(t, err, ErrInvalidISBN)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("ISBN-10末位允许X", func(t *testing.T) {
		repo := new(mockRepo)
		repo.On("FindByISBN", ctx, "880450101X").Return(nil, ErrBookNotFound)
		repo.On("Create", ctx, mock.Anything).Return(nil)
		_, err := NewService(repo).RegisterBook(ctx, "88-04-50101-x", "Titolo", "", "", "", "", 1)
		assert.NoError(t, err)
	})

	t.Run("ISBN重复", func(t *testing.T) {
		repo := new(mockRepo)
		repo.On("FindByISBN", ctx, "9788804668289").Return(&Book{ID: 3}, nil)
		_, err := NewService(repo).RegisterBook(ctx, "9788804668289", "Titolo", "", "", "", "", 1)
		assert.ErrorIs(t, err, ErrISBNDuplicate)
	})

	t.Run("书名为空", func(t *testing.T) {
		repo := new(mockRepo)
		_, err := NewService(repo).RegisterBook(ctx, "9788804668289", "  ", "", "", "", "", 1)
		assert.ErrorIs(t, err, ErrInvalidTitle)
	})
}

func TestService_DeleteBook(t *testing.T) {
	ctx := context.Background()

	t.Run("仍有副本时拒绝删除", func(t *testing.T) {
		repo := new(mockRepo)
		repo.On("FindByID", ctx, uint(5)).Return(&Book{ID: 5}, nil)
		repo.On("CountReferences", ctx, uint(5)).Return(int64(2), int64(0), nil)

		err := NewService(repo).DeleteBook(ctx, 5)
		assert.ErrorIs(t, err, ErrBookInUse)
		repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})

	t.Run("无引用时软删除", func(t *testing.T) {
		repo := new(mockRepo)
		repo.On("FindByID", ctx, uint(5)).Return(&Book{ID: 5}, nil)
		repo.On("CountReferences", ctx, uint(5)).Return(int64(0), int64(0), nil)
		repo.On("Delete", ctx, uint(5)).Return(nil)

		require.NoError(t, NewService(repo).DeleteBook(ctx, 5))
		repo.AssertExpectations(t)
	})

	t.Run("图书不存在", func(t *testing.T) {
		repo := new(mockRepo)
		repo.On("FindByID", ctx, uint(9)).Return(nil, ErrBookNotFound)
		assert.ErrorIs(t, NewService(repo).DeleteBook(ctx, 9), ErrBookNotFound)
	})
}
