package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Is(t *testing.T) {
	notAvailable := New(ErrCodeNotAvailable, "所选日期无可借副本")

	t.Run("WithDetail副本仍与原错误匹配", func(t *testing.T) {
		derived := notAvailable.WithDetail(fmt.Errorf("conflict"))
		assert.True(t, stderrors.Is(derived, notAvailable))
		assert.Nil(t, notAvailable.Err, "包级变量不应被修改")
	})

	t.Run("fmt包装后仍可识别", func(t *testing.T) {
		wrapped := fmt.Errorf("request loan: %w", notAvailable)
		assert.True(t, stderrors.Is(wrapped, notAvailable))
		assert.True(t, HasCode(wrapped, ErrCodeNotAvailable))
	})

	t.Run("不同错误码不匹配", func(t *testing.T) {
		assert.False(t, stderrors.Is(ErrForbidden, notAvailable))
	})
}

func TestGetAppError(t *testing.T) {
	plain := stderrors.New("connection refused")

	appErr := GetAppError(plain)
	require.NotNil(t, appErr)
	assert.Equal(t, ErrCodeInternal, appErr.Code)
	assert.ErrorIs(t, appErr, plain)

	assert.Same(t, ErrForbidden, GetAppError(ErrForbidden))
}
