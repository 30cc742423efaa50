package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/xiebiao/biblioteca/pkg/errors"
)

func TestManager_RoundTrip(t *testing.T) {
	m := NewManager("test-secret", "", time.Hour, 24*time.Hour)

	pair, err := m.GenerateToken(42, "staff@example.it", "Lucia", "staff")
	require.NoError(t, err)
	assert.EqualValues(t, 3600, pair.ExpiresIn)

	claims, err := m.ParseToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "staff", claims.Role)
	assert.Equal(t, DefaultIssuer, claims.Issuer)
	assert.Equal(t, "42", claims.Subject)
	assert.NotEmpty(t, claims.ID)

	refreshed, err := m.RefreshAccessToken(pair.RefreshToken)
	require.NoError(t, err)
	claims, err = m.ParseToken(refreshed)
	require.NoError(t, err)
	assert.Equal(t, "staff", claims.Role)
}

func TestManager_Rejects(t *testing.T) {
	m := NewManager("test-secret", "biblioteca", time.Hour, 24*time.Hour)
	pair, err := m.GenerateToken(1, "a@example.it", "A", "member")
	require.NoError(t, err)

	// 密钥不同
	other := NewManager("other-secret", "biblioteca", time.Hour, 24*time.Hour)
	_, err = other.ParseToken(pair.AccessToken)
	assert.ErrorIs(t, err, apperrors.ErrInvalidToken)

	// 签发者不同
	foreign := NewManager("test-secret", "bookstore", time.Hour, 24*time.Hour)
	_, err = foreign.ParseToken(pair.AccessToken)
	assert.ErrorIs(t, err, apperrors.ErrInvalidToken)

	_, err = m.ParseToken("not-a-token")
	assert.ErrorIs(t, err, apperrors.ErrInvalidToken)
}

func TestManager_Expired(t *testing.T) {
	m := NewManager("test-secret", "", time.Minute, time.Hour)
	issued := time.Now()
	m.now = func() time.Time { return issued }

	pair, err := m.GenerateToken(1, "a@example.it", "A", "member")
	require.NoError(t, err)

	m.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = m.ParseToken(pair.AccessToken)
	assert.ErrorIs(t, err, apperrors.ErrTokenExpired)
}
