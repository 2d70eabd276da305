package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTM() *TokenManager {
	return NewTokenManager("access-secret", "refresh-secret", "payflow-test", 15*time.Minute, time.Hour)
}

func TestGenerateAndParsePair(t *testing.T) {
	tm := newTM()
	access, refresh, exp, err := tm.GeneratePair(42)
	require.NoError(t, err)
	assert.True(t, exp.After(time.Now()))

	claims, isRefresh, err := tm.ParseAny(access)
	require.NoError(t, err)
	assert.False(t, isRefresh)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "payflow-test", claims.Issuer)

	claims, isRefresh, err = tm.ParseAny(refresh)
	require.NoError(t, err)
	assert.True(t, isRefresh)
	assert.Equal(t, int64(42), claims.UserID)
}

func TestParseRejectsGarbage(t *testing.T) {
	tm := newTM()
	_, _, err := tm.ParseAny("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsForeignSecret(t *testing.T) {
	other := NewTokenManager("other-a", "other-r", "payflow-test", time.Minute, time.Minute)
	access, _, _, err := other.GeneratePair(1)
	require.NoError(t, err)

	tm := newTM()
	_, _, err = tm.ParseAny(access)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	require.NoError(t, err)
	assert.NoError(t, VerifyPassword("s3cret-pass", hash))
	assert.Error(t, VerifyPassword("wrong", hash))
}
