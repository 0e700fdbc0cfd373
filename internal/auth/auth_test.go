package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenPair(t *testing.T) {
	tm := NewTokenManager("iou-test", "acc", "ref", time.Minute, time.Hour)
	access, refresh, exp, err := tm.GeneratePair("bot")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), exp, 5*time.Second)

	c, err := tm.ParseAccess(access)
	require.NoError(t, err)
	assert.Equal(t, "bot", c.ClientID)

	c, err = tm.ParseRefresh(refresh)
	require.NoError(t, err)
	assert.Equal(t, "bot", c.ClientID)

	// tokens are not interchangeable
	_, err = tm.ParseAccess(refresh)
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = tm.ParseRefresh(access)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenRejectsOtherIssuerAndExpired(t *testing.T) {
	other := NewTokenManager("someone-else", "acc", "ref", time.Minute, time.Hour)
	access, _, _, err := other.GeneratePair("bot")
	require.NoError(t, err)

	tm := NewTokenManager("iou-test", "acc", "ref", time.Minute, time.Hour)
	_, err = tm.ParseAccess(access)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := NewTokenManager("iou-test", "acc", "ref", -time.Minute, time.Hour)
	access, _, _, err = expired.GeneratePair("bot")
	require.NoError(t, err)
	_, err = tm.ParseAccess(access)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyToken(t *testing.T) {
	hash, err := HashToken("s3cret")
	require.NoError(t, err)
	assert.True(t, VerifyToken("s3cret", hash))
	assert.False(t, VerifyToken("wrong", hash))
	assert.False(t, VerifyToken("", hash))
	assert.False(t, VerifyToken("s3cret", ""))
}
