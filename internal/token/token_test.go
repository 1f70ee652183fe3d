package token

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() *Service {
	return NewService("test-secret", time.Hour, NewMemoryDenyList())
}

func TestIssueAndVerify(t *testing.T) {
	svc := newTestService()

	signed, err := svc.Issue(42, "ada@example.com")
	require.NoError(t, err)

	claims, err := svc.Verify(context.Background(), signed)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, "ada@example.com", claims.Email)
	assert.NotEmpty(t, claims.ID)
}

func TestVerifyRejectsTampering(t *testing.T) {
	svc := newTestService()

	signed, err := svc.Issue(42, "ada@example.com")
	require.NoError(t, err)

	_, err = svc.Verify(context.Background(), signed+"x")
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := NewService("different-secret", time.Hour, NewMemoryDenyList())
	_, err = other.Verify(context.Background(), signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsExpired(t *testing.T) {
	svc := NewService("test-secret", -time.Minute, NewMemoryDenyList())

	signed, err := svc.Issue(42, "ada@example.com")
	require.NoError(t, err)

	_, err = svc.Verify(context.Background(), signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestRevoke(t *testing.T) {
	svc := newTestService()

	signed, err := svc.Issue(42, "ada@example.com")
	require.NoError(t, err)
	claims, err := svc.Verify(context.Background(), signed)
	require.NoError(t, err)

	require.NoError(t, svc.Revoke(context.Background(), claims))

	_, err = svc.Verify(context.Background(), signed)
	assert.ErrorIs(t, err, ErrTokenRevoked)
}

func TestRefreshRotatesToken(t *testing.T) {
	svc := newTestService()

	signed, err := svc.Issue(42, "ada@example.com")
	require.NoError(t, err)
	claims, err := svc.Verify(context.Background(), signed)
	require.NoError(t, err)

	fresh, err := svc.Refresh(context.Background(), claims)
	require.NoError(t, err)
	assert.NotEqual(t, signed, fresh)

	// Old token is dead, the replacement works.
	_, err = svc.Verify(context.Background(), signed)
	assert.ErrorIs(t, err, ErrTokenRevoked)

	freshClaims, err := svc.Verify(context.Background(), fresh)
	require.NoError(t, err)
	assert.Equal(t, int64(42), freshClaims.UserID)
}

func TestMemoryDenyListSweepsExpired(t *testing.T) {
	deny := NewMemoryDenyList()

	require.NoError(t, deny.Revoke(context.Background(), "stale", -time.Second))
	revoked, err := deny.IsRevoked(context.Background(), "stale")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, deny.Revoke(context.Background(), "live", time.Minute))
	revoked, err = deny.IsRevoked(context.Background(), "live")
	require.NoError(t, err)
	assert.True(t, revoked)
}
