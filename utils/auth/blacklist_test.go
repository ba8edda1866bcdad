package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/campusflow/campus-flow-api/model"
	"github.com/campusflow/campus-flow-api/utils/auth"
	"github.com/campusflow/campus-flow-api/utils/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlacklistService(t *testing.T) {
	db := testdb.New(t)
	ctx := context.Background()
	svc := auth.NewBlacklistService(db)

	user := model.User{Email: "x@y.co"}
	require.NoError(t, db.Create(&user).Error)

	require.NoError(t, svc.RevokeToken(ctx, "jti-1", user.ID, time.Now().Add(time.Hour), "logout"))
	require.NoError(t, svc.RevokeToken(ctx, "jti-1", user.ID, time.Now().Add(time.Hour), "logout"))
	require.NoError(t, svc.RevokeToken(ctx, "jti-old", user.ID, time.Now().Add(-time.Hour), "logout"))

	revoked, err := svc.IsTokenRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, _ = svc.IsTokenRevoked(ctx, "jti-old")
	assert.False(t, revoked)

	removed, err := svc.CleanupExpiredTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	require.NoError(t, svc.RevokeAllUserTokens(ctx, user.ID))
	version, err := svc.GetUserTokenVersion(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, version)
}
