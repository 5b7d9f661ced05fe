package app

import (
	"context"
	"testing"

	"github.com/partnerhub/engine/internal/auth"
	"github.com/partnerhub/engine/internal/config"
	"github.com/partnerhub/engine/internal/services/referral"
	"github.com/partnerhub/engine/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewWithoutQueueAppliesInline(t *testing.T) {
	cfg := config.LoadConfig()
	db := testutil.NewDB(t)
	engine := New(cfg, db, nil, nil, zap.NewNop())
	ctx := context.Background()

	root, err := engine.Services.Referral.RegisterRoot(ctx, referral.NewPartner{Name: "Root"})
	require.NoError(t, err)
	partner, err := engine.Services.Referral.Register(ctx, root.ReferralCode, referral.NewPartner{Name: "Lena"})
	require.NoError(t, err)

	_, err = engine.Services.Activation.AdminActivate(ctx, auth.System(), partner.ID)
	require.NoError(t, err)

	board, err := engine.Services.Leaderboard.Rank(ctx, 0)
	require.NoError(t, err)
	assert.NotNil(t, board)
	assert.NotNil(t, engine.PINs)
}
