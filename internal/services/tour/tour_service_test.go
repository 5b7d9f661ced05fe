package tour

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/partnerhub/engine/internal/auth"
	"github.com/partnerhub/engine/internal/errs"
	"github.com/partnerhub/engine/internal/models"
	"github.com/partnerhub/engine/internal/services/referral"
	"github.com/partnerhub/engine/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestQualifierProgress(t *testing.T) {
	db := testutil.NewDB(t)
	runner := testutil.NewRunner(t, db)
	graph := referral.NewService(runner, nil, zap.NewNop())
	svc := NewService(runner, graph, zap.NewNop())
	ctx := context.Background()

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 1, 31, 23, 59, 59, 0, time.UTC)

	q, err := svc.CreateQualifier(ctx, auth.System(), QualifierInput{
		Name: "Goa Winter Tour", FundType: models.DomesticTourFund, TargetEarningReferrals: 2,
		StartDate: start, EndDate: end,
	})
	require.NoError(t, err)
	assert.Equal(t, "goa-winter-tour", q.Code)

	_, err = svc.CreateQualifier(ctx, auth.System(), QualifierInput{
		Name: "Goa Winter Tour", FundType: models.DomesticTourFund, TargetEarningReferrals: 2,
		StartDate: start, EndDate: end,
	})
	assert.Equal(t, errs.CodeInvalidCode, errs.CodeOf(err))

	root, err := graph.RegisterRoot(ctx, referral.NewPartner{Name: "root"})
	require.NoError(t, err)
	activations := []time.Time{
		start.Add(24 * time.Hour),
		end.Add(time.Hour), // outside the window
	}
	for _, at := range activations {
		u, err := graph.Register(ctx, root.ReferralCode, referral.NewPartner{Name: "direct"})
		require.NoError(t, err)
		require.NoError(t, db.Model(&models.User{}).Where("id = ?", u.ID).
			Updates(map[string]interface{}{"is_active": true, "activated_at": at}).Error)
	}

	progress, err := svc.Progress(ctx, root.ID)
	require.NoError(t, err)
	require.Len(t, progress, 1)
	assert.Equal(t, int64(1), progress[0].Achieved)
	assert.Equal(t, int64(1), progress[0].Remaining)
	assert.False(t, progress[0].Qualified)

	u, err := graph.Register(ctx, root.ReferralCode, referral.NewPartner{Name: "late"})
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", u.ID).
		Updates(map[string]interface{}{"is_active": true, "activated_at": end.Add(-time.Hour)}).Error)

	progress, err = svc.Progress(ctx, root.ID)
	require.NoError(t, err)
	assert.True(t, progress[0].Qualified)
	assert.Zero(t, progress[0].Remaining)

	_, err = svc.Progress(ctx, uuid.New())
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestProgressListsClosedQualifiers(t *testing.T) {
	db := testutil.NewDB(t)
	runner := testutil.NewRunner(t, db)
	graph := referral.NewService(runner, nil, zap.NewNop())
	svc := NewService(runner, graph, zap.NewNop())
	ctx := context.Background()

	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 2, 28, 23, 59, 59, 0, time.UTC)
	open, err := svc.CreateQualifier(ctx, auth.System(), QualifierInput{
		Name: "Kerala Backwaters", FundType: models.DomesticTourFund, TargetEarningReferrals: 1,
		StartDate: start, EndDate: end,
	})
	require.NoError(t, err)
	closed, err := svc.CreateQualifier(ctx, auth.System(), QualifierInput{
		Name: "Bali Retreat", FundType: models.InternationalTourFund, TargetEarningReferrals: 1,
		StartDate: start.Add(time.Hour), EndDate: end,
	})
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.TourQualifier{}).Where("id = ?", closed.ID).Update("status", "closed").Error)

	root, err := graph.RegisterRoot(ctx, referral.NewPartner{Name: "root"})
	require.NoError(t, err)
	u, err := graph.Register(ctx, root.ReferralCode, referral.NewPartner{Name: "direct"})
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", u.ID).
		Updates(map[string]interface{}{"is_active": true, "activated_at": start.Add(48 * time.Hour)}).Error)

	progress, err := svc.Progress(ctx, root.ID)
	require.NoError(t, err)
	require.Len(t, progress, 2)

	assert.Equal(t, open.Code, progress[0].Code)
	assert.Equal(t, "active", progress[0].Status)
	assert.Equal(t, int64(1), progress[0].Achieved)
	assert.True(t, progress[0].Qualified)

	assert.Equal(t, closed.Code, progress[1].Code)
	assert.Equal(t, "closed", progress[1].Status)
	assert.Zero(t, progress[1].Achieved)
	assert.Equal(t, int64(1), progress[1].Remaining)
	assert.False(t, progress[1].Qualified)
}

func TestCreateQualifierValidation(t *testing.T) {
	db := testutil.NewDB(t)
	runner := testutil.NewRunner(t, db)
	svc := NewService(runner, referral.NewService(runner, nil, zap.NewNop()), zap.NewNop())
	ctx := context.Background()
	now := time.Now().UTC()

	_, err := svc.CreateQualifier(ctx, auth.Capability{}, QualifierInput{Name: "x"})
	assert.Equal(t, errs.CodeAdminRequired, errs.CodeOf(err))

	bad := []QualifierInput{
		{Name: "", FundType: models.DomesticTourFund, TargetEarningReferrals: 1, StartDate: now, EndDate: now},
		{Name: "a", FundType: "cruise", TargetEarningReferrals: 1, StartDate: now, EndDate: now},
		{Name: "a", FundType: models.InternationalTourFund, TargetEarningReferrals: 0, StartDate: now, EndDate: now},
		{Name: "a", FundType: models.InternationalTourFund, TargetEarningReferrals: 1, StartDate: now, EndDate: now.Add(-time.Hour)},
	}
	for _, in := range bad {
		_, err := svc.CreateQualifier(ctx, auth.System(), in)
		assert.Equal(t, errs.KindValidation, errs.KindOf(err))
	}
}
