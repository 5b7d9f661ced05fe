package commission

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/partnerhub/engine/internal/auth"
	"github.com/partnerhub/engine/internal/config"
	"github.com/partnerhub/engine/internal/errs"
	"github.com/partnerhub/engine/internal/models"
	"github.com/partnerhub/engine/internal/services/ledger"
	"github.com/partnerhub/engine/internal/services/referral"
	"github.com/partnerhub/engine/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var clock = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func defaultPlan() config.CommissionConfig {
	return config.CommissionConfig{
		DirectRate:            d("0.20"),
		TeamRates:             []decimal.Decimal{d("0.05"), d("0.03"), d("0.02"), d("0.01"), d("0.01")},
		TopTenRate:            d("0.02"),
		TopTenSize:            10,
		PassiveSchedule:       []config.PassiveTier{{AfterDays: 30, Amount: d("5")}, {AfterDays: 60, Amount: d("5")}, {AfterDays: 90, Amount: d("5")}},
		RequireActiveReceiver: true,
	}
}

type fixture struct {
	db       *gorm.DB
	svc      *Service
	referral *referral.Service
}

func newFixture(t *testing.T, plan config.CommissionConfig) *fixture {
	db := testutil.NewDB(t)
	runner := testutil.NewRunner(t, db)
	svc := NewService(runner, plan, zap.NewNop())
	svc.now = func() time.Time { return clock }
	return &fixture{db: db, svc: svc, referral: referral.NewService(runner, nil, zap.NewNop())}
}

// chain registers root plus n partners, each sponsored by the previous one
func (f *fixture) chain(t *testing.T, n int) []models.User {
	ctx := context.Background()
	root, err := f.referral.RegisterRoot(ctx, referral.NewPartner{Name: "root"})
	require.NoError(t, err)
	users := []models.User{*root}
	for i := 1; i <= n; i++ {
		u, err := f.referral.Register(ctx, users[i-1].ReferralCode, referral.NewPartner{Name: fmt.Sprintf("p%d", i)})
		require.NoError(t, err)
		users = append(users, *u)
	}
	return users
}

func (f *fixture) activate(t *testing.T, ids ...uuid.UUID) {
	require.NoError(t, f.db.Model(&models.User{}).Where("id IN ?", ids).
		Updates(map[string]interface{}{"is_active": true, "activated_at": clock.Add(-time.Hour)}).Error)
}

func (f *fixture) earnings(t *testing.T, receiver uuid.UUID, typ models.EarningType) decimal.Decimal {
	var rows []models.EarningRecord
	require.NoError(t, f.db.Where("receiver_id = ? AND type = ?", receiver, typ).Find(&rows).Error)
	total := decimal.Zero
	for _, r := range rows {
		total = total.Add(r.Amount)
	}
	return total
}

func (f *fixture) countEarnings(t *testing.T) int64 {
	var n int64
	require.NoError(t, f.db.Model(&models.EarningRecord{}).Count(&n).Error)
	return n
}

func ids(users []models.User) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(users))
	for _, u := range users {
		out = append(out, u.ID)
	}
	return out
}

func TestActivationPaysSponsorAndBoundedUpline(t *testing.T) {
	f := newFixture(t, defaultPlan())
	users := f.chain(t, 7)
	f.activate(t, ids(users)...)
	leaf := users[7]

	res, err := f.svc.Apply(context.Background(), Event{
		ID: ActivationEventID(leaf.ID), Type: EventActivation, SourceUserID: leaf.ID, Amount: d("150"),
	})
	require.NoError(t, err)
	assert.True(t, res.Applied)
	assert.Equal(t, "48", res.Total.String())

	assert.Equal(t, "30", f.earnings(t, users[6].ID, models.EarningDirect).String())
	assert.Equal(t, "7.5", f.earnings(t, users[5].ID, models.EarningTeam).String())
	assert.Equal(t, "4.5", f.earnings(t, users[4].ID, models.EarningTeam).String())
	assert.Equal(t, "3", f.earnings(t, users[3].ID, models.EarningTeam).String())
	assert.Equal(t, "1.5", f.earnings(t, users[2].ID, models.EarningTeam).String())
	assert.Equal(t, "1.5", f.earnings(t, users[1].ID, models.EarningTeam).String())
	// depth 7 is beyond the team levels
	assert.True(t, f.earnings(t, users[0].ID, models.EarningTeam).IsZero())

	var stored []models.EarningRecord
	require.NoError(t, f.db.Where("event_id = ?", res.EventID).Find(&stored).Error)
	assert.Len(t, stored, 6)
	for _, r := range stored {
		require.NotNil(t, r.SourceUserID)
		assert.Equal(t, leaf.ID, *r.SourceUserID)
	}

	var marker models.CommissionEvent
	require.NoError(t, f.db.First(&marker, "id = ?", res.EventID).Error)
	assert.Equal(t, 6, marker.RecordCount)
	assert.True(t, marker.Total.Equal(d("48")))
}

func TestApplyIsIdempotentPerEvent(t *testing.T) {
	f := newFixture(t, defaultPlan())
	users := f.chain(t, 2)
	f.activate(t, ids(users)...)
	ev := Event{ID: ActivationEventID(users[2].ID), Type: EventActivation, SourceUserID: users[2].ID, Amount: d("150")}

	first, err := f.svc.Apply(context.Background(), ev)
	require.NoError(t, err)
	require.True(t, first.Applied)
	written := f.countEarnings(t)

	again, err := f.svc.Apply(context.Background(), ev)
	require.NoError(t, err)
	assert.False(t, again.Applied)
	assert.Equal(t, written, f.countEarnings(t))
	assert.Equal(t, "30", f.earnings(t, users[1].ID, models.EarningDirect).String())
}

func TestInactiveReceiversAreSkipped(t *testing.T) {
	f := newFixture(t, defaultPlan())
	users := f.chain(t, 3)
	// users[2] (the sponsor) stays inactive
	f.activate(t, users[0].ID, users[1].ID, users[3].ID)

	res, err := f.svc.Apply(context.Background(), Event{
		ID: "activation:test", Type: EventActivation, SourceUserID: users[3].ID, Amount: d("100"),
	})
	require.NoError(t, err)
	assert.True(t, f.earnings(t, users[2].ID, models.EarningDirect).IsZero())
	assert.Equal(t, "5", f.earnings(t, users[1].ID, models.EarningTeam).String())
	assert.Equal(t, "3", f.earnings(t, users[0].ID, models.EarningTeam).String())
	assert.Len(t, res.Records, 2)
}

func TestInactiveReceiversPaidWhenNotRequired(t *testing.T) {
	plan := defaultPlan()
	plan.RequireActiveReceiver = false
	f := newFixture(t, plan)
	users := f.chain(t, 2)
	f.activate(t, users[2].ID)

	_, err := f.svc.Apply(context.Background(), Event{
		ID: "activation:test", Type: EventActivation, SourceUserID: users[2].ID, Amount: d("100"),
	})
	require.NoError(t, err)
	assert.Equal(t, "20", f.earnings(t, users[1].ID, models.EarningDirect).String())
	assert.Equal(t, "5", f.earnings(t, users[0].ID, models.EarningTeam).String())
}

func TestTopTenPoolSplitsByIncome(t *testing.T) {
	plan := config.CommissionConfig{TopTenRate: d("0.02"), TopTenSize: 10, RequireActiveReceiver: true}
	f := newFixture(t, plan)
	users := f.chain(t, 4)
	f.activate(t, users[0].ID, users[1].ID, users[2].ID, users[4].ID)

	ctx := context.Background()
	ledgerSvc := ledger.NewService(testutil.NewRunner(t, f.db), zap.NewNop())
	require.NoError(t, ledgerSvc.Append(ctx, ledger.Batch{Earnings: []models.EarningRecord{
		{ReceiverID: users[1].ID, Type: models.EarningDirect, Amount: d("100")},
		{ReceiverID: users[2].ID, Type: models.EarningTeam, Amount: d("50")},
		// inactive partners do not share the pool
		{ReceiverID: users[3].ID, Type: models.EarningDirect, Amount: d("500")},
	}}))

	res, err := f.svc.Apply(ctx, Event{
		ID: "activation:pool", Type: EventActivation, SourceUserID: users[4].ID, Amount: d("50"),
	})
	require.NoError(t, err)
	require.Len(t, res.Records, 2)
	assert.Equal(t, "1", res.Total.String())

	assert.Equal(t, "0.67", f.earnings(t, users[1].ID, models.EarningTopTen).String())
	assert.Equal(t, "0.33", f.earnings(t, users[2].ID, models.EarningTopTen).String())
	assert.True(t, f.earnings(t, users[3].ID, models.EarningTopTen).IsZero())
}

func TestInvalidComputationAbortsBatch(t *testing.T) {
	plan := defaultPlan()
	plan.TeamRates = []decimal.Decimal{d("0.05"), d("-0.03")}
	f := newFixture(t, plan)
	users := f.chain(t, 3)
	f.activate(t, ids(users)...)

	ev := Event{ID: "activation:bad", Type: EventActivation, SourceUserID: users[3].ID, Amount: d("100")}
	_, err := f.svc.Apply(context.Background(), ev)
	require.Error(t, err)
	assert.Equal(t, errs.CodeInvalidRecord, errs.CodeOf(err))
	assert.Zero(t, f.countEarnings(t))

	// the marker rolled back with the batch, so a fixed plan can still apply it
	var markers int64
	require.NoError(t, f.db.Model(&models.CommissionEvent{}).Count(&markers).Error)
	assert.Zero(t, markers)
}

func TestDepositCreditsTarget(t *testing.T) {
	f := newFixture(t, defaultPlan())
	users := f.chain(t, 1)

	res, err := f.svc.Apply(context.Background(), Event{
		ID: DepositEventID(""), Type: EventDeposit, SourceUserID: users[1].ID, Amount: d("250"), Note: "promo",
	})
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, models.EarningAdminDeposit, res.Records[0].Type)
	assert.Equal(t, "promo", res.Records[0].Note)
	assert.Equal(t, "250", f.earnings(t, users[1].ID, models.EarningAdminDeposit).String())
	// deposits do not fan out
	assert.Equal(t, int64(1), f.countEarnings(t))
}

func TestAdminDepositReplaysByKey(t *testing.T) {
	f := newFixture(t, defaultPlan())
	users := f.chain(t, 1)
	ctx := context.Background()
	in := DepositInput{TargetUserID: users[1].ID, Amount: d("75"), IdempotencyKey: "bank-ref-1182"}

	first, err := f.svc.AdminDeposit(ctx, auth.System(), in)
	require.NoError(t, err)
	assert.True(t, first.Applied)
	assert.Equal(t, "deposit:bank-ref-1182", first.EventID)

	again, err := f.svc.AdminDeposit(ctx, auth.System(), in)
	require.NoError(t, err)
	assert.False(t, again.Applied)
	assert.Equal(t, "75", f.earnings(t, users[1].ID, models.EarningAdminDeposit).String())

	in.IdempotencyKey = ""
	for i := 0; i < 2; i++ {
		res, err := f.svc.AdminDeposit(ctx, auth.System(), in)
		require.NoError(t, err)
		assert.True(t, res.Applied)
	}
	assert.Equal(t, "225", f.earnings(t, users[1].ID, models.EarningAdminDeposit).String())

	in.IdempotencyKey = strings.Repeat("k", 101)
	_, err = f.svc.AdminDeposit(ctx, auth.System(), in)
	assert.Equal(t, errs.CodeInvalidInput, errs.CodeOf(err))
}

func TestApplyRejectsBadEvents(t *testing.T) {
	f := newFixture(t, defaultPlan())
	users := f.chain(t, 1)
	ctx := context.Background()

	_, err := f.svc.Apply(ctx, Event{ID: "x", Type: "bonus", SourceUserID: users[1].ID, Amount: d("1")})
	assert.Equal(t, errs.CodeUnknownEvent, errs.CodeOf(err))

	_, err = f.svc.Apply(ctx, Event{ID: "x", Type: EventDeposit, SourceUserID: users[1].ID, Amount: d("0")})
	assert.Equal(t, errs.CodeInvalidAmount, errs.CodeOf(err))

	_, err = f.svc.Apply(ctx, Event{ID: "x", Type: EventDeposit, SourceUserID: uuid.New(), Amount: d("1")})
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))

	_, err = f.svc.Apply(ctx, Event{ID: "x", Type: EventActivation, SourceUserID: users[1].ID, Amount: d("150")})
	assert.Equal(t, errs.CodeInactiveAccount, errs.CodeOf(err))

	assert.Zero(t, f.countEarnings(t))
}

func TestMaturePassivePaysReachedTiersOnce(t *testing.T) {
	f := newFixture(t, defaultPlan())
	users := f.chain(t, 2)
	require.NoError(t, f.db.Model(&models.User{}).Where("id = ?", users[1].ID).
		Updates(map[string]interface{}{"is_active": true, "activated_at": clock.Add(-65 * 24 * time.Hour)}).Error)
	require.NoError(t, f.db.Model(&models.User{}).Where("id = ?", users[2].ID).
		Updates(map[string]interface{}{"is_active": true, "activated_at": clock.Add(-10 * 24 * time.Hour)}).Error)

	ctx := context.Background()
	summary, err := f.svc.MaturePassive(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Applied)
	assert.Equal(t, "10", f.earnings(t, users[1].ID, models.EarningPassive).String())
	assert.True(t, f.earnings(t, users[2].ID, models.EarningPassive).IsZero())

	summary, err = f.svc.MaturePassive(ctx)
	require.NoError(t, err)
	assert.Zero(t, summary.Applied)
	assert.Equal(t, "10", f.earnings(t, users[1].ID, models.EarningPassive).String())

	var marker models.CommissionEvent
	require.NoError(t, f.db.First(&marker, "id = ?", PassiveEventID(users[1].ID, 2)).Error)
	assert.Equal(t, string(EventPassiveMaturity), marker.Type)
}
