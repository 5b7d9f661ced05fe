package activation

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/partnerhub/engine/internal/auth"
	"github.com/partnerhub/engine/internal/config"
	"github.com/partnerhub/engine/internal/errs"
	"github.com/partnerhub/engine/internal/models"
	"github.com/partnerhub/engine/internal/queue"
	"github.com/partnerhub/engine/internal/services/commission"
	"github.com/partnerhub/engine/internal/services/ledger"
	"github.com/partnerhub/engine/internal/services/referral"
	"github.com/partnerhub/engine/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type capturingQueue struct {
	payloads []queue.CommissionEventPayload
}

func (q *capturingQueue) Enqueue(ctx context.Context, name queue.JobType, payload interface{}, opts ...queue.EnqueueOption) (string, error) {
	if p, ok := payload.(queue.CommissionEventPayload); ok {
		q.payloads = append(q.payloads, p)
	}
	return uuid.NewString(), nil
}

type fixture struct {
	db          *gorm.DB
	svc         *Service
	commissions *commission.Service
	referral    *referral.Service
	ledger      *ledger.Service
	root        *models.User
}

func plan() config.CommissionConfig {
	return config.CommissionConfig{
		DirectRate:            decimal.RequireFromString("0.20"),
		TeamRates:             []decimal.Decimal{decimal.RequireFromString("0.05")},
		RequireActiveReceiver: true,
	}
}

func newFixture(t *testing.T, q queue.Enqueuer) *fixture {
	db := testutil.NewDB(t)
	runner := testutil.NewRunner(t, db)
	commissions := commission.NewService(runner, plan(), zap.NewNop())
	f := &fixture{
		db:          db,
		svc:         NewService(runner, decimal.NewFromInt(150), q, commissions, zap.NewNop()),
		commissions: commissions,
		referral:    referral.NewService(runner, nil, zap.NewNop()),
		ledger:      ledger.NewService(runner, zap.NewNop()),
	}
	root, err := f.referral.RegisterRoot(context.Background(), referral.NewPartner{Name: "root"})
	require.NoError(t, err)
	f.root = root
	return f
}

func (f *fixture) partner(t *testing.T, funds string) *models.User {
	u, err := f.referral.Register(context.Background(), f.root.ReferralCode, referral.NewPartner{Name: "partner"})
	require.NoError(t, err)
	if funds != "" {
		_, err := f.commissions.AdminDeposit(context.Background(), auth.System(), commission.DepositInput{
			TargetUserID: u.ID, Amount: decimal.RequireFromString(funds),
		})
		require.NoError(t, err)
	}
	return u
}

func (f *fixture) reload(t *testing.T, id uuid.UUID) models.User {
	var u models.User
	require.NoError(t, f.db.First(&u, "id = ?", id).Error)
	return u
}

func TestActivateWithBalance(t *testing.T) {
	q := &capturingQueue{}
	f := newFixture(t, q)
	u := f.partner(t, "200")
	ctx := context.Background()

	res, err := f.svc.ActivateWithBalance(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "50", res.Balance.String())

	balance, err := f.ledger.Balance(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "50", balance.String())

	var debits []models.DebitRecord
	require.NoError(t, f.db.Where("payer_id = ?", u.ID).Find(&debits).Error)
	require.Len(t, debits, 1)
	assert.Equal(t, models.DebitActivationSpend, debits[0].Type)
	assert.Equal(t, "150", debits[0].Amount.String())

	stored := f.reload(t, u.ID)
	assert.True(t, stored.IsActive)
	assert.True(t, stored.SelfFunded)
	require.NotNil(t, stored.ActivatedAt)

	require.Len(t, q.payloads, 1)
	assert.Equal(t, commission.ActivationEventID(u.ID), q.payloads[0].EventID)
	assert.Equal(t, "150", q.payloads[0].Amount.String())

	_, err = f.svc.ActivateWithBalance(ctx, u.ID)
	assert.Equal(t, errs.CodeAlreadyActive, errs.CodeOf(err))
	balance, err = f.ledger.Balance(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "50", balance.String())
}

func TestActivateWithBalanceLocksPartnerFirst(t *testing.T) {
	f := newFixture(t, &capturingQueue{})
	u := f.partner(t, "150")
	queries := testutil.RecordQueries(t, f.db)
	queries.Reset()

	_, err := f.svc.ActivateWithBalance(context.Background(), u.ID)
	require.NoError(t, err)
	assert.True(t, queries.LockedBefore(u.ID, "earning_records"), "balance was read before the partner row was locked")
	assert.True(t, queries.LockedBefore(u.ID, "debit_records"))
}

func TestActivateWithoutEnoughBalance(t *testing.T) {
	f := newFixture(t, &capturingQueue{})
	u := f.partner(t, "149.99")

	_, err := f.svc.ActivateWithBalance(context.Background(), u.ID)
	require.Error(t, err)
	assert.Equal(t, errs.KindInsufficientBalance, errs.KindOf(err))
	assert.False(t, f.reload(t, u.ID).IsActive)

	var n int64
	require.NoError(t, f.db.Model(&models.DebitRecord{}).Count(&n).Error)
	assert.Zero(t, n)

	_, err = f.svc.ActivateWithBalance(context.Background(), uuid.New())
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestActivationPaysSponsorInline(t *testing.T) {
	f := newFixture(t, nil)
	u := f.partner(t, "150")

	_, err := f.svc.ActivateWithBalance(context.Background(), u.ID)
	require.NoError(t, err)

	var direct models.EarningRecord
	require.NoError(t, f.db.First(&direct, "receiver_id = ? AND type = ?", f.root.ID, models.EarningDirect).Error)
	assert.Equal(t, "30", direct.Amount.String())
	assert.Equal(t, commission.ActivationEventID(u.ID), direct.EventID)
}

func TestAdminActivate(t *testing.T) {
	q := &capturingQueue{}
	f := newFixture(t, q)
	u := f.partner(t, "")
	ctx := context.Background()

	_, err := f.svc.AdminActivate(ctx, auth.Capability{UserID: u.ID}, u.ID)
	assert.Equal(t, errs.CodeAdminRequired, errs.CodeOf(err))

	res, err := f.svc.AdminActivate(ctx, auth.System(), u.ID)
	require.NoError(t, err)
	assert.True(t, res.Balance.IsZero())

	stored := f.reload(t, u.ID)
	assert.True(t, stored.IsActive)
	assert.False(t, stored.SelfFunded)
	assert.Empty(t, q.payloads)

	_, err = f.svc.AdminActivate(ctx, auth.System(), u.ID)
	assert.Equal(t, errs.CodeAlreadyActive, errs.CodeOf(err))
}

func TestSweepPendingActivations(t *testing.T) {
	q := &capturingQueue{}
	f := newFixture(t, q)
	ctx := context.Background()

	lost := f.partner(t, "150")
	_, err := f.svc.ActivateWithBalance(ctx, lost.ID)
	require.NoError(t, err)

	paid := f.partner(t, "150")
	_, err = f.svc.ActivateWithBalance(ctx, paid.ID)
	require.NoError(t, err)
	_, err = f.commissions.Apply(ctx, f.svc.event(paid.ID))
	require.NoError(t, err)

	q.payloads = nil
	n, err := f.svc.SweepPendingActivations(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, q.payloads, 1)
	assert.Equal(t, lost.ID, q.payloads[0].SourceUserID)
}
