package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/partnerhub/engine/internal/config"
	"github.com/partnerhub/engine/internal/handlers"
	"github.com/partnerhub/engine/internal/services/activation"
	"github.com/partnerhub/engine/internal/services/commission"
	"github.com/partnerhub/engine/internal/services/excellence"
	"github.com/partnerhub/engine/internal/services/leaderboard"
	"github.com/partnerhub/engine/internal/services/ledger"
	"github.com/partnerhub/engine/internal/services/referral"
	"github.com/partnerhub/engine/internal/services/tour"
	"github.com/partnerhub/engine/internal/services/wallet"
	"github.com/partnerhub/engine/internal/testutil"
	"github.com/partnerhub/engine/internal/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "routes-test-secret"

type apiFixture struct {
	t        *testing.T
	router   *gin.Engine
	referral *referral.Service
	admin    string
}

func newAPIFixture(t *testing.T) *apiFixture {
	gin.SetMode(gin.TestMode)
	db := testutil.NewDB(t)
	runner := testutil.NewRunner(t, db)
	logger := zap.NewNop()

	plan := config.CommissionConfig{
		DirectRate:            decimal.RequireFromString("0.20"),
		TeamRates:             []decimal.Decimal{decimal.RequireFromString("0.05")},
		RequireActiveReceiver: true,
	}
	referrals := referral.NewService(runner, nil, logger)
	commissions := commission.NewService(runner, plan, logger)
	svc := handlers.Services{
		Referral:   referrals,
		Ledger:     ledger.NewService(runner, logger),
		Commission: commissions,
		Activation: activation.NewService(runner, decimal.NewFromInt(150), nil, commissions, logger),
		Wallet:     wallet.NewService(runner, wallet.NewPINLimiter(600, 100), logger),
		Excellence: excellence.NewService(runner, logger),
		Leaderboard: leaderboard.NewService(runner, nil, config.LeaderboardConfig{
			RefreshInterval: time.Minute, SnapshotSize: 100, DefaultLimit: 10,
		}, logger),
		Tour: tour.NewService(runner, referrals, logger),
	}

	router := gin.New()
	Setup(router, handlers.NewHandler(svc, logger), Options{JWTSecret: testSecret, DB: db})

	admin, err := utils.GenerateToken(testSecret, uuid.New(), "ops@partnerhub.test", true, time.Hour)
	require.NoError(t, err)

	return &apiFixture{t: t, router: router, referral: referrals, admin: admin}
}

func (f *apiFixture) token(userID uuid.UUID) string {
	token, err := utils.GenerateToken(testSecret, userID, "", false, time.Hour)
	require.NoError(f.t, err)
	return token
}

func (f *apiFixture) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(f.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
}

type errorBody struct {
	Error     string          `json:"error"`
	Kind      string          `json:"kind"`
	Code      string          `json:"code"`
	Shortfall decimal.Decimal `json:"shortfall"`
}

func TestPartnerJourney(t *testing.T) {
	f := newAPIFixture(t)
	root, err := f.referral.RegisterRoot(context.Background(), referral.NewPartner{Name: "Root"})
	require.NoError(t, err)

	// signup service registers a partner under the root
	w := f.do(http.MethodPost, "/api/partners", f.admin, gin.H{"sponsor_code": 1001, "name": "Asha", "mobile": "9000000001"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var partner struct {
		ID           uuid.UUID `json:"id"`
		ReferralCode int64     `json:"referral_code"`
	}
	decode(t, w, &partner)
	assert.Equal(t, int64(1002), partner.ReferralCode)
	token := f.token(partner.ID)

	w = f.do(http.MethodPost, "/api/admin/deposits", f.admin, gin.H{"target_user_id": partner.ID, "amount": "200"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = f.do(http.MethodPost, "/api/me/activate", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var activated struct {
		Balance decimal.Decimal `json:"balance"`
	}
	decode(t, w, &activated)
	assert.True(t, activated.Balance.Equal(decimal.NewFromInt(50)))

	w = f.do(http.MethodPut, "/api/me/profile", token, gin.H{"tpin": "4821"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do(http.MethodPost, "/api/wallet/transfers", token, gin.H{"receiver_code": 1001, "amount": "20", "tpin": "4821"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var transfer struct {
		ReceiverName string          `json:"receiver_name"`
		Balance      decimal.Decimal `json:"balance"`
	}
	decode(t, w, &transfer)
	assert.Equal(t, "Root", transfer.ReceiverName)
	assert.True(t, transfer.Balance.Equal(decimal.NewFromInt(30)))

	w = f.do(http.MethodPost, "/api/wallet/transfers", token, gin.H{"receiver_code": 1001, "amount": "100", "tpin": "4821"})
	require.Equal(t, http.StatusPaymentRequired, w.Code)
	var shortfall errorBody
	decode(t, w, &shortfall)
	assert.Equal(t, "insufficient_balance", shortfall.Kind)
	assert.True(t, shortfall.Shortfall.Equal(decimal.NewFromInt(70)))

	// the root earned the direct commission and received the transfer
	w = f.do(http.MethodGet, "/api/me/dashboard", f.token(root.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var dashboard struct {
		DirectIncome decimal.Decimal `json:"direct_income"`
		FundReceived decimal.Decimal `json:"fund_received"`
		Balance      decimal.Decimal `json:"balance"`
	}
	decode(t, w, &dashboard)
	assert.True(t, dashboard.DirectIncome.Equal(decimal.NewFromInt(30)))
	assert.True(t, dashboard.FundReceived.Equal(decimal.NewFromInt(20)))
	assert.True(t, dashboard.Balance.Equal(decimal.NewFromInt(50)))

	w = f.do(http.MethodGet, "/api/wallet/history", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history struct {
		Balance decimal.Decimal   `json:"balance"`
		Entries []json.RawMessage `json:"entries"`
	}
	decode(t, w, &history)
	assert.Len(t, history.Entries, 1)
	assert.True(t, history.Balance.Equal(decimal.NewFromInt(30)))

	w = f.do(http.MethodGet, "/api/leaderboard", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var board struct {
		Entries []struct {
			Rank   int       `json:"rank"`
			UserID uuid.UUID `json:"user_id"`
		} `json:"entries"`
	}
	decode(t, w, &board)
	require.NotEmpty(t, board.Entries)
	assert.Equal(t, root.ID, board.Entries[0].UserID)
}

func TestWithdrawalAdministration(t *testing.T) {
	f := newAPIFixture(t)
	_, err := f.referral.RegisterRoot(context.Background(), referral.NewPartner{Name: "Root"})
	require.NoError(t, err)

	w := f.do(http.MethodPost, "/api/partners", f.admin, gin.H{"sponsor_code": 1001, "name": "Ravi"})
	require.Equal(t, http.StatusCreated, w.Code)
	var partner struct {
		ID uuid.UUID `json:"id"`
	}
	decode(t, w, &partner)
	token := f.token(partner.ID)

	w = f.do(http.MethodPost, "/api/admin/partners/"+partner.ID.String()+"/activate", f.admin, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = f.do(http.MethodPost, "/api/admin/deposits", f.admin, gin.H{"target_user_id": partner.ID, "amount": 40})
	require.Equal(t, http.StatusCreated, w.Code)

	w = f.do(http.MethodPost, "/api/wallet/withdrawals", token, gin.H{
		"amount": "25", "method": "crypto", "address": "0x52908400098527886E0F7030069857D2E4169EE7",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var request struct {
		ID     uuid.UUID `json:"id"`
		Status string    `json:"status"`
	}
	decode(t, w, &request)
	assert.Equal(t, "pending", request.Status)

	w = f.do(http.MethodGet, "/api/admin/withdrawals?status=pending", f.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Withdrawals []json.RawMessage `json:"withdrawals"`
	}
	decode(t, w, &list)
	assert.Len(t, list.Withdrawals, 1)

	w = f.do(http.MethodPost, "/api/admin/withdrawals/"+request.ID.String()+"/reject", f.admin, gin.H{"reason": "address mismatch"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do(http.MethodPost, "/api/admin/withdrawals/"+request.ID.String()+"/approve", f.admin, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	var body errorBody
	decode(t, w, &body)
	assert.Equal(t, "already_processed", body.Code)

	w = f.do(http.MethodGet, "/api/wallet/history", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history struct {
		Balance decimal.Decimal `json:"balance"`
	}
	decode(t, w, &history)
	assert.True(t, history.Balance.Equal(decimal.NewFromInt(40)))
}

func TestAccessControl(t *testing.T) {
	f := newAPIFixture(t)
	root, err := f.referral.RegisterRoot(context.Background(), referral.NewPartner{Name: "Root"})
	require.NoError(t, err)
	partnerToken := f.token(root.ID)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   interface{}
		status int
		kind   string
	}{
		{"no token", http.MethodGet, "/api/me/dashboard", "", nil, http.StatusUnauthorized, "unauthorized"},
		{"bad token", http.MethodGet, "/api/me/dashboard", "not-a-jwt", nil, http.StatusUnauthorized, "unauthorized"},
		{"partner on admin route", http.MethodPost, "/api/admin/deposits", partnerToken,
			gin.H{"target_user_id": root.ID, "amount": "10"}, http.StatusForbidden, "unauthorized"},
		{"partner registering", http.MethodPost, "/api/partners", partnerToken,
			gin.H{"sponsor_code": 1001, "name": "X"}, http.StatusForbidden, "unauthorized"},
		{"malformed code", http.MethodGet, "/api/partners/by-code/abc", partnerToken, nil, http.StatusBadRequest, "validation"},
		{"unknown code", http.MethodGet, "/api/partners/by-code/999999", partnerToken, nil, http.StatusNotFound, "not_found"},
		{"unknown sponsor", http.MethodPost, "/api/partners", f.admin,
			gin.H{"sponsor_code": 4242, "name": "X"}, http.StatusNotFound, "not_found"},
		{"bad window", http.MethodGet, "/api/me/earning-referrals?start=yesterday", partnerToken, nil, http.StatusBadRequest, "validation"},
		{"bad withdrawal id", http.MethodPost, "/api/admin/withdrawals/nope/approve", f.admin, nil, http.StatusBadRequest, "validation"},
		{"unknown withdrawal", http.MethodPost, "/api/admin/withdrawals/" + uuid.NewString() + "/approve", f.admin, nil, http.StatusNotFound, "not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(tt.method, tt.path, tt.token, tt.body)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			var body errorBody
			decode(t, w, &body)
			assert.Equal(t, tt.kind, body.Kind)
		})
	}
}

func TestOpsRoutes(t *testing.T) {
	f := newAPIFixture(t)

	w := f.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestEarningReferralWindow(t *testing.T) {
	f := newAPIFixture(t)
	root, err := f.referral.RegisterRoot(context.Background(), referral.NewPartner{Name: "Root"})
	require.NoError(t, err)

	w := f.do(http.MethodPost, "/api/partners", f.admin, gin.H{"sponsor_code": 1001, "name": "Meera"})
	require.Equal(t, http.StatusCreated, w.Code)
	var partner struct {
		ID uuid.UUID `json:"id"`
	}
	decode(t, w, &partner)
	w = f.do(http.MethodPost, "/api/admin/partners/"+partner.ID.String()+"/activate", f.admin, nil)
	require.Equal(t, http.StatusOK, w.Code)

	start := time.Now().UTC().Add(-time.Hour).Format(time.RFC3339)
	end := time.Now().UTC().Add(time.Hour).Format(time.RFC3339)
	w = f.do(http.MethodGet, "/api/me/earning-referrals?start="+start+"&end="+end, f.token(root.ID), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var out struct {
		Count int64 `json:"count"`
	}
	decode(t, w, &out)
	assert.Equal(t, int64(1), out.Count)
}
