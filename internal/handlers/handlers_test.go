package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/partnerhub/engine/internal/errs"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRespondError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHandler(Services{}, zap.NewNop())

	tests := []struct {
		name   string
		err    error
		status int
		kind   string
		code   string
	}{
		{"validation", errs.Validation(errs.CodeInvalidAmount, "bad"), http.StatusBadRequest, "validation", "invalid_amount"},
		{"not found", errs.NotFound(errs.CodeUserNotFound, "gone"), http.StatusNotFound, "not_found", "user_not_found"},
		{"balance", errs.InsufficientBalance(decimal.NewFromInt(5), decimal.NewFromInt(8)), http.StatusPaymentRequired, "insufficient_balance", "insufficient_balance"},
		{"unauthorized", errs.Unauthorized(errs.CodeBadCredential, "no"), http.StatusForbidden, "unauthorized", "bad_credential"},
		{"conflict", errs.Conflict("busy", "retry"), http.StatusConflict, "conflict", "busy"},
		{"system", errs.System(errs.CodeRetriesExhausted, errors.New("deadlock")), http.StatusInternalServerError, "system", "retries_exhausted"},
		{"foreign", errors.New("boom"), http.StatusInternalServerError, "system", "storage_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
			h.respondError(c, tt.err)

			assert.Equal(t, tt.status, w.Code)
			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.kind, body["kind"])
			assert.Equal(t, tt.code, body["code"])
			if tt.kind == "system" {
				assert.Equal(t, "internal error", body["error"])
			}
		})
	}
}

func TestRespondErrorReportsShortfall(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHandler(Services{}, zap.NewNop())
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/", nil)

	h.respondError(c, errs.InsufficientBalance(decimal.NewFromInt(20), decimal.NewFromInt(30)))

	var body struct {
		Shortfall decimal.Decimal `json:"shortfall"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Shortfall.Equal(decimal.NewFromInt(10)))
}

func TestQueryRangeBounds(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/?start=2026-03-01&end=2026-03-31&at=2026-03-31T08:00:00%2B02:00&bad=31/03", nil)

	start, ok := queryTime(c, "start")
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), start)

	end, ok := queryEndTime(c, "end")
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 3, 31, 23, 59, 59, 999999999, time.UTC), end)
	assert.True(t, time.Date(2026, 3, 31, 18, 30, 0, 0, time.UTC).Before(end), "activations late on the closing day fall inside the range")

	at, ok := queryEndTime(c, "at")
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 3, 31, 6, 0, 0, 0, time.UTC), at)

	_, ok = queryEndTime(c, "bad")
	assert.False(t, ok)
	_, ok = queryTime(c, "missing")
	assert.False(t, ok)
}
