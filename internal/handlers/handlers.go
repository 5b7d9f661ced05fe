// Package handlers exposes the engine's services over HTTP.
package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/partnerhub/engine/internal/auth"
	"github.com/partnerhub/engine/internal/errs"
	"github.com/partnerhub/engine/internal/middleware"
	"github.com/partnerhub/engine/internal/services/activation"
	"github.com/partnerhub/engine/internal/services/commission"
	"github.com/partnerhub/engine/internal/services/excellence"
	"github.com/partnerhub/engine/internal/services/leaderboard"
	"github.com/partnerhub/engine/internal/services/ledger"
	"github.com/partnerhub/engine/internal/services/referral"
	"github.com/partnerhub/engine/internal/services/tour"
	"github.com/partnerhub/engine/internal/services/wallet"
	"go.uber.org/zap"
)

// Services are the engine components the handlers delegate to
type Services struct {
	Referral    *referral.Service
	Ledger      *ledger.Service
	Commission  *commission.Service
	Activation  *activation.Service
	Wallet      *wallet.Service
	Excellence  *excellence.Service
	Leaderboard *leaderboard.Service
	Tour        *tour.Service
}

// Handler serves the partner and admin API
type Handler struct {
	svc    Services
	logger *zap.Logger
}

// NewHandler creates a new handler
func NewHandler(svc Services, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// statusFor maps an error kind to its HTTP status
func statusFor(kind errs.Kind) int {
	switch kind {
	case errs.KindValidation:
		return http.StatusBadRequest
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindInsufficientBalance:
		return http.StatusPaymentRequired
	case errs.KindUnauthorized:
		return http.StatusForbidden
	case errs.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as {"error","kind","code"}. System errors never
// leak their cause to the client.
func (h *Handler) respondError(c *gin.Context, err error) {
	kind := errs.KindOf(err)
	body := gin.H{"kind": kind, "code": errs.CodeOf(err)}

	if e, ok := errs.As(err); ok && kind != errs.KindSystem {
		body["error"] = e.Message
		if kind == errs.KindInsufficientBalance {
			body["shortfall"] = e.Shortfall
		}
	} else {
		body["error"] = "internal error"
		if body["code"] == "" {
			body["code"] = errs.CodeStorage
		}
		_ = c.Error(err)
		h.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	c.JSON(statusFor(kind), body)
}

func (h *Handler) badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": message, "kind": errs.KindValidation, "code": errs.CodeInvalidInput})
}

// caller returns the authenticated capability, writing 401 when absent
func (h *Handler) caller(c *gin.Context) (auth.Capability, bool) {
	capability := middleware.CapabilityFrom(c)
	if capability.UserID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "kind": errs.KindUnauthorized})
		return capability, false
	}
	return capability, true
}

func (h *Handler) pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.badRequest(c, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

// queryLimit reads ?limit, returning 0 when unset
func queryLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// queryTime parses an RFC 3339 timestamp or a YYYY-MM-DD date
func queryTime(c *gin.Context, key string) (time.Time, bool) {
	return parseBound(c.Query(key), false)
}

// queryEndTime is queryTime for the closing bound of a range: a bare
// date covers the whole of that day.
func queryEndTime(c *gin.Context, key string) (time.Time, bool) {
	return parseBound(c.Query(key), true)
}

func parseBound(raw string, endOfDay bool) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		if endOfDay {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		return t, true
	}
	return time.Time{}, false
}
