package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/partnerhub/engine/internal/errs"
	"github.com/partnerhub/engine/internal/services/referral"
)

// RegisterRequest is posted by the signup flow
type RegisterRequest struct {
	SponsorCode int64  `json:"sponsor_code" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Email       string `json:"email"`
	Mobile      string `json:"mobile"`
}

// Register creates a partner under the sponsor's referral code
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	user, err := h.svc.Referral.Register(c.Request.Context(), req.SponsorCode, referral.NewPartner{
		Name:   req.Name,
		Email:  req.Email,
		Mobile: req.Mobile,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// GetByCode resolves a referral code to a partner's public profile
func (h *Handler) GetByCode(c *gin.Context) {
	code, err := strconv.ParseInt(c.Param("code"), 10, 64)
	if err != nil {
		h.respondError(c, errs.Validation(errs.CodeInvalidCode, "referral code must be a positive integer"))
		return
	}
	summary, err := h.svc.Referral.LookupByCode(c.Request.Context(), code)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// UpdateProfile edits the caller's contact and payout details
func (h *Handler) UpdateProfile(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	var upd referral.ProfileUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}
	user, err := h.svc.Referral.UpdateProfile(c.Request.Context(), caller.UserID, upd)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// Dashboard returns the caller's income summary
func (h *Handler) Dashboard(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	summary, err := h.svc.Ledger.Summarize(c.Request.Context(), caller.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// Earnings returns the caller's newest earnings
func (h *Handler) Earnings(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	limit, ok := queryLimit(c)
	if !ok {
		h.badRequest(c, "invalid limit")
		return
	}
	entries, err := h.svc.Ledger.EarningHistory(c.Request.Context(), caller.UserID, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"earnings": entries})
}

// Team returns the caller's direct referrals and level standing
func (h *Handler) Team(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	overview, err := h.svc.Referral.TeamOverview(c.Request.Context(), caller.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, overview)
}

// Activate spends the activation cost from the caller's balance
func (h *Handler) Activate(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	result, err := h.svc.Activation.ActivateWithBalance(c.Request.Context(), caller.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Excellence returns the caller's milestone progress
func (h *Handler) Excellence(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	progress, err := h.svc.Excellence.Progress(c.Request.Context(), caller.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, progress)
}

// Tours returns the caller's standing in every active tour qualifier
func (h *Handler) Tours(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	progress, err := h.svc.Tour.Progress(c.Request.Context(), caller.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"qualifiers": progress})
}

// EarningReferrals counts directs activated inside [start, end]
func (h *Handler) EarningReferrals(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	start, okStart := queryTime(c, "start")
	end, okEnd := queryEndTime(c, "end")
	if !okStart || !okEnd {
		h.badRequest(c, "start and end must be dates")
		return
	}
	count, err := h.svc.Referral.EarningReferralCount(c.Request.Context(), caller.UserID, start, end)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count, "start": start, "end": end})
}

// Leaderboard returns the top partners by realized income
func (h *Handler) Leaderboard(c *gin.Context) {
	limit, ok := queryLimit(c)
	if !ok {
		h.badRequest(c, "invalid limit")
		return
	}
	board, err := h.svc.Leaderboard.Rank(c.Request.Context(), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, board)
}
