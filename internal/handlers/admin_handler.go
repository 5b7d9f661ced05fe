package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/partnerhub/engine/internal/models"
	"github.com/partnerhub/engine/internal/services/commission"
	"github.com/partnerhub/engine/internal/services/tour"
)

// Deposit credits a partner's wallet
func (h *Handler) Deposit(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	var in commission.DepositInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}
	result, err := h.svc.Commission.AdminDeposit(c.Request.Context(), caller, in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// ActivatePartner activates a partner without charging the activation cost
func (h *Handler) ActivatePartner(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	result, err := h.svc.Activation.AdminActivate(c.Request.Context(), caller, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListWithdrawals lists payout requests, optionally filtered by ?status
func (h *Handler) ListWithdrawals(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	limit, ok := queryLimit(c)
	if !ok {
		h.badRequest(c, "invalid limit")
		return
	}
	requests, err := h.svc.Wallet.ListWithdrawals(c.Request.Context(), caller, models.WithdrawalStatus(c.Query("status")), limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"withdrawals": requests})
}

// ApproveWithdrawal marks a pending payout as paid
func (h *Handler) ApproveWithdrawal(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	request, err := h.svc.Wallet.ApproveWithdrawal(c.Request.Context(), caller, id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, request)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

// RejectWithdrawal refuses a pending payout and refunds the reservation
func (h *Handler) RejectWithdrawal(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req rejectRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.badRequest(c, "invalid request body")
			return
		}
	}
	request, err := h.svc.Wallet.RejectWithdrawal(c.Request.Context(), caller, id, req.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, request)
}

// CreateTour defines a new tour qualifier
func (h *Handler) CreateTour(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	var in tour.QualifierInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}
	qualifier, err := h.svc.Tour.CreateQualifier(c.Request.Context(), caller, in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, qualifier)
}
