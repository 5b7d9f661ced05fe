package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/partnerhub/engine/internal/services/wallet"
	"github.com/shopspring/decimal"
)

// TransferRequest is a peer transfer from the caller
type TransferRequest struct {
	ReceiverCode int64           `json:"receiver_code" binding:"required"`
	Amount       decimal.Decimal `json:"amount"`
	TPIN         string          `json:"tpin"`
}

// Transfer moves funds from the caller to the owner of receiver_code
func (h *Handler) Transfer(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	sender, err := h.svc.Referral.GetUser(c.Request.Context(), caller.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	result, err := h.svc.Wallet.Transfer(c.Request.Context(), wallet.TransferRequest{
		SenderCode:   sender.ReferralCode,
		ReceiverCode: req.ReceiverCode,
		Amount:       req.Amount,
		PIN:          req.TPIN,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// Withdraw files a payout request for the caller
func (h *Handler) Withdraw(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	var in wallet.WithdrawalInput
	if err := c.ShouldBindJSON(&in); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}
	request, err := h.svc.Wallet.RequestWithdrawal(c.Request.Context(), caller.UserID, in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, request)
}

// WalletHistory returns the caller's transfers and payouts
func (h *Handler) WalletHistory(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	limit, ok := queryLimit(c)
	if !ok {
		h.badRequest(c, "invalid limit")
		return
	}
	ctx := c.Request.Context()
	entries, err := h.svc.Wallet.History(ctx, caller.UserID, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	balance, err := h.svc.Wallet.Balance(ctx, caller.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": balance, "entries": entries})
}
