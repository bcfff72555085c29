package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/laburoapp/laburo-backend/internal/dto"
	"github.com/laburoapp/laburo-backend/internal/http/handlers/common"
	"github.com/laburoapp/laburo-backend/internal/models"
	"github.com/laburoapp/laburo-backend/internal/service"
	"github.com/laburoapp/laburo-backend/internal/validation"
)

// PaymentHandler обслуживает маршруты баланса и эскроу-платежей.
type PaymentHandler struct {
	escrow *service.EscrowService
}

// NewPaymentHandler создаёт новый хэндлер.
func NewPaymentHandler(escrow *service.EscrowService) *PaymentHandler {
	return &PaymentHandler{escrow: escrow}
}

// GetBalance обрабатывает GET /balance.
func (h *PaymentHandler) GetBalance(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	summary, err := h.escrow.GetBalance(c.Request.Context(), userID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.BalanceResponse{
		Balance:            summary.Balance,
		PendingWithdrawals: summary.PendingWithdrawals,
		Available:          models.Round2(summary.Balance - summary.PendingWithdrawals),
	})
}

// ListTransactions обрабатывает GET /balance/transactions.
func (h *PaymentHandler) ListTransactions(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)
	transactions, total, err := h.escrow.ListBalanceTransactions(c.Request.Context(), userID, limit, offset)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.PaginatedTransactionsResponse{
		Transactions: transactions,
		Pagination:   dto.NewPagination(total, limit, offset),
	})
}

// GetPayment обрабатывает GET /admin/payments/:id.
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	paymentID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	payment, err := h.escrow.GetPayment(c.Request.Context(), paymentID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, payment)
}

// VerifyForPayout обрабатывает POST /admin/payments/:id/verify.
func (h *PaymentHandler) VerifyForPayout(c *gin.Context) {
	adminID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	paymentID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	payment, err := h.escrow.VerifyForPayout(c.Request.Context(), paymentID, adminID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, payment)
}

// ListProofs обрабатывает GET /admin/payments/:id/proofs.
func (h *PaymentHandler) ListProofs(c *gin.Context) {
	paymentID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	proofs, err := h.escrow.ListProofs(c.Request.Context(), paymentID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"proofs": proofs})
}

// Refund обрабатывает POST /admin/contracts/:id/refund.
func (h *PaymentHandler) Refund(c *gin.Context) {
	contractID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}
	if err := validation.ValidateReason("причина", req.Reason); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	payment, err := h.escrow.Refund(c.Request.Context(), contractID, req.Reason, true)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, payment)
}

// AdjustBalance обрабатывает POST /admin/balance/adjust.
func (h *PaymentHandler) AdjustBalance(c *gin.Context) {
	adminID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req dto.AdjustBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	targetID, err := req.ParseUserID()
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}
	if err := validation.ValidateReason("причина", req.Reason); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	transaction, err := h.escrow.AdjustBalance(c.Request.Context(), service.AdjustBalanceInput{
		UserID:  targetID,
		Amount:  req.Amount,
		Type:    req.Type,
		Reason:  req.Reason,
		AdminID: adminID,
	})
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, transaction)
}
