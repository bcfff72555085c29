package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/laburoapp/laburo-backend/internal/dto"
	"github.com/laburoapp/laburo-backend/internal/http/handlers/common"
	"github.com/laburoapp/laburo-backend/internal/service"
	"github.com/laburoapp/laburo-backend/internal/validation"
)

// WithdrawalHandler обслуживает маршруты заявок на вывод средств.
type WithdrawalHandler struct {
	withdrawals *service.WithdrawalService
}

// NewWithdrawalHandler создаёт новый хэндлер.
func NewWithdrawalHandler(withdrawals *service.WithdrawalService) *WithdrawalHandler {
	return &WithdrawalHandler{withdrawals: withdrawals}
}

// RequestWithdrawal обрабатывает POST /balance/withdraw.
func (h *WithdrawalHandler) RequestWithdrawal(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req dto.RequestWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := validation.ValidateCBU(req.CBU); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}
	if err := validation.ValidateAccountAlias(req.AccountAlias); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	withdrawal, err := h.withdrawals.RequestWithdrawal(c.Request.Context(), service.RequestWithdrawalInput{
		UserID:       userID,
		Amount:       req.Amount,
		BankName:     req.BankName,
		CBU:          req.CBU,
		AccountAlias: req.AccountAlias,
	})
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, withdrawal)
}

// GetWithdrawal обрабатывает GET /balance/withdrawals/:id.
func (h *WithdrawalHandler) GetWithdrawal(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	role, _ := common.CurrentUserRole(c)

	withdrawalID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	withdrawal, err := h.withdrawals.GetWithdrawal(c.Request.Context(), withdrawalID, userID, role)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, withdrawal)
}

// ListMyWithdrawals обрабатывает GET /balance/withdrawals.
func (h *WithdrawalHandler) ListMyWithdrawals(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)
	withdrawals, err := h.withdrawals.ListMyWithdrawals(c.Request.Context(), userID, limit, offset)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"withdrawals": withdrawals})
}

// Cancel обрабатывает POST /balance/withdrawals/:id/cancel.
func (h *WithdrawalHandler) Cancel(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	withdrawalID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	withdrawal, err := h.withdrawals.Cancel(c.Request.Context(), withdrawalID, userID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, withdrawal)
}

// ListWithdrawals обрабатывает GET /admin/withdrawals.
func (h *WithdrawalHandler) ListWithdrawals(c *gin.Context) {
	limit, offset := common.GetPagination(c)
	withdrawals, total, err := h.withdrawals.ListWithdrawals(c.Request.Context(), c.Query("status"), limit, offset)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.PaginatedWithdrawalsResponse{
		Withdrawals: withdrawals,
		Pagination:  dto.NewPagination(total, limit, offset),
	})
}

// Approve обрабатывает POST /admin/withdrawals/:id/approve.
func (h *WithdrawalHandler) Approve(c *gin.Context) {
	adminID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	withdrawalID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	withdrawal, err := h.withdrawals.Approve(c.Request.Context(), withdrawalID, adminID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, withdrawal)
}

// MarkProcessing обрабатывает POST /admin/withdrawals/:id/process.
func (h *WithdrawalHandler) MarkProcessing(c *gin.Context) {
	adminID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	withdrawalID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	withdrawal, err := h.withdrawals.MarkProcessing(c.Request.Context(), withdrawalID, adminID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, withdrawal)
}

// Complete обрабатывает POST /admin/withdrawals/:id/complete.
func (h *WithdrawalHandler) Complete(c *gin.Context) {
	adminID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	withdrawalID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	withdrawal, err := h.withdrawals.Complete(c.Request.Context(), withdrawalID, adminID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, withdrawal)
}

// Reject обрабатывает POST /admin/withdrawals/:id/reject.
func (h *WithdrawalHandler) Reject(c *gin.Context) {
	adminID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	withdrawalID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.RejectWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	withdrawal, err := h.withdrawals.Reject(c.Request.Context(), withdrawalID, adminID, req.Reason)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, withdrawal)
}
