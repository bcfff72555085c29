package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/laburoapp/laburo-backend/internal/dto"
	"github.com/laburoapp/laburo-backend/internal/http/handlers/common"
	"github.com/laburoapp/laburo-backend/internal/pkg/apperror"
	"github.com/laburoapp/laburo-backend/internal/service"
	"github.com/laburoapp/laburo-backend/internal/validation"
)

// ContractHandler обслуживает маршруты контрактов.
type ContractHandler struct {
	contracts *service.ContractService
	escrow    *service.EscrowService
}

// NewContractHandler создаёт новый хэндлер.
func NewContractHandler(contracts *service.ContractService, escrow *service.EscrowService) *ContractHandler {
	return &ContractHandler{contracts: contracts, escrow: escrow}
}

// CreateContract обрабатывает POST /contracts.
func (h *ContractHandler) CreateContract(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req dto.CreateContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	proposalID, err := req.ParseProposalID()
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}
	endDate, err := req.ParseEndDate()
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}
	if req.Price != nil {
		if err := validation.ValidateBudget(*req.Price); err != nil {
			common.RespondBadRequest(c, err.Error())
			return
		}
	}

	contract, err := h.contracts.CreateContract(c.Request.Context(), service.CreateContractInput{
		ProposalID:    proposalID,
		ClientID:      userID,
		ProposedPrice: req.Price,
		EndDate:       endDate,
	})
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, contract)
}

// GetContract обрабатывает GET /contracts/:id.
func (h *ContractHandler) GetContract(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	role, _ := common.CurrentUserRole(c)

	contractID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	contract, err := h.contracts.GetContract(c.Request.Context(), contractID, userID, role)
	if err != nil {
		common.Fail(c, err)
		return
	}

	// Платёж появляется только после поступления средств в эскроу.
	payment, err := h.escrow.GetContractPayment(c.Request.Context(), contract.ID)
	if err != nil {
		if !apperror.IsNotFound(err) {
			common.Fail(c, err)
			return
		}
		payment = nil
	}

	c.JSON(http.StatusOK, dto.ContractDetailResponse{
		Contract: contract,
		Payment:  payment,
	})
}

// ListMyContracts обрабатывает GET /contracts/my.
func (h *ContractHandler) ListMyContracts(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)
	contracts, total, err := h.contracts.ListMyContracts(c.Request.Context(), userID, limit, offset)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.PaginatedContractsResponse{
		Contracts:  contracts,
		Pagination: dto.NewPagination(total, limit, offset),
	})
}

// ListJobContracts обрабатывает GET /jobs/:id/contracts.
func (h *ContractHandler) ListJobContracts(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	role, _ := common.CurrentUserRole(c)

	jobID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	contracts, err := h.contracts.ListJobContracts(c.Request.Context(), jobID, userID, role)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"contracts": contracts})
}

// Accept обрабатывает POST /contracts/:id/accept.
func (h *ContractHandler) Accept(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	contractID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	contract, err := h.contracts.Accept(c.Request.Context(), contractID, userID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, contract)
}

// RequestCompletion обрабатывает POST /contracts/:id/request-completion.
func (h *ContractHandler) RequestCompletion(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	contractID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	contract, err := h.contracts.RequestCompletion(c.Request.Context(), contractID, userID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, contract)
}

// ConfirmCompletion обрабатывает POST /contracts/:id/confirm.
func (h *ContractHandler) ConfirmCompletion(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	contractID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	contract, completed, err := h.contracts.ConfirmCompletion(c.Request.Context(), contractID, userID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"contract":  contract,
		"completed": completed,
	})
}

// RequestExtension обрабатывает POST /contracts/:id/request-extension.
func (h *ContractHandler) RequestExtension(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	contractID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.ExtendContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	contract, err := h.contracts.RequestExtension(c.Request.Context(), contractID, userID, req.Days, req.AdditionalAmount)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, contract)
}

// ApproveExtension обрабатывает POST /contracts/:id/approve-extension.
func (h *ContractHandler) ApproveExtension(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	contractID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	contract, err := h.contracts.ApproveExtension(c.Request.Context(), contractID, userID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, contract)
}

// RejectExtension обрабатывает POST /contracts/:id/reject-extension.
func (h *ContractHandler) RejectExtension(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	contractID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	contract, err := h.contracts.RejectExtension(c.Request.Context(), contractID, userID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, contract)
}

// ModifyPrice обрабатывает PUT /contracts/:id/modify-price.
func (h *ContractHandler) ModifyPrice(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	contractID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.ModifyPriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := validation.ValidateBudget(req.NewPrice); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}
	if err := validation.ValidateReason("причина", req.Reason); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	contract, err := h.contracts.ModifyPrice(c.Request.Context(), contractID, userID, req.NewPrice, req.Reason)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, contract)
}

// Cancel обрабатывает POST /contracts/:id/cancel.
func (h *ContractHandler) Cancel(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	role, _ := common.CurrentUserRole(c)

	contractID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	// Тело не обязательно: отмена без причины допустима.
	var req dto.CancelContractRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		common.RespondBadRequest(c, err.Error())
		return
	}

	contract, err := h.contracts.Cancel(c.Request.Context(), contractID, userID, role, req.Reason)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, contract)
}

// ListEvents обрабатывает GET /contracts/:id/events.
func (h *ContractHandler) ListEvents(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	role, _ := common.CurrentUserRole(c)

	contractID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	events, err := h.contracts.ListEvents(c.Request.Context(), contractID, userID, role)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"events": events})
}

// GetContractPayment обрабатывает GET /contracts/:id/payment.
func (h *ContractHandler) GetContractPayment(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	role, _ := common.CurrentUserRole(c)

	contractID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	payment, err := h.escrow.GetContractPaymentFor(c.Request.Context(), contractID, userID, role)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, payment)
}
