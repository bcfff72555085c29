package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/laburoapp/laburo-backend/internal/dto"
	"github.com/laburoapp/laburo-backend/internal/http/handlers/common"
	"github.com/laburoapp/laburo-backend/internal/service"
	"github.com/laburoapp/laburo-backend/internal/storage"
	"github.com/laburoapp/laburo-backend/internal/validation"
)

// DisputeHandler обслуживает маршруты споров и арбитража.
type DisputeHandler struct {
	disputes *service.DisputeService
	storage  *storage.ProofStorage
}

// NewDisputeHandler создаёт новый хэндлер.
func NewDisputeHandler(disputes *service.DisputeService, storage *storage.ProofStorage) *DisputeHandler {
	return &DisputeHandler{disputes: disputes, storage: storage}
}

// OpenDispute обрабатывает POST /contracts/:id/dispute.
func (h *DisputeHandler) OpenDispute(c *gin.Context) {
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

	var req dto.OpenDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := validation.ValidateReason("причина спора", req.Reason); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}
	if err := validation.ValidateEvidence(req.Evidence); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	dispute, err := h.disputes.OpenDispute(c.Request.Context(), service.OpenDisputeInput{
		ContractID:          contractID,
		InitiatorID:         userID,
		Category:            req.Category,
		Reason:              req.Reason,
		DetailedDescription: req.DetailedDescription,
		Evidence:            req.Evidence,
	})
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, dispute)
}

// GetDispute обрабатывает GET /disputes/:id.
func (h *DisputeHandler) GetDispute(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	role, _ := common.CurrentUserRole(c)

	disputeID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	dispute, err := h.disputes.GetDispute(c.Request.Context(), disputeID, userID, role)
	if err != nil {
		common.Fail(c, err)
		return
	}

	messages, err := h.disputes.ListMessages(c.Request.Context(), disputeID, userID, role)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.DisputeDetailResponse{
		Dispute:  dispute,
		Messages: messages,
	})
}

// GetContractDispute обрабатывает GET /contracts/:id/dispute.
func (h *DisputeHandler) GetContractDispute(c *gin.Context) {
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

	dispute, err := h.disputes.GetContractDispute(c.Request.Context(), contractID, userID, role)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, dispute)
}

// ListMyDisputes обрабатывает GET /disputes/my.
func (h *DisputeHandler) ListMyDisputes(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)
	disputes, err := h.disputes.ListMyDisputes(c.Request.Context(), userID, limit, offset)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"disputes": disputes})
}

// ListDisputes обрабатывает GET /admin/disputes.
func (h *DisputeHandler) ListDisputes(c *gin.Context) {
	limit, offset := common.GetPagination(c)
	disputes, total, err := h.disputes.ListDisputes(c.Request.Context(), c.Query("status"), limit, offset)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.PaginatedDisputesResponse{
		Disputes:   disputes,
		Pagination: dto.NewPagination(total, limit, offset),
	})
}

// PostMessage обрабатывает POST /disputes/:id/messages.
func (h *DisputeHandler) PostMessage(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	role, _ := common.CurrentUserRole(c)

	disputeID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.DisputeMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}
	if err := validation.ValidateNonEmpty("сообщение", req.Message); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}
	if err := validation.ValidateEvidence(req.Attachments); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	message, err := h.disputes.PostMessage(c.Request.Context(), service.PostMessageInput{
		DisputeID:   disputeID,
		SenderID:    userID,
		Role:        role,
		Message:     req.Message,
		Attachments: req.Attachments,
	})
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, message)
}

// ListMessages обрабатывает GET /disputes/:id/messages.
func (h *DisputeHandler) ListMessages(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	role, _ := common.CurrentUserRole(c)

	disputeID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	messages, err := h.disputes.ListMessages(c.Request.Context(), disputeID, userID, role)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

// UploadEvidence обрабатывает POST /disputes/:id/evidence.
// Multipart-форма с полем file: файл сохраняется в хранилище, его URL
// добавляется к доказательствам спора.
func (h *DisputeHandler) UploadEvidence(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	role, _ := common.CurrentUserRole(c)

	disputeID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		common.RespondBadRequest(c, "поле file обязательно")
		return
	}

	contentType, data, err := readDocumentUpload(file)
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	url, err := h.storage.SaveEvidence(c.Request.Context(), disputeID, file.Filename, contentType, data)
	if err != nil {
		common.Fail(c, err)
		return
	}

	dispute, err := h.disputes.AppendEvidence(c.Request.Context(), disputeID, userID, role, []string{url})
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, dispute)
}

// SetInReview обрабатывает POST /admin/disputes/:id/review.
func (h *DisputeHandler) SetInReview(c *gin.Context) {
	disputeID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	dispute, err := h.disputes.SetInReview(c.Request.Context(), disputeID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, dispute)
}

// RequestInfo обрабатывает POST /admin/disputes/:id/request-info.
func (h *DisputeHandler) RequestInfo(c *gin.Context) {
	disputeID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	dispute, err := h.disputes.RequestInfo(c.Request.Context(), disputeID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, dispute)
}

// ResolveDispute обрабатывает POST /admin/disputes/:id/resolve.
func (h *DisputeHandler) ResolveDispute(c *gin.Context) {
	adminID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	disputeID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.ResolveDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}
	if err := validation.ValidateReason("резолюция", req.Resolution); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	result, err := h.disputes.ResolveDispute(c.Request.Context(), service.ResolveDisputeInput{
		DisputeID:   disputeID,
		AdminID:     adminID,
		Outcome:     req.Outcome,
		Resolution:  req.Resolution,
		WorkerRatio: req.WorkerRatio,
	})
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
