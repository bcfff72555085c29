package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/laburoapp/laburo-backend/internal/dto"
	"github.com/laburoapp/laburo-backend/internal/http/handlers/common"
	"github.com/laburoapp/laburo-backend/internal/repository"
	"github.com/laburoapp/laburo-backend/internal/service"
	"github.com/laburoapp/laburo-backend/internal/validation"
)

// JobHandler обслуживает маршруты заданий и откликов.
type JobHandler struct {
	jobs *service.JobService
}

// NewJobHandler создаёт новый хэндлер.
func NewJobHandler(jobs *service.JobService) *JobHandler {
	return &JobHandler{jobs: jobs}
}

// CreateJob обрабатывает POST /jobs.
func (h *JobHandler) CreateJob(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req dto.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := validation.ValidateJobTitle(req.Title); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}
	if err := validation.ValidateJobDescription(req.Description); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}
	if err := validation.ValidateBudget(req.Budget); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}
	if req.MaxWorkers != 0 {
		if err := validation.ValidateMaxWorkers(req.MaxWorkers); err != nil {
			common.RespondBadRequest(c, err.Error())
			return
		}
	}

	job, err := h.jobs.CreateJob(c.Request.Context(), service.CreateJobInput{
		ClientID:    userID,
		Title:       req.Title,
		Description: req.Description,
		Budget:      req.Budget,
		MaxWorkers:  req.MaxWorkers,
	})
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, job)
}

// ListJobs обрабатывает GET /jobs.
func (h *JobHandler) ListJobs(c *gin.Context) {
	limit, offset := common.GetPagination(c)

	result, err := h.jobs.ListJobs(c.Request.Context(), repository.JobListFilterParams{
		Status:        c.Query("status"),
		Search:        c.Query("search"),
		OnlyAvailable: c.Query("available") == "true",
		SortBy:        c.Query("sort_by"),
		SortOrder:     c.Query("sort_order"),
		Limit:         limit,
		Offset:        offset,
	})
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.PaginatedJobsResponse{
		Jobs:       result.Jobs,
		Pagination: dto.NewPagination(result.Total, result.Limit, result.Offset),
	})
}

// ListMyJobs обрабатывает GET /jobs/my.
func (h *JobHandler) ListMyJobs(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)
	result, err := h.jobs.ListMyJobs(c.Request.Context(), userID, limit, offset)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.PaginatedJobsResponse{
		Jobs:       result.Jobs,
		Pagination: dto.NewPagination(result.Total, result.Limit, result.Offset),
	})
}

// GetJob обрабатывает GET /jobs/:id.
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	job, err := h.jobs.GetJob(c.Request.Context(), jobID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, job)
}

// UpdateJob обрабатывает PUT /jobs/:id.
func (h *JobHandler) UpdateJob(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	jobID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.UpdateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := validation.ValidateJobTitle(req.Title); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}
	if err := validation.ValidateJobDescription(req.Description); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}
	if err := validation.ValidateBudget(req.Budget); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	job, err := h.jobs.UpdateJob(c.Request.Context(), service.UpdateJobInput{
		JobID:       jobID,
		ClientID:    userID,
		Title:       req.Title,
		Description: req.Description,
		Budget:      req.Budget,
	})
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, job)
}

// UpdateJobStatus обрабатывает PUT /jobs/:id/status.
func (h *JobHandler) UpdateJobStatus(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	jobID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.UpdateJobStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	job, err := h.jobs.UpdateJobStatus(c.Request.Context(), jobID, userID, req.Status)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, job)
}

// CancelJob обрабатывает POST /jobs/:id/cancel.
func (h *JobHandler) CancelJob(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	jobID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	job, err := h.jobs.CancelJob(c.Request.Context(), jobID, userID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, job)
}

// SubmitProposal обрабатывает POST /jobs/:id/proposals.
func (h *JobHandler) SubmitProposal(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	jobID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.SubmitProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := validation.ValidateCoverLetter(req.CoverLetter); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	proposal, err := h.jobs.SubmitProposal(c.Request.Context(), service.SubmitProposalInput{
		JobID:         jobID,
		WorkerID:      userID,
		CoverLetter:   req.CoverLetter,
		ProposedPrice: req.ProposedPrice,
	})
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, proposal)
}

// ListProposals обрабатывает GET /jobs/:id/proposals.
func (h *JobHandler) ListProposals(c *gin.Context) {
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

	proposals, err := h.jobs.ListProposals(c.Request.Context(), jobID, userID, role)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"proposals": proposals})
}

// ListMyProposals обрабатывает GET /proposals/my.
func (h *JobHandler) ListMyProposals(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)
	proposals, err := h.jobs.ListMyProposals(c.Request.Context(), userID, limit, offset)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"proposals": proposals})
}

// ApproveProposal обрабатывает POST /proposals/:proposalId/approve.
func (h *JobHandler) ApproveProposal(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	proposalID, err := common.ParseUUIDParam(c, "proposalId")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	proposal, err := h.jobs.ApproveProposal(c.Request.Context(), proposalID, userID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, proposal)
}

// RejectProposal обрабатывает POST /proposals/:proposalId/reject.
func (h *JobHandler) RejectProposal(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	proposalID, err := common.ParseUUIDParam(c, "proposalId")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	proposal, err := h.jobs.RejectProposal(c.Request.Context(), proposalID, userID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, proposal)
}

// WithdrawProposal обрабатывает POST /proposals/:proposalId/withdraw.
func (h *JobHandler) WithdrawProposal(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	proposalID, err := common.ParseUUIDParam(c, "proposalId")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	proposal, err := h.jobs.WithdrawProposal(c.Request.Context(), proposalID, userID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, proposal)
}
