package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/laburoapp/laburo-backend/internal/dto"
	"github.com/laburoapp/laburo-backend/internal/http/handlers/common"
	"github.com/laburoapp/laburo-backend/internal/service"
)

// SeedHandler генерирует тестовые данные. Доступен только в development.
type SeedHandler struct {
	seed *service.SeedService
}

// NewSeedHandler создаёт новый хэндлер.
func NewSeedHandler(seed *service.SeedService) *SeedHandler {
	return &SeedHandler{seed: seed}
}

// Seed обрабатывает POST /seed.
func (h *SeedHandler) Seed(c *gin.Context) {
	var req dto.SeedRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if req.Workers > 100 {
		req.Workers = 100
	}
	if req.Jobs > 500 {
		req.Jobs = 500
	}

	result, err := h.seed.SeedData(c.Request.Context(), req.Workers, req.Jobs)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "тестовые данные созданы",
		"users":     result.Users,
		"jobs":      result.Jobs,
		"proposals": result.Proposals,
		"contracts": result.Contracts,
	})
}
