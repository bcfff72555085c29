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

// ProfileHandler отвечает за профиль и платёжные реквизиты пользователя.
type ProfileHandler struct {
	profiles *service.ProfileService
}

// NewProfileHandler создаёт новый хэндлер.
func NewProfileHandler(profiles *service.ProfileService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// GetMe обрабатывает GET /profile.
func (h *ProfileHandler) GetMe(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	user, err := h.profiles.GetProfile(c.Request.Context(), userID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}

// UpdateBankDetails обрабатывает PUT /profile/bank-details.
func (h *ProfileHandler) UpdateBankDetails(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req dto.UpdateBankDetailsRequest
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
	if err := validation.ValidateDNI(req.DNI); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	user, err := h.profiles.UpdateBankDetails(c.Request.Context(), userID, models.BankDetails{
		BankName:     req.BankName,
		CBU:          req.CBU,
		AccountAlias: req.AccountAlias,
		DNI:          req.DNI,
		Phone:        req.Phone,
		Address:      req.Address,
	})
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}
