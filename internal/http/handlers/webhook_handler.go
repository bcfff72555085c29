package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/laburoapp/laburo-backend/internal/dto"
	"github.com/laburoapp/laburo-backend/internal/http/handlers/common"
	"github.com/laburoapp/laburo-backend/internal/service"
)

// Статус события шлюза, после которого средства считаются зачисленными.
const gatewayStatusConfirmed = "confirmed"

// WebhookHandler принимает уведомления платёжного шлюза.
// Подпись запроса проверяет middleware.WebhookSignature.
type WebhookHandler struct {
	escrow *service.EscrowService
}

// NewWebhookHandler создаёт новый хэндлер.
func NewWebhookHandler(escrow *service.EscrowService) *WebhookHandler {
	return &WebhookHandler{escrow: escrow}
}

// HandlePaymentEvent обрабатывает POST /webhooks/payments.
func (h *WebhookHandler) HandlePaymentEvent(c *gin.Context) {
	var req dto.DepositWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	contractID, err := req.ParseContractID()
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	// Неподтверждённые события подтверждаем без обработки, иначе шлюз
	// будет ретраить их бесконечно.
	if req.Status != gatewayStatusConfirmed {
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	payment, err := h.escrow.DepositToEscrow(c.Request.Context(), contractID, req.Amount)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"payment_id": payment.ID,
	})
}
