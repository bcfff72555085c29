package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestWebhookHandler_MissingFields(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &WebhookHandler{escrow: nil}
	r.POST("/webhooks/payments", handler.HandlePaymentEvent)

	req, _ := http.NewRequest("POST", "/webhooks/payments", strings.NewReader(`{"amount": 100}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookHandler_BadContractID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &WebhookHandler{escrow: nil}
	r.POST("/webhooks/payments", handler.HandlePaymentEvent)

	body := `{"contract_id": "not-a-uuid", "amount": 100, "status": "confirmed"}`
	req, _ := http.NewRequest("POST", "/webhooks/payments", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWebhookHandler_IgnoresUnconfirmedEvent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &WebhookHandler{escrow: nil}
	r.POST("/webhooks/payments", handler.HandlePaymentEvent)

	// Событие со статусом, отличным от confirmed, подтверждается без обработки
	body := `{"contract_id": "` + uuid.New().String() + `", "amount": 100, "status": "pending"}`
	req, _ := http.NewRequest("POST", "/webhooks/payments", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ignored")
}
