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

func TestWithdrawalHandler_RequestWithdrawal_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &WithdrawalHandler{withdrawals: nil}
	r.POST("/balance/withdraw", handler.RequestWithdrawal)

	req, _ := http.NewRequest("POST", "/balance/withdraw", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWithdrawalHandler_RequestWithdrawal_BadCBU_WithAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	userID := uuid.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", userID) // Ключ и тип должны совпадать с auth middleware
		c.Next()
	})
	handler := &WithdrawalHandler{withdrawals: nil}
	r.POST("/balance/withdraw", handler.RequestWithdrawal)

	// CBU короче 22 цифр отбрасывается до обращения к сервису
	body := `{"amount": 1000, "cbu": "123"}`
	req, _ := http.NewRequest("POST", "/balance/withdraw", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWithdrawalHandler_RequestWithdrawal_BadAlias_WithAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	userID := uuid.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", userID)
		c.Next()
	})
	handler := &WithdrawalHandler{withdrawals: nil}
	r.POST("/balance/withdraw", handler.RequestWithdrawal)

	body := `{"amount": 1000, "account_alias": "ab"}`
	req, _ := http.NewRequest("POST", "/balance/withdraw", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWithdrawalHandler_GetWithdrawal_InvalidID_WithAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	userID := uuid.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", userID)
		c.Next()
	})
	handler := &WithdrawalHandler{withdrawals: nil}
	r.GET("/balance/withdrawals/:id", handler.GetWithdrawal)

	req, _ := http.NewRequest("GET", "/balance/withdrawals/invalid-uuid", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWithdrawalHandler_Approve_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &WithdrawalHandler{withdrawals: nil}
	r.POST("/admin/withdrawals/:id/approve", handler.Approve)

	withdrawalID := uuid.New()
	req, _ := http.NewRequest("POST", "/admin/withdrawals/"+withdrawalID.String()+"/approve", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWithdrawalHandler_Reject_InvalidID_WithAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	adminID := uuid.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", adminID)
		c.Next()
	})
	handler := &WithdrawalHandler{withdrawals: nil}
	r.POST("/admin/withdrawals/:id/reject", handler.Reject)

	req, _ := http.NewRequest("POST", "/admin/withdrawals/invalid-uuid/reject", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
