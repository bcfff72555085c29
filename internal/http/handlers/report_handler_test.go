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

func TestReportHandler_PendingPayments_BadDate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &ReportHandler{reports: nil, storage: nil}
	r.GET("/admin/pending-payments", handler.PendingPayments)

	req, _ := http.NewRequest("GET", "/admin/pending-payments?from=garbage", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReportHandler_PendingPaymentDetail_InvalidID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &ReportHandler{reports: nil, storage: nil}
	r.GET("/admin/pending-payments/:contractId", handler.PendingPaymentDetail)

	req, _ := http.NewRequest("GET", "/admin/pending-payments/invalid-uuid", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReportHandler_MarkPaid_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &ReportHandler{reports: nil, storage: nil}
	r.POST("/admin/pending-payments/:contractId/mark-paid", handler.MarkPaid)

	contractID := uuid.New()
	req, _ := http.NewRequest("POST", "/admin/pending-payments/"+contractID.String()+"/mark-paid", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestReportHandler_MarkPaid_BadProofURL_WithAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	adminID := uuid.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", adminID) // Ключ и тип должны совпадать с auth middleware
		c.Next()
	})
	handler := &ReportHandler{reports: nil, storage: nil}
	r.POST("/admin/pending-payments/:contractId/mark-paid", handler.MarkPaid)

	contractID := uuid.New()
	body := `{"proof_url": "ftp://host/proof.pdf"}`
	req, _ := http.NewRequest("POST", "/admin/pending-payments/"+contractID.String()+"/mark-paid", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReportHandler_UploadProof_MissingContractID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &ReportHandler{reports: nil, storage: nil}
	r.POST("/admin/pending-payments/upload-proof", handler.UploadProof)

	req, _ := http.NewRequest("POST", "/admin/pending-payments/upload-proof", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReportHandler_ExportCSV_BadDate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &ReportHandler{reports: nil, storage: nil}
	r.GET("/admin/pending-payments/export/csv", handler.ExportCSV)

	req, _ := http.NewRequest("GET", "/admin/pending-payments/export/csv?to=31-12-2025", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
