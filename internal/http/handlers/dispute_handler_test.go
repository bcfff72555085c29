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

func TestDisputeHandler_OpenDispute_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &DisputeHandler{disputes: nil, storage: nil}
	r.POST("/contracts/:id/dispute", handler.OpenDispute)

	contractID := uuid.New()
	req, _ := http.NewRequest("POST", "/contracts/"+contractID.String()+"/dispute", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDisputeHandler_OpenDispute_InvalidContractID_WithAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	userID := uuid.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", userID) // Ключ и тип должны совпадать с auth middleware
		c.Next()
	})
	handler := &DisputeHandler{disputes: nil, storage: nil}
	r.POST("/contracts/:id/dispute", handler.OpenDispute)

	req, _ := http.NewRequest("POST", "/contracts/invalid-uuid/dispute", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDisputeHandler_OpenDispute_BadEvidenceURL_WithAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	userID := uuid.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", userID)
		c.Next()
	})
	handler := &DisputeHandler{disputes: nil, storage: nil}
	r.POST("/contracts/:id/dispute", handler.OpenDispute)

	contractID := uuid.New()
	body := `{"category": "quality", "reason": "работа не сдана в срок", "evidence": ["ftp://example.com/file"]}`
	req, _ := http.NewRequest("POST", "/contracts/"+contractID.String()+"/dispute", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDisputeHandler_PostMessage_MissingMessage_WithAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	userID := uuid.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", userID)
		c.Next()
	})
	handler := &DisputeHandler{disputes: nil, storage: nil}
	r.POST("/disputes/:id/messages", handler.PostMessage)

	disputeID := uuid.New()
	req, _ := http.NewRequest("POST", "/disputes/"+disputeID.String()+"/messages", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDisputeHandler_UploadEvidence_NoFile_WithAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	userID := uuid.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", userID)
		c.Next()
	})
	handler := &DisputeHandler{disputes: nil, storage: nil}
	r.POST("/disputes/:id/evidence", handler.UploadEvidence)

	disputeID := uuid.New()
	req, _ := http.NewRequest("POST", "/disputes/"+disputeID.String()+"/evidence", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDisputeHandler_SetInReview_InvalidID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &DisputeHandler{disputes: nil, storage: nil}
	r.POST("/admin/disputes/:id/review", handler.SetInReview)

	req, _ := http.NewRequest("POST", "/admin/disputes/invalid-uuid/review", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDisputeHandler_ResolveDispute_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &DisputeHandler{disputes: nil, storage: nil}
	r.POST("/admin/disputes/:id/resolve", handler.ResolveDispute)

	disputeID := uuid.New()
	req, _ := http.NewRequest("POST", "/admin/disputes/"+disputeID.String()+"/resolve", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
