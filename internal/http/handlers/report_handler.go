package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/laburoapp/laburo-backend/internal/dto"
	"github.com/laburoapp/laburo-backend/internal/http/handlers/common"
	"github.com/laburoapp/laburo-backend/internal/service"
	"github.com/laburoapp/laburo-backend/internal/storage"
	"github.com/laburoapp/laburo-backend/internal/validation"
)

// ReportHandler — админская консоль сверки выплат: очередь платежей,
// загрузка подтверждений, отметка о выплате и CSV-выгрузка.
type ReportHandler struct {
	reports *service.ReportService
	storage *storage.ProofStorage
}

// NewReportHandler создаёт новый хэндлер.
func NewReportHandler(reports *service.ReportService, storage *storage.ProofStorage) *ReportHandler {
	return &ReportHandler{reports: reports, storage: storage}
}

// PendingPayments обрабатывает GET /admin/pending-payments.
func (h *ReportHandler) PendingPayments(c *gin.Context) {
	query, err := reportQueryFromContext(c)
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	report, err := h.reports.PendingPayments(c.Request.Context(), query)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// PendingPaymentDetail обрабатывает GET /admin/pending-payments/:contractId.
func (h *ReportHandler) PendingPaymentDetail(c *gin.Context) {
	contractID, err := common.ParseUUIDParam(c, "contractId")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	row, err := h.reports.PendingPaymentDetail(c.Request.Context(), contractID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, row)
}

// UploadProof обрабатывает POST /admin/pending-payments/upload-proof.
// Multipart-форма: file и contract_id. Возвращает URL загруженного файла,
// который затем передаётся в mark-paid.
func (h *ReportHandler) UploadProof(c *gin.Context) {
	contractID, err := common.ParseUUIDForm(c, "contract_id")
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

	url, err := h.storage.Save(c.Request.Context(), contractID, file.Filename, contentType, data)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"url": url})
}

// MarkPaid обрабатывает POST /admin/pending-payments/:contractId/mark-paid.
func (h *ReportHandler) MarkPaid(c *gin.Context) {
	adminID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	contractID, err := common.ParseUUIDParam(c, "contractId")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.MarkPaidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}
	if err := validation.ValidateURL("proof_url", req.ProofURL); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	result, err := h.reports.MarkPaid(c.Request.Context(), service.RecordPayoutInput{
		ContractID: contractID,
		ProofURL:   req.ProofURL,
		Deductions: req.Deductions,
		AdminNotes: req.AdminNotes,
		AdminID:    adminID,
	})
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// FixStatus обрабатывает POST /admin/pending-payments/:contractId/fix-status.
func (h *ReportHandler) FixStatus(c *gin.Context) {
	adminID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	contractID, err := common.ParseUUIDParam(c, "contractId")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	changed, err := h.reports.FixStatus(c.Request.Context(), contractID, adminID)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"changed": changed})
}

// ExportCSV обрабатывает GET /admin/pending-payments/export/csv.
func (h *ReportHandler) ExportCSV(c *gin.Context) {
	query, err := reportQueryFromContext(c)
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	data, filename, err := h.reports.ExportCSV(c.Request.Context(), query)
	if err != nil {
		common.Fail(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", data)
}

// reportQueryFromContext читает параметры отчёта из query-строки.
func reportQueryFromContext(c *gin.Context) (service.ReportQuery, error) {
	from, err := parseReportTime(c.Query("from"))
	if err != nil {
		return service.ReportQuery{}, err
	}
	to, err := parseReportTime(c.Query("to"))
	if err != nil {
		return service.ReportQuery{}, err
	}

	return service.ReportQuery{
		Period:    c.Query("period"),
		From:      from,
		To:        to,
		SortBy:    c.Query("sortBy"),
		SortOrder: c.Query("sortOrder"),
	}, nil
}

// parseReportTime принимает RFC3339 или дату без времени.
func parseReportTime(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, fmt.Errorf("неверный формат даты %q, ожидается RFC3339 или YYYY-MM-DD", value)
	}
	return &t, nil
}
