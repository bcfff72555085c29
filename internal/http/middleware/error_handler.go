package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/laburoapp/laburo-backend/internal/dto"
	"github.com/laburoapp/laburo-backend/internal/logger"
	"github.com/laburoapp/laburo-backend/internal/pkg/apperror"
)

// ErrorHandler обрабатывает ошибки централизованно. Хэндлеры складывают
// ошибки сервисов в c.Error; сюда они приходят как *apperror.AppError
// с кодом и HTTP-статусом. Всё остальное маскируется как внутренняя
// ошибка, детали остаются только в логе.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Проверяем, не был ли уже отправлен ответ
		if c.Writer.Written() {
			return
		}

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err

		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			logAppError(c, appErr)
			c.JSON(appErr.HTTPStatus, dto.ErrorResponse{
				Message: appErr.Message,
				Error:   string(appErr.Code),
			})
			return
		}

		if logger.Log != nil {
			logger.Log.WithFields(logrus.Fields{
				"error":  err.Error(),
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
			}).Error("Request error")
		}

		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Message: "внутренняя ошибка сервера",
			Error:   string(apperror.ErrCodeInternal),
		})
	}
}

// logAppError пишет доменные ошибки: клиентские на warn, серверные на error.
func logAppError(c *gin.Context, appErr *apperror.AppError) {
	if logger.Log == nil {
		return
	}

	entry := logger.Log.WithFields(logrus.Fields{
		"code":   string(appErr.Code),
		"error":  appErr.Error(),
		"path":   c.Request.URL.Path,
		"method": c.Request.Method,
	})

	if appErr.HTTPStatus >= http.StatusInternalServerError {
		entry.Error("Request error")
		return
	}
	entry.Warn("Request rejected")
}
