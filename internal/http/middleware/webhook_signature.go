package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/laburoapp/laburo-backend/internal/dto"
	"github.com/laburoapp/laburo-backend/internal/pkg/apperror"
)

// SignatureHeader — заголовок с HMAC-подписью тела вебхука.
const SignatureHeader = "X-Webhook-Signature"

// WebhookSignature проверяет HMAC-SHA256 подпись сырого тела запроса.
// Подпись сравнивается за постоянное время; тело после проверки снова
// доступно хэндлеру через c.Request.Body.
func WebhookSignature(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		signature := c.GetHeader(SignatureHeader)
		if signature == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{
				Message: "подпись вебхука отсутствует",
				Error:   string(apperror.ErrCodeUnauthorized),
			})
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, dto.ErrorResponse{
				Message: "не удалось прочитать тело запроса",
				Error:   string(apperror.ErrCodeValidation),
			})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write(body)
		expected := hex.EncodeToString(mac.Sum(nil))

		if !hmac.Equal([]byte(expected), []byte(signature)) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorResponse{
				Message: "подпись вебхука невалидна",
				Error:   string(apperror.ErrCodeUnauthorized),
			})
			return
		}

		c.Next()
	}
}
