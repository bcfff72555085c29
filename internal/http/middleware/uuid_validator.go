package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/laburoapp/laburo-backend/internal/dto"
	"github.com/laburoapp/laburo-backend/internal/pkg/apperror"
)

// UUIDValidator проверяет, что параметр с указанным именем является валидным UUID.
// Использование: router.GET("/contracts/:id", UUIDValidator("id"), handler.GetContract)
func UUIDValidator(paramName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		idStr := c.Param(paramName)
		if idStr == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, dto.ErrorResponse{
				Message: "параметр " + paramName + " обязателен",
				Error:   string(apperror.ErrCodeValidation),
			})
			return
		}

		_, err := uuid.Parse(idStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, dto.ErrorResponse{
				Message: "параметр " + paramName + " должен быть валидным UUID",
				Error:   string(apperror.ErrCodeValidation),
			})
			return
		}

		c.Next()
	}
}
