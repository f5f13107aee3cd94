package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/gigmarket-backend/internal/http/middleware"
	"github.com/ignatzorin/gigmarket-backend/internal/interface/http/response"
	"github.com/ignatzorin/gigmarket-backend/internal/pkg/apperror"
	"github.com/ignatzorin/gigmarket-backend/internal/service"
)

// currentUserID извлекает userID из контекста.
func currentUserID(c *gin.Context) (uuid.UUID, error) {
	raw, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		return uuid.Nil, apperror.ErrUnauthorized
	}

	userID, ok := raw.(uuid.UUID)
	if !ok {
		return uuid.Nil, apperror.ErrUnauthorized
	}

	return userID, nil
}

// currentUserRole извлекает роль пользователя из контекста.
func currentUserRole(c *gin.Context) string {
	raw, _ := c.Get(middleware.ContextRoleKey)
	role, _ := raw.(string)
	return role
}

func isOperator(c *gin.Context) bool {
	return currentUserRole(c) == service.RoleAdmin
}

// requireUser пишет 401 и возвращает false, если в контексте нет пользователя.
func requireUser(c *gin.Context) (uuid.UUID, bool) {
	userID, err := currentUserID(c)
	if err != nil {
		response.Error(c, err)
		return uuid.Nil, false
	}
	return userID, true
}

// uuidParam разбирает UUID из пути и пишет 400 при ошибке.
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	parsed, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.BadRequest(c, "параметр "+name+" должен быть валидным UUID")
		return uuid.Nil, false
	}
	return parsed, true
}

// bindJSON разбирает тело запроса и пишет 400 при ошибке.
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.Error(c, apperror.Wrap(err, apperror.ErrCodeValidation, "некорректное тело запроса: "+err.Error()))
		return false
	}
	return true
}

// parseIntQuery читает целочисленный query параметр со значением по умолчанию.
func parseIntQuery(c *gin.Context, key string, fallback int) int {
	if v := c.Query(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

// pagination извлекает limit и offset из query параметров.
func pagination(c *gin.Context) (limit, offset int) {
	limit = parseIntQuery(c, "limit", 20)
	offset = parseIntQuery(c, "offset", 0)
	if limit > 100 {
		limit = 100
	}
	if limit < 1 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return
}
