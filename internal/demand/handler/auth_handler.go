package handler

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/eduardopventura/demandflow/internal/demand/service"
)

// AuthHandler login endpoints
type AuthHandler struct {
	svc *service.AuthService
}

func NewAuthHandler(svc *service.AuthService) *AuthHandler {
	return &AuthHandler{svc: svc}
}

// Login POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var body struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		BadRequest(c, "invalid request: "+err.Error())
		return
	}
	result, err := h.svc.Login(c.Request.Context(), body.Username, body.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			Unauthorized(c, err.Error())
			return
		}
		HandleError(c, err)
		return
	}
	Success(c, result)
}

// Logout POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	token := bearerToken(c)
	if token == "" {
		Unauthorized(c, "no token to revoke")
		return
	}
	if err := h.svc.Logout(c.Request.Context(), token); err != nil {
		HandleError(c, err)
		return
	}
	Success(c, nil)
}

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}
