package handler

import (
	"errors"
	"net/http"

	"docuchat-go/internal/service"
	"docuchat-go/pkg/log"
	"docuchat-go/pkg/token"

	"github.com/gin-gonic/gin"
)

// AuthHandler 负责处理登录与令牌签发。
type AuthHandler struct {
	userService service.UserService
	jwtManager  *token.JWTManager
}

// NewAuthHandler 创建一个新的 AuthHandler 实例。
func NewAuthHandler(userService service.UserService, jwtManager *token.JWTManager) *AuthHandler {
	return &AuthHandler{userService: userService, jwtManager: jwtManager}
}

// loginRequest 是登录请求的入参。
type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login 处理登录请求，校验通过后签发 access token。
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求参数: " + err.Error()})
		return
	}

	user, err := h.userService.Authenticate(req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBadCredentials):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "用户名或密码错误"})
		case errors.Is(err, service.ErrUserDisabled):
			c.JSON(http.StatusForbidden, gin.H{"error": "用户已被停用"})
		default:
			log.Error("Login: failed", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "登录失败"})
		}
		return
	}

	accessToken, err := h.jwtManager.GenerateToken(user.ID, user.Username, user.Role)
	if err != nil {
		log.Error("Login: generate token failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "令牌签发失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "登录成功",
		"data": gin.H{
			"accessToken": accessToken,
			"user":        user,
		},
	})
}
