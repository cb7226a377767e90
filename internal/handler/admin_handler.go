package handler

import (
	"errors"
	"net/http"
	"strconv"

	"docuchat-go/internal/service"
	"docuchat-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// AdminHandler 负责处理管理员专属的用户管理请求。
type AdminHandler struct {
	userService service.UserService
}

// NewAdminHandler 创建一个新的 AdminHandler 实例。
func NewAdminHandler(userService service.UserService) *AdminHandler {
	return &AdminHandler{userService: userService}
}

// createUserRequest 是管理员开户请求的入参。
type createUserRequest struct {
	Username   string `json:"username" binding:"required"`
	Password   string `json:"password" binding:"required"`
	Role       string `json:"role" binding:"required"`
	Department string `json:"department"`
}

// CreateUser 处理管理员创建用户的请求。
func (h *AdminHandler) CreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求参数: " + err.Error()})
		return
	}

	user, err := h.userService.CreateUser(req.Username, req.Password, req.Role, req.Department)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserExists):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrInvalidRole),
			errors.Is(err, service.ErrWeakPassword),
			errors.Is(err, service.ErrEmptyUsername):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			log.Error("CreateUser: failed", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "创建用户失败"})
		}
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"code":    http.StatusCreated,
		"message": "用户创建成功",
		"data":    user,
	})
}

// ListUsers 处理管理员查看激活用户列表的请求。
func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.userService.ListActive()
	if err != nil {
		log.Error("ListUsers: failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取用户列表失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "获取用户列表成功",
		"data":    users,
	})
}

// setActiveRequest 是启用/停用用户请求的入参。
type setActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// SetActive 处理管理员启用或停用用户的请求。
func (h *AdminHandler) SetActive(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的用户 ID"})
		return
	}

	var req setActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求参数: " + err.Error()})
		return
	}

	if err := h.userService.SetActive(uint(userID), *req.Active); err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "用户不存在"})
			return
		}
		log.Error("SetActive: failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "更新用户状态失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "用户状态更新成功",
	})
}
