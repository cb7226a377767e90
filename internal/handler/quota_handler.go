package handler

import (
	"net/http"

	"docuchat-go/internal/service"
	"docuchat-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// QuotaHandler 负责处理所有与存储配额相关的 API 请求。
type QuotaHandler struct {
	quotaService service.QuotaService
}

// NewQuotaHandler 创建一个新的 QuotaHandler 实例。
func NewQuotaHandler(quotaService service.QuotaService) *QuotaHandler {
	return &QuotaHandler{quotaService: quotaService}
}

// Usage 处理获取当前用户配额使用情况的请求。
func (h *QuotaHandler) Usage(c *gin.Context) {
	user, err := currentUser(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法获取用户信息"})
		return
	}

	usage, err := h.quotaService.Usage(user)
	if err != nil {
		log.Error("Usage: failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取配额使用情况失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "获取配额使用情况成功",
		"data":    usage,
	})
}

// validateRequest 是上传预检请求的入参。
type validateRequest struct {
	FileSize int64 `json:"fileSize" binding:"required"`
}

// Validate 处理上传前的配额预检请求。
// 预检通过不做任何预留，正式上传时仍会重新校验。
func (h *QuotaHandler) Validate(c *gin.Context) {
	user, err := currentUser(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法获取用户信息"})
		return
	}

	var req validateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求参数: " + err.Error()})
		return
	}

	result, err := h.quotaService.ValidateUpload(user, req.FileSize)
	if err != nil {
		log.Error("Validate: failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "配额校验失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "配额校验完成",
		"data":    result,
	})
}

// Statistics 处理管理员查看全局配额统计的请求。
func (h *QuotaHandler) Statistics(c *gin.Context) {
	stats, err := h.quotaService.Statistics()
	if err != nil {
		log.Error("Statistics: failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取配额统计失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "获取配额统计成功",
		"data":    stats,
	})
}
