package handler

import (
	"net/http"

	"docuchat-go/pkg/parser"
	"docuchat-go/pkg/reranker"

	"github.com/gin-gonic/gin"
)

// SystemHandler 负责暴露后端依赖服务的健康状态。
type SystemHandler struct {
	parserClient   *parser.Client
	rerankerClient *reranker.Client
}

// NewSystemHandler 创建一个新的 SystemHandler 实例。
func NewSystemHandler(parserClient *parser.Client, rerankerClient *reranker.Client) *SystemHandler {
	return &SystemHandler{parserClient: parserClient, rerankerClient: rerankerClient}
}

// ParserHealth 返回解析服务的可用性与支持的格式列表。
func (h *SystemHandler) ParserHealth(c *gin.Context) {
	health, err := h.parserClient.CheckHealth(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"code":    http.StatusServiceUnavailable,
			"message": "解析服务不可用",
			"error":   err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "解析服务健康检查完成",
		"data":    health,
	})
}

// RerankerHealth 返回重排服务的可用性。
func (h *SystemHandler) RerankerHealth(c *gin.Context) {
	health, err := h.rerankerClient.CheckHealth(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"code":    http.StatusServiceUnavailable,
			"message": "重排服务不可用",
			"error":   err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "重排服务健康检查完成",
		"data":    health,
	})
}
