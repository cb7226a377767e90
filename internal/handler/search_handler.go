package handler

import (
	"errors"
	"net/http"

	"docuchat-go/internal/service"
	"docuchat-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// SearchHandler 负责处理混合检索相关的 API 请求。
type SearchHandler struct {
	searchService service.SearchService
}

// NewSearchHandler 创建一个新的 SearchHandler 实例。
func NewSearchHandler(searchService service.SearchService) *SearchHandler {
	return &SearchHandler{searchService: searchService}
}

// searchRequest 是检索接口的入参。指针字段缺省时使用服务端默认值。
type searchRequest struct {
	Query      string   `json:"query" binding:"required"`
	Limit      int      `json:"limit"`
	Threshold  *float64 `json:"threshold"`
	Alpha      *float64 `json:"alpha"`
	Rerank     bool     `json:"rerank"`
	RerankTopK int      `json:"rerankTopK"`
}

// Search 处理混合检索请求。
func (h *SearchHandler) Search(c *gin.Context) {
	user, err := currentUser(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法获取用户信息"})
		return
	}

	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求参数: " + err.Error()})
		return
	}
	if req.Alpha != nil && (*req.Alpha < 0 || *req.Alpha > 1) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "alpha 必须位于 [0,1] 区间"})
		return
	}

	resp, err := h.searchService.HybridSearch(c.Request.Context(), user, service.SearchRequest{
		Query:      req.Query,
		Limit:      req.Limit,
		Threshold:  req.Threshold,
		Alpha:      req.Alpha,
		Rerank:     req.Rerank,
		RerankTopK: req.RerankTopK,
	})
	if err != nil {
		if errors.Is(err, service.ErrEmptyQuery) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "查询文本不能为空"})
			return
		}
		log.Error("Search: failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "检索失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "检索成功",
		"data":    resp,
	})
}
