package handler

import (
	"errors"
	"io"
	"net/http"

	"docuchat-go/internal/model"
	"docuchat-go/internal/service"
	"docuchat-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// DocumentHandler 负责处理所有与文档管理相关的 API 请求。
type DocumentHandler struct {
	docService service.DocumentService
}

// NewDocumentHandler 创建一个新的 DocumentHandler 实例。
func NewDocumentHandler(docService service.DocumentService) *DocumentHandler {
	return &DocumentHandler{docService: docService}
}

// Upload 处理文档上传请求。
// 请求为 multipart/form-data：file 字段携带文件，classification 字段可选。
// 准入同步完成，解析与索引由后台流水线异步执行，响应中带回作业 ID。
func (h *DocumentHandler) Upload(c *gin.Context) {
	user, err := currentUser(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法获取用户信息"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求缺少文件字段"})
		return
	}
	if fileHeader.Size > model.MaxUploadSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "文件大小超过单文件上限"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无法读取上传文件"})
		return
	}
	defer file.Close()
	fileBytes, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "读取上传文件失败"})
		return
	}

	classification := c.PostForm("classification")
	mimeType := fileHeader.Header.Get("Content-Type")

	result, err := h.docService.Upload(c.Request.Context(), user, fileBytes, fileHeader.Filename, mimeType, classification)
	if err != nil {
		h.writeUploadError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"code":    http.StatusAccepted,
		"message": "上传受理成功，文档正在处理中",
		"data":    result,
	})
}

// writeUploadError 将准入错误映射为对应的 HTTP 状态码。
func (h *DocumentHandler) writeUploadError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrUnsupportedFormat),
		errors.Is(err, service.ErrInvalidClassification):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrClassificationDenied),
		errors.Is(err, service.ErrQuotaDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrDuplicateUpload):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		log.Error("Upload: failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "文档上传失败"})
	}
}

// List 处理获取当前用户文档列表的请求。
func (h *DocumentHandler) List(c *gin.Context) {
	user, err := currentUser(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法获取用户信息"})
		return
	}

	docs, err := h.docService.List(user)
	if err != nil {
		log.Error("List: failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "获取文档列表失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "获取文档列表成功",
		"data":    docs,
	})
}

// Get 处理获取单个文档详情的请求。
func (h *DocumentHandler) Get(c *gin.Context) {
	user, err := currentUser(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法获取用户信息"})
		return
	}

	doc, err := h.docService.Get(user, c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrDocumentNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "文档不存在"})
		case errors.Is(err, service.ErrAccessDenied):
			c.JSON(http.StatusForbidden, gin.H{"error": "无权访问该文档"})
		default:
			log.Error("Get: failed", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "获取文档失败"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "获取文档成功",
		"data":    doc,
	})
}

// Delete 处理删除文档的请求。
func (h *DocumentHandler) Delete(c *gin.Context) {
	user, err := currentUser(c)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法获取用户信息"})
		return
	}

	if err := h.docService.Delete(c.Request.Context(), user, c.Param("id")); err != nil {
		switch {
		case errors.Is(err, service.ErrDocumentNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "文档不存在"})
		case errors.Is(err, service.ErrAccessDenied):
			c.JSON(http.StatusForbidden, gin.H{"error": "无权删除该文档"})
		default:
			log.Error("Delete: failed", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "删除文档失败"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":    http.StatusOK,
		"message": "文档删除成功",
	})
}
