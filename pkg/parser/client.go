// Package parser 提供了与外部文档解析服务交互的客户端。
// 实际的提取/OCR 由远端服务完成，客户端只负责格式解析、请求映射与结果还原。
package parser

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"docuchat-go/internal/config"
	"docuchat-go/internal/model"
	"docuchat-go/pkg/log"
)

// ErrUnsupportedFormat 表示文件格式不受支持，属于结构性失败，不允许重试。
var ErrUnsupportedFormat = errors.New("unsupported document format")

// mimeFormats 将 MIME 类型映射到受支持的文档格式。MIME 匹配优先于扩展名匹配。
var mimeFormats = map[string]string{
	"application/pdf": "pdf",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   "docx",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": "pptx",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         "xlsx",
	"text/html":     "html",
	"text/markdown": "md",
	"text/plain":    "txt",
}

// extFormats 将文件扩展名映射到受支持的文档格式。
var extFormats = map[string]string{
	".pdf":      "pdf",
	".docx":     "docx",
	".pptx":     "pptx",
	".xlsx":     "xlsx",
	".html":     "html",
	".htm":      "html",
	".md":       "md",
	".markdown": "md",
	".txt":      "txt",
}

// Options 是一次解析的稀疏配置项。
type Options struct {
	ExtractTables bool   `json:"extractTables"`
	ExtractImages bool   `json:"extractImages"`
	EnableOCR     bool   `json:"enableOCR"`
	MaxPages      int    `json:"maxPages"` // 0 表示不限制
	Language      string `json:"language,omitempty"`
}

// Health 描述解析服务的可用性探测结果。
type Health struct {
	Status           string   `json:"status"` // ok | loading | error
	Parser           string   `json:"parser"`
	Version          string   `json:"version"`
	SupportedFormats []string `json:"supportedFormats"`
	Ready            bool     `json:"ready"`
}

// Availability 是一次可用性查询的带标签结果，调用方必须对其分支处理。
type Availability struct {
	Available bool
	Reason    string
}

// Client 是外部文档解析服务的客户端。客户端本身无状态。
type Client struct {
	serverURL  string
	httpClient *http.Client
}

// NewClient 创建一个新的解析服务客户端实例。
func NewClient(cfg config.ParserConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		serverURL:  strings.TrimRight(cfg.ServerURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ResolveFormat 根据 MIME 类型与文件名解析文档格式。
// MIME 命中优先；两者都无法解析时返回 ErrUnsupportedFormat。
func ResolveFormat(filename, mimeType string) (string, error) {
	if mimeType != "" {
		// 去掉 "text/html; charset=utf-8" 这类参数部分
		mt := strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0])
		if format, ok := mimeFormats[strings.ToLower(mt)]; ok {
			return format, nil
		}
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if format, ok := extFormats[ext]; ok {
		return format, nil
	}
	return "", fmt.Errorf("%w: %s (mime=%q)", ErrUnsupportedFormat, filename, mimeType)
}

// parseRequest 是解析服务的请求体。文件内容以 base64 传输。
type parseRequest struct {
	FileContent string   `json:"fileContent"`
	Filename    string   `json:"filename"`
	MimeType    string   `json:"mimeType,omitempty"`
	Options     *Options `json:"options,omitempty"`
}

// parseResponse 是解析服务的响应体。
type parseResponse struct {
	Success          bool                  `json:"success"`
	Document         *model.ParsedDocument `json:"document,omitempty"`
	Error            string                `json:"error,omitempty"`
	ProcessingTimeMs float64               `json:"processingTimeMs"`
}

// Parse 将文件字节提交给解析服务并还原为 ParsedDocument。
// 格式无法解析时在发起远程调用之前就失败；远端报告整体失败时返回
// Success=false 的文档，由调用方决定是否中止流水线。
func (c *Client) Parse(ctx context.Context, fileBytes []byte, filename, mimeType string, opts Options) (*model.ParsedDocument, error) {
	format, err := ResolveFormat(filename, mimeType)
	if err != nil {
		return nil, err
	}
	log.Infof("[ParserClient] 提交解析请求, filename: %s, format: %s, size: %d 字节", filename, format, len(fileBytes))

	reqBody := parseRequest{
		FileContent: base64.StdEncoding.EncodeToString(fileBytes),
		Filename:    filename,
		MimeType:    mimeType,
		Options:     &opts,
	}
	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("序列化解析请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+"/parse", bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("创建解析请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("调用解析服务失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("解析服务返回错误 [%d]: %s", resp.StatusCode, string(body))
	}

	var parsed parseResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("解析服务响应解码失败: %w", err)
	}

	if !parsed.Success || parsed.Document == nil {
		// 远端整体失败：不保证任何内容块，返回 Success=false 的文档骨架
		log.Warnf("[ParserClient] 解析服务报告失败, filename: %s, error: %s", filename, parsed.Error)
		doc := parsed.Document
		if doc == nil {
			doc = &model.ParsedDocument{
				Metadata: model.ParseMetadata{FileName: filename, Format: format},
			}
		}
		doc.Success = false
		if parsed.Error != "" {
			doc.Warnings = append(doc.Warnings, model.ParsingWarning{
				Code:     "PARSER_FAILED",
				Message:  parsed.Error,
				Severity: model.WarningSeverityError,
			})
		}
		return doc, nil
	}

	log.Infof("[ParserClient] 解析成功, filename: %s, blocks: %d, warnings: %d, 耗时: %.0fms",
		filename, len(parsed.Document.Blocks), len(parsed.Document.Warnings), parsed.ProcessingTimeMs)
	return parsed.Document, nil
}

// CheckHealth 探测解析服务的健康端点。
func (c *Client) CheckHealth(ctx context.Context) (*Health, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.serverURL+"/health", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("探测解析服务失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("解析服务健康检查返回状态码 %d", resp.StatusCode)
	}

	var health Health
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, fmt.Errorf("解析健康检查响应失败: %w", err)
	}
	return &health, nil
}

// Availability 将健康探测归约为带原因的可用性结果。
func (c *Client) Availability(ctx context.Context) Availability {
	health, err := c.CheckHealth(ctx)
	if err != nil {
		return Availability{Available: false, Reason: err.Error()}
	}
	if !health.Ready {
		return Availability{Available: false, Reason: fmt.Sprintf("parser not ready (status=%s)", health.Status)}
	}
	return Availability{Available: true}
}
