// Package reranker 提供了与外部重排服务交互的客户端。
// 重排是检索之上的可选精排阶段；服务不可用时调用方必须回退到
// 混合检索自身的排序，而不是让整个查询失败。
package reranker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"docuchat-go/internal/config"
	"docuchat-go/pkg/log"
)

// Result 是重排后的一条结果，Index 指向输入候选集中的原始下标。
type Result struct {
	Index    int     `json:"index"`
	Score    float64 `json:"score"`
	Document string  `json:"document"`
}

// Health 描述重排服务的健康探测结果。
type Health struct {
	Status string `json:"status"` // ok | loading | error
	Model  string `json:"model"`
	Ready  bool   `json:"ready"`
}

// Availability 是一次可用性查询的带标签结果。
type Availability struct {
	Available bool
	Reason    string
}

// Client 是外部重排服务的客户端。
type Client struct {
	serverURL  string
	httpClient *http.Client
}

// NewClient 创建一个新的重排服务客户端实例。
func NewClient(cfg config.RerankerConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		serverURL:  strings.TrimRight(cfg.ServerURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopK      int      `json:"top_k,omitempty"`
}

type rerankResponse struct {
	Results          []Result `json:"results"`
	ProcessingTimeMs float64  `json:"processing_time_ms"`
	Model            string   `json:"model"`
}

// Rerank 对候选文本按查询相关性重新打分并降序返回前 topK 条。
// 返回结果只会引用输入候选集中已有的条目。
func (c *Client) Rerank(ctx context.Context, query string, documents []string, topK int) ([]Result, error) {
	if len(documents) == 0 {
		return []Result{}, nil
	}

	reqBytes, err := json.Marshal(rerankRequest{Query: query, Documents: documents, TopK: topK})
	if err != nil {
		return nil, fmt.Errorf("序列化重排请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+"/rerank", bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("创建重排请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("调用重排服务失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("重排服务返回状态码 %d", resp.StatusCode)
	}

	var rr rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return nil, fmt.Errorf("解析重排响应失败: %w", err)
	}

	log.Infof("[RerankerClient] 重排完成, candidates: %d, returned: %d, model: %s, 耗时: %.0fms",
		len(documents), len(rr.Results), rr.Model, rr.ProcessingTimeMs)
	return rr.Results, nil
}

// CheckHealth 探测重排服务的健康端点。
func (c *Client) CheckHealth(ctx context.Context) (*Health, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.serverURL+"/health", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("探测重排服务失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("重排服务健康检查返回状态码 %d", resp.StatusCode)
	}

	var health Health
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return nil, fmt.Errorf("解析重排健康检查响应失败: %w", err)
	}
	return &health, nil
}

// Availability 将健康探测归约为带原因的可用性结果，调用方据此分支。
func (c *Client) Availability(ctx context.Context) Availability {
	health, err := c.CheckHealth(ctx)
	if err != nil {
		return Availability{Available: false, Reason: err.Error()}
	}
	if !health.Ready {
		return Availability{Available: false, Reason: fmt.Sprintf("reranker not ready (status=%s)", health.Status)}
	}
	return Availability{Available: true}
}
