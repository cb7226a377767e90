package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"docuchat-go/internal/config"
	"docuchat-go/internal/model"
	"docuchat-go/pkg/es"
	"docuchat-go/pkg/reranker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSearchFixture(rerankerURL string, docs map[string]*model.Document) *searchService {
	cfg := &config.Config{
		Reranker:  config.RerankerConfig{ServerURL: rerankerURL, TimeoutSeconds: 5},
		Retrieval: config.RetrievalConfig{DefaultLimit: 10, DefaultAlpha: 0.6, CandidateWindow: 50},
	}
	return NewSearchService(nil, reranker.NewClient(cfg.Reranker), &fakeDocRepo{docs: docs}, cfg).(*searchService)
}

func TestAccessFilter(t *testing.T) {
	svc := newSearchFixture("http://127.0.0.1:1", nil)

	t.Run("admin is unrestricted", func(t *testing.T) {
		admin := &model.User{ID: 1, Role: model.RoleAdmin}
		assert.Nil(t, svc.accessFilter(admin))
	})

	t.Run("employee sees own plus public and internal", func(t *testing.T) {
		employee := &model.User{ID: 7, Role: model.RoleEmployee}
		filter := svc.accessFilter(employee)
		require.NotNil(t, filter)

		boolClause := filter["bool"].(map[string]interface{})
		should := boolClause["should"].([]map[string]interface{})
		require.Len(t, should, 2)
		assert.Equal(t, uint(7), should[0]["term"].(map[string]interface{})["owner_id"])
		allowed := should[1]["terms"].(map[string]interface{})["classification"].([]string)
		assert.Equal(t, []string{model.ClassificationPublic, model.ClassificationInternal}, allowed)
	})

	t.Run("manager additionally sees confidential", func(t *testing.T) {
		manager := &model.User{ID: 8, Role: model.RoleManager}
		filter := svc.accessFilter(manager)
		require.NotNil(t, filter)

		should := filter["bool"].(map[string]interface{})["should"].([]map[string]interface{})
		allowed := should[1]["terms"].(map[string]interface{})["classification"].([]string)
		assert.Contains(t, allowed, model.ClassificationConfidential)
		assert.NotContains(t, allowed, model.ClassificationRestricted)
	})
}

func TestBuildResultsResolvesDocumentNames(t *testing.T) {
	docs := map[string]*model.Document{
		"doc-1": {ID: "doc-1", FileName: "handbook.pdf"},
	}
	svc := newSearchFixture("http://127.0.0.1:1", docs)

	candidates := []fusedCandidate{
		{Chunk: es.Hit{Chunk: model.EsChunk{DocumentID: "doc-1", ChunkIndex: 3, TextContent: "正文", Classification: "internal"}}, Score: 0.8, VectorScore: 1.0, KeywordScore: 0.5},
		{Chunk: es.Hit{Chunk: model.EsChunk{DocumentID: "doc-gone", ChunkIndex: 0}}, Score: 0.2},
	}

	results := svc.buildResults(candidates)
	require.Len(t, results, 2)
	assert.Equal(t, "handbook.pdf", results[0].DocumentName)
	assert.Equal(t, 3, results[0].ChunkIndex)
	assert.InDelta(t, 0.8, results[0].Score, 1e-9)
	assert.Nil(t, results[0].RerankScore)
	// 已删除文档的名字留空，结果本身仍返回
	assert.Empty(t, results[1].DocumentName)
}

func TestRerankReordersResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			json.NewEncoder(w).Encode(reranker.Health{Status: "ok", Ready: true})
		case "/rerank":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"results": []map[string]interface{}{
					{"index": 1, "score": 0.95, "document": "b"},
					{"index": 0, "score": 0.30, "document": "a"},
				},
			})
		}
	}))
	defer server.Close()

	svc := newSearchFixture(server.URL, nil)
	results := []model.SearchResult{
		{DocumentID: "d1", TextContent: "a"},
		{DocumentID: "d2", TextContent: "b"},
	}

	out, ok := svc.rerank(context.Background(), "query", results, 2)
	assert.True(t, ok)
	require.Len(t, out, 2)
	assert.Equal(t, "b", out[0].TextContent)
	require.NotNil(t, out[0].RerankScore)
	assert.InDelta(t, 0.95, *out[0].RerankScore, 1e-9)
	assert.Equal(t, "a", out[1].TextContent)
}

func TestRerankTruncatesToTopK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			json.NewEncoder(w).Encode(reranker.Health{Status: "ok", Ready: true})
		case "/rerank":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"results": []map[string]interface{}{
					{"index": 2, "score": 0.9, "document": "c"},
					{"index": 0, "score": 0.5, "document": "a"},
					{"index": 1, "score": 0.1, "document": "b"},
				},
			})
		}
	}))
	defer server.Close()

	svc := newSearchFixture(server.URL, nil)
	results := []model.SearchResult{
		{TextContent: "a"},
		{TextContent: "b"},
		{TextContent: "c"},
	}

	// topK 小于候选数时结果必须截断到 topK
	out, ok := svc.rerank(context.Background(), "query", results, 1)
	assert.True(t, ok)
	require.Len(t, out, 1)
	assert.Equal(t, "c", out[0].TextContent)
	require.NotNil(t, out[0].RerankScore)
	assert.InDelta(t, 0.9, *out[0].RerankScore, 1e-9)
}

func TestRerankSubsetKeepsRemainderInFusedOrder(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			json.NewEncoder(w).Encode(reranker.Health{Status: "ok", Ready: true})
		case "/rerank":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"results": []map[string]interface{}{
					{"index": 2, "score": 0.9, "document": "c"},
				},
			})
		}
	}))
	defer server.Close()

	svc := newSearchFixture(server.URL, nil)
	results := []model.SearchResult{
		{TextContent: "a"},
		{TextContent: "b"},
		{TextContent: "c"},
	}

	out, ok := svc.rerank(context.Background(), "query", results, 3)
	assert.True(t, ok)
	require.Len(t, out, 3)
	assert.Equal(t, "c", out[0].TextContent)
	assert.Equal(t, "a", out[1].TextContent)
	assert.Equal(t, "b", out[2].TextContent)
	assert.Nil(t, out[1].RerankScore)
}

func TestRerankSubsetPaddingStopsAtTopK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			json.NewEncoder(w).Encode(reranker.Health{Status: "ok", Ready: true})
		case "/rerank":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"results": []map[string]interface{}{
					{"index": 2, "score": 0.9, "document": "c"},
				},
			})
		}
	}))
	defer server.Close()

	svc := newSearchFixture(server.URL, nil)
	results := []model.SearchResult{
		{TextContent: "a"},
		{TextContent: "b"},
		{TextContent: "c"},
	}

	out, ok := svc.rerank(context.Background(), "query", results, 2)
	assert.True(t, ok)
	require.Len(t, out, 2)
	assert.Equal(t, "c", out[0].TextContent)
	assert.Equal(t, "a", out[1].TextContent)
}

func TestRerankFallsBackWhenUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(reranker.Health{Status: "loading", Ready: false})
	}))
	defer server.Close()

	svc := newSearchFixture(server.URL, nil)
	results := []model.SearchResult{
		{TextContent: "first"},
		{TextContent: "second"},
	}

	out, ok := svc.rerank(context.Background(), "query", results, 1)
	assert.False(t, ok)
	// 回退时仍按 topK 截断，顺序与分数保持融合结果原样
	require.Len(t, out, 1)
	assert.Equal(t, "first", out[0].TextContent)
	assert.Nil(t, out[0].RerankScore)
}

func TestRerankRejectsOutOfRangeIndex(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			json.NewEncoder(w).Encode(reranker.Health{Status: "ok", Ready: true})
		case "/rerank":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"results": []map[string]interface{}{
					{"index": 9, "score": 0.9, "document": "?"},
				},
			})
		}
	}))
	defer server.Close()

	svc := newSearchFixture(server.URL, nil)
	results := []model.SearchResult{{TextContent: "only"}}

	out, ok := svc.rerank(context.Background(), "query", results, 1)
	assert.False(t, ok)
	require.Len(t, out, 1)
	assert.Equal(t, "only", out[0].TextContent)
}

type deadlineCheckEmbedding struct {
	hadDeadline bool
}

func (d *deadlineCheckEmbedding) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	_, d.hadDeadline = ctx.Deadline()
	return nil, errors.New("embedding unavailable")
}

func TestHybridSearchAppliesRetrievalTimeout(t *testing.T) {
	embed := &deadlineCheckEmbedding{}
	cfg := &config.Config{
		Reranker:  config.RerankerConfig{ServerURL: "http://127.0.0.1:1", TimeoutSeconds: 5},
		Retrieval: config.RetrievalConfig{DefaultLimit: 10, DefaultAlpha: 0.6, CandidateWindow: 50, TimeoutSeconds: 15},
	}
	svc := NewSearchService(embed, reranker.NewClient(cfg.Reranker), &fakeDocRepo{}, cfg)

	user := &model.User{ID: 1, Role: model.RoleEmployee}
	_, err := svc.HybridSearch(context.Background(), user, SearchRequest{Query: "入职流程"})
	require.Error(t, err)
	// 下游调用必须带上检索超时的截止时间
	assert.True(t, embed.hadDeadline)
}
