package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"docuchat-go/internal/config"
	"docuchat-go/internal/model"
	"docuchat-go/internal/repository"
	"docuchat-go/pkg/embedding"
	"docuchat-go/pkg/es"
	"docuchat-go/pkg/log"
	"docuchat-go/pkg/reranker"
)

// ErrEmptyQuery 表示检索请求缺少查询文本。
var ErrEmptyQuery = errors.New("查询文本不能为空")

// SearchRequest 是一次混合检索的请求参数。
// Threshold 与 Alpha 为 nil 时使用配置中的默认值，
// RerankTopK 为 0 时使用重排服务配置中的默认值。
type SearchRequest struct {
	Query      string
	Limit      int
	Threshold  *float64
	Alpha      *float64
	Rerank     bool
	RerankTopK int
}

// SearchResponse 是混合检索的响应。Reranked 标明重排是否实际生效。
type SearchResponse struct {
	Results  []model.SearchResult `json:"results"`
	Total    int                  `json:"total"`
	Reranked bool                 `json:"reranked"`
}

// SearchService 实现混合检索：向量与关键词两路召回、分数融合、
// 权限过滤与可选的二阶段重排。
type SearchService interface {
	HybridSearch(ctx context.Context, user *model.User, req SearchRequest) (*SearchResponse, error)
}

type searchService struct {
	embeddingClient embedding.Client
	rerankerClient  *reranker.Client
	docRepo         repository.DocumentRepository
	esCfg           config.ElasticsearchConfig
	retrievalCfg    config.RetrievalConfig
	rerankerCfg     config.RerankerConfig
}

// NewSearchService 创建一个新的 SearchService 实例。
func NewSearchService(
	embeddingClient embedding.Client,
	rerankerClient *reranker.Client,
	docRepo repository.DocumentRepository,
	cfg *config.Config,
) SearchService {
	return &searchService{
		embeddingClient: embeddingClient,
		rerankerClient:  rerankerClient,
		docRepo:         docRepo,
		esCfg:           cfg.Elasticsearch,
		retrievalCfg:    cfg.Retrieval,
		rerankerCfg:     cfg.Reranker,
	}
}

// HybridSearch 执行完整的混合检索流程。
func (s *searchService) HybridSearch(ctx context.Context, user *model.User, req SearchRequest) (*SearchResponse, error) {
	if req.Query == "" {
		return nil, ErrEmptyQuery
	}

	limit := req.Limit
	if limit <= 0 {
		limit = s.retrievalCfg.DefaultLimit
	}
	threshold := s.retrievalCfg.DefaultThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	alpha := s.retrievalCfg.DefaultAlpha
	if req.Alpha != nil {
		alpha = *req.Alpha
	}
	if alpha < 0 || alpha > 1 {
		return nil, fmt.Errorf("alpha 必须位于 [0,1] 区间: %v", alpha)
	}
	window := s.retrievalCfg.CandidateWindow
	if window < limit {
		window = limit
	}

	// 检索是有界超时的同步调用：超时即整次查询失败
	timeout := time.Duration(s.retrievalCfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// 1. 查询向量化
	queryVector, err := s.embeddingClient.CreateEmbedding(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("查询向量化失败: %w", err)
	}

	// 2. 两路召回，共用同一个权限过滤子句
	filter := s.accessFilter(user)
	vectorHits, err := es.VectorSearch(ctx, s.esCfg.IndexName, queryVector, window, filter)
	if err != nil {
		return nil, fmt.Errorf("向量检索失败: %w", err)
	}
	keywordHits, err := es.KeywordSearch(ctx, s.esCfg.IndexName, req.Query, window, filter)
	if err != nil {
		return nil, fmt.Errorf("关键词检索失败: %w", err)
	}
	log.Infof("[SearchService] 两路召回完成, Vector: %d, Keyword: %d, User: %d",
		len(vectorHits), len(keywordHits), user.ID)

	// 3. 归一化融合、阈值过滤、截断
	candidates := fuseHits(vectorHits, keywordHits, alpha)
	filtered := candidates[:0:0]
	for _, c := range candidates {
		if c.Score >= threshold {
			filtered = append(filtered, c)
		}
	}
	if len(filtered) > limit {
		filtered = filtered[:limit]
	}

	results := s.buildResults(filtered)

	// 4. 可选重排；无论重排是否生效，结果都截断到 topK
	reranked := false
	if req.Rerank && len(results) > 0 {
		topK := req.RerankTopK
		if topK <= 0 {
			topK = s.rerankerCfg.DefaultTopK
		}
		if topK <= 0 || topK > len(results) {
			topK = len(results)
		}
		results, reranked = s.rerank(ctx, req.Query, results, topK)
	}

	return &SearchResponse{Results: results, Total: len(results), Reranked: reranked}, nil
}

// accessFilter 构造两路检索共用的权限过滤子句。
// admin 不受限；其他角色可见自己的文档，以及密级不超过角色上限的文档。
func (s *searchService) accessFilter(user *model.User) map[string]interface{} {
	if user.IsAdmin() {
		return nil
	}

	allowed := []string{}
	for _, c := range []string{
		model.ClassificationPublic,
		model.ClassificationInternal,
		model.ClassificationConfidential,
		model.ClassificationRestricted,
	} {
		if model.ClassificationWithinCeiling(user.Role, c) {
			allowed = append(allowed, c)
		}
	}

	return map[string]interface{}{
		"bool": map[string]interface{}{
			"should": []map[string]interface{}{
				{"term": map[string]interface{}{"owner_id": user.ID}},
				{"terms": map[string]interface{}{"classification": allowed}},
			},
			"minimum_should_match": 1,
		},
	}
}

// buildResults 将融合候选转换为响应结构，并批量补齐文档名。
func (s *searchService) buildResults(candidates []fusedCandidate) []model.SearchResult {
	idSet := map[string]struct{}{}
	for _, c := range candidates {
		idSet[c.Chunk.Chunk.DocumentID] = struct{}{}
	}
	ids := make([]string, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}

	names := map[string]string{}
	if len(ids) > 0 {
		docs, err := s.docRepo.FindBatchByIDs(ids)
		if err != nil {
			log.Warnf("[SearchService] 批量查询文档名失败, Err: %v", err)
		} else {
			for _, d := range docs {
				names[d.ID] = d.FileName
			}
		}
	}

	results := make([]model.SearchResult, 0, len(candidates))
	for _, c := range candidates {
		chunk := c.Chunk.Chunk
		results = append(results, model.SearchResult{
			DocumentID:     chunk.DocumentID,
			DocumentName:   names[chunk.DocumentID],
			ChunkIndex:     chunk.ChunkIndex,
			TextContent:    chunk.TextContent,
			Score:          c.Score,
			VectorScore:    c.VectorScore,
			KeywordScore:   c.KeywordScore,
			PageNumber:     chunk.PageNumber,
			StartBlock:     chunk.StartBlock,
			Classification: chunk.Classification,
		})
	}
	return results
}

// rerank 调用外部重排服务并返回长度不超过 topK 的结果前缀。
// 服务不可用或调用失败时回退到融合顺序截断至 topK，返回值标明重排是否生效。
func (s *searchService) rerank(ctx context.Context, query string, results []model.SearchResult, topK int) ([]model.SearchResult, bool) {
	if topK > len(results) {
		topK = len(results)
	}
	fallback := results[:topK]

	timeout := time.Duration(s.rerankerCfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	rctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if avail := s.rerankerClient.Availability(rctx); !avail.Available {
		log.Warnf("[SearchService] 重排服务不可用, 回退融合顺序前 %d 条, Reason: %s", topK, avail.Reason)
		return fallback, false
	}

	documents := make([]string, len(results))
	for i, r := range results {
		documents[i] = r.TextContent
	}
	ranked, err := s.rerankerClient.Rerank(rctx, query, documents, topK)
	if err != nil {
		log.Warnf("[SearchService] 重排调用失败, 回退融合顺序前 %d 条, Err: %v", topK, err)
		return fallback, false
	}

	reordered := make([]model.SearchResult, 0, topK)
	seen := make(map[int]bool, len(ranked))
	for _, r := range ranked {
		if r.Index < 0 || r.Index >= len(results) {
			log.Warnf("[SearchService] 重排返回越界下标 %d, 回退融合顺序前 %d 条", r.Index, topK)
			return fallback, false
		}
		if len(reordered) == topK {
			break
		}
		item := results[r.Index]
		score := r.Score
		item.RerankScore = &score
		reordered = append(reordered, item)
		seen[r.Index] = true
	}
	// 重排返回不足 topK 时用融合顺序补齐，结果长度不超过 topK
	for i, item := range results {
		if len(reordered) == topK {
			break
		}
		if !seen[i] {
			reordered = append(reordered, item)
		}
	}
	return reordered, true
}
