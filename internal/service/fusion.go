package service

import (
	"sort"

	"docuchat-go/pkg/es"
)

// fusedCandidate 是两路检索融合后的中间结果。
type fusedCandidate struct {
	Chunk        es.Hit
	VectorScore  float64
	KeywordScore float64
	Score        float64
}

// normalizeScores 对一路命中做 min-max 归一化，映射到 [0,1]。
// 所有分值相同（含单条命中）时统一取 1.0，避免除零。
func normalizeScores(hits []es.Hit) map[string]float64 {
	normalized := make(map[string]float64, len(hits))
	if len(hits) == 0 {
		return normalized
	}

	min, max := hits[0].Score, hits[0].Score
	for _, h := range hits[1:] {
		if h.Score < min {
			min = h.Score
		}
		if h.Score > max {
			max = h.Score
		}
	}

	for _, h := range hits {
		if max == min {
			normalized[h.Chunk.ChunkKey] = 1.0
			continue
		}
		normalized[h.Chunk.ChunkKey] = (h.Score - min) / (max - min)
	}
	return normalized
}

// fuseHits 融合向量与关键词两路命中。
// 融合分 = alpha*vectorScore + (1-alpha)*keywordScore；只出现在一路的候选
// 另一路记 0 分。结果按融合分降序，平分时按文档入库顺序与分块序号升序。
func fuseHits(vectorHits, keywordHits []es.Hit, alpha float64) []fusedCandidate {
	vecScores := normalizeScores(vectorHits)
	kwScores := normalizeScores(keywordHits)

	byKey := make(map[string]es.Hit, len(vectorHits)+len(keywordHits))
	for _, h := range vectorHits {
		byKey[h.Chunk.ChunkKey] = h
	}
	for _, h := range keywordHits {
		if _, ok := byKey[h.Chunk.ChunkKey]; !ok {
			byKey[h.Chunk.ChunkKey] = h
		}
	}

	candidates := make([]fusedCandidate, 0, len(byKey))
	for key, hit := range byKey {
		vs := vecScores[key]
		ks := kwScores[key]
		candidates = append(candidates, fusedCandidate{
			Chunk:        hit,
			VectorScore:  vs,
			KeywordScore: ks,
			Score:        alpha*vs + (1-alpha)*ks,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		ci, cj := candidates[i].Chunk.Chunk, candidates[j].Chunk.Chunk
		if ci.DocSeq != cj.DocSeq {
			return ci.DocSeq < cj.DocSeq
		}
		return ci.ChunkIndex < cj.ChunkIndex
	})
	return candidates
}
