package service

import (
	"testing"

	"docuchat-go/internal/model"
	"docuchat-go/pkg/es"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hit(key string, score float64, docSeq int64, chunkIndex int) es.Hit {
	return es.Hit{
		Chunk: model.EsChunk{
			ChunkKey:   key,
			DocumentID: "doc-" + key,
			ChunkIndex: chunkIndex,
			DocSeq:     docSeq,
		},
		Score: score,
	}
}

func TestNormalizeScores(t *testing.T) {
	hits := []es.Hit{
		hit("a", 2.0, 1, 0),
		hit("b", 6.0, 1, 1),
		hit("c", 10.0, 1, 2),
	}
	norm := normalizeScores(hits)
	assert.Equal(t, 0.0, norm["a"])
	assert.Equal(t, 0.5, norm["b"])
	assert.Equal(t, 1.0, norm["c"])
}

func TestNormalizeScoresDegenerate(t *testing.T) {
	assert.Empty(t, normalizeScores(nil))

	// 单条命中与全同分都映射为 1.0
	norm := normalizeScores([]es.Hit{hit("only", 3.3, 1, 0)})
	assert.Equal(t, 1.0, norm["only"])

	norm = normalizeScores([]es.Hit{hit("x", 5.0, 1, 0), hit("y", 5.0, 1, 1)})
	assert.Equal(t, 1.0, norm["x"])
	assert.Equal(t, 1.0, norm["y"])
}

func TestFuseHitsAlphaExtremes(t *testing.T) {
	vector := []es.Hit{hit("v1", 0.9, 1, 0), hit("v2", 0.5, 2, 0)}
	keyword := []es.Hit{hit("k1", 8.0, 3, 0), hit("v2", 4.0, 2, 0)}

	t.Run("alpha=1 follows vector order", func(t *testing.T) {
		fused := fuseHits(vector, keyword, 1.0)
		require.Len(t, fused, 3)
		assert.Equal(t, "v1", fused[0].Chunk.Chunk.ChunkKey)
		assert.Equal(t, 0.0, fused[len(fused)-1].VectorScore)
	})

	t.Run("alpha=0 follows keyword order", func(t *testing.T) {
		fused := fuseHits(vector, keyword, 0.0)
		require.Len(t, fused, 3)
		assert.Equal(t, "k1", fused[0].Chunk.Chunk.ChunkKey)
	})
}

func TestFuseHitsBlendsBothLegs(t *testing.T) {
	vector := []es.Hit{hit("a", 1.0, 1, 0), hit("b", 0.0, 2, 0)}
	keyword := []es.Hit{hit("b", 10.0, 2, 0), hit("a", 0.0, 1, 0)}

	fused := fuseHits(vector, keyword, 0.6)
	require.Len(t, fused, 2)
	// a: 0.6*1 + 0.4*0 = 0.6; b: 0.6*0 + 0.4*1 = 0.4
	assert.Equal(t, "a", fused[0].Chunk.Chunk.ChunkKey)
	assert.InDelta(t, 0.6, fused[0].Score, 1e-9)
	assert.InDelta(t, 0.4, fused[1].Score, 1e-9)
}

func TestFuseHitsMissingLegScoresZero(t *testing.T) {
	vector := []es.Hit{hit("only-vec", 0.7, 1, 0)}
	keyword := []es.Hit{hit("only-kw", 5.0, 2, 0)}

	fused := fuseHits(vector, keyword, 0.5)
	require.Len(t, fused, 2)
	for _, c := range fused {
		switch c.Chunk.Chunk.ChunkKey {
		case "only-vec":
			assert.Equal(t, 1.0, c.VectorScore)
			assert.Equal(t, 0.0, c.KeywordScore)
		case "only-kw":
			assert.Equal(t, 0.0, c.VectorScore)
			assert.Equal(t, 1.0, c.KeywordScore)
		}
	}
}

func TestFuseHitsTieBreaksByInsertionOrder(t *testing.T) {
	// 全同分：排序退化为文档入库顺序 + 分块序号
	vector := []es.Hit{
		hit("late", 1.0, 200, 0),
		hit("early-1", 1.0, 100, 1),
		hit("early-0", 1.0, 100, 0),
	}

	fused := fuseHits(vector, nil, 1.0)
	require.Len(t, fused, 3)
	assert.Equal(t, "early-0", fused[0].Chunk.Chunk.ChunkKey)
	assert.Equal(t, "early-1", fused[1].Chunk.Chunk.ChunkKey)
	assert.Equal(t, "late", fused[2].Chunk.Chunk.ChunkKey)
}
