// Package pipeline 定义了文档摄取的核心流程。
package pipeline

import (
	"sort"
	"strings"

	"docuchat-go/internal/config"
	"docuchat-go/internal/model"
)

const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 100
)

// Chunker 将解析后的内容块按目标大小策略组合成可索引的分块。
// 分块按 chunkIndex 连续编号，拼接其文本即还原文档的阅读顺序。
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker 创建一个新的 Chunker 实例。
func NewChunker(cfg config.ChunkingConfig) *Chunker {
	size := cfg.ChunkSize
	if size <= 0 {
		size = defaultChunkSize
	}
	overlap := cfg.ChunkOverlap
	if overlap < 0 || overlap >= size {
		overlap = defaultChunkOverlap
	}
	return &Chunker{chunkSize: size, chunkOverlap: overlap}
}

// chunkBuilder 累积当前分组的内容与来源信息。
type chunkBuilder struct {
	texts      []string
	pageNumber int
	startBlock int
	endBlock   int
}

func (b *chunkBuilder) empty() bool {
	return len(b.texts) == 0
}

func (b *chunkBuilder) runeLen() int {
	n := 0
	for _, t := range b.texts {
		n += len([]rune(t))
	}
	return n
}

// Chunk 按 position 顺序遍历内容块并生成分块序列。
// 表格块永远独占一个分块，不与相邻内容合并也不被拆分；
// 页眉/页脚类块不参与索引。
func (c *Chunker) Chunk(doc *model.ParsedDocument) []*model.Chunk {
	blocks := make([]model.ContentBlock, len(doc.Blocks))
	copy(blocks, doc.Blocks)
	sort.SliceStable(blocks, func(i, j int) bool {
		return blocks[i].Position < blocks[j].Position
	})

	var chunks []*model.Chunk
	builder := &chunkBuilder{}

	flush := func() {
		if builder.empty() {
			return
		}
		chunks = append(chunks, &model.Chunk{
			DocumentID:  doc.DocumentID,
			ChunkIndex:  len(chunks),
			TextContent: strings.Join(builder.texts, "\n"),
			PageNumber:  builder.pageNumber,
			StartBlock:  builder.startBlock,
			EndBlock:    builder.endBlock,
		})
		builder = &chunkBuilder{}
	}

	for _, block := range blocks {
		text := strings.TrimSpace(block.Content)
		if text == "" {
			continue
		}

		switch block.Type {
		case model.BlockHeader, model.BlockFooter:
			// 页面装饰内容不进入索引
			continue

		case model.BlockTable:
			// 表格不可拆分：先落盘当前分组，再让表格独占一个分块
			flush()
			chunks = append(chunks, &model.Chunk{
				DocumentID:  doc.DocumentID,
				ChunkIndex:  len(chunks),
				TextContent: text,
				PageNumber:  block.PageNumber,
				StartBlock:  block.Position,
				EndBlock:    block.Position,
			})
			continue
		}

		runes := []rune(text)
		if len(runes) > c.chunkSize {
			// 超长块：落盘当前分组后按窗口+重叠切分
			flush()
			for _, part := range c.splitText(runes) {
				chunks = append(chunks, &model.Chunk{
					DocumentID:  doc.DocumentID,
					ChunkIndex:  len(chunks),
					TextContent: part,
					PageNumber:  block.PageNumber,
					StartBlock:  block.Position,
					EndBlock:    block.Position,
				})
			}
			continue
		}

		if !builder.empty() && builder.runeLen()+len(runes) > c.chunkSize {
			flush()
		}
		if builder.empty() {
			builder.pageNumber = block.PageNumber
			builder.startBlock = block.Position
		}
		builder.texts = append(builder.texts, text)
		builder.endBlock = block.Position
	}
	flush()

	return chunks
}

// splitText 将超长文本按窗口大小与重叠进行切分。
func (c *Chunker) splitText(runes []rune) []string {
	var parts []string
	step := c.chunkSize - c.chunkOverlap
	for i := 0; i < len(runes); i += step {
		end := i + c.chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		parts = append(parts, string(runes[i:end]))
		if end == len(runes) {
			break
		}
	}
	return parts
}
