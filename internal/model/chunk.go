// Package model 定义了与数据库表对应的 Go 结构体。
package model

// Chunk 对应于数据库中的 document_chunks 表。
// (document_id, chunk_index) 在每个文档内唯一且连续；分块随文档一起删除。
type Chunk struct {
	ID          uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	DocumentID  string `gorm:"type:varchar(64);not null;uniqueIndex:uk_doc_chunk,priority:1" json:"documentId"`
	ChunkIndex  int    `gorm:"not null;uniqueIndex:uk_doc_chunk,priority:2" json:"chunkIndex"`
	TextContent string `gorm:"type:text" json:"textContent"`
	PageNumber  int    `gorm:"not null;default:0" json:"pageNumber"`
	StartBlock  int    `gorm:"not null;default:0" json:"startBlock"`
	EndBlock    int    `gorm:"not null;default:0" json:"endBlock"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Chunk) TableName() string {
	return "document_chunks"
}

// EsChunk 定义了存储在 Elasticsearch 中的分块文档结构。
type EsChunk struct {
	ChunkKey       string    `json:"chunk_key"` // 唯一标识，documentID + chunkIndex
	DocumentID     string    `json:"document_id"`
	ChunkIndex     int       `json:"chunk_index"`
	TextContent    string    `json:"text_content"`
	Vector         []float32 `json:"vector"` // 文本内容的向量表示
	PageNumber     int       `json:"page_number"`
	StartBlock     int       `json:"start_block"`
	EndBlock       int       `json:"end_block"`
	OwnerID        uint      `json:"owner_id"`
	Classification string    `json:"classification"`
	ModelVersion   string    `json:"model_version"`
	DocSeq         int64     `json:"doc_seq"` // 文档入库顺序，用于同分排序
}

// SearchResult 定义了返回给调用方的检索结果结构。
// RerankScore 仅在启用重排且重排服务可用时填充。
type SearchResult struct {
	DocumentID     string   `json:"documentId"`
	DocumentName   string   `json:"documentName"`
	ChunkIndex     int      `json:"chunkIndex"`
	TextContent    string   `json:"textContent"`
	Score          float64  `json:"score"`
	VectorScore    float64  `json:"vectorScore"`
	KeywordScore   float64  `json:"keywordScore"`
	RerankScore    *float64 `json:"rerankScore,omitempty"`
	PageNumber     int      `json:"pageNumber"`
	StartBlock     int      `json:"startBlock"`
	Classification string   `json:"classification"`
}
