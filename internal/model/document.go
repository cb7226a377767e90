// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// 文档与处理任务共用的状态常量。
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Document 定义了 documents 表的 ORM 模型。
// 一个文档归其上传用户独占所有；status=completed 当且仅当所有分块已持久化
// 且 chunk_count > 0。
type Document struct {
	ID             string     `gorm:"type:varchar(64);primaryKey" json:"id"`
	OwnerID        uint       `gorm:"not null;index" json:"ownerId"`
	FileName       string     `gorm:"type:varchar(255);not null" json:"fileName"`
	DeclaredFormat string     `gorm:"type:varchar(10)" json:"declaredFormat"`
	DetectedFormat string     `gorm:"type:varchar(10)" json:"detectedFormat"`
	FileSize       int64      `gorm:"not null" json:"fileSize"`
	Classification string     `gorm:"type:varchar(20);not null;default:'internal'" json:"classification"`
	Status         string     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	ChunkCount     int        `gorm:"not null;default:0" json:"chunkCount"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	ProcessedAt    *time.Time `gorm:"default:null" json:"processedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Document) TableName() string {
	return "documents"
}
