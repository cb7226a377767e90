// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"docuchat-go/internal/model"

	"gorm.io/gorm"
)

// ChunkRepository 接口定义了文档分块的持久化操作。
type ChunkRepository interface {
	BatchCreate(chunks []*model.Chunk) error
	FindByDocumentID(documentID string) ([]model.Chunk, error)
	DeleteByDocumentID(documentID string) error
}

// chunkRepository 是 ChunkRepository 接口的 GORM 实现。
type chunkRepository struct {
	db *gorm.DB
}

// NewChunkRepository 创建一个新的 ChunkRepository 实例。
func NewChunkRepository(db *gorm.DB) ChunkRepository {
	return &chunkRepository{db: db}
}

// BatchCreate 批量写入分块记录。
func (r *chunkRepository) BatchCreate(chunks []*model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	return r.db.Create(chunks).Error
}

// FindByDocumentID 按 chunk_index 升序检索某文档的全部分块。
func (r *chunkRepository) FindByDocumentID(documentID string) ([]model.Chunk, error) {
	var chunks []model.Chunk
	err := r.db.Where("document_id = ?", documentID).Order("chunk_index asc").Find(&chunks).Error
	return chunks, err
}

// DeleteByDocumentID 删除某文档的全部分块记录（重新摄取前的幂等清理）。
func (r *chunkRepository) DeleteByDocumentID(documentID string) error {
	return r.db.Where("document_id = ?", documentID).Delete(&model.Chunk{}).Error
}
