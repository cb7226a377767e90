// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"time"

	"docuchat-go/internal/model"

	"gorm.io/gorm"
)

// DocumentRepository 接口定义了文档元数据的持久化操作。
type DocumentRepository interface {
	Create(doc *model.Document) error
	FindByID(documentID string) (*model.Document, error)
	FindByOwner(ownerID uint) ([]model.Document, error)
	FindBatchByIDs(documentIDs []string) ([]*model.Document, error)
	UpdateStatus(documentID, status string) error
	UpdateDetectedFormat(documentID, format string) error
	MarkCompleted(documentID string, chunkCount int) error
	Delete(documentID string) error

	// SumCompletedSizeByOwner 聚合某用户所有 completed 文档的字节数。
	// 配额计算永远以该聚合为准，与文档表保持一致。
	SumCompletedSizeByOwner(ownerID uint) (int64, error)
}

// documentRepository 是 DocumentRepository 接口的 GORM 实现。
type documentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository 创建一个新的 DocumentRepository 实例。
func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

// Create 在数据库中创建一个新的文档记录。
func (r *documentRepository) Create(doc *model.Document) error {
	return r.db.Create(doc).Error
}

// FindByID 根据文档 ID 检索文档记录。
func (r *documentRepository) FindByID(documentID string) (*model.Document, error) {
	var doc model.Document
	err := r.db.Where("id = ?", documentID).First(&doc).Error
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// FindByOwner 查找指定用户上传的所有文档。
func (r *documentRepository) FindByOwner(ownerID uint) ([]model.Document, error) {
	var docs []model.Document
	err := r.db.Where("owner_id = ?", ownerID).Order("created_at desc").Find(&docs).Error
	return docs, err
}

// FindBatchByIDs 批量检索文档记录，用于检索结果的文件名解析。
func (r *documentRepository) FindBatchByIDs(documentIDs []string) ([]*model.Document, error) {
	var docs []*model.Document
	if len(documentIDs) == 0 {
		return docs, nil
	}
	err := r.db.Where("id IN ?", documentIDs).Find(&docs).Error
	return docs, err
}

// UpdateStatus 更新指定文档的状态。
func (r *documentRepository) UpdateStatus(documentID, status string) error {
	return r.db.Model(&model.Document{}).Where("id = ?", documentID).Update("status", status).Error
}

// UpdateDetectedFormat 记录解析服务实际识别出的文档格式。
func (r *documentRepository) UpdateDetectedFormat(documentID, format string) error {
	return r.db.Model(&model.Document{}).Where("id = ?", documentID).Update("detected_format", format).Error
}

// MarkCompleted 将文档标记为 completed 并记录分块数与处理完成时间。
func (r *documentRepository) MarkCompleted(documentID string, chunkCount int) error {
	now := time.Now()
	return r.db.Model(&model.Document{}).Where("id = ?", documentID).Updates(map[string]interface{}{
		"status":       model.StatusCompleted,
		"chunk_count":  chunkCount,
		"processed_at": &now,
	}).Error
}

// Delete 删除一个文档记录及其所有分块记录。
func (r *documentRepository) Delete(documentID string) error {
	if err := r.db.Where("document_id = ?", documentID).Delete(&model.Chunk{}).Error; err != nil {
		return err
	}
	return r.db.Where("id = ?", documentID).Delete(&model.Document{}).Error
}

// SumCompletedSizeByOwner 计算某用户 completed 文档的总字节数。
func (r *documentRepository) SumCompletedSizeByOwner(ownerID uint) (int64, error) {
	var total int64
	err := r.db.Model(&model.Document{}).
		Select("COALESCE(SUM(file_size), 0)").
		Where("owner_id = ? AND status = ?", ownerID, model.StatusCompleted).
		Scan(&total).Error
	return total, err
}
