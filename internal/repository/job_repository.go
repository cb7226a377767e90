// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"docuchat-go/internal/model"

	"gorm.io/gorm"
)

// JobRepository 接口定义了处理任务的持久化操作。
type JobRepository interface {
	Create(job *model.ProcessingJob) error
	Update(job *model.ProcessingJob) error
	FindByID(jobID string) (*model.ProcessingJob, error)
	FindActiveByDocumentID(documentID string) (*model.ProcessingJob, error)
	FindByDocumentID(documentID string) ([]model.ProcessingJob, error)
}

// jobRepository 是 JobRepository 接口的 GORM 实现。
type jobRepository struct {
	db *gorm.DB
}

// NewJobRepository 创建一个新的 JobRepository 实例。
func NewJobRepository(db *gorm.DB) JobRepository {
	return &jobRepository{db: db}
}

// Create 在数据库中创建一个新的任务记录。
func (r *jobRepository) Create(job *model.ProcessingJob) error {
	return r.db.Create(job).Error
}

// Update 更新一个已存在的任务记录。
func (r *jobRepository) Update(job *model.ProcessingJob) error {
	return r.db.Save(job).Error
}

// FindByID 根据任务 ID 检索任务记录。
func (r *jobRepository) FindByID(jobID string) (*model.ProcessingJob, error) {
	var job model.ProcessingJob
	err := r.db.Where("id = ?", jobID).First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// FindActiveByDocumentID 查找某文档当前的非终态任务，不存在时返回 gorm.ErrRecordNotFound。
func (r *jobRepository) FindActiveByDocumentID(documentID string) (*model.ProcessingJob, error) {
	var job model.ProcessingJob
	err := r.db.Where("document_id = ? AND status IN ?", documentID,
		[]string{model.StatusPending, model.StatusProcessing}).First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// FindByDocumentID 检索某文档的全部历史任务（审计用），按创建时间降序。
func (r *jobRepository) FindByDocumentID(documentID string) ([]model.ProcessingJob, error) {
	var jobs []model.ProcessingJob
	err := r.db.Where("document_id = ?", documentID).Order("created_at desc").Find(&jobs).Error
	return jobs, err
}
