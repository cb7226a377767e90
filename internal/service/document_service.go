package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"docuchat-go/internal/config"
	"docuchat-go/internal/jobs"
	"docuchat-go/internal/model"
	"docuchat-go/internal/repository"
	"docuchat-go/pkg/es"
	"docuchat-go/pkg/kafka"
	"docuchat-go/pkg/log"
	"docuchat-go/pkg/parser"
	"docuchat-go/pkg/storage"
	"docuchat-go/pkg/tasks"

	"gorm.io/gorm"
)

// 上传准入阶段的结构性错误。调用方据此映射 HTTP 状态码。
var (
	ErrUnsupportedFormat     = errors.New("不支持的文件格式")
	ErrInvalidClassification = errors.New("无效的密级标签")
	ErrClassificationDenied  = errors.New("角色不允许上传该密级的文档")
	ErrQuotaDenied           = errors.New("存储配额不足")
	ErrDocumentNotFound      = errors.New("文档不存在")
	ErrAccessDenied          = errors.New("无权访问该文档")
	ErrDuplicateUpload       = errors.New("文档已存在且正在处理或已完成")
)

// UploadResult 是一次上传准入成功后的同步响应。
type UploadResult struct {
	Document *model.Document      `json:"document"`
	Job      *model.ProcessingJob `json:"job"`
}

// DocumentService 负责文档生命周期：上传准入、入队、查询与删除。
// 准入是同步的（配额/格式/密级三道闸门），解析与索引交给后台流水线。
type DocumentService interface {
	Upload(ctx context.Context, user *model.User, fileBytes []byte, fileName, mimeType, classification string) (*UploadResult, error)
	List(user *model.User) ([]model.Document, error)
	Get(user *model.User, documentID string) (*model.Document, error)
	Delete(ctx context.Context, user *model.User, documentID string) error
}

type documentService struct {
	docRepo  repository.DocumentRepository
	quotaSvc QuotaService
	tracker  *jobs.Tracker
	minioCfg config.MinIOConfig
	esCfg    config.ElasticsearchConfig
}

// NewDocumentService 创建一个新的 DocumentService 实例。
func NewDocumentService(
	docRepo repository.DocumentRepository,
	quotaSvc QuotaService,
	tracker *jobs.Tracker,
	cfg *config.Config,
) DocumentService {
	return &documentService{
		docRepo:  docRepo,
		quotaSvc: quotaSvc,
		tracker:  tracker,
		minioCfg: cfg.MinIO,
		esCfg:    cfg.Elasticsearch,
	}
}

// GenerateDocumentID 基于内容与所有者生成稳定的文档标识。
// 同一用户重复上传同一文件得到同一 ID，这是去重的基础。
func GenerateDocumentID(ownerID uint, fileBytes []byte) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d:", ownerID)
	h.Write(fileBytes)
	return hex.EncodeToString(h.Sum(nil))[:32]
}

// Upload 执行同步准入并将处理任务入队。
// 三道闸门按序执行：格式 -> 密级 -> 配额；任何一道失败都不会产生副作用。
func (s *documentService) Upload(ctx context.Context, user *model.User, fileBytes []byte, fileName, mimeType, classification string) (*UploadResult, error) {
	// 1. 格式闸门
	format, err := parser.ResolveFormat(fileName, mimeType)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, fileName)
	}

	// 2. 密级闸门：标签合法且不超过角色上限（fail-closed）
	if classification == "" {
		classification = model.ClassificationInternal
	}
	if !model.ValidClassification(classification) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidClassification, classification)
	}
	if !model.ClassificationWithinCeiling(user.Role, classification) {
		return nil, fmt.Errorf("%w: role=%s classification=%s", ErrClassificationDenied, user.Role, classification)
	}

	// 3. 配额闸门
	validation, err := s.quotaSvc.ValidateUpload(user, int64(len(fileBytes)))
	if err != nil {
		return nil, err
	}
	if !validation.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrQuotaDenied, validation.Reason)
	}

	documentID := GenerateDocumentID(user.ID, fileBytes)

	// 同一内容重复上传：已完成或处理中的直接拒绝，失败过的允许重新摄取
	existing, err := s.docRepo.FindByID(documentID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("查询文档记录失败: %w", err)
	}
	if existing != nil && existing.Status != model.StatusFailed {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateUpload, documentID)
	}

	// 4. 原始文件落入对象存储
	if err := storage.PutDocument(ctx, s.minioCfg.BucketName, documentID, fileBytes, mimeType); err != nil {
		return nil, fmt.Errorf("保存原始文件失败: %w", err)
	}

	doc := &model.Document{
		ID:             documentID,
		OwnerID:        user.ID,
		FileName:       fileName,
		DeclaredFormat: format,
		FileSize:       int64(len(fileBytes)),
		Classification: classification,
		Status:         model.StatusPending,
	}
	if existing != nil {
		doc.CreatedAt = existing.CreatedAt
		if err := s.docRepo.Delete(documentID); err != nil {
			return nil, fmt.Errorf("清理失败文档记录失败: %w", err)
		}
	}
	if err := s.docRepo.Create(doc); err != nil {
		return nil, fmt.Errorf("创建文档记录失败: %w", err)
	}

	// 5. 创建处理作业并入队
	job, err := s.tracker.CreateJob(documentID, fileName)
	if err != nil {
		return nil, fmt.Errorf("创建处理作业失败: %w", err)
	}
	task := tasks.DocumentProcessingTask{
		JobID:          job.ID,
		DocumentID:     documentID,
		FileName:       fileName,
		MimeType:       mimeType,
		OwnerID:        user.ID,
		Classification: classification,
	}
	if err := kafka.ProduceDocumentTask(task); err != nil {
		// 入队失败必须让作业走向终态，否则会永久挂起
		_ = s.tracker.Fail(job.ID, "任务入队失败")
		_ = s.docRepo.UpdateStatus(documentID, model.StatusFailed)
		return nil, fmt.Errorf("任务入队失败: %w", err)
	}

	log.Infof("[DocumentService] 上传受理成功, DocumentID: %s, JobID: %s, Owner: %d, Size: %d",
		documentID, job.ID, user.ID, len(fileBytes))
	return &UploadResult{Document: doc, Job: job}, nil
}

// List 返回用户自己的全部文档。
func (s *documentService) List(user *model.User) ([]model.Document, error) {
	return s.docRepo.FindByOwner(user.ID)
}

// Get 返回单个文档，仅所有者与 admin 可见。
func (s *documentService) Get(user *model.User, documentID string) (*model.Document, error) {
	doc, err := s.docRepo.FindByID(documentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDocumentNotFound
		}
		return nil, err
	}
	if doc.OwnerID != user.ID && !user.IsAdmin() {
		return nil, ErrAccessDenied
	}
	return doc, nil
}

// Delete 删除文档及其全部派生数据：分块记录、索引条目与对象存储中的原始文件。
func (s *documentService) Delete(ctx context.Context, user *model.User, documentID string) error {
	doc, err := s.Get(user, documentID)
	if err != nil {
		return err
	}

	if err := es.DeleteByDocumentID(ctx, s.esCfg.IndexName, documentID); err != nil {
		log.Warnf("[DocumentService] 删除索引条目失败, DocumentID: %s, Err: %v", documentID, err)
	}
	if err := storage.RemoveDocument(ctx, s.minioCfg.BucketName, documentID); err != nil {
		log.Warnf("[DocumentService] 删除原始文件失败, DocumentID: %s, Err: %v", documentID, err)
	}
	if err := s.docRepo.Delete(documentID); err != nil {
		return fmt.Errorf("删除文档记录失败: %w", err)
	}

	log.Infof("[DocumentService] 文档已删除, DocumentID: %s, Operator: %d, FileName: %s",
		documentID, user.ID, doc.FileName)
	return nil
}
