package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"docuchat-go/internal/config"
	"docuchat-go/internal/jobs"
	"docuchat-go/internal/model"
	"docuchat-go/internal/repository"
	"docuchat-go/pkg/embedding"
	"docuchat-go/pkg/es"
	"docuchat-go/pkg/kafka"
	"docuchat-go/pkg/log"
	"docuchat-go/pkg/parser"
	"docuchat-go/pkg/storage"
	"docuchat-go/pkg/tasks"
)

const (
	maxAttempts  = 3
	retryBackoff = 2 * time.Second
)

// Processor 消费文档处理任务并执行完整的摄取流程：
// 下载 -> 解析 -> 分块 -> 入库 -> 向量化 -> 索引。
// 每个任务最终必然将作业推进到 completed 或 failed 终态。
type Processor struct {
	parserClient    *parser.Client
	embeddingClient embedding.Client
	chunker         *Chunker
	tracker         *jobs.Tracker
	docRepo         repository.DocumentRepository
	chunkRepo       repository.ChunkRepository

	parserCfg    config.ParserConfig
	embeddingCfg config.EmbeddingConfig
	minioCfg     config.MinIOConfig
	esCfg        config.ElasticsearchConfig
}

var _ kafka.TaskProcessor = (*Processor)(nil)

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(
	parserClient *parser.Client,
	embeddingClient embedding.Client,
	chunker *Chunker,
	tracker *jobs.Tracker,
	docRepo repository.DocumentRepository,
	chunkRepo repository.ChunkRepository,
	cfg *config.Config,
) *Processor {
	return &Processor{
		parserClient:    parserClient,
		embeddingClient: embeddingClient,
		chunker:         chunker,
		tracker:         tracker,
		docRepo:         docRepo,
		chunkRepo:       chunkRepo,
		parserCfg:       cfg.Parser,
		embeddingCfg:    cfg.Embedding,
		minioCfg:        cfg.MinIO,
		esCfg:           cfg.Elasticsearch,
	}
}

// Process 处理一个文档摄取任务。
// 瞬时错误（网络、服务暂不可用）在内部有限重试；结构性错误
// （格式不支持、解析明确失败、无有效内容）立即失败，不做重试。
func (p *Processor) Process(ctx context.Context, task tasks.DocumentProcessingTask) error {
	log.Infof("[Processor] 开始处理文档, JobID: %s, DocumentID: %s, FileName: %s",
		task.JobID, task.DocumentID, task.FileName)

	// 1. 推进作业到 processing
	if _, err := p.tracker.Start(task.JobID); err != nil {
		if errors.Is(err, jobs.ErrJobTerminal) {
			log.Warnf("[Processor] 作业已处于终态, 跳过, JobID: %s", task.JobID)
			return nil
		}
		if errors.Is(err, jobs.ErrInvalidTransition) {
			// 作业已是 processing：上一次投递中进程崩溃，重投时把它推进到失败终态，
			// 否则该文档的活跃作业会一直占着，重新上传被拒
			return p.fail(task, "摄取在上一次投递中中断")
		}
		return fmt.Errorf("启动作业失败: %w", err)
	}
	if err := p.docRepo.UpdateStatus(task.DocumentID, model.StatusProcessing); err != nil {
		return p.fail(task, fmt.Sprintf("更新文档状态失败: %v", err))
	}

	doc, err := p.docRepo.FindByID(task.DocumentID)
	if err != nil {
		return p.fail(task, fmt.Sprintf("查询文档记录失败: %v", err))
	}

	// 2. 从对象存储下载原始文件
	var fileBytes []byte
	err = p.withRetry(ctx, "下载文件", func() error {
		var derr error
		fileBytes, derr = storage.GetDocument(ctx, p.minioCfg.BucketName, task.DocumentID)
		return derr
	})
	if err != nil {
		return p.fail(task, fmt.Sprintf("下载文件失败: %v", err))
	}
	log.Infof("[Processor] 文件下载完成, DocumentID: %s, Size: %d", task.DocumentID, len(fileBytes))

	// 3. 调用解析服务
	parseOpts := parser.Options{
		ExtractTables: p.parserCfg.ExtractTables,
		ExtractImages: p.parserCfg.ExtractImages,
		EnableOCR:     p.parserCfg.EnableOCR,
		MaxPages:      p.parserCfg.MaxPages,
		Language:      p.parserCfg.Language,
	}
	var parsed *model.ParsedDocument
	err = p.withRetry(ctx, "解析文件", func() error {
		var perr error
		parsed, perr = p.parserClient.Parse(ctx, fileBytes, task.FileName, task.MimeType, parseOpts)
		if perr != nil {
			return perr
		}
		if !parsed.Success {
			// 远端明确拒绝，重试无意义
			return nil
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, parser.ErrUnsupportedFormat) {
			return p.fail(task, fmt.Sprintf("不支持的文件格式: %v", err))
		}
		return p.fail(task, fmt.Sprintf("解析文件失败: %v", err))
	}
	if !parsed.Success {
		return p.fail(task, fmt.Sprintf("解析服务返回失败: %s", firstWarning(parsed)))
	}
	parsed.DocumentID = task.DocumentID
	if parsed.Metadata.Format != "" {
		if err := p.docRepo.UpdateDetectedFormat(task.DocumentID, parsed.Metadata.Format); err != nil {
			log.Warnf("[Processor] 记录识别格式失败, DocumentID: %s, Err: %v", task.DocumentID, err)
		}
	}
	log.Infof("[Processor] 解析完成, DocumentID: %s, Blocks: %d, Warnings: %d",
		task.DocumentID, len(parsed.Blocks), len(parsed.Warnings))

	// 4. 文本分块
	chunks := p.chunker.Chunk(parsed)
	if len(chunks) == 0 {
		return p.fail(task, "文档未产生任何有效分块")
	}
	log.Infof("[Processor] 分块完成, DocumentID: %s, Chunks: %d", task.DocumentID, len(chunks))

	// 5. 持久化分块（先清理旧数据保证重放幂等）
	if err := p.chunkRepo.DeleteByDocumentID(task.DocumentID); err != nil {
		return p.fail(task, fmt.Sprintf("清理历史分块失败: %v", err))
	}
	if err := es.DeleteByDocumentID(ctx, p.esCfg.IndexName, task.DocumentID); err != nil {
		log.Warnf("[Processor] 清理历史索引失败, DocumentID: %s, Err: %v", task.DocumentID, err)
	}
	if err := p.chunkRepo.BatchCreate(chunks); err != nil {
		return p.fail(task, fmt.Sprintf("保存分块失败: %v", err))
	}

	// 6. 逐块向量化并写入索引，同步推进作业进度
	docSeq := doc.CreatedAt.UnixNano()
	for i, chunk := range chunks {
		var vector []float32
		err = p.withRetry(ctx, "生成向量", func() error {
			var eerr error
			vector, eerr = p.embeddingClient.CreateEmbedding(ctx, chunk.TextContent)
			return eerr
		})
		if err != nil {
			return p.fail(task, fmt.Sprintf("生成向量失败 (chunk %d): %v", chunk.ChunkIndex, err))
		}

		esChunk := model.EsChunk{
			ChunkKey:       fmt.Sprintf("%s_%d", task.DocumentID, chunk.ChunkIndex),
			DocumentID:     task.DocumentID,
			ChunkIndex:     chunk.ChunkIndex,
			TextContent:    chunk.TextContent,
			Vector:         vector,
			PageNumber:     chunk.PageNumber,
			StartBlock:     chunk.StartBlock,
			EndBlock:       chunk.EndBlock,
			OwnerID:        task.OwnerID,
			Classification: task.Classification,
			ModelVersion:   p.embeddingCfg.Model,
			DocSeq:         docSeq,
		}
		err = p.withRetry(ctx, "写入索引", func() error {
			return es.IndexChunk(ctx, p.esCfg.IndexName, esChunk)
		})
		if err != nil {
			return p.fail(task, fmt.Sprintf("写入索引失败 (chunk %d): %v", chunk.ChunkIndex, err))
		}

		if err := p.tracker.Progress(task.JobID, i+1, len(chunks)); err != nil {
			log.Warnf("[Processor] 更新进度失败, JobID: %s, Err: %v", task.JobID, err)
		}
	}

	// 7. 标记完成
	if err := p.docRepo.MarkCompleted(task.DocumentID, len(chunks)); err != nil {
		return p.fail(task, fmt.Sprintf("标记文档完成失败: %v", err))
	}
	if err := p.tracker.Complete(task.JobID); err != nil {
		log.Errorf("[Processor] 标记作业完成失败, JobID: %s, Err: %v", task.JobID, err)
	}

	log.Infof("[Processor] 文档处理完成, DocumentID: %s, Chunks: %d", task.DocumentID, len(chunks))
	return nil
}

// fail 将文档与作业统一推进到失败终态。返回值供消费端记录日志。
func (p *Processor) fail(task tasks.DocumentProcessingTask, reason string) error {
	log.Errorf("[Processor] 文档处理失败, DocumentID: %s, Reason: %s", task.DocumentID, reason)
	if err := p.docRepo.UpdateStatus(task.DocumentID, model.StatusFailed); err != nil {
		log.Errorf("[Processor] 更新文档失败状态出错, DocumentID: %s, Err: %v", task.DocumentID, err)
	}
	if err := p.tracker.Fail(task.JobID, reason); err != nil && !errors.Is(err, jobs.ErrJobTerminal) {
		log.Errorf("[Processor] 标记作业失败出错, JobID: %s, Err: %v", task.JobID, err)
	}
	return errors.New(reason)
}

// withRetry 对瞬时错误做有限次重试，结构性错误直接返回。
func (p *Processor) withRetry(ctx context.Context, op string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if errors.Is(err, parser.ErrUnsupportedFormat) {
			return err
		}
		if attempt == maxAttempts {
			break
		}
		log.Warnf("[Processor] %s 失败, 第 %d 次重试, Err: %v", op, attempt, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryBackoff * time.Duration(attempt)):
		}
	}
	return err
}

func firstWarning(doc *model.ParsedDocument) string {
	if len(doc.Warnings) == 0 {
		return "unknown"
	}
	return doc.Warnings[0].Message
}
