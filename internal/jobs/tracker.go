package jobs

import (
	"errors"
	"sync"
	"time"

	"docuchat-go/internal/model"
	"docuchat-go/internal/repository"
	"docuchat-go/pkg/log"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	// ErrActiveJobExists 表示该文档已有一个非终态任务在运行。
	// 第二次摄取请求应被拒绝，而不是静默排队。
	ErrActiveJobExists = errors.New("document already has an active processing job")
	// ErrJobTerminal 表示任务已处于终态，不再接受任何状态转移。
	ErrJobTerminal = errors.New("processing job is already terminal")
	// ErrJobNotFound 表示任务不存在。
	ErrJobNotFound = errors.New("processing job not found")
	// ErrInvalidTransition 表示请求的状态转移不被状态机允许。
	ErrInvalidTransition = errors.New("invalid job state transition")
)

// Tracker 是文档摄取任务的状态机。
// 状态域 {pending, processing, completed, failed}；progress 单调非减；
// 每个文档同时最多一个非终态任务；终态转移恰好发出一个终态事件。
type Tracker struct {
	mu      sync.Mutex
	active  map[string]string // documentID -> 非终态任务的 jobID
	jobRepo repository.JobRepository
	bus     *EventBus
}

// NewTracker 创建一个新的任务跟踪器。
func NewTracker(jobRepo repository.JobRepository, bus *EventBus) *Tracker {
	return &Tracker{
		active:  make(map[string]string),
		jobRepo: jobRepo,
		bus:     bus,
	}
}

// Bus 返回跟踪器使用的事件总线，供订阅方使用。
func (t *Tracker) Bus() *EventBus {
	return t.bus
}

// CreateJob 为文档创建一个新的 pending 任务并发出 job:created 事件。
// 文档已有非终态任务时返回 ErrActiveJobExists。
func (t *Tracker) CreateJob(documentID, fileName string) (*model.ProcessingJob, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.active[documentID]; ok {
		return nil, ErrActiveJobExists
	}
	// 进程重启后内存表为空，补查数据库
	if _, err := t.jobRepo.FindActiveByDocumentID(documentID); err == nil {
		return nil, ErrActiveJobExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	job := &model.ProcessingJob{
		ID:         uuid.NewString(),
		DocumentID: documentID,
		FileName:   fileName,
		Status:     model.StatusPending,
		Progress:   0,
	}
	if err := t.jobRepo.Create(job); err != nil {
		return nil, err
	}
	t.active[documentID] = job.ID

	log.Infof("[JobTracker] 任务已创建, jobID: %s, documentID: %s", job.ID, documentID)
	t.bus.Publish(model.ProcessingEvent{Type: model.EventJobCreated, JobID: job.ID, Data: job.Snapshot()})
	return job, nil
}

// Start 将任务从 pending 转入 processing 并发出 job:started 事件。
func (t *Tracker) Start(jobID string) (*model.ProcessingJob, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, err := t.load(jobID)
	if err != nil {
		return nil, err
	}
	if job.IsTerminal() {
		return nil, ErrJobTerminal
	}
	if job.Status != model.StatusPending {
		return nil, ErrInvalidTransition
	}

	now := time.Now()
	job.Status = model.StatusProcessing
	job.StartedAt = &now
	if err := t.jobRepo.Update(job); err != nil {
		return nil, err
	}

	log.Infof("[JobTracker] 任务开始处理, jobID: %s", jobID)
	t.bus.Publish(model.ProcessingEvent{Type: model.EventJobStarted, JobID: job.ID, Data: job.Snapshot()})
	return job, nil
}

// Progress 更新任务进度并发出 job:progress 事件。
// 进度按 currentChunk/totalChunks 计算并夹取为单调非减，终态任务拒绝更新。
func (t *Tracker) Progress(jobID string, currentChunk, totalChunks int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, err := t.load(jobID)
	if err != nil {
		return err
	}
	if job.IsTerminal() {
		return ErrJobTerminal
	}
	if job.Status != model.StatusProcessing {
		return ErrInvalidTransition
	}

	progress := 0
	if totalChunks > 0 {
		progress = currentChunk * 100 / totalChunks
	}
	if progress > 100 {
		progress = 100
	}
	// 单调非减：落后的更新不允许让进度回退
	if progress < job.Progress {
		progress = job.Progress
	}

	job.Progress = progress
	job.CurrentChunk = currentChunk
	job.TotalChunks = totalChunks
	if err := t.jobRepo.Update(job); err != nil {
		return err
	}

	t.bus.Publish(model.ProcessingEvent{Type: model.EventJobProgress, JobID: job.ID, Data: job.Snapshot()})
	return nil
}

// Complete 将任务转入 completed 终态（progress 置为 100）并发出 job:completed 事件。
func (t *Tracker) Complete(jobID string) error {
	return t.finish(jobID, model.StatusCompleted, "")
}

// Fail 将任务转入 failed 终态并记录错误信息，发出 job:failed 事件。
func (t *Tracker) Fail(jobID, errMsg string) error {
	return t.finish(jobID, model.StatusFailed, errMsg)
}

// finish 执行终态转移。终态任务不可再次转移（恰好一个终态事件）。
func (t *Tracker) finish(jobID, status, errMsg string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, err := t.load(jobID)
	if err != nil {
		return err
	}
	if job.IsTerminal() {
		return ErrJobTerminal
	}

	now := time.Now()
	job.Status = status
	job.CompletedAt = &now
	if status == model.StatusCompleted {
		job.Progress = 100
	} else {
		job.Error = errMsg
	}
	if err := t.jobRepo.Update(job); err != nil {
		return err
	}
	delete(t.active, job.DocumentID)

	eventType := model.EventJobCompleted
	if status == model.StatusFailed {
		eventType = model.EventJobFailed
		log.Warnf("[JobTracker] 任务失败, jobID: %s, error: %s", jobID, errMsg)
	} else {
		log.Infof("[JobTracker] 任务完成, jobID: %s", jobID)
	}
	t.bus.Publish(model.ProcessingEvent{Type: eventType, JobID: job.ID, Data: job.Snapshot()})
	return nil
}

// Get 返回任务当前快照。
func (t *Tracker) Get(jobID string) (*model.ProcessingJob, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.load(jobID)
}

// load 读取任务记录，不存在时返回 ErrJobNotFound。调用方需持有锁。
func (t *Tracker) load(jobID string) (*model.ProcessingJob, error) {
	job, err := t.jobRepo.FindByID(jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return job, nil
}
