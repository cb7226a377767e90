// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// 处理事件类型常量。
// 每个任务按 created → started → 若干 progress → 恰好一个终态事件的顺序发出。
const (
	EventJobCreated   = "job:created"
	EventJobStarted   = "job:started"
	EventJobProgress  = "job:progress"
	EventJobCompleted = "job:completed"
	EventJobFailed    = "job:failed"
)

// ProcessingJob 定义了 processing_jobs 表的 ORM 模型。
// 它是单个文档一次摄取的跟踪单元；同一文档同时最多存在一个非终态任务，
// 历史任务保留用于审计。
type ProcessingJob struct {
	ID           string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	DocumentID   string     `gorm:"type:varchar(64);not null;index" json:"documentId"`
	FileName     string     `gorm:"type:varchar(255);not null" json:"fileName"`
	Status       string     `gorm:"type:varchar(20);not null;default:'pending'" json:"status"`
	Progress     int        `gorm:"not null;default:0" json:"progress"`
	CurrentChunk int        `gorm:"not null;default:0" json:"currentChunk"`
	TotalChunks  int        `gorm:"not null;default:0" json:"totalChunks"`
	Error        string     `gorm:"type:text" json:"error,omitempty"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	StartedAt    *time.Time `gorm:"default:null" json:"startedAt"`
	CompletedAt  *time.Time `gorm:"default:null" json:"completedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (ProcessingJob) TableName() string {
	return "processing_jobs"
}

// IsTerminal 判断任务是否已处于终态。终态任务不再接受任何状态转移。
func (j *ProcessingJob) IsTerminal() bool {
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// ProcessingUpdate 是事件发出时刻的任务快照。
type ProcessingUpdate struct {
	JobID        string `json:"jobId"`
	DocumentID   string `json:"documentId"`
	FileName     string `json:"fileName"`
	Status       string `json:"status"`
	Progress     int    `json:"progress"`
	CurrentChunk int    `json:"currentChunk,omitempty"`
	TotalChunks  int    `json:"totalChunks,omitempty"`
	Error        string `json:"error,omitempty"`
}

// ProcessingEvent 表示处理任务生命周期中的一个事件。
type ProcessingEvent struct {
	Type  string           `json:"type"`
	JobID string           `json:"jobId"`
	Data  ProcessingUpdate `json:"data"`
}

// Snapshot 生成当前任务的事件快照。
func (j *ProcessingJob) Snapshot() ProcessingUpdate {
	return ProcessingUpdate{
		JobID:        j.ID,
		DocumentID:   j.DocumentID,
		FileName:     j.FileName,
		Status:       j.Status,
		Progress:     j.Progress,
		CurrentChunk: j.CurrentChunk,
		TotalChunks:  j.TotalChunks,
		Error:        j.Error,
	}
}
