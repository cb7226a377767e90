// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

// DocumentProcessingTask represents the data structure for one document ingestion run.
type DocumentProcessingTask struct {
	JobID          string `json:"job_id"`
	DocumentID     string `json:"document_id"`
	FileName       string `json:"file_name"`
	MimeType       string `json:"mime_type"`
	OwnerID        uint   `json:"owner_id"`
	Classification string `json:"classification"`
}
