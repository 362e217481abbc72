package models

import "time"

const (
	UploadPending    = "pending"
	UploadProcessing = "processing"
	UploadCompleted  = "completed"
	UploadFailed     = "failed"
)

type BulkUpload struct {
	ID          string     `json:"id"`
	WorkspaceID string     `json:"workspace_id"`
	FileName    string     `json:"file_name"`
	ObjectKey   string     `json:"object_key"`
	Format      string     `json:"format"`
	Status      string     `json:"status"`
	TotalRows   int        `json:"total_rows"`
	Imported    int        `json:"imported"`
	Duplicates  int        `json:"duplicates"`
	Invalid     int        `json:"invalid"`
	Error       *string    `json:"error,omitempty"`
	CreatedBy   string     `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}
