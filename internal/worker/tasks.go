package worker

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Task types.
const (
	TypeRescore = "rescore:record"
	TypeExport  = "export:records"
)

type RescorePayload struct {
	RecordID string `json:"record_id"`
}

type ExportPayload struct {
	Key string `json:"key"`
}

func NewRescoreTask(recordID string) (*asynq.Task, error) {
	b, err := json.Marshal(RescorePayload{RecordID: recordID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeRescore, b, asynq.MaxRetry(3), asynq.Timeout(5*time.Minute)), nil
}

func NewExportTask(key string) (*asynq.Task, error) {
	b, err := json.Marshal(ExportPayload{Key: key})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeExport, b, asynq.MaxRetry(1)), nil
}

// NewExportKey returns a fresh object key for an export.
func NewExportKey(now time.Time) string {
	return fmt.Sprintf("exports/%s-%s.json", now.UTC().Format("20060102T150405Z"), uuid.NewString())
}
