// Package schemas holds the JSON shapes of the HTTP API and of dataset
// exports.
package schemas

import (
	"time"

	"textsum-eval/internal/evaluation"
)

type CreateRaterRequest struct {
	Name string `json:"name"`
}

// CreateRaterResponse carries the only copy of the rater's token.
type CreateRaterResponse struct {
	RaterID string `json:"rater_id"`
	Name    string `json:"name"`
	Token   string `json:"token"`
}

// RecordOut is a record as seen by one rater: the shared aggregate plus the
// caller's own score, never anyone else's.
type RecordOut struct {
	evaluation.Record
	MyScore *float64 `json:"my_score"`
}

type RecordList struct {
	Records []evaluation.Record `json:"records"`
}

type RatingRequest struct {
	Score *float64 `json:"score"`
}

type RatingResponse struct {
	RecordID   string   `json:"record_id"`
	Score      *float64 `json:"score"`
	HumanScore *float64 `json:"human_score,omitempty"`
}

type EnqueuedResponse struct {
	TaskID string `json:"task_id"`
	Queue  string `json:"queue"`
	// Key is where an export will be written.
	Key string `json:"key,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// Export is the document written to object storage by the export task.
type Export struct {
	ExportedAt time.Time      `json:"exported_at"`
	Records    []ExportRecord `json:"records"`
}

type ExportRecord struct {
	evaluation.Record
	Ratings []evaluation.Rating `json:"ratings"`
}
