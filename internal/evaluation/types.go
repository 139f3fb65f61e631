// Package evaluation holds the domain model shared by the aggregator, the
// submission workflow and the repositories: evaluation records, the rating
// ledger and the error taxonomy.
package evaluation

import (
	"strings"
	"time"
)

// Record is one evaluated (source text, predicted summary, reference summary)
// triple. HumanScore is a cached projection of the rating ledger and is only
// written by the aggregator.
type Record struct {
	ID               string    `json:"id"`
	SourceText       string    `json:"source_text"`
	PredictedSummary string    `json:"predicted_summary"`
	ReferenceSummary string    `json:"reference_summary"`
	Metrics                    // similarity, edit rate, meteor
	HumanScore       *float64  `json:"human_score,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// Metrics are the Metric Provider results, rounded to 4 significant digits.
type Metrics struct {
	Similarity *float64 `json:"similarity_score,omitempty"`
	EditRate   *float64 `json:"edit_rate_score,omitempty"`
	Meteor     *float64 `json:"meteor_score,omitempty"`
}

// Complete reports whether all three metrics are present.
func (m Metrics) Complete() bool {
	return m.Similarity != nil && m.EditRate != nil && m.Meteor != nil
}

// Rating is a single rater's score for a record. At most one exists per
// (RecordID, RaterID).
type Rating struct {
	RecordID  string    `json:"record_id"`
	RaterID   string    `json:"rater_id"`
	Score     float64   `json:"score"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Rater is an identity allowed to submit scores. Only the token hash is kept.
type Rater struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	TokenHash string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the fields a persisted record must carry.
func (r *Record) Validate() error {
	if Blank(r.SourceText) {
		return &ValidationError{Field: "source_text", Reason: "required"}
	}
	if Blank(r.PredictedSummary) {
		return &ValidationError{Field: "predicted_summary", Reason: "required"}
	}
	if Blank(r.ReferenceSummary) {
		return &ValidationError{Field: "reference_summary", Reason: "required"}
	}
	return nil
}

// Blank reports whether s has no non-space characters.
func Blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
