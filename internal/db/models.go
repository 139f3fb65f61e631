package db

import (
	"database/sql"
	"time"

	"textsum-eval/internal/evaluation"
)

type recordRow struct {
	ID               string          `db:"id"`
	SourceText       string          `db:"source_text"`
	PredictedSummary string          `db:"predicted_summary"`
	ReferenceSummary string          `db:"reference_summary"`
	SimilarityScore  sql.NullFloat64 `db:"similarity_score"`
	EditRateScore    sql.NullFloat64 `db:"edit_rate_score"`
	MeteorScore      sql.NullFloat64 `db:"meteor_score"`
	HumanScore       sql.NullFloat64 `db:"human_score"`
	CreatedAt        time.Time       `db:"created_at"`
}

func (r recordRow) toDomain() evaluation.Record {
	return evaluation.Record{
		ID:               r.ID,
		SourceText:       r.SourceText,
		PredictedSummary: r.PredictedSummary,
		ReferenceSummary: r.ReferenceSummary,
		Metrics: evaluation.Metrics{
			Similarity: fromNull(r.SimilarityScore),
			EditRate:   fromNull(r.EditRateScore),
			Meteor:     fromNull(r.MeteorScore),
		},
		HumanScore: fromNull(r.HumanScore),
		CreatedAt:  r.CreatedAt,
	}
}

type ratingRow struct {
	RecordID  string    `db:"record_id"`
	RaterID   string    `db:"rater_id"`
	Score     float64   `db:"score"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r ratingRow) toDomain() evaluation.Rating {
	return evaluation.Rating(r)
}

type raterRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	TokenHash string    `db:"token_hash"`
	CreatedAt time.Time `db:"created_at"`
}

func fromNull(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func toNull(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
