// Package aggregator maintains the per-record mean human score. The rating
// ledger is the source of truth; Record.HumanScore is rewritten in the same
// transaction as every ledger write so the two never drift.
package aggregator

import (
	"context"
	"errors"
	"fmt"

	"textsum-eval/internal/evaluation"
	"textsum-eval/internal/log"
)

type Aggregator struct {
	repo evaluation.Repository
}

func New(repo evaluation.Repository) *Aggregator {
	return &Aggregator{repo: repo}
}

// UpsertRating inserts or overwrites the rater's score for a record and
// returns the recomputed aggregate.
func (a *Aggregator) UpsertRating(ctx context.Context, recordID, raterID string, score float64) (*float64, error) {
	if err := validateRating(raterID, score); err != nil {
		return nil, err
	}
	var agg *float64
	err := a.repo.InTx(ctx, func(tx evaluation.Tx) error {
		if _, err := tx.LockRecord(ctx, recordID); err != nil {
			return err
		}
		var err error
		agg, err = rate(ctx, tx, recordID, raterID, score)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("upsert rating: %w", err)
	}
	log.Debugf("record %s rated by %s, aggregate now %v", recordID, raterID, fmtScore(agg))
	return agg, nil
}

// GetRaterScore returns the rater's own prior score, or nil if they have not
// rated the record. Other raters' scores are never exposed.
func (a *Aggregator) GetRaterScore(ctx context.Context, recordID, raterID string) (*float64, error) {
	if _, err := a.repo.GetRecord(ctx, recordID); err != nil {
		return nil, err
	}
	r, err := a.repo.GetRating(ctx, recordID, raterID)
	if errors.Is(err, evaluation.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s := r.Score
	return &s, nil
}

// RecomputeAggregate rebuilds the cached aggregate from the ledger. The
// result is nil when the record has no ratings.
func (a *Aggregator) RecomputeAggregate(ctx context.Context, recordID string) (*float64, error) {
	var agg *float64
	err := a.repo.InTx(ctx, func(tx evaluation.Tx) error {
		if _, err := tx.LockRecord(ctx, recordID); err != nil {
			return err
		}
		var err error
		agg, err = recompute(ctx, tx, recordID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("recompute aggregate: %w", err)
	}
	return agg, nil
}

// DeleteRecord removes the record and all of its ratings.
func (a *Aggregator) DeleteRecord(ctx context.Context, recordID string) error {
	err := a.repo.InTx(ctx, func(tx evaluation.Tx) error {
		return tx.DeleteRecord(ctx, recordID)
	})
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

// Create persists a new record and, when score is non-nil, the creating
// rater's score, in one transaction.
func (a *Aggregator) Create(ctx context.Context, rec *evaluation.Record, raterID string, score *float64) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if score != nil {
		if err := validateRating(raterID, *score); err != nil {
			return err
		}
	}
	err := a.repo.InTx(ctx, func(tx evaluation.Tx) error {
		rec.HumanScore = nil
		if err := tx.InsertRecord(ctx, rec); err != nil {
			return err
		}
		if score == nil {
			return nil
		}
		agg, err := rate(ctx, tx, rec.ID, raterID, *score)
		if err != nil {
			return err
		}
		rec.HumanScore = agg
		return nil
	})
	if err != nil {
		return fmt.Errorf("create record: %w", err)
	}
	return nil
}

// Update refreshes the text fields and metrics of an existing record. A nil
// score leaves the ledger untouched; otherwise the rater's entry is upserted.
// On return rec carries the stored creation time and aggregate.
func (a *Aggregator) Update(ctx context.Context, rec *evaluation.Record, raterID string, score *float64) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if score != nil {
		if err := validateRating(raterID, *score); err != nil {
			return err
		}
	}
	err := a.repo.InTx(ctx, func(tx evaluation.Tx) error {
		cur, err := tx.LockRecord(ctx, rec.ID)
		if err != nil {
			return err
		}
		if err := tx.UpdateRecord(ctx, rec); err != nil {
			return err
		}
		rec.CreatedAt = cur.CreatedAt
		rec.HumanScore = cur.HumanScore
		if score == nil {
			return nil
		}
		agg, err := rate(ctx, tx, rec.ID, raterID, *score)
		if err != nil {
			return err
		}
		rec.HumanScore = agg
		return nil
	})
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	return nil
}

func rate(ctx context.Context, tx evaluation.Tx, recordID, raterID string, score float64) (*float64, error) {
	if err := tx.UpsertRating(ctx, evaluation.Rating{RecordID: recordID, RaterID: raterID, Score: score}); err != nil {
		return nil, err
	}
	agg, err := recompute(ctx, tx, recordID)
	if err != nil {
		return nil, err
	}
	if agg == nil {
		return nil, fmt.Errorf("record %s has no ratings after upsert: %w", recordID, evaluation.ErrConsistency)
	}
	return agg, nil
}

func recompute(ctx context.Context, tx evaluation.Tx, recordID string) (*float64, error) {
	scores, err := tx.RatingScores(ctx, recordID)
	if err != nil {
		return nil, err
	}
	agg := evaluation.AggregateScores(scores)
	if err := tx.SetHumanScore(ctx, recordID, agg); err != nil {
		return nil, err
	}
	return agg, nil
}

func validateRating(raterID string, score float64) error {
	if evaluation.Blank(raterID) {
		return &evaluation.ValidationError{Field: "rater_id", Reason: "required"}
	}
	return evaluation.ValidateScore(score)
}

func fmtScore(f *float64) string {
	if f == nil {
		return "none"
	}
	return fmt.Sprintf("%.2f", *f)
}
