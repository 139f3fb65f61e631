package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"textsum-eval/internal/evaluation"
)

func seed(t *testing.T, s *Store, ids ...string) {
	t.Helper()
	err := s.InTx(context.Background(), func(tx evaluation.Tx) error {
		for _, id := range ids {
			if err := tx.InsertRecord(context.Background(), &evaluation.Record{
				ID: id, SourceText: "t", PredictedSummary: "p", ReferenceSummary: "r",
			}); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func TestRollbackDiscardsWrites(t *testing.T) {
	s := New()
	seed(t, s, "a")
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.InTx(ctx, func(tx evaluation.Tx) error {
		require.NoError(t, tx.UpsertRating(ctx, evaluation.Rating{RecordID: "a", RaterID: "u1", Score: 3}))
		require.NoError(t, tx.SetHumanScore(ctx, "a", ptr(3)))
		return boom
	})
	require.ErrorIs(t, err, boom)

	rec, err := s.GetRecord(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, rec.HumanScore)
	_, err = s.GetRating(ctx, "a", "u1")
	assert.ErrorIs(t, err, evaluation.ErrNotFound)
}

func TestUpsertOverwrites(t *testing.T) {
	s := New()
	seed(t, s, "a")
	ctx := context.Background()

	for _, score := range []float64{2, 5} {
		require.NoError(t, s.InTx(ctx, func(tx evaluation.Tx) error {
			return tx.UpsertRating(ctx, evaluation.Rating{RecordID: "a", RaterID: "u1", Score: score})
		}))
	}
	ratings, err := s.ListRatings(ctx, "a")
	require.NoError(t, err)
	require.Len(t, ratings, 1)
	assert.Equal(t, 5.0, ratings[0].Score)
}

func TestDeleteCascades(t *testing.T) {
	s := New()
	seed(t, s, "a", "b")
	ctx := context.Background()

	require.NoError(t, s.InTx(ctx, func(tx evaluation.Tx) error {
		if err := tx.UpsertRating(ctx, evaluation.Rating{RecordID: "a", RaterID: "u1", Score: 1}); err != nil {
			return err
		}
		return tx.UpsertRating(ctx, evaluation.Rating{RecordID: "b", RaterID: "u1", Score: 2})
	}))
	require.NoError(t, s.InTx(ctx, func(tx evaluation.Tx) error { return tx.DeleteRecord(ctx, "a") }))

	ratings, err := s.ListRatings(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, ratings)
	ratings, err = s.ListRatings(ctx, "b")
	require.NoError(t, err)
	assert.Len(t, ratings, 1)

	err = s.InTx(ctx, func(tx evaluation.Tx) error { return tx.DeleteRecord(ctx, "a") })
	assert.ErrorIs(t, err, evaluation.ErrNotFound)
}

func TestListRecordsAscending(t *testing.T) {
	s := New()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ctx := context.Background()
	require.NoError(t, s.InTx(ctx, func(tx evaluation.Tx) error {
		for i, id := range []string{"late", "early", "mid"} {
			offset := map[int]time.Duration{0: 2 * time.Hour, 1: 0, 2: time.Hour}[i]
			if err := tx.InsertRecord(ctx, &evaluation.Record{ID: id, CreatedAt: base.Add(offset)}); err != nil {
				return err
			}
		}
		return nil
	}))

	recs, err := s.ListRecords(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, []string{"early", "mid", "late"}, []string{recs[0].ID, recs[1].ID, recs[2].ID})
}

func TestRaterLookup(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.CreateRater(ctx, &evaluation.Rater{ID: "u1", Name: "ann", TokenHash: "h1"}))
	assert.Error(t, s.CreateRater(ctx, &evaluation.Rater{ID: "u1"}))
	assert.Error(t, s.CreateRater(ctx, &evaluation.Rater{ID: "u2", Name: "bob", TokenHash: "h1"}), "token hashes are unique")

	r, err := s.RaterByTokenHash(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, "ann", r.Name)

	_, err = s.RaterByTokenHash(ctx, "nope")
	assert.ErrorIs(t, err, evaluation.ErrNotFound)
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	s := New()
	seed(t, s, "a")
	ctx := context.Background()
	require.NoError(t, s.InTx(ctx, func(tx evaluation.Tx) error { return tx.SetHumanScore(ctx, "a", ptr(2)) }))

	rec, err := s.GetRecord(ctx, "a")
	require.NoError(t, err)
	*rec.HumanScore = 99

	again, err := s.GetRecord(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 2.0, *again.HumanScore)
}

func ptr(f float64) *float64 { return &f }
