package db

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"textsum-eval/internal/evaluation"
)

var recordCols = []string{
	"id", "source_text", "predicted_summary", "reference_summary",
	"similarity_score", "edit_rate_score", "meteor_score", "human_score", "created_at",
}

func newRepo(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })
	return NewRepository(sqlx.NewDb(mockDB, "pgx")), mock
}

func TestInTxCommitsRatingUpsert(t *testing.T) {
	repo, mock := newRepo(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(`from evaluation_records where id=\$1 for update`).
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows(recordCols).AddRow("r1", "text", "pred", "ref", 0.9, nil, nil, nil, now))
	mock.ExpectExec(`insert into ratings`).
		WithArgs("r1", "u1", 4.0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`select score from ratings`).
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows([]string{"score"}).AddRow(4.0))
	mock.ExpectExec(`update evaluation_records set human_score`).
		WithArgs("r1", 4.0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ctx := context.Background()
	err := repo.InTx(ctx, func(tx evaluation.Tx) error {
		rec, err := tx.LockRecord(ctx, "r1")
		if err != nil {
			return err
		}
		assert.Equal(t, 0.9, *rec.Similarity)
		assert.Nil(t, rec.EditRate)
		if err := tx.UpsertRating(ctx, evaluation.Rating{RecordID: "r1", RaterID: "u1", Score: 4}); err != nil {
			return err
		}
		scores, err := tx.RatingScores(ctx, "r1")
		if err != nil {
			return err
		}
		return tx.SetHumanScore(ctx, "r1", evaluation.AggregateScores(scores))
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInTxRollsBackOnMissingRecord(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`for update`).WithArgs("gone").WillReturnRows(sqlmock.NewRows(recordCols))
	mock.ExpectRollback()

	ctx := context.Background()
	err := repo.InTx(ctx, func(tx evaluation.Tx) error {
		_, err := tx.LockRecord(ctx, "gone")
		return err
	})
	assert.ErrorIs(t, err, evaluation.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInTxRollsBackOnWriteError(t *testing.T) {
	repo, mock := newRepo(t)
	boom := errors.New("conn reset")

	mock.ExpectBegin()
	mock.ExpectExec(`insert into ratings`).WillReturnError(boom)
	mock.ExpectRollback()

	ctx := context.Background()
	err := repo.InTx(ctx, func(tx evaluation.Tx) error {
		return tx.UpsertRating(ctx, evaluation.Rating{RecordID: "r1", RaterID: "u1", Score: 1})
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteRecordNotFound(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(`delete from evaluation_records`).WithArgs("r1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	ctx := context.Background()
	err := repo.InTx(ctx, func(tx evaluation.Tx) error { return tx.DeleteRecord(ctx, "r1") })
	assert.ErrorIs(t, err, evaluation.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListRecords(t *testing.T) {
	repo, mock := newRepo(t)
	t0 := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`order by created_at asc`).
		WillReturnRows(sqlmock.NewRows(recordCols).
			AddRow("a", "t1", "p1", "r1", 1.0, 0.25, 0.5, 3.66, t0).
			AddRow("b", "t2", "p2", "r2", nil, nil, nil, nil, t0.Add(time.Minute)))

	recs, err := repo.ListRecords(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "a", recs[0].ID)
	assert.Equal(t, 3.66, *recs[0].HumanScore)
	assert.True(t, recs[0].Complete())
	assert.Nil(t, recs[1].HumanScore)
	assert.False(t, recs[1].Complete())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRatingNotFound(t *testing.T) {
	repo, mock := newRepo(t)
	mock.ExpectQuery(`from ratings where record_id=\$1 and rater_id=\$2`).
		WithArgs("r1", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"record_id", "rater_id", "score", "updated_at"}))

	_, err := repo.GetRating(context.Background(), "r1", "u1")
	assert.ErrorIs(t, err, evaluation.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRater(t *testing.T) {
	repo, mock := newRepo(t)
	now := time.Now().UTC()
	mock.ExpectQuery(`insert into raters`).
		WithArgs("u1", "ann", "hash").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))

	r := &evaluation.Rater{ID: "u1", Name: "ann", TokenHash: "hash"}
	require.NoError(t, repo.CreateRater(context.Background(), r))
	assert.Equal(t, now, r.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMalformedIDIsNotFound(t *testing.T) {
	badUUID := &pgconn.PgError{Code: "22P02", Message: `invalid input syntax for type uuid: "nope"`}
	ctx := context.Background()

	t.Run("get record", func(t *testing.T) {
		repo, mock := newRepo(t)
		mock.ExpectQuery(`from evaluation_records where id=\$1`).WithArgs("nope").WillReturnError(badUUID)
		_, err := repo.GetRecord(ctx, "nope")
		assert.ErrorIs(t, err, evaluation.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("get rating", func(t *testing.T) {
		repo, mock := newRepo(t)
		mock.ExpectQuery(`from ratings where record_id=\$1`).WithArgs("nope", "u1").WillReturnError(badUUID)
		_, err := repo.GetRating(ctx, "nope", "u1")
		assert.ErrorIs(t, err, evaluation.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("lock record", func(t *testing.T) {
		repo, mock := newRepo(t)
		mock.ExpectBegin()
		mock.ExpectQuery(`for update`).WithArgs("nope").WillReturnError(badUUID)
		mock.ExpectRollback()
		err := repo.InTx(ctx, func(tx evaluation.Tx) error {
			_, err := tx.LockRecord(ctx, "nope")
			return err
		})
		assert.ErrorIs(t, err, evaluation.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("delete record", func(t *testing.T) {
		repo, mock := newRepo(t)
		mock.ExpectBegin()
		mock.ExpectExec(`delete from evaluation_records`).WithArgs("nope").WillReturnError(badUUID)
		mock.ExpectRollback()
		err := repo.InTx(ctx, func(tx evaluation.Tx) error { return tx.DeleteRecord(ctx, "nope") })
		assert.ErrorIs(t, err, evaluation.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("other errors pass through", func(t *testing.T) {
		repo, mock := newRepo(t)
		mock.ExpectQuery(`from evaluation_records where id=\$1`).WithArgs("r1").
			WillReturnError(&pgconn.PgError{Code: "57014", Message: "canceling statement"})
		_, err := repo.GetRecord(ctx, "r1")
		require.Error(t, err)
		assert.NotErrorIs(t, err, evaluation.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
