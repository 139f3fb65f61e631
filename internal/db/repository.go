package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"textsum-eval/internal/evaluation"
)

const recordColumns = `id, source_text, predicted_summary, reference_summary,
	similarity_score, edit_rate_score, meteor_score, human_score, created_at`

// Repository is the Postgres evaluation.Repository.
type Repository struct {
	DB *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{DB: db}
}

func (r *Repository) InTx(ctx context.Context, fn func(evaluation.Tx) error) error {
	return WithTx(ctx, r.DB, func(tx *sqlx.Tx) error {
		return fn(&pgTx{tx: tx})
	})
}

func (r *Repository) ListRecords(ctx context.Context) ([]evaluation.Record, error) {
	var rows []recordRow
	if err := r.DB.SelectContext(ctx, &rows,
		`select `+recordColumns+` from evaluation_records order by created_at asc, id asc`); err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	out := make([]evaluation.Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *Repository) GetRecord(ctx context.Context, id string) (*evaluation.Record, error) {
	var row recordRow
	err := r.DB.GetContext(ctx, &row, `select `+recordColumns+` from evaluation_records where id=$1`, id)
	if err != nil {
		return nil, notFound(err, "record "+id)
	}
	rec := row.toDomain()
	return &rec, nil
}

func (r *Repository) GetRating(ctx context.Context, recordID, raterID string) (*evaluation.Rating, error) {
	var row ratingRow
	err := r.DB.GetContext(ctx, &row,
		`select record_id, rater_id, score, updated_at from ratings where record_id=$1 and rater_id=$2`,
		recordID, raterID)
	if err != nil {
		return nil, notFound(err, "rating "+recordID+"/"+raterID)
	}
	rating := row.toDomain()
	return &rating, nil
}

func (r *Repository) ListRatings(ctx context.Context, recordID string) ([]evaluation.Rating, error) {
	var rows []ratingRow
	if err := r.DB.SelectContext(ctx, &rows,
		`select record_id, rater_id, score, updated_at from ratings where record_id=$1 order by rater_id`,
		recordID); err != nil {
		return nil, fmt.Errorf("list ratings: %w", err)
	}
	out := make([]evaluation.Rating, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *Repository) CreateRater(ctx context.Context, rater *evaluation.Rater) error {
	err := r.DB.GetContext(ctx, &rater.CreatedAt,
		`insert into raters(id, name, token_hash) values($1,$2,$3) returning created_at`,
		rater.ID, rater.Name, rater.TokenHash)
	if err != nil {
		return fmt.Errorf("create rater: %w", err)
	}
	return nil
}

func (r *Repository) RaterByTokenHash(ctx context.Context, hash string) (*evaluation.Rater, error) {
	var row raterRow
	if err := r.DB.GetContext(ctx, &row,
		`select id, name, token_hash, created_at from raters where token_hash=$1`, hash); err != nil {
		return nil, notFound(err, "rater")
	}
	return &evaluation.Rater{ID: row.ID, Name: row.Name, TokenHash: row.TokenHash, CreatedAt: row.CreatedAt}, nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.DB.PingContext(ctx)
}

type pgTx struct {
	tx *sqlx.Tx
}

// LockRecord takes a row lock so rating writes for the same record
// serialise until commit.
func (t *pgTx) LockRecord(ctx context.Context, id string) (*evaluation.Record, error) {
	var row recordRow
	err := t.tx.GetContext(ctx, &row,
		`select `+recordColumns+` from evaluation_records where id=$1 for update`, id)
	if err != nil {
		return nil, notFound(err, "record "+id)
	}
	rec := row.toDomain()
	return &rec, nil
}

func (t *pgTx) InsertRecord(ctx context.Context, rec *evaluation.Record) error {
	err := t.tx.GetContext(ctx, &rec.CreatedAt,
		`insert into evaluation_records(id, source_text, predicted_summary, reference_summary,
			similarity_score, edit_rate_score, meteor_score)
		values($1,$2,$3,$4,$5,$6,$7) returning created_at`,
		rec.ID, rec.SourceText, rec.PredictedSummary, rec.ReferenceSummary,
		toNull(rec.Similarity), toNull(rec.EditRate), toNull(rec.Meteor))
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateRecord(ctx context.Context, rec *evaluation.Record) error {
	res, err := t.tx.ExecContext(ctx,
		`update evaluation_records set source_text=$2, predicted_summary=$3, reference_summary=$4,
			similarity_score=$5, edit_rate_score=$6, meteor_score=$7
		where id=$1`,
		rec.ID, rec.SourceText, rec.PredictedSummary, rec.ReferenceSummary,
		toNull(rec.Similarity), toNull(rec.EditRate), toNull(rec.Meteor))
	if err != nil {
		return fmt.Errorf("update record: %w", err)
	}
	return affected(res, "record "+rec.ID)
}

// DeleteRecord relies on ratings.record_id ... on delete cascade.
func (t *pgTx) DeleteRecord(ctx context.Context, id string) error {
	res, err := t.tx.ExecContext(ctx, `delete from evaluation_records where id=$1`, id)
	if err != nil {
		return notFound(err, "delete record "+id)
	}
	return affected(res, "record "+id)
}

func (t *pgTx) UpsertRating(ctx context.Context, r evaluation.Rating) error {
	_, err := t.tx.ExecContext(ctx,
		`insert into ratings(record_id, rater_id, score) values($1,$2,$3)
		on conflict (record_id, rater_id) do update set score=excluded.score, updated_at=now()`,
		r.RecordID, r.RaterID, r.Score)
	if err != nil {
		return fmt.Errorf("upsert rating: %w", err)
	}
	return nil
}

func (t *pgTx) RatingScores(ctx context.Context, recordID string) ([]float64, error) {
	var scores []float64
	if err := t.tx.SelectContext(ctx, &scores,
		`select score from ratings where record_id=$1 order by rater_id`, recordID); err != nil {
		return nil, fmt.Errorf("rating scores: %w", err)
	}
	return scores, nil
}

func (t *pgTx) SetHumanScore(ctx context.Context, recordID string, score *float64) error {
	res, err := t.tx.ExecContext(ctx,
		`update evaluation_records set human_score=$2 where id=$1`, recordID, toNull(score))
	if err != nil {
		return fmt.Errorf("set human score: %w", err)
	}
	return affected(res, "record "+recordID)
}

// invalidTextRepresentation is returned when a malformed id is compared
// with a uuid column. No row can match such an id.
const invalidTextRepresentation = "22P02"

func notFound(err error, what string) error {
	var pgErr *pgconn.PgError
	if errors.Is(err, sql.ErrNoRows) || (errors.As(err, &pgErr) && pgErr.Code == invalidTextRepresentation) {
		return fmt.Errorf("%s: %w", what, evaluation.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", what, err)
}

func affected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, evaluation.ErrNotFound)
	}
	return nil
}
