package evaluation

import "context"

// Tx is the set of operations available inside one repository transaction.
// Implementations must roll back every write made through the Tx when the
// function passed to Repository.InTx returns an error.
type Tx interface {
	// LockRecord loads a record and holds it against concurrent rating
	// writes until the transaction ends. Returns ErrNotFound if absent.
	LockRecord(ctx context.Context, id string) (*Record, error)
	InsertRecord(ctx context.Context, r *Record) error
	// UpdateRecord overwrites the text, summaries and metrics of r.ID.
	// The cached human score is not touched.
	UpdateRecord(ctx context.Context, r *Record) error
	// DeleteRecord removes the record and every rating referencing it.
	DeleteRecord(ctx context.Context, id string) error

	// UpsertRating inserts or overwrites the (RecordID, RaterID) entry.
	UpsertRating(ctx context.Context, r Rating) error
	RatingScores(ctx context.Context, recordID string) ([]float64, error)
	SetHumanScore(ctx context.Context, recordID string, score *float64) error
}

// Repository persists evaluation records, the rating ledger and raters.
type Repository interface {
	InTx(ctx context.Context, fn func(Tx) error) error

	// ListRecords returns every record ordered by creation time ascending.
	ListRecords(ctx context.Context) ([]Record, error)
	GetRecord(ctx context.Context, id string) (*Record, error)
	// GetRating returns ErrNotFound when the rater has no entry.
	GetRating(ctx context.Context, recordID, raterID string) (*Rating, error)
	ListRatings(ctx context.Context, recordID string) ([]Rating, error)

	CreateRater(ctx context.Context, r *Rater) error
	RaterByTokenHash(ctx context.Context, hash string) (*Rater, error)

	Ping(ctx context.Context) error
}
