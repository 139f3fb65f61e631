// Package memstore is an in-process evaluation.Repository used for local
// development and tests. Transactions are serialised by one mutex and work on
// a copy of the state that is swapped in on commit.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"textsum-eval/internal/evaluation"
)

type state struct {
	records map[string]evaluation.Record
	// ratings[recordID][raterID]
	ratings map[string]map[string]evaluation.Rating
	raters  map[string]evaluation.Rater
	// lastCreated keeps creation times strictly increasing so listing
	// order matches insertion order even on coarse clocks.
	lastCreated time.Time
}

func (s *state) clone() *state {
	out := &state{
		lastCreated: s.lastCreated,
		records:     make(map[string]evaluation.Record, len(s.records)),
		ratings:     make(map[string]map[string]evaluation.Rating, len(s.ratings)),
		raters:      make(map[string]evaluation.Rater, len(s.raters)),
	}
	for k, v := range s.records {
		out.records[k] = v
	}
	for k, m := range s.ratings {
		cp := make(map[string]evaluation.Rating, len(m))
		for rk, rv := range m {
			cp[rk] = rv
		}
		out.ratings[k] = cp
	}
	for k, v := range s.raters {
		out.raters[k] = v
	}
	return out
}

type Store struct {
	mu  sync.Mutex
	cur *state
	now func() time.Time
}

func New() *Store {
	return &Store{
		cur: &state{
			records: map[string]evaluation.Record{},
			ratings: map[string]map[string]evaluation.Rating{},
			raters:  map[string]evaluation.Rater{},
		},
		now: time.Now,
	}
}

func (s *Store) InTx(ctx context.Context, fn func(evaluation.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.cur.clone()
	if err := fn(&tx{st: work, now: s.now}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.cur = work
	return nil
}

func (s *Store) ListRecords(_ context.Context) ([]evaluation.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]evaluation.Record, 0, len(s.cur.records))
	for _, r := range s.cur.records {
		out = append(out, copyRecord(r))
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) GetRecord(_ context.Context, id string) (*evaluation.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.cur.records[id]
	if !ok {
		return nil, fmt.Errorf("record %s: %w", id, evaluation.ErrNotFound)
	}
	cp := copyRecord(r)
	return &cp, nil
}

func (s *Store) GetRating(_ context.Context, recordID, raterID string) (*evaluation.Rating, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.cur.ratings[recordID][raterID]
	if !ok {
		return nil, fmt.Errorf("rating %s/%s: %w", recordID, raterID, evaluation.ErrNotFound)
	}
	return &r, nil
}

func (s *Store) ListRatings(_ context.Context, recordID string) ([]evaluation.Rating, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]evaluation.Rating, 0, len(s.cur.ratings[recordID]))
	for _, r := range s.cur.ratings[recordID] {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RaterID < out[j].RaterID })
	return out, nil
}

func (s *Store) CreateRater(_ context.Context, r *evaluation.Rater) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cur.raters[r.ID]; ok {
		return fmt.Errorf("rater %s already exists", r.ID)
	}
	for _, other := range s.cur.raters {
		if other.TokenHash == r.TokenHash {
			return fmt.Errorf("rater token hash already in use")
		}
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now()
	}
	s.cur.raters[r.ID] = *r
	return nil
}

func (s *Store) RaterByTokenHash(_ context.Context, hash string) (*evaluation.Rater, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.cur.raters {
		if r.TokenHash == hash {
			rr := r
			return &rr, nil
		}
	}
	return nil, fmt.Errorf("rater: %w", evaluation.ErrNotFound)
}

func (s *Store) Ping(context.Context) error { return nil }

type tx struct {
	st  *state
	now func() time.Time
}

func (t *tx) LockRecord(_ context.Context, id string) (*evaluation.Record, error) {
	r, ok := t.st.records[id]
	if !ok {
		return nil, fmt.Errorf("record %s: %w", id, evaluation.ErrNotFound)
	}
	cp := copyRecord(r)
	return &cp, nil
}

func (t *tx) InsertRecord(_ context.Context, r *evaluation.Record) error {
	if _, ok := t.st.records[r.ID]; ok {
		return fmt.Errorf("record %s already exists", r.ID)
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = t.now()
		if !r.CreatedAt.After(t.st.lastCreated) {
			r.CreatedAt = t.st.lastCreated.Add(time.Microsecond)
		}
	}
	if r.CreatedAt.After(t.st.lastCreated) {
		t.st.lastCreated = r.CreatedAt
	}
	t.st.records[r.ID] = copyRecord(*r)
	return nil
}

func (t *tx) UpdateRecord(_ context.Context, r *evaluation.Record) error {
	cur, ok := t.st.records[r.ID]
	if !ok {
		return fmt.Errorf("record %s: %w", r.ID, evaluation.ErrNotFound)
	}
	cur.SourceText = r.SourceText
	cur.PredictedSummary = r.PredictedSummary
	cur.ReferenceSummary = r.ReferenceSummary
	cur.Metrics = copyMetrics(r.Metrics)
	t.st.records[r.ID] = cur
	return nil
}

func (t *tx) DeleteRecord(_ context.Context, id string) error {
	if _, ok := t.st.records[id]; !ok {
		return fmt.Errorf("record %s: %w", id, evaluation.ErrNotFound)
	}
	delete(t.st.records, id)
	delete(t.st.ratings, id)
	return nil
}

func (t *tx) UpsertRating(_ context.Context, r evaluation.Rating) error {
	if _, ok := t.st.records[r.RecordID]; !ok {
		return fmt.Errorf("record %s: %w", r.RecordID, evaluation.ErrNotFound)
	}
	m, ok := t.st.ratings[r.RecordID]
	if !ok {
		m = map[string]evaluation.Rating{}
		t.st.ratings[r.RecordID] = m
	}
	r.UpdatedAt = t.now()
	m[r.RaterID] = r
	return nil
}

func (t *tx) RatingScores(_ context.Context, recordID string) ([]float64, error) {
	m := t.st.ratings[recordID]
	raters := make([]string, 0, len(m))
	for id := range m {
		raters = append(raters, id)
	}
	// Fixed order keeps float summation deterministic.
	sort.Strings(raters)
	out := make([]float64, 0, len(m))
	for _, id := range raters {
		out = append(out, m[id].Score)
	}
	return out, nil
}

func (t *tx) SetHumanScore(_ context.Context, recordID string, score *float64) error {
	cur, ok := t.st.records[recordID]
	if !ok {
		return fmt.Errorf("record %s: %w", recordID, evaluation.ErrNotFound)
	}
	cur.HumanScore = copyFloat(score)
	t.st.records[recordID] = cur
	return nil
}

func copyRecord(r evaluation.Record) evaluation.Record {
	r.Metrics = copyMetrics(r.Metrics)
	r.HumanScore = copyFloat(r.HumanScore)
	return r
}

func copyMetrics(m evaluation.Metrics) evaluation.Metrics {
	return evaluation.Metrics{
		Similarity: copyFloat(m.Similarity),
		EditRate:   copyFloat(m.EditRate),
		Meteor:     copyFloat(m.Meteor),
	}
}

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
