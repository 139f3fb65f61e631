// Package worker serves the background tasks enqueued by the API: metric
// rescoring of stored records and dataset exports to object storage.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"textsum-eval/internal/evaluation"
	"textsum-eval/internal/log"
	"textsum-eval/internal/schemas"
)

// Rescorer recomputes the metrics of a stored record.
type Rescorer interface {
	Rescore(ctx context.Context, id string) (*evaluation.Record, error)
}

// ObjectStore writes JSON documents.
type ObjectStore interface {
	PutJSON(ctx context.Context, key string, v any) (string, error)
}

type Server struct {
	Repo     evaluation.Repository
	Rescorer Rescorer
	Store    ObjectStore
	Now      func() time.Time
}

func (s *Server) mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeRescore, s.handleRescore)
	mux.HandleFunc(TypeExport, s.handleExport)
	return mux
}

func (s *Server) handleRescore(ctx context.Context, t *asynq.Task) error {
	var p RescorePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	rec, err := s.Rescorer.Rescore(ctx, p.RecordID)
	switch {
	case errors.Is(err, evaluation.ErrNotFound):
		// deleted after the task was enqueued
		log.Infof("rescore: record %s no longer exists", p.RecordID)
		return fmt.Errorf("rescore %s: %v: %w", p.RecordID, err, asynq.SkipRetry)
	case err != nil:
		return fmt.Errorf("rescore %s: %w", p.RecordID, err)
	}
	log.Infof("rescored record %s", rec.ID)
	return nil
}

func (s *Server) handleExport(ctx context.Context, t *asynq.Task) error {
	var p ExportPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if p.Key == "" {
		return fmt.Errorf("export key is empty: %w", asynq.SkipRetry)
	}
	doc, err := s.snapshot(ctx)
	if err != nil {
		return err
	}
	ref, err := s.Store.PutJSON(ctx, p.Key, doc)
	if err != nil {
		return err
	}
	log.Infof("exported %d records to %s", len(doc.Records), ref)
	return nil
}

func (s *Server) snapshot(ctx context.Context) (*schemas.Export, error) {
	recs, err := s.Repo.ListRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	doc := &schemas.Export{ExportedAt: now().UTC(), Records: make([]schemas.ExportRecord, 0, len(recs))}
	for _, rec := range recs {
		ratings, err := s.Repo.ListRatings(ctx, rec.ID)
		if errors.Is(err, evaluation.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("list ratings for %s: %w", rec.ID, err)
		}
		if ratings == nil {
			ratings = []evaluation.Rating{}
		}
		doc.Records = append(doc.Records, schemas.ExportRecord{Record: rec, Ratings: ratings})
	}
	return doc, nil
}

// Run serves tasks until the process is signalled.
func Run(redisAddr string, concurrency int, s *Server) error {
	srv := asynq.NewServer(asynq.RedisClientOpt{Addr: redisAddr}, asynq.Config{
		Concurrency: concurrency,
		Logger:      asynqLogger{},
		LogLevel:    asynq.InfoLevel,
	})
	return srv.Run(s.mux())
}

// asynqLogger routes asynq's own logging through the process logger.
type asynqLogger struct{}

func (asynqLogger) Debug(args ...any) { log.Debugf("%s", fmt.Sprint(args...)) }
func (asynqLogger) Info(args ...any)  { log.Infof("%s", fmt.Sprint(args...)) }
func (asynqLogger) Warn(args ...any)  { log.Warnf("%s", fmt.Sprint(args...)) }
func (asynqLogger) Error(args ...any) { log.Errorf("%s", fmt.Sprint(args...)) }
func (asynqLogger) Fatal(args ...any) { log.Fatalf("%s", fmt.Sprint(args...)) }
