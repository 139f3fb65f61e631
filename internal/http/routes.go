// Package http exposes the submission workflow, the record listing and the
// rating endpoints over JSON.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	m "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"textsum-eval/internal/aggregator"
	"textsum-eval/internal/auth"
	"textsum-eval/internal/evaluation"
	"textsum-eval/internal/log"
	"textsum-eval/internal/schemas"
	"textsum-eval/internal/worker"
	"textsum-eval/internal/workflow"
)

// Enqueuer submits background tasks. *asynq.Client satisfies it.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// ExportReader reads export documents back from object storage.
type ExportReader interface {
	GetJSON(ctx context.Context, ref string, v any) error
}

type Server struct {
	Repo     evaluation.Repository
	Agg      *aggregator.Aggregator
	Flow     *workflow.Workflow
	Tasks    Enqueuer     // nil disables rescore and export
	Exports  ExportReader // nil disables export reads
	APIToken string
}

func NewServer(addr string, s *Server) *http.Server {
	return &http.Server{Addr: addr, Handler: s.Routes(), ReadHeaderTimeout: 10 * time.Second}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(m.RequestID, m.RealIP, m.Logger, m.Recoverer)

	r.Get("/healthz", s.healthz)

	r.With(RequireAPIToken(s.APIToken)).Post("/raters", s.createRater)

	r.Group(func(r chi.Router) {
		r.Use(s.RequireRater)
		r.Post("/submissions", s.submit)
		r.Get("/records", s.listRecords)
		r.Route("/records/{id}", func(r chi.Router) {
			r.Get("/", s.getRecord)
			r.Put("/", s.updateRecord)
			r.Delete("/", s.deleteRecord)
			r.Get("/rating", s.getRating)
			r.Put("/rating", s.putRating)
			r.Post("/rescore", s.rescore)
		})
		r.Post("/exports", s.export)
		r.Get("/exports/*", s.getExport)
	})
	return r
}

func errResp(msg string) schemas.ErrorResponse {
	return schemas.ErrorResponse{Error: msg}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr maps the evaluation error taxonomy onto status codes.
func writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, evaluation.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errResp(err.Error()))
	case errors.Is(err, evaluation.ErrValidation):
		writeJSON(w, http.StatusBadRequest, errResp(err.Error()))
	case errors.Is(err, evaluation.ErrProviderFailure):
		writeJSON(w, http.StatusBadGateway, errResp(err.Error()))
	default:
		log.Errorf("request failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, errResp("internal error"))
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errResp("invalid JSON body: "+err.Error()))
		return false
	}
	return true
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if err := s.Repo.Ping(r.Context()); err != nil {
		log.Warnf("healthz: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "db error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) createRater(w http.ResponseWriter, r *http.Request) {
	var req schemas.CreateRaterRequest
	if !decode(w, r, &req) {
		return
	}
	if evaluation.Blank(req.Name) {
		writeErr(w, &evaluation.ValidationError{Field: "name", Reason: "required"})
		return
	}
	tok, hash := auth.NewToken()
	rater := &evaluation.Rater{ID: uuid.NewString(), Name: strings.TrimSpace(req.Name), TokenHash: hash}
	if err := s.Repo.CreateRater(r.Context(), rater); err != nil {
		writeErr(w, err)
		return
	}
	log.Infof("created rater %s (%s)", rater.ID, rater.Name)
	writeJSON(w, http.StatusCreated, schemas.CreateRaterResponse{RaterID: rater.ID, Name: rater.Name, Token: tok})
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request) {
	var form workflow.Form
	if !decode(w, r, &form) {
		return
	}
	out, err := s.Flow.Advance(r.Context(), raterID(r), form)
	if err != nil {
		writeErr(w, err)
		return
	}
	if out.Stage == evaluation.StageSaved {
		w.Header().Set("Location", "/records/"+out.RecordID)
		writeJSON(w, http.StatusCreated, out)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) listRecords(w http.ResponseWriter, r *http.Request) {
	recs, err := s.Repo.ListRecords(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	if recs == nil {
		recs = []evaluation.Record{}
	}
	writeJSON(w, http.StatusOK, schemas.RecordList{Records: recs})
}

func (s *Server) recordOut(ctx context.Context, rec *evaluation.Record, rater string) (*schemas.RecordOut, error) {
	mine, err := s.Agg.GetRaterScore(ctx, rec.ID, rater)
	if err != nil {
		return nil, err
	}
	return &schemas.RecordOut{Record: *rec, MyScore: mine}, nil
}

func (s *Server) getRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.Repo.GetRecord(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	out, err := s.recordOut(r.Context(), rec, raterID(r))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// updateRecord regenerates the summary and metrics of a stored record. When
// the Summary Provider fails it answers 502 and leaves the record as it was;
// unlike POST /submissions it never returns the failure sentinel as a summary.
func (s *Server) updateRecord(w http.ResponseWriter, r *http.Request) {
	var in workflow.UpdateInput
	if !decode(w, r, &in) {
		return
	}
	rec, err := s.Flow.Update(r.Context(), raterID(r), chi.URLParam(r, "id"), in)
	if err != nil {
		writeErr(w, err)
		return
	}
	out, err := s.recordOut(r.Context(), rec, raterID(r))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) deleteRecord(w http.ResponseWriter, r *http.Request) {
	if err := s.Agg.DeleteRecord(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getRating(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	score, err := s.Agg.GetRaterScore(r.Context(), id, raterID(r))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, schemas.RatingResponse{RecordID: id, Score: score})
}

func (s *Server) putRating(w http.ResponseWriter, r *http.Request) {
	var req schemas.RatingRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Score == nil {
		writeErr(w, &evaluation.ValidationError{Field: "score", Reason: "required"})
		return
	}
	id := chi.URLParam(r, "id")
	agg, err := s.Agg.UpsertRating(r.Context(), id, raterID(r), *req.Score)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, schemas.RatingResponse{RecordID: id, Score: req.Score, HumanScore: agg})
}

func (s *Server) rescore(w http.ResponseWriter, r *http.Request) {
	if s.Tasks == nil {
		writeJSON(w, http.StatusServiceUnavailable, errResp("background tasks are not configured"))
		return
	}
	id := chi.URLParam(r, "id")
	if _, err := s.Repo.GetRecord(r.Context(), id); err != nil {
		writeErr(w, err)
		return
	}
	task, err := worker.NewRescoreTask(id)
	if err != nil {
		writeErr(w, err)
		return
	}
	s.enqueue(w, r, task, "")
}

func (s *Server) export(w http.ResponseWriter, r *http.Request) {
	if s.Tasks == nil {
		writeJSON(w, http.StatusServiceUnavailable, errResp("background tasks are not configured"))
		return
	}
	key := worker.NewExportKey(time.Now())
	task, err := worker.NewExportTask(key)
	if err != nil {
		writeErr(w, err)
		return
	}
	s.enqueue(w, r, task, key)
}

func (s *Server) enqueue(w http.ResponseWriter, r *http.Request, task *asynq.Task, key string) {
	info, err := s.Tasks.EnqueueContext(r.Context(), task)
	if err != nil {
		log.Errorf("enqueue %s: %v", task.Type(), err)
		writeJSON(w, http.StatusServiceUnavailable, errResp("could not enqueue task"))
		return
	}
	writeJSON(w, http.StatusAccepted, schemas.EnqueuedResponse{TaskID: info.ID, Queue: info.Queue, Key: key})
}

func (s *Server) getExport(w http.ResponseWriter, r *http.Request) {
	if s.Exports == nil {
		writeJSON(w, http.StatusServiceUnavailable, errResp("object storage is not configured"))
		return
	}
	key := chi.URLParam(r, "*")
	if !strings.HasPrefix(key, "exports/") || strings.Contains(key, "..") {
		writeErr(w, &evaluation.ValidationError{Field: "key", Reason: "not an export key"})
		return
	}
	var doc schemas.Export
	if err := s.Exports.GetJSON(r.Context(), key, &doc); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}
