// Package workflow drives the three-stage submission form: generate a
// summary, compute metrics against the reference, then save with a human
// score. Each request carries the form; Advance performs exactly one step.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"

	"textsum-eval/internal/aggregator"
	"textsum-eval/internal/evaluation"
	"textsum-eval/internal/log"
	"textsum-eval/internal/providers"
)

// SummaryFailure replaces the predicted summary when the Summary Provider
// fails. A form still carrying it is treated as having no summary.
const SummaryFailure = "Couldn't get the summary! Please try again!"

// RecordsPath is where a saved submission sends the caller.
const RecordsPath = "/records"

// Action is the step Decide selects for a form.
type Action int

const (
	GenerateSummary Action = iota + 1
	ComputeMetrics
	Save
)

func (a Action) String() string {
	switch a {
	case GenerateSummary:
		return "generate_summary"
	case ComputeMetrics:
		return "compute_metrics"
	case Save:
		return "save"
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// Form is the submission state exchanged with the client on every step.
type Form struct {
	Stage            evaluation.Stage `json:"stage"`
	SourceText       string           `json:"source_text"`
	PredictedSummary string           `json:"predicted_summary"`
	ReferenceSummary string           `json:"reference_summary"`
	evaluation.Metrics
	HumanScore *float64 `json:"human_score"`
	RecordID   string   `json:"record_id,omitempty"`
	Redirect   string   `json:"redirect,omitempty"`
}

// Scorer computes the three metrics for a candidate/reference pair.
type Scorer interface {
	Score(ctx context.Context, candidate, reference string) (evaluation.Metrics, error)
}

// RecordGetter looks up stored records.
type RecordGetter interface {
	GetRecord(ctx context.Context, id string) (*evaluation.Record, error)
}

type Deps struct {
	Summary    providers.SummaryProvider
	Scorer     Scorer
	Aggregator *aggregator.Aggregator
	Records    RecordGetter
	// Source texts of at most this many characters are used as their own
	// summary without calling the provider.
	ShortTextThreshold int
}

type Workflow struct {
	summary   providers.SummaryProvider
	scorer    Scorer
	agg       *aggregator.Aggregator
	records   RecordGetter
	shortText int
}

func New(d Deps) *Workflow {
	return &Workflow{
		summary:   d.Summary,
		scorer:    d.Scorer,
		agg:       d.Aggregator,
		records:   d.Records,
		shortText: d.ShortTextThreshold,
	}
}

// Decide picks the next step for f from its stage and fields.
func Decide(f Form) (Action, error) {
	if !f.Stage.Valid() {
		return 0, &evaluation.ValidationError{Field: "stage", Reason: fmt.Sprintf("unknown stage %q", f.Stage)}
	}
	if f.Stage == evaluation.StageSaved {
		return 0, &evaluation.ValidationError{Field: "stage", Reason: "submission already saved"}
	}
	if evaluation.Blank(f.SourceText) {
		return 0, &evaluation.ValidationError{Field: "source_text", Reason: "required"}
	}
	if f.HumanScore != nil {
		if err := evaluation.ValidateScore(*f.HumanScore); err != nil {
			return 0, err
		}
	}
	if needsSummary(f.PredictedSummary) {
		return GenerateSummary, nil
	}
	if evaluation.Blank(f.ReferenceSummary) {
		return 0, &evaluation.ValidationError{Field: "reference_summary", Reason: "required"}
	}
	if f.HumanScore == nil || f.Stage != evaluation.StageMetricsComputed {
		return ComputeMetrics, nil
	}
	return Save, nil
}

// Advance runs the step Decide picks for f and returns the updated form.
// Summary Provider failures are not errors: the sentinel is returned as the
// summary so the client can retry. Metric failures leave the stage where it
// was and return an error wrapping evaluation.ErrProviderFailure.
func (w *Workflow) Advance(ctx context.Context, raterID string, f Form) (Form, error) {
	action, err := Decide(f)
	if err != nil {
		return f, err
	}
	log.Debugf("submission step %s at stage %q", action, f.Stage)

	switch action {
	case GenerateSummary:
		summary, err := w.generate(ctx, f.SourceText)
		if err != nil {
			log.Warnf("summary generation failed: %v", err)
			summary = SummaryFailure
		}
		f.PredictedSummary = summary
		f.Metrics = evaluation.Metrics{}
		f.Stage = evaluation.StageSummaryGenerated
		return f, nil

	case ComputeMetrics:
		m, err := w.scorer.Score(ctx, f.PredictedSummary, f.ReferenceSummary)
		if err != nil {
			return f, err
		}
		f.Metrics = m
		f.Stage = evaluation.StageMetricsComputed
		return f, nil

	case Save:
		m, err := w.scorer.Score(ctx, f.PredictedSummary, f.ReferenceSummary)
		if err != nil {
			return f, err
		}
		rec := &evaluation.Record{
			ID:               uuid.NewString(),
			SourceText:       f.SourceText,
			PredictedSummary: f.PredictedSummary,
			ReferenceSummary: f.ReferenceSummary,
			Metrics:          m,
		}
		if err := w.agg.Create(ctx, rec, raterID, f.HumanScore); err != nil {
			return f, err
		}
		log.Infof("record %s saved by rater %s", rec.ID, raterID)
		f.Metrics = m
		f.Stage = evaluation.StageSaved
		f.RecordID = rec.ID
		f.Redirect = RecordsPath
		return f, nil
	}
	return f, fmt.Errorf("unhandled action %s", action)
}

// UpdateInput carries the editable fields of a stored record. A nil
// HumanScore means "no score": the record is refreshed but the rating ledger
// is not written.
type UpdateInput struct {
	SourceText       string   `json:"source_text"`
	ReferenceSummary string   `json:"reference_summary"`
	HumanScore       *float64 `json:"human_score"`
}

// Update regenerates the summary, recomputes metrics and stores the result.
// Unlike Advance, a summary failure aborts the update so the stored summary
// is never replaced by the sentinel.
func (w *Workflow) Update(ctx context.Context, raterID, id string, in UpdateInput) (*evaluation.Record, error) {
	if evaluation.Blank(in.SourceText) {
		return nil, &evaluation.ValidationError{Field: "source_text", Reason: "required"}
	}
	if evaluation.Blank(in.ReferenceSummary) {
		return nil, &evaluation.ValidationError{Field: "reference_summary", Reason: "required"}
	}
	if in.HumanScore != nil {
		if err := evaluation.ValidateScore(*in.HumanScore); err != nil {
			return nil, err
		}
	}
	if _, err := w.records.GetRecord(ctx, id); err != nil {
		return nil, err
	}

	summary, err := w.generate(ctx, in.SourceText)
	if err != nil {
		return nil, err
	}
	m, err := w.scorer.Score(ctx, summary, in.ReferenceSummary)
	if err != nil {
		return nil, err
	}
	rec := &evaluation.Record{
		ID:               id,
		SourceText:       in.SourceText,
		PredictedSummary: summary,
		ReferenceSummary: in.ReferenceSummary,
		Metrics:          m,
	}
	if err := w.agg.Update(ctx, rec, raterID, in.HumanScore); err != nil {
		return nil, err
	}
	return rec, nil
}

// Rescore recomputes metrics for the stored summaries of a record. Text
// fields and ratings are left as they are.
func (w *Workflow) Rescore(ctx context.Context, id string) (*evaluation.Record, error) {
	rec, err := w.records.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	m, err := w.scorer.Score(ctx, rec.PredictedSummary, rec.ReferenceSummary)
	if err != nil {
		return nil, err
	}
	rec.Metrics = m
	if err := w.agg.Update(ctx, rec, "", nil); err != nil {
		return nil, err
	}
	return rec, nil
}

func (w *Workflow) generate(ctx context.Context, text string) (string, error) {
	if utf8.RuneCountInString(text) <= w.shortText {
		return text, nil
	}
	summary, err := w.summary.Summarize(ctx, text)
	if err != nil {
		var pe *evaluation.ProviderError
		if !errors.As(err, &pe) {
			err = &evaluation.ProviderError{Provider: "summary", Err: err}
		}
		return "", err
	}
	return summary, nil
}

func needsSummary(s string) bool {
	return evaluation.Blank(s) || s == SummaryFailure
}
