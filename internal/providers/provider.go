// Package providers adapts external summarization and text-similarity
// services to two small interfaces. Every provider built by the registry is
// wrapped with a timeout so a hung backend surfaces as a provider failure.
package providers

import (
	"context"
	"fmt"
	"time"

	"textsum-eval/internal/evaluation"
)

// SummaryProvider generates a summary for a source text.
type SummaryProvider interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// MetricProvider scores a candidate text against a reference.
type MetricProvider interface {
	Score(ctx context.Context, candidate, reference string) (float64, error)
}

type SummaryFunc func(ctx context.Context, text string) (string, error)

func (f SummaryFunc) Summarize(ctx context.Context, text string) (string, error) { return f(ctx, text) }

type MetricFunc func(ctx context.Context, candidate, reference string) (float64, error)

func (f MetricFunc) Score(ctx context.Context, candidate, reference string) (float64, error) {
	return f(ctx, candidate, reference)
}

// GuardSummary bounds p by timeout and tags its errors with name.
func GuardSummary(name string, p SummaryProvider, timeout time.Duration) SummaryProvider {
	return SummaryFunc(func(ctx context.Context, text string) (string, error) {
		return guarded(ctx, name, timeout, func(ctx context.Context) (string, error) {
			return p.Summarize(ctx, text)
		})
	})
}

// GuardMetric bounds p by timeout and tags its errors with name.
func GuardMetric(name string, p MetricProvider, timeout time.Duration) MetricProvider {
	return MetricFunc(func(ctx context.Context, candidate, reference string) (float64, error) {
		return guarded(ctx, name, timeout, func(ctx context.Context) (float64, error) {
			return p.Score(ctx, candidate, reference)
		})
	})
}

type result[T any] struct {
	v   T
	err error
}

// guarded returns as soon as the deadline passes even if call ignores ctx.
func guarded[T any](ctx context.Context, name string, timeout time.Duration, call func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan result[T], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				done <- result[T]{zero, fmt.Errorf("panic: %v", r)}
			}
		}()
		v, err := call(ctx)
		done <- result[T]{v, err}
	}()

	var zero T
	select {
	case res := <-done:
		if res.err != nil {
			return zero, &evaluation.ProviderError{Provider: name, Err: res.err}
		}
		return res.v, nil
	case <-ctx.Done():
		return zero, &evaluation.ProviderError{Provider: name, Err: ctx.Err()}
	}
}
