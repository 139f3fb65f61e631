// Package scoring runs the three metric providers for a candidate/reference
// pair on a bounded goroutine pool.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/panjf2000/ants/v2"

	"textsum-eval/internal/evaluation"
	"textsum-eval/internal/log"
	"textsum-eval/internal/providers"
)

type Scorer struct {
	similarity providers.MetricProvider
	editRate   providers.MetricProvider
	meteor     providers.MetricProvider
	pool       *ants.Pool
}

// New builds a scorer whose pool runs at most poolSize provider calls at once
// across all concurrent requests.
func New(similarity, editRate, meteor providers.MetricProvider, poolSize int) (*Scorer, error) {
	if poolSize <= 0 {
		return nil, errors.New("pool size must be greater than 0")
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, fmt.Errorf("create metric pool: %w", err)
	}
	return &Scorer{similarity: similarity, editRate: editRate, meteor: meteor, pool: pool}, nil
}

// Close releases the pool.
func (s *Scorer) Close() {
	s.pool.Release()
}

type job struct {
	name string
	p    providers.MetricProvider
	dst  **float64
}

// Score calls all three providers. Any failure fails the whole call with an
// error wrapping evaluation.ErrProviderFailure; partial results are dropped.
func (s *Scorer) Score(ctx context.Context, candidate, reference string) (evaluation.Metrics, error) {
	var out evaluation.Metrics
	jobs := []job{
		{providers.MetricSimilarity, s.similarity, &out.Similarity},
		{providers.MetricEditRate, s.editRate, &out.EditRate},
		{providers.MetricMeteor, s.meteor, &out.Meteor},
	}

	var (
		mu   sync.Mutex
		merr *multierror.Error
		wg   sync.WaitGroup
	)
	fail := func(name string, err error) {
		mu.Lock()
		defer mu.Unlock()
		var pe *evaluation.ProviderError
		if !errors.As(err, &pe) {
			err = &evaluation.ProviderError{Provider: name, Err: err}
		}
		merr = multierror.Append(merr, err)
	}

	for _, j := range jobs {
		j := j
		if err := ctx.Err(); err != nil {
			fail(j.name, err)
			continue
		}
		wg.Add(1)
		err := s.pool.Submit(func() {
			defer wg.Done()
			// the request may have gone away while this job waited for a worker
			if err := ctx.Err(); err != nil {
				fail(j.name, err)
				return
			}
			v, err := j.p.Score(ctx, candidate, reference)
			if err != nil {
				fail(j.name, err)
				return
			}
			rounded, err := evaluation.RoundSignificant(v)
			if err != nil {
				fail(j.name, err)
				return
			}
			*j.dst = &rounded
		})
		if err != nil {
			wg.Done()
			fail(j.name, fmt.Errorf("submit: %w", err))
		}
	}
	wg.Wait()

	if err := merr.ErrorOrNil(); err != nil {
		log.Warnf("metric scoring failed: %v", err)
		return evaluation.Metrics{}, fmt.Errorf("%w: %w", evaluation.ErrProviderFailure, err)
	}
	return out, nil
}
