package scoring

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"textsum-eval/internal/evaluation"
	"textsum-eval/internal/providers"
)

func newScorer(t *testing.T, sim, ter, meteor providers.MetricProvider) *Scorer {
	t.Helper()
	s, err := New(sim, ter, meteor, 3)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestScoreRoundsToFourSignificantDigits(t *testing.T) {
	s := newScorer(t,
		providers.Static{Value: 1.0},
		providers.Static{Value: 0.333333333},
		providers.Static{Value: 0.87654321},
	)
	m, err := s.Score(context.Background(), "AB", "AB")
	require.NoError(t, err)
	require.True(t, m.Complete())
	assert.Equal(t, 1.0, *m.Similarity)
	assert.Equal(t, 0.3333, *m.EditRate)
	assert.Equal(t, 0.8765, *m.Meteor)
}

func TestScoreIsDeterministic(t *testing.T) {
	s := newScorer(t, providers.Static{Value: 0.12345}, providers.Static{Value: 2}, providers.Static{Value: 0.5})
	a, err := s.Score(context.Background(), "x", "y")
	require.NoError(t, err)
	b, err := s.Score(context.Background(), "x", "y")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestScoreCollectsAllFailures(t *testing.T) {
	s := newScorer(t,
		providers.Static{Value: 1},
		providers.Static{Err: errors.New("ter down")},
		providers.Static{Value: math.NaN()},
	)
	m, err := s.Score(context.Background(), "a", "b")
	require.Error(t, err)
	assert.ErrorIs(t, err, evaluation.ErrProviderFailure)
	assert.Contains(t, err.Error(), "ter down")
	assert.Contains(t, err.Error(), "meteor")
	assert.Equal(t, evaluation.Metrics{}, m, "partial results are not returned")
}

func TestScoreRunsProvidersConcurrently(t *testing.T) {
	var inFlight, peak int32
	slow := providers.MetricFunc(func(context.Context, string, string) (float64, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return 0.5, nil
	})
	s := newScorer(t, slow, slow, slow)
	_, err := s.Score(context.Background(), "a", "b")
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&peak))
}

func TestNewRejectsBadPoolSize(t *testing.T) {
	_, err := New(providers.Static{}, providers.Static{}, providers.Static{}, 0)
	assert.Error(t, err)
}

func TestScoreSkipsProvidersOnceContextIsDone(t *testing.T) {
	var calls int32
	counting := providers.MetricFunc(func(context.Context, string, string) (float64, error) {
		atomic.AddInt32(&calls, 1)
		return 0.5, nil
	})

	t.Run("cancelled before scoring", func(t *testing.T) {
		atomic.StoreInt32(&calls, 0)
		s := newScorer(t, counting, counting, counting)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := s.Score(ctx, "a", "b")
		assert.ErrorIs(t, err, evaluation.ErrProviderFailure)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, atomic.LoadInt32(&calls))
	})

	t.Run("cancelled while waiting for a worker", func(t *testing.T) {
		atomic.StoreInt32(&calls, 0)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		first := providers.MetricFunc(func(context.Context, string, string) (float64, error) {
			cancel()
			return 1, nil
		})
		// one worker: the other two jobs queue behind the first
		s, err := New(first, counting, counting, 1)
		require.NoError(t, err)
		defer s.Close()

		_, err = s.Score(ctx, "a", "b")
		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, atomic.LoadInt32(&calls))
	})
}
