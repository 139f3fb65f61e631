package providers

import "context"

// Echo returns the source text unchanged. Used for local runs without a model.
type Echo struct{}

func (Echo) Summarize(_ context.Context, text string) (string, error) { return text, nil }

// Static always returns Value, or Err when set.
type Static struct {
	Value float64
	Err   error
}

func (s Static) Score(context.Context, string, string) (float64, error) {
	if s.Err != nil {
		return 0, s.Err
	}
	return s.Value, nil
}
