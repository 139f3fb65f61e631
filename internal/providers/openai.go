package providers

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

const summarizePrompt = "Summarize the user's text in one or two sentences. Reply with the summary only."

// NewOpenAIClient builds a client for the OpenAI API or a compatible server.
func NewOpenAIClient(apiKey, baseURL string, extra ...option.RequestOption) openai.Client {
	var opts []option.RequestOption
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	opts = append(opts, extra...)
	return openai.NewClient(opts...)
}

// OpenAISummarizer summarizes through a chat completion model.
type OpenAISummarizer struct {
	Client openai.Client
	Model  string
}

func (s *OpenAISummarizer) Summarize(ctx context.Context, text string) (string, error) {
	resp, err := s.Client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(s.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(summarizePrompt),
			openai.UserMessage(text),
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}
	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if out == "" {
		return "", errors.New("openai returned an empty summary")
	}
	return out, nil
}

// OpenAISimilarity embeds both texts in one request and returns the cosine
// similarity of the two vectors.
type OpenAISimilarity struct {
	Client openai.Client
	Model  string
}

func (s *OpenAISimilarity) Score(ctx context.Context, candidate, reference string) (float64, error) {
	resp, err := s.Client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: []string{candidate, reference}},
		Model: openai.EmbeddingModel(s.Model),
	})
	if err != nil {
		return 0, err
	}
	vecs := make([][]float64, 2)
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index > 1 {
			return 0, fmt.Errorf("unexpected embedding index %d", d.Index)
		}
		vecs[d.Index] = d.Embedding
	}
	return cosine(vecs[0], vecs[1])
}

func cosine(a, b []float64) (float64, error) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, fmt.Errorf("embedding dimensions %d and %d", len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0, errors.New("zero-length embedding")
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}
