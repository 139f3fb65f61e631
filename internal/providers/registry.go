package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"textsum-eval/internal/config"
	"textsum-eval/internal/log"
)

// Metric names, also used as remote metric service paths.
const (
	MetricSimilarity = "similarity"
	MetricEditRate   = "ter"
	MetricMeteor     = "meteor"
)

// Set is the collaborator bundle built once at process start.
type Set struct {
	Summary    SummaryProvider
	Similarity MetricProvider
	EditRate   MetricProvider
	Meteor     MetricProvider

	closers []func() error
}

// Close releases provider resources such as the docker client.
func (s *Set) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Build selects providers by name and wraps each with cfg.Timeout.
func Build(ctx context.Context, cfg config.Providers) (*Set, error) {
	set := &Set{}
	httpc := &http.Client{Timeout: cfg.Timeout}

	summary, err := buildSummary(ctx, cfg, httpc, set)
	if err != nil {
		return nil, err
	}
	set.Summary = GuardSummary("summary/"+cfg.Summary, summary, cfg.Timeout)

	var sim MetricProvider
	switch cfg.Similarity {
	case "openai":
		sim = &OpenAISimilarity{Client: NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL), Model: cfg.OpenAIEmbedModel}
	case "remote":
		sim = &RemoteMetric{BaseURL: cfg.MetricServiceURL, Metric: MetricSimilarity, Client: httpc}
	case "static":
		sim = Static{Value: 1}
	default:
		return nil, fmt.Errorf("unknown similarity provider %q", cfg.Similarity)
	}
	set.Similarity = GuardMetric(MetricSimilarity, sim, cfg.Timeout)

	var ter, meteor MetricProvider
	switch cfg.Metrics {
	case "remote":
		ter = &RemoteMetric{BaseURL: cfg.MetricServiceURL, Metric: MetricEditRate, Client: httpc}
		meteor = &RemoteMetric{BaseURL: cfg.MetricServiceURL, Metric: MetricMeteor, Client: httpc}
	case "static":
		ter, meteor = Static{Value: 0}, Static{Value: 1}
	default:
		return nil, fmt.Errorf("unknown metrics provider %q", cfg.Metrics)
	}
	set.EditRate = GuardMetric(MetricEditRate, ter, cfg.Timeout)
	set.Meteor = GuardMetric(MetricMeteor, meteor, cfg.Timeout)

	log.Infof("providers: summary=%s similarity=%s metrics=%s timeout=%s",
		cfg.Summary, cfg.Similarity, cfg.Metrics, cfg.Timeout)
	return set, nil
}

func buildSummary(ctx context.Context, cfg config.Providers, httpc *http.Client, set *Set) (SummaryProvider, error) {
	switch cfg.Summary {
	case "huggingface":
		if cfg.HFAPIToken == "" {
			log.Warnf("HF_API_TOKEN not set; anonymous inference requests are heavily rate limited")
		}
		return &HuggingFace{URL: cfg.HFAPIURL, Token: cfg.HFAPIToken, Client: httpc}, nil
	case "openai":
		return &OpenAISummarizer{Client: NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL), Model: cfg.OpenAISummaryModel}, nil
	case "container":
		cs, err := NewContainerSummarizer(ctx, cfg.SummaryImage, strings.Fields(cfg.SummaryCommand))
		if err != nil {
			return nil, err
		}
		set.closers = append(set.closers, cs.Close)
		return cs, nil
	case "echo":
		return Echo{}, nil
	default:
		return nil, fmt.Errorf("unknown summary provider %q", cfg.Summary)
	}
}
