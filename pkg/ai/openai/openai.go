// Package openai implements ai.GraphAIClient against any OpenAI-compatible
// endpoint, with separate clients for chat and embeddings so the two can
// point at different hosts.
package openai

import (
	"math"
	"sync"

	"github.com/OFFIS-RIT/taxo/pkg/ai"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/sync/semaphore"
)

// GraphOpenAIClient manages separate OpenAI clients for embedding and
// chat/completion tasks. Create one with NewGraphOpenAIClient.
type GraphOpenAIClient struct {
	embeddingModel string
	arbiterModel   string

	chatURL      string
	chatKey      string
	embeddingURL string
	embeddingKey string

	timeoutMin    int
	embeddingLock *semaphore.Weighted

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	ChatClient      *openai.Client
	EmbeddingClient *openai.Client
}

// NewGraphOpenAIClientParams configures a GraphOpenAIClient.
//
// ArbiterModel is the chat model asked to judge candidates; EmbeddingModel
// produces definition embeddings. Leaving a URL empty targets the official
// API. TimeoutMin bounds a single embedding request in minutes.
type NewGraphOpenAIClientParams struct {
	EmbeddingModel string
	ArbiterModel   string

	ChatURL      string
	ChatKey      string
	EmbeddingURL string
	EmbeddingKey string

	TimeoutMin              int
	MaxConcurrentEmbeddings int64
}

// NewGraphOpenAIClient creates a client configured with the given parameters.
func NewGraphOpenAIClient(params NewGraphOpenAIClientParams) *GraphOpenAIClient {
	if params.TimeoutMin <= 0 {
		params.TimeoutMin = 5
	}
	if params.MaxConcurrentEmbeddings <= 0 {
		params.MaxConcurrentEmbeddings = 4
	}

	return &GraphOpenAIClient{
		embeddingModel: params.EmbeddingModel,
		arbiterModel:   params.ArbiterModel,

		chatURL:      params.ChatURL,
		chatKey:      params.ChatKey,
		embeddingURL: params.EmbeddingURL,
		embeddingKey: params.EmbeddingKey,

		timeoutMin:    params.TimeoutMin,
		embeddingLock: semaphore.NewWeighted(params.MaxConcurrentEmbeddings),

		metricsLock: sync.Mutex{},
		metrics:     ai.ModelMetrics{},

		ChatClient:      newOpenaiClient(params.ChatURL, params.ChatKey),
		EmbeddingClient: newOpenaiClient(params.EmbeddingURL, params.EmbeddingKey),
	}
}

func newOpenaiClient(baseURL, apiKey string) *openai.Client {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return &client
}

// ResetMetrics clears all accumulated token and timing metrics to zero.
func (c *GraphOpenAIClient) ResetMetrics() {
	c.metricsLock.Lock()
	c.metrics = ai.ModelMetrics{}
	c.metricsLock.Unlock()
}

// GetMetrics returns the accumulated token usage and timing metrics since
// the last reset.
func (c *GraphOpenAIClient) GetMetrics() ai.ModelMetrics {
	return c.metrics
}

func (c *GraphOpenAIClient) modifyMetrics(m ai.ModelMetrics) {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()

	c.metrics.InputTokens += m.InputTokens
	c.metrics.OutputTokens += m.OutputTokens
	c.metrics.TotalTokens += m.TotalTokens
	c.metrics.DurationMs += m.DurationMs

	if c.metrics.DurationMs > 0 {
		tokensPerSecond := (float64(c.metrics.TotalTokens) * 1000.0) / float64(c.metrics.DurationMs)
		c.metrics.TokenPerSecond = float32(math.Round(tokensPerSecond*100) / 100)
	}
}
