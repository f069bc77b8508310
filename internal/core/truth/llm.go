package truth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/truthlab/content-radar/internal/platform/observability"
)

// Analyzer produces raw model output for merged input content. Sources are
// the input URLs, passed through as hints alongside the merged text. The
// pipeline owns parsing so degraded output can still be persisted.
type Analyzer interface {
	Analyze(ctx context.Context, title, merged string, sources []string) (string, error)
}

// AnalyzerConfig configures the OpenAI-backed analyzer.
type AnalyzerConfig struct {
	APIKey       string
	Model        string
	MaxTokens    int
	Temperature  float32
	Timeout      time.Duration
	RateLimitRPS int
}

type openAIAnalyzer struct {
	cfg         AnalyzerConfig
	client      *openai.Client
	logger      *zerolog.Logger
	rateLimiter *rate.Limiter

	// Circuit breaker state
	consecutiveFailures int
	circuitOpenUntil    time.Time
	mu                  sync.Mutex
}

const (
	circuitBreakerThreshold = 5
	circuitBreakerTimeout   = 1 * time.Minute
)

// NewOpenAIAnalyzer builds the production analyzer. Callers should fall back
// to NewHeuristicAnalyzer when no API key is configured.
func NewOpenAIAnalyzer(cfg AnalyzerConfig, logger *zerolog.Logger) Analyzer {
	return &openAIAnalyzer{
		cfg:         cfg,
		client:      openai.NewClient(cfg.APIKey),
		logger:      logger,
		rateLimiter: rate.NewLimiter(rate.Limit(float64(cfg.RateLimitRPS)), 5),
	}
}

func (a *openAIAnalyzer) checkCircuit() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if time.Now().Before(a.circuitOpenUntil) {
		return fmt.Errorf("circuit breaker is open until %v", a.circuitOpenUntil)
	}

	return nil
}

func (a *openAIAnalyzer) recordSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.consecutiveFailures = 0
}

func (a *openAIAnalyzer) recordFailure() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.consecutiveFailures++
	if a.consecutiveFailures >= circuitBreakerThreshold {
		a.circuitOpenUntil = time.Now().Add(circuitBreakerTimeout)
		a.logger.Warn().
			Int("consecutive_failures", a.consecutiveFailures).
			Time("open_until", a.circuitOpenUntil).
			Msg("Circuit breaker opened")
	}
}

func (a *openAIAnalyzer) Analyze(ctx context.Context, title, merged string, sources []string) (string, error) {
	if err := a.checkCircuit(); err != nil {
		return "", err
	}

	if err := a.rateLimiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter error: %w", err)
	}

	if a.cfg.Timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()
	}

	model := a.cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}

	start := time.Now()

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: a.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: BuildUserPrompt(title, merged, sources),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})

	observability.LLMRequestDuration.WithLabelValues(model).Observe(time.Since(start).Seconds())

	if err != nil {
		a.recordFailure()

		return "", fmt.Errorf("openai chat completion error: %w", err)
	}

	if len(resp.Choices) == 0 {
		a.recordFailure()

		return "", fmt.Errorf("openai returned no choices for model %s", model)
	}

	a.recordSuccess()

	content := resp.Choices[0].Message.Content
	a.logger.Debug().Str("content", content).Msg("LLM response")

	return content, nil
}
