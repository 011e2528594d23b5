package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	genai "github.com/google/generative-ai-go/genai"
	config "github.com/maheshrc27/reelpilot/configs"
	"github.com/maheshrc27/reelpilot/internal/models"
	"github.com/maheshrc27/reelpilot/internal/telemetry"
	"github.com/maheshrc27/reelpilot/internal/transfer"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"
)

const (
	CaptionProviderOpenAI = "openai"
	CaptionProviderGemini = "gemini"

	captionSystemPrompt = "You improve Instagram captions. Keep the same voice, improve clarity and engagement, keep under 2200 chars, and return only the final caption text."
	fallbackHashtags    = " #instagram #contentcreator"
	captionTimeout      = 20 * time.Second
)

var hashtagPattern = regexp.MustCompile(`#[\w_]+`)

var ErrCaptionUnavailable = errors.New("no caption provider configured")

// CaptionService rewrites captions. Optimize never fails: any provider
// problem degrades to FallbackCaption. Generate reports provider failures so
// callers can choose their own fallback.
type CaptionService interface {
	Optimize(ctx context.Context, text string) string
	Generate(ctx context.Context, prompt string) (string, error)
	Close() error
}

// CaptionProvider is one language model backend.
type CaptionProvider interface {
	Name() string
	Complete(ctx context.Context, text string) (string, error)
}

type captionService struct {
	provider CaptionProvider
	breaker  *gobreaker.CircuitBreaker
	limiter  *rate.Limiter
	metrics  *telemetry.Metrics
	closer   io.Closer
}

// NewCaptionService picks the provider named by CAPTION_PROVIDER. Without a
// key for it the service only ever uses the fallback.
func NewCaptionService(ctx context.Context, cfg *config.Config, metrics *telemetry.Metrics) (CaptionService, error) {
	switch cfg.CaptionProvider {
	case CaptionProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return NewCaptionServiceWithProvider(nil, metrics), nil
		}
		p, err := NewGeminiCaptionProvider(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		svc := NewCaptionServiceWithProvider(p, metrics).(*captionService)
		if c, ok := p.(io.Closer); ok {
			svc.closer = c
		}
		return svc, nil
	case CaptionProviderOpenAI, "":
		if cfg.OpenAIAPIKey == "" {
			return NewCaptionServiceWithProvider(nil, metrics), nil
		}
		return NewCaptionServiceWithProvider(NewOpenAICaptionProvider(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIModel), metrics), nil
	default:
		return nil, fmt.Errorf("unknown CAPTION_PROVIDER %q", cfg.CaptionProvider)
	}
}

func NewCaptionServiceWithProvider(provider CaptionProvider, metrics *telemetry.Metrics) CaptionService {
	s := &captionService{
		provider: provider,
		metrics:  metrics,
		limiter:  rate.NewLimiter(rate.Limit(1), 5),
	}
	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "CaptionProvider",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			metrics.RecordCircuitBreakerState(name, to.String())
		},
	})
	return s
}

func (s *captionService) Optimize(ctx context.Context, text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	answer, err := s.Generate(ctx, text)
	if err != nil {
		return FallbackCaption(text)
	}
	return answer
}

func (s *captionService) Generate(ctx context.Context, prompt string) (string, error) {
	if s.provider == nil {
		return "", ErrCaptionUnavailable
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return "", s.unavailable(ctx, "rate_limited", err)
	}

	result, err := s.breaker.Execute(func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, captionTimeout)
		defer cancel()
		return s.provider.Complete(callCtx, prompt)
	})
	if err != nil {
		reason := "provider_error"
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			reason = "circuit_open"
		}
		return "", s.unavailable(ctx, reason, err)
	}

	answer := strings.TrimSpace(result.(string))
	if answer == "" {
		return "", s.unavailable(ctx, "empty_answer", errors.New("empty answer"))
	}
	return truncateRunes(answer, models.MaxCaptionLength), nil
}

func (s *captionService) unavailable(ctx context.Context, reason string, err error) error {
	slog.Info("caption provider unavailable", "provider", s.provider.Name(), "reason", reason, "error", err.Error())
	s.metrics.RecordCaptionFallback(ctx, s.provider.Name(), reason)
	return fmt.Errorf("%s: %w", s.provider.Name(), err)
}

func (s *captionService) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// FallbackCaption trims and collapses whitespace, appends two generic
// hashtags when none is present and caps the result at 2200 characters.
func FallbackCaption(text string) string {
	cleaned := strings.Join(strings.Fields(text), " ")
	if !hashtagPattern.MatchString(cleaned) {
		cleaned += fallbackHashtags
	}
	return truncateRunes(cleaned, models.MaxCaptionLength)
}

type openAICaptionProvider struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

func NewOpenAICaptionProvider(baseURL, apiKey, model string) CaptionProvider {
	return &openAICaptionProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: captionTimeout},
	}
}

func (p *openAICaptionProvider) Name() string { return CaptionProviderOpenAI }

func (p *openAICaptionProvider) Complete(ctx context.Context, text string) (string, error) {
	payload := transfer.ChatCompletionRequest{
		Model: p.model,
		Messages: []transfer.ChatMessage{
			{Role: "system", Content: captionSystemPrompt},
			{Role: "user", Content: text},
		},
		Temperature: 0.7,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("error marshalling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var result transfer.ChatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("error parsing response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if result.Error != nil && result.Error.Message != "" {
			return "", errors.New(result.Error.Message)
		}
		return "", fmt.Errorf("unexpected status code %d", resp.StatusCode)
	}
	if len(result.Choices) == 0 {
		return "", nil
	}
	return result.Choices[0].Message.Content, nil
}

type geminiCaptionProvider struct {
	client *genai.Client
	model  string
}

func NewGeminiCaptionProvider(ctx context.Context, apiKey, model string) (CaptionProvider, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return &geminiCaptionProvider{client: client, model: model}, nil
}

func (p *geminiCaptionProvider) Name() string { return CaptionProviderGemini }

func (p *geminiCaptionProvider) Complete(ctx context.Context, text string) (string, error) {
	model := p.client.GenerativeModel(p.model)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(captionSystemPrompt)}}
	model.SetTemperature(0.7)

	resp, err := model.GenerateContent(ctx, genai.Text(text))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				sb.WriteString(string(t))
			}
		}
		break
	}
	return sb.String(), nil
}

func (p *geminiCaptionProvider) Close() error {
	return p.client.Close()
}
