package datasource

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
	openai "github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/vanderheijden86/ember/pkg/debug"
	"github.com/vanderheijden86/ember/pkg/metrics"
	"github.com/vanderheijden86/ember/pkg/model"
)

const (
	DefaultBaseURL           = "https://openrouter.ai/api/v1"
	DefaultModel             = "gpt-4.1-2025-04-14"
	DefaultRequestsPerMinute = 30
	DefaultMaxRetries        = 3
	DefaultRetryDelay        = 2 * time.Second
	DefaultTimeout           = 90 * time.Second

	maxBackoff = 30 * time.Second
)

// ErrMissingAPIKey is returned when no API key is configured.
var ErrMissingAPIKey = errors.New("OpenRouter API key missing: set OPENROUTER_API_KEY")

// SystemPrompt instructs the model to return scenes for one day chunk.
const SystemPrompt = `You turn one day of a chat transcript into memorable scenes.

The user message is a JSON object {"date": "...", "messages": [{"date","time","author","text"}]}.

Reply with JSON only, no prose and no code fences:
{"scenes": [{"id": 0, "memory": "...", "entities": [{"text": "...", "type": "..."}]}]}

Rules:
- Each scene is one short sentence in the past tense describing something that happened.
- Replace every named entity in the sentence with ___ (three underscores).
- List the entities in the order their blanks appear; one entity per blank.
- type is one of: person, location, food, organization, or another lowercase noun.
- ids start at 0 and increase by one.
- Return {"scenes": []} when nothing memorable happened.`

// ExtractorConfig configures OpenAIExtractor.
type ExtractorConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	// SiteURL and SiteName are sent as HTTP-Referer and X-Title for
	// OpenRouter attribution.
	SiteURL           string
	SiteName          string
	RequestsPerMinute int
	MaxRetries        int
	RetryDelay        time.Duration
	Timeout           time.Duration
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// ExtractorConfigFromEnv reads the OPENROUTER_* and VITE_* variables and
// fills defaults for everything else.
func ExtractorConfigFromEnv() ExtractorConfig {
	cfg := ExtractorConfig{
		APIKey:   firstEnv("OPENROUTER_API_KEY", "VITE_OPENROUTER_API_KEY"),
		BaseURL:  firstEnv("OPENROUTER_BASE_URL", "VITE_OPENROUTER_BASE_URL"),
		Model:    firstEnv("OPENROUTER_MODEL", "VITE_OPENROUTER_MODEL"),
		SiteURL:  os.Getenv("VITE_SITE_URL"),
		SiteName: os.Getenv("VITE_SITE_NAME"),

		MaxRetries: DefaultMaxRetries,
	}
	return cfg.withDefaults()
}

func (c ExtractorConfig) withDefaults() ExtractorConfig {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.RequestsPerMinute <= 0 {
		c.RequestsPerMinute = DefaultRequestsPerMinute
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// ChatCompleter is the slice of the OpenAI client the extractor needs.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIExtractor extracts scenes with an OpenAI-compatible chat completion
// endpoint. Calls are paced by a rate limiter, retried with jittered
// exponential backoff, and short-circuited by a breaker once the endpoint
// keeps failing.
type OpenAIExtractor struct {
	client   ChatCompleter
	model    string
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker
	validate *validator.Validate

	maxRetries int
	retryDelay time.Duration
	timeout    time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewOpenAIExtractor builds an extractor talking to cfg.BaseURL.
func NewOpenAIExtractor(cfg ExtractorConfig) (*OpenAIExtractor, error) {
	cfg = cfg.withDefaults()
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	occ := openai.DefaultConfig(cfg.APIKey)
	occ.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	occ.HTTPClient = &http.Client{
		Transport: headerTransport{
			base:    http.DefaultTransport,
			headers: attributionHeaders(cfg),
		},
	}
	return NewOpenAIExtractorWithClient(openai.NewClientWithConfig(occ), cfg), nil
}

// NewOpenAIExtractorWithClient uses client instead of dialing cfg.BaseURL.
func NewOpenAIExtractorWithClient(client ChatCompleter, cfg ExtractorConfig) *OpenAIExtractor {
	cfg = cfg.withDefaults()
	e := &OpenAIExtractor{
		client:     client,
		model:      cfg.Model,
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1),
		validate:   validator.New(),
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		timeout:    cfg.Timeout,
		sleep:      sleepCtx,
	}
	e.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "chunk-extraction",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			debug.Log("extractor: breaker %s %v -> %v", name, from, to)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	return e
}

func attributionHeaders(cfg ExtractorConfig) map[string]string {
	h := map[string]string{}
	if cfg.SiteURL != "" {
		h["HTTP-Referer"] = cfg.SiteURL
	}
	if cfg.SiteName != "" {
		h["X-Title"] = cfg.SiteName
	}
	return h
}

type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if len(t.headers) == 0 {
		return t.base.RoundTrip(req)
	}
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.base.RoundTrip(req)
}

// Extract sends the chunk as JSON and parses the scenes out of the reply.
// Malformed replies wrap ErrSchemaInvalid and are not retried.
func (e *OpenAIExtractor) Extract(ctx context.Context, chunk model.DayChunk) (model.CacheEntry, error) {
	payload, err := json.Marshal(chunk)
	if err != nil {
		return model.CacheEntry{}, fmt.Errorf("encoding chunk: %w", err)
	}
	req := openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: string(payload)},
		},
		// A zero temperature is dropped by omitempty.
		Temperature: math.SmallestNonzeroFloat32,
	}

	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			metrics.ExtractionRetries.Inc()
			delay := backoff(e.retryDelay, attempt)
			debug.Log("extractor: retry %d in %v after %v", attempt, delay, lastErr)
			if err := e.sleep(ctx, delay); err != nil {
				return model.CacheEntry{}, err
			}
		}
		content, err := e.complete(ctx, req)
		if err == nil {
			return decodeEntry(e.validate, []byte(StripFences(content)))
		}
		if !retryable(err) {
			return model.CacheEntry{}, err
		}
		lastErr = err
	}
	return model.CacheEntry{}, fmt.Errorf("extraction failed after %d attempts: %w", e.maxRetries+1, lastErr)
}

func (e *OpenAIExtractor) complete(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return "", err
	}
	out, err := e.breaker.Execute(func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()
		resp, err := e.client.CreateChatCompletion(callCtx, req)
		if err != nil {
			return nil, err
		}
		if len(resp.Choices) == 0 {
			return nil, errors.New("missing content in response")
		}
		return resp.Choices[0].Message.Content, nil
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	return true
}

// backoff doubles base per attempt, caps at maxBackoff and adds +/-25% jitter.
func backoff(base time.Duration, attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	attempt = min(attempt, 30)
	d := base * time.Duration(1<<uint(attempt-1))
	if d <= 0 || d > maxBackoff {
		d = maxBackoff
	}
	jitter := time.Duration(rand.Int64N(int64(d)/2+1)) - d/4
	return d + jitter
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// StripFences removes markdown code fences and a stray leading "json" from a
// model reply.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)
	if len(s) >= 4 && strings.EqualFold(s[:4], "json") {
		s = strings.TrimSpace(s[4:])
	}
	return s
}
