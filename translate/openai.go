package translate

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"markestedt/aityping/apperr"
	"markestedt/aityping/postprocess"
)

const (
	DefaultBatchTimeout  = 30 * time.Second
	DefaultStreamTimeout = 120 * time.Second

	testText = "Hello"
)

// Config holds the endpoint and prompt settings of an OpenAIClient
type Config struct {
	BaseURL       string
	APIKey        string
	Model         string
	Temperature   float64
	TopP          float64
	SystemPrompt  string
	UserPrompt    string
	BatchTimeout  time.Duration
	StreamTimeout time.Duration
	Glossary      *Glossary
}

// OpenAIClient implements Translator against /chat/completions
type OpenAIClient struct {
	cfg      Config
	batch    *http.Client
	stream   *http.Client
	pipeline *postprocess.Pipeline
	now      func() time.Time
}

// NewOpenAIClient creates a client. Zero timeouts fall back to the defaults.
// pipeline cleans batch results and may be nil.
func NewOpenAIClient(cfg Config, pipeline *postprocess.Pipeline) *OpenAIClient {
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = DefaultBatchTimeout
	}
	if cfg.StreamTimeout <= 0 {
		cfg.StreamTimeout = DefaultStreamTimeout
	}
	return &OpenAIClient{
		cfg:      cfg,
		batch:    &http.Client{Timeout: cfg.BatchTimeout},
		stream:   &http.Client{Timeout: cfg.StreamTimeout},
		pipeline: pipeline,
		now:      time.Now,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type chatRequest struct {
	Model         string         `json:"model"`
	Messages      []chatMessage  `json:"messages"`
	Temperature   float64        `json:"temperature"`
	TopP          float64        `json:"top_p"`
	Stream        bool           `json:"stream,omitempty"`
	StreamOptions *streamOptions `json:"stream_options,omitempty"`
}

type usage struct {
	CompletionTokens int `json:"completion_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *usage `json:"usage"`
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Usage *usage `json:"usage"`
}

type apiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Translate performs a single non-streaming translation
func (c *OpenAIClient) Translate(ctx context.Context, text, targetLang string) (Result, error) {
	start := c.now()

	req, err := c.newRequest(ctx, text, targetLang, false)
	if err != nil {
		return Result{}, err
	}

	resp, err := c.batch.Do(req)
	if err != nil {
		return Result{}, apperr.Wrap(apperr.Network, "translation request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, statusError(resp)
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Result{}, apperr.Wrap(apperr.API, "failed to decode translation response", err)
	}
	if len(out.Choices) == 0 {
		return Result{}, apperr.New(apperr.API, "translation API returned no choices")
	}

	translated := strings.TrimSpace(out.Choices[0].Message.Content)
	if c.pipeline != nil {
		if translated, err = c.pipeline.Process(ctx, translated); err != nil {
			return Result{}, fmt.Errorf("failed to post-process translation: %w", err)
		}
	}

	res := Result{Text: translated, Duration: c.now().Sub(start)}
	if out.Usage != nil {
		tokens := out.Usage.CompletionTokens
		res.CompletionTokens = &tokens
		res.TokensPerSecond = TokensPerSecond(res.CompletionTokens, res.Duration)
	}

	slog.Debug("Translation completed", "chars", len([]rune(translated)), "duration", res.Duration)
	return res, nil
}

// TranslateStream starts a streaming translation. Request and status errors
// are returned directly; failures after the stream opened arrive as an
// EventError. The channel is closed after the final event.
func (c *OpenAIClient) TranslateStream(ctx context.Context, text, targetLang string) (<-chan StreamEvent, error) {
	start := c.now()

	req, err := c.newRequest(ctx, text, targetLang, true)
	if err != nil {
		return nil, err
	}

	resp, err := c.stream.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.Network, "translation request failed", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, statusError(resp)
	}

	events := make(chan StreamEvent, 16)
	go func() {
		defer close(events)
		defer resp.Body.Close()

		emit := func(ev StreamEvent) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		var tokens *int
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			data, ok := strings.CutPrefix(line, "data:")
			if !ok {
				continue
			}
			data = strings.TrimSpace(data)

			if data == "[DONE]" {
				emit(StreamEvent{Kind: EventDone, Tokens: tokens, Duration: c.now().Sub(start)})
				return
			}

			var chunk streamChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				emit(StreamEvent{Kind: EventError, Err: apperr.Wrap(apperr.API, "malformed stream chunk", err)})
				return
			}
			if chunk.Usage != nil {
				n := chunk.Usage.CompletionTokens
				tokens = &n
			}
			for _, choice := range chunk.Choices {
				if choice.Delta.Content == "" {
					continue
				}
				if !emit(StreamEvent{Kind: EventDelta, Text: choice.Delta.Content}) {
					return
				}
			}
		}

		err := scanner.Err()
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		emit(StreamEvent{Kind: EventError, Err: apperr.Wrap(apperr.Network, "translation stream interrupted", err)})
	}()

	return events, nil
}

// TestConnection translates a short sample text and reports the round trip
func (c *OpenAIClient) TestConnection(ctx context.Context, targetLang string) (string, error) {
	res, err := c.Translate(ctx, testText, targetLang)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s → %s", testText, res.Text), nil
}

func (c *OpenAIClient) newRequest(ctx context.Context, text, targetLang string, stream bool) (*http.Request, error) {
	if c.cfg.APIKey == "" {
		return nil, apperr.New(apperr.Config, "API key is not configured")
	}
	if c.cfg.BaseURL == "" {
		return nil, apperr.New(apperr.Config, "base URL is not configured")
	}

	body := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: c.cfg.Glossary.Append(c.cfg.SystemPrompt)},
			{Role: "user", Content: RenderPrompt(c.cfg.UserPrompt, targetLang, text)},
		},
		Temperature: c.cfg.Temperature,
		TopP:        c.cfg.TopP,
	}
	if stream {
		body.Stream = true
		body.StreamOptions = &streamOptions{IncludeUsage: true}
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, apperr.Wrap(apperr.Config, "invalid base URL", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	if stream {
		req.Header.Set("Accept", "text/event-stream")
	}
	return req, nil
}

// statusError maps a non-200 response onto an API error
func statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	detail := strings.TrimSpace(string(body))
	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		detail = apiErr.Error.Message
	}

	var msg string
	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		msg = "authentication failed: " + detail
	case resp.StatusCode == http.StatusTooManyRequests:
		msg = "rate limited: " + detail
	case resp.StatusCode >= 500:
		msg = "server error: " + detail
	default:
		msg = fmt.Sprintf("request failed (%d): %s", resp.StatusCode, detail)
	}
	return apperr.Wrap(apperr.API, msg, &HTTPError{StatusCode: resp.StatusCode})
}

// HTTPError carries the status code of a failed API call
type HTTPError struct {
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// StatusCode extracts the HTTP status from a translation error, or 0
func StatusCode(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.StatusCode
	}
	return 0
}
