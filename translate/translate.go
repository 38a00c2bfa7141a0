// Package translate talks to an OpenAI-compatible chat completions endpoint
// to translate text, either in one response or as a token stream.
package translate

import (
	"context"
	"strings"
	"time"
)

// Result is a completed batch translation
type Result struct {
	Text             string
	CompletionTokens *int
	Duration         time.Duration
	TokensPerSecond  *float64
}

// EventKind distinguishes stream events
type EventKind int

const (
	EventDelta EventKind = iota
	EventDone
	EventError
)

// StreamEvent is one item of a streamed translation. Nothing follows a Done or Error event.
type StreamEvent struct {
	Kind     EventKind
	Text     string
	Tokens   *int
	Duration time.Duration
	Err      error
}

// Translator is implemented by translation backends
type Translator interface {
	Translate(ctx context.Context, text, targetLang string) (Result, error)
	TranslateStream(ctx context.Context, text, targetLang string) (<-chan StreamEvent, error)
}

// TokensPerSecond returns tokens/duration, or nil when either is unknown
func TokensPerSecond(tokens *int, d time.Duration) *float64 {
	if tokens == nil || d <= 0 {
		return nil
	}
	tps := float64(*tokens) / d.Seconds()
	return &tps
}

// RenderPrompt fills the {target_language} and {text} placeholders
func RenderPrompt(template, targetLang, text string) string {
	return strings.NewReplacer("{target_language}", targetLang, "{text}", text).Replace(template)
}
