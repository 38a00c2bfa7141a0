// Package orchestrator runs one translation at a time: capture the text,
// translate it, inject the result, and record what happened.
package orchestrator

import (
	"context"
	"time"

	"markestedt/aityping/apperr"
)

// Mode selects what text a run captures
type Mode string

const (
	ModeSelected Mode = "selected"
	ModeFull     Mode = "full"
	ModeManual   Mode = "manual"
)

// State is the orchestrator's position in a run
type State int

const (
	Idle State = iota
	Capturing
	Translating
	Injecting
	RollingBack
)

func (s State) String() string {
	switch s {
	case Capturing:
		return "capturing"
	case Translating:
		return "translating"
	case Injecting:
		return "injecting"
	case RollingBack:
		return "rolling_back"
	default:
		return "idle"
	}
}

// Settings are read once per trigger
type Settings struct {
	Enabled         bool
	Streaming       bool
	TargetLang      string
	RestoreAfterRun bool
}

// Run describes a single translation from trigger to completion
type Run struct {
	Mode            Mode
	Original        string
	Translated      string
	TargetLang      string
	CharCount       int
	StartedAt       time.Time
	Tokens          *int
	Duration        time.Duration
	TokensPerSecond *float64
	Err             error
}

// Success reports whether the run completed without error
func (r *Run) Success() bool {
	return r.Err == nil
}

// Entry is a history record of a run
type Entry struct {
	Original   string
	Translated string
	SourceLang string
	TargetLang string
	Mode       Mode
	Success    bool
	Timestamp  time.Time
}

// Metric is a performance record of a run
type Metric struct {
	Timestamp       time.Time
	Mode            Mode
	Duration        time.Duration
	Success         bool
	ErrorCategory   apperr.Category
	CharCount       int
	Tokens          *int
	TokensPerSecond *float64
}

// Capturer extracts text from the focused application
type Capturer interface {
	CaptureSelected(ctx context.Context) (string, error)
	CaptureFull(ctx context.Context) (string, error)
}

// Injector writes text into the focused application
type Injector interface {
	Replace(ctx context.Context, text string) error
	DeleteSelection(ctx context.Context) error
	TypeChunk(ctx context.Context, text string) error
}

// ClipboardBackup holds the run-level clipboard snapshot
type ClipboardBackup interface {
	Backup(ctx context.Context) error
	Restore(ctx context.Context) error
	ClearBackup()
}

// Recorder persists history and metrics. Errors are logged, never surfaced.
type Recorder interface {
	RecordTranslation(ctx context.Context, e Entry) error
	RecordMetric(ctx context.Context, m Metric) error
}

// Observer is told about state changes and finished runs
type Observer interface {
	StateChanged(s State)
	RunFinished(r *Run)
}
