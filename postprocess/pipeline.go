package postprocess

import (
	"context"
	"fmt"
	"log/slog"
)

// Processor is a function that transforms translated text
type Processor func(ctx context.Context, text string) (string, error)

// Pipeline runs a series of processors in sequence
type Pipeline struct {
	processors []Processor
}

// NewPipeline creates a new processing pipeline
func NewPipeline(processors ...Processor) *Pipeline {
	return &Pipeline{
		processors: processors,
	}
}

// Process runs all processors in sequence, stopping at the first error
func (p *Pipeline) Process(ctx context.Context, text string) (string, error) {
	result := text
	var err error

	for i, proc := range p.processors {
		result, err = proc(ctx, result)
		if err != nil {
			slog.Error("Processor failed", "index", i, "error", err)
			return result, err
		}
	}

	return result, nil
}

// AddProcessor adds a processor to the pipeline
func (p *Pipeline) AddProcessor(proc Processor) {
	p.processors = append(p.processors, proc)
}

// Len returns the number of processors
func (p *Pipeline) Len() int {
	return len(p.processors)
}

// FromNames builds a pipeline from configured processor names, in order.
// replacements feeds the "replace" processor.
func FromNames(names []string, replacements map[string]string) (*Pipeline, error) {
	p := NewPipeline()
	for _, name := range names {
		switch name {
		case "trim":
			p.AddProcessor(TrimProcessor())
		case "fences":
			p.AddProcessor(StripFencesProcessor())
		case "quotes":
			p.AddProcessor(StripQuotesProcessor())
		case "replace":
			p.AddProcessor(ReplaceProcessor(replacements))
		default:
			return nil, fmt.Errorf("unknown post-processor: %s", name)
		}
	}
	return p, nil
}
