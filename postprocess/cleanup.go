package postprocess

import (
	"context"
	"strings"
)

// TrimProcessor removes surrounding whitespace
func TrimProcessor() Processor {
	return func(ctx context.Context, text string) (string, error) {
		return strings.TrimSpace(text), nil
	}
}

// StripFencesProcessor unwraps output the model wrapped in a single ``` block
func StripFencesProcessor() Processor {
	return func(ctx context.Context, text string) (string, error) {
		t := strings.TrimSpace(text)
		if !strings.HasPrefix(t, "```") || !strings.HasSuffix(t, "```") || len(t) < 6 {
			return text, nil
		}

		inner := strings.TrimSuffix(strings.TrimPrefix(t, "```"), "```")
		// Drop an info string such as ```text on the opening line.
		if nl := strings.IndexByte(inner, '\n'); nl >= 0 && !strings.ContainsAny(inner[:nl], " \t") {
			inner = inner[nl+1:]
		}
		if strings.Contains(inner, "```") {
			return text, nil
		}
		return strings.Trim(inner, "\n"), nil
	}
}

var quotePairs = map[rune]rune{
	'"':      '"',
	'\'':     '\'',
	'\u201c': '\u201d',
	'\u300c': '\u300d',
}

// StripQuotesProcessor removes one pair of quotes wrapping the whole output
func StripQuotesProcessor() Processor {
	return func(ctx context.Context, text string) (string, error) {
		r := []rune(strings.TrimSpace(text))
		if len(r) < 2 {
			return text, nil
		}
		closing, ok := quotePairs[r[0]]
		if !ok || r[len(r)-1] != closing {
			return text, nil
		}
		inner := r[1 : len(r)-1]
		for _, c := range inner {
			if c == r[0] || c == closing {
				return text, nil
			}
		}
		return string(inner), nil
	}
}
