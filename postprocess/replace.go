package postprocess

import (
	"context"
	"sort"
	"strings"
)

// ReplaceProcessor applies fixed replacements case-insensitively, keeping the
// replacement's own casing. Longer keys are applied first.
func ReplaceProcessor(replacements map[string]string) Processor {
	keys := make([]string, 0, len(replacements))
	for k := range replacements {
		if k != "" {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})

	return func(ctx context.Context, text string) (string, error) {
		result := text
		for _, original := range keys {
			replacement := replacements[original]
			lowerOriginal := strings.ToLower(original)

			startPos := 0
			for {
				lowerResult := strings.ToLower(result)
				if startPos > len(lowerResult) {
					break
				}
				index := strings.Index(lowerResult[startPos:], lowerOriginal)
				if index == -1 {
					break
				}
				actual := startPos + index
				if actual+len(original) > len(result) {
					break
				}
				result = result[:actual] + replacement + result[actual+len(original):]
				startPos = actual + len(replacement)
			}
		}
		return result, nil
	}
}
