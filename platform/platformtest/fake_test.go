package platformtest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutomationPastesAtCaret(t *testing.T) {
	tests := []struct {
		name      string
		field     string
		selection string
		chunks    []string
		want      string
	}{
		{"replace selection", "say hello world", "hello", []string{"hola"}, "say hola world"},
		{"stream into deleted selection", "say hello world", "hello", []string{"", "d1", "d2"}, "say d1d2 world"},
		{"no selection appends", "say", "", []string{"!", "?"}, "say!?"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb := NewClipboard("")
			a := NewAutomation(cb, tt.field, tt.selection)
			for _, chunk := range tt.chunks {
				if chunk == "" {
					require.NoError(t, a.DeleteSelection())
					continue
				}
				require.NoError(t, cb.Set(chunk))
				require.NoError(t, a.Paste())
			}
			assert.Equal(t, tt.want, a.Field())
		})
	}
}
