package translate

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// GlossaryEntry is either a term to keep verbatim or a fixed source -> target rendering
type GlossaryEntry struct {
	Source string
	Target string
}

// Glossary biases the model towards user-chosen terminology
type Glossary struct {
	Entries []GlossaryEntry
}

// LoadGlossary reads one entry per line: "term" or "source -> target".
// Blank lines and lines starting with # are ignored. A missing file yields an empty glossary.
func LoadGlossary(path string) (*Glossary, error) {
	if path == "" {
		return &Glossary{}, nil
	}

	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return &Glossary{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open glossary: %w", err)
	}
	defer file.Close()

	var g Glossary
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if src, dst, ok := strings.Cut(line, "->"); ok {
			src, dst = strings.TrimSpace(src), strings.TrimSpace(dst)
			if src != "" && dst != "" {
				g.Entries = append(g.Entries, GlossaryEntry{Source: src, Target: dst})
			}
			continue
		}
		g.Entries = append(g.Entries, GlossaryEntry{Source: line})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read glossary: %w", err)
	}

	return &g, nil
}

// Append adds the glossary to a system prompt
func (g *Glossary) Append(prompt string) string {
	if g == nil || len(g.Entries) == 0 {
		return prompt
	}

	var b strings.Builder
	b.WriteString(prompt)
	b.WriteString("\n\nGlossary:\n")
	for _, e := range g.Entries {
		if e.Target == "" {
			fmt.Fprintf(&b, "- keep %q untranslated\n", e.Source)
		} else {
			fmt.Fprintf(&b, "- translate %q as %q\n", e.Source, e.Target)
		}
	}
	return b.String()
}
