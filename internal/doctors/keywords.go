package doctors

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed keywords.yaml
var defaultKeywords []byte

type keywordEntry struct {
	Specialization string   `yaml:"specialization"`
	Keywords       []string `yaml:"keywords"`
}

// Keywords maps specialist categories to trigger words. It is read once at
// startup and never mutated.
type Keywords struct {
	entries []keywordEntry
}

// LoadKeywords reads the table from path, or the built-in table when path
// is empty.
func LoadKeywords(path string) (*Keywords, error) {
	data := defaultKeywords
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read keyword table: %w", err)
		}
		data = b
	}
	return ParseKeywords(data)
}

func ParseKeywords(data []byte) (*Keywords, error) {
	var entries []keywordEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse keyword table: %w", err)
	}
	k := &Keywords{}
	for _, e := range entries {
		e.Specialization = strings.TrimSpace(e.Specialization)
		if e.Specialization == "" {
			return nil, fmt.Errorf("keyword table entry without specialization")
		}
		words := make([]string, 0, len(e.Keywords))
		for _, w := range e.Keywords {
			if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
				words = append(words, w)
			}
		}
		k.entries = append(k.entries, keywordEntry{Specialization: e.Specialization, Keywords: words})
	}
	return k, nil
}

// Infer returns the categories whose trigger words occur in text.
func (k *Keywords) Infer(text string) []string {
	text = strings.ToLower(text)
	if strings.TrimSpace(text) == "" {
		return nil
	}
	var out []string
	for _, e := range k.entries {
		for _, w := range e.Keywords {
			if strings.Contains(text, w) {
				out = append(out, e.Specialization)
				break
			}
		}
	}
	return out
}

func (k *Keywords) Specializations() []string {
	out := make([]string, len(k.entries))
	for i, e := range k.entries {
		out[i] = e.Specialization
	}
	return out
}
