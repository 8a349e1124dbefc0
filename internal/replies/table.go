package replies

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"keyword_responder/internal/normalize"
)

// Match is a resolved reply and the layer that produced it.
type Match struct {
	Reply string `json:"reply"`
	Layer Layer  `json:"layer"`
	Key   string `json:"key,omitempty"`
}

type pattern struct {
	raw   string
	re    *regexp.Regexp
	reply string
}

// Table is a compiled, read-only reply table. Exact and contains keys are
// normalized; regex patterns are compiled case-insensitively against the raw
// input. A Table is never mutated after Compile, so it can be shared freely.
type Table struct {
	exact    map[string]string
	contains []Entry
	regex    []pattern
	fallback *string
	skipped  int
}

// EmptyTable matches nothing.
func EmptyTable() *Table {
	return &Table{exact: map[string]string{}}
}

// Compile builds a Table from a document. Keys that normalize to the empty
// string are dropped; a key that normalizes to an existing key overrides the
// reply but keeps the earlier position. Patterns that fail to compile are
// logged and skipped.
func Compile(doc Document, norm *normalize.Normalizer, logger *zap.Logger) *Table {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &Table{
		exact:    make(map[string]string, len(doc.Exact)),
		fallback: doc.Fallback,
	}

	for _, e := range doc.Exact {
		key := norm.Normalize(e.Key)
		if key == "" {
			t.skipped++
			continue
		}
		t.exact[key] = e.Reply
	}

	seen := make(map[string]int, len(doc.Contains))
	for _, e := range doc.Contains {
		key := norm.Normalize(e.Key)
		if key == "" {
			t.skipped++
			continue
		}
		if i, ok := seen[key]; ok {
			t.contains[i].Reply = e.Reply
			continue
		}
		seen[key] = len(t.contains)
		t.contains = append(t.contains, Entry{Key: key, Reply: e.Reply})
	}

	for _, e := range doc.Regex {
		re, err := compilePattern(e.Key)
		if err != nil {
			t.skipped++
			logger.Warn("skipping invalid regex pattern", zap.String("pattern", e.Key), zap.Error(err))
			continue
		}
		t.regex = append(t.regex, pattern{raw: e.Key, re: re, reply: e.Reply})
	}

	return t
}

func compilePattern(raw string) (*regexp.Regexp, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, ErrInvalidKey
	}
	return regexp.Compile("(?i)" + raw)
}

// Match evaluates the layers in order: exact on the normalized text, the first
// contains key found in the normalized text, the first pattern matching the
// raw text, then the fallback.
func (t *Table) Match(raw, normalized string) (Match, bool) {
	if normalized != "" {
		if reply, ok := t.exact[normalized]; ok {
			return Match{Reply: reply, Layer: LayerExact, Key: normalized}, true
		}
		for _, e := range t.contains {
			if strings.Contains(normalized, e.Key) {
				return Match{Reply: e.Reply, Layer: LayerContains, Key: e.Key}, true
			}
		}
	}
	for _, p := range t.regex {
		if p.re.MatchString(raw) {
			return Match{Reply: p.reply, Layer: LayerRegex, Key: p.raw}, true
		}
	}
	if t.fallback != nil {
		return Match{Reply: *t.fallback, Layer: LayerFallback}, true
	}
	return Match{}, false
}

// Len is the number of usable keyed entries.
func (t *Table) Len() int {
	return len(t.exact) + len(t.contains) + len(t.regex)
}

// Skipped is the number of entries dropped while compiling.
func (t *Table) Skipped() int {
	return t.skipped
}
