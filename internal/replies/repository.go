package replies

import (
	"fmt"
	"strings"
	"sync"

	"keyword_responder/internal/fsstore"
	"keyword_responder/internal/normalize"
)

// Repository is the administrative read-modify-write view of the reply table
// file. It never goes through the cache: every call reads the file fresh and
// every write replaces it atomically, so the message path only ever observes
// complete files.
type Repository struct {
	path   string
	format fsstore.Format
	norm   *normalize.Normalizer

	mu sync.Mutex
}

// NewRepository manages the table file at path.
func NewRepository(path string, norm *normalize.Normalizer) *Repository {
	if norm == nil {
		norm = normalize.New(normalize.PolicyExtended)
	}
	return &Repository{path: path, format: fsstore.FormatOf(path), norm: norm}
}

// Path is the backing file path.
func (r *Repository) Path() string {
	return r.path
}

// List returns the document as stored. A missing file is an empty table; a
// malformed one is an error, so it is never silently overwritten.
func (r *Repository) List() (Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.read()
}

// Add upserts key→reply in layer. Exact and contains keys are stored
// normalized; regex patterns are stored raw and must compile.
func (r *Repository) Add(layer Layer, key, reply string) error {
	if layer == "" {
		layer = LayerExact
	}
	key = strings.TrimSpace(key)
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return ErrInvalidReply
	}

	same := r.sameFunc(layer)
	switch layer {
	case LayerExact, LayerContains:
		key = r.norm.Normalize(key)
		if key == "" {
			return ErrInvalidKey
		}
	case LayerRegex:
		if _, err := compilePattern(key); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPattern, err)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLayer, layer)
	}

	return r.update(func(doc *Document) (bool, error) {
		return true, doc.Upsert(layer, key, reply, same)
	})
}

// Delete removes key from layer, or from every layer when layer is empty. It
// reports whether anything was removed; the file is only rewritten if so.
func (r *Repository) Delete(layer Layer, key string) (bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return false, ErrInvalidKey
	}
	layers := []Layer{layer}
	if layer == "" {
		layers = []Layer{LayerExact, LayerContains, LayerRegex}
	}

	var removed bool
	err := r.update(func(doc *Document) (bool, error) {
		for _, l := range layers {
			ok, err := doc.Remove(l, key, r.sameFunc(l))
			if err != nil {
				return false, err
			}
			removed = removed || ok
		}
		return removed, nil
	})
	return removed, err
}

// SetFallback sets the fallback reply; nil clears it.
func (r *Repository) SetFallback(reply *string) error {
	if reply != nil {
		trimmed := strings.TrimSpace(*reply)
		if trimmed == "" {
			return ErrInvalidReply
		}
		reply = &trimmed
	}
	return r.update(func(doc *Document) (bool, error) {
		doc.Fallback = reply
		return true, nil
	})
}

func (r *Repository) sameFunc(layer Layer) func(a, b string) bool {
	if layer == LayerRegex {
		return func(a, b string) bool { return a == b }
	}
	return func(a, b string) bool { return r.norm.Normalize(a) == r.norm.Normalize(b) }
}

func (r *Repository) update(fn func(doc *Document) (bool, error)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.read()
	if err != nil {
		return err
	}
	changed, err := fn(&doc)
	if err != nil || !changed {
		return err
	}
	if err := fsstore.WriteFile(r.path, doc); err != nil {
		return fmt.Errorf("save reply table: %w", err)
	}
	return nil
}

func (r *Repository) read() (Document, error) {
	data, ok, err := fsstore.Read(r.path)
	if err != nil {
		return Document{}, err
	}
	if !ok {
		return Document{}, nil
	}
	doc, err := DecodeDocument(r.format, data)
	if err != nil {
		return Document{}, fmt.Errorf("load reply table %s: %w", r.path, err)
	}
	return doc, nil
}
