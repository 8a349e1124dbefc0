// Package moderation screens group messages against a forbidden-word list
// and decides whether to answer with a warning instead of a normal reply.
package moderation

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"keyword_responder/internal/filecache"
	"keyword_responder/internal/fsstore"
	"keyword_responder/internal/normalize"
)

// DefaultWarning is used when the policy file has no warning text.
const DefaultWarning = "⚠️ الرجاء الالتزام بآداب الحوار، هذه الرسالة تحتوي على كلمات غير مسموحة."

// Policy is the moderation file as stored on disk.
type Policy struct {
	Forbidden   []string `json:"forbidden" yaml:"forbidden"`
	Warning     string   `json:"warning" yaml:"warning"`
	NotifyAdmin bool     `json:"notifyAdmin" yaml:"notifyAdmin"`
}

// compiled is the loaded, normalized form of a Policy.
type compiled struct {
	forbidden   []string
	warning     string
	notifyAdmin bool
}

func emptyPolicy() *compiled {
	return &compiled{warning: DefaultWarning}
}

// Store serves the moderation policy file with mtime-keyed reloads.
type Store struct {
	file *filecache.File[*compiled]
	norm *normalize.Normalizer
}

// Option configures a Store.
type Option func(*storeConfig)

type storeConfig struct {
	norm   *normalize.Normalizer
	logger *zap.Logger
	onLoad func(error)
}

// WithNormalizer sets the normalizer applied to the list and to input.
func WithNormalizer(n *normalize.Normalizer) Option {
	return func(c *storeConfig) { c.norm = n }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *storeConfig) { c.logger = logger }
}

// WithLoadHook is called after every reload attempt.
func WithLoadHook(hook func(err error)) Option {
	return func(c *storeConfig) { c.onLoad = hook }
}

// OpenStore creates a Store backed by the policy file at path.
func OpenStore(path string, opts ...Option) *Store {
	return NewStore(os.DirFS(filepath.Dir(path)), filepath.Base(path), opts...)
}

// NewStore creates a Store backed by name inside fsys.
func NewStore(fsys fs.FS, name string, opts ...Option) *Store {
	cfg := storeConfig{
		norm:   normalize.New(normalize.PolicyExtended),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	format := fsstore.FormatOf(name)
	decode := func(data []byte) (*compiled, error) {
		var p Policy
		if err := fsstore.Unmarshal(format, data, &p); err != nil {
			return nil, err
		}
		c := compile(p, cfg.norm)
		cfg.logger.Info("moderation policy loaded",
			zap.String("file", name),
			zap.Int("forbidden", len(c.forbidden)),
			zap.Bool("notify_admin", c.notifyAdmin),
		)
		return c, nil
	}

	fileOpts := []filecache.Option[*compiled]{
		filecache.WithEmpty(emptyPolicy),
		filecache.WithLogger[*compiled](cfg.logger),
	}
	if cfg.onLoad != nil {
		fileOpts = append(fileOpts, filecache.WithLoadHook[*compiled](cfg.onLoad))
	}
	return &Store{
		file: filecache.New(fsys, name, decode, fileOpts...),
		norm: cfg.norm,
	}
}

func compile(p Policy, norm *normalize.Normalizer) *compiled {
	c := &compiled{
		warning:     strings.TrimSpace(p.Warning),
		notifyAdmin: p.NotifyAdmin,
	}
	if c.warning == "" {
		c.warning = DefaultWarning
	}
	seen := make(map[string]bool, len(p.Forbidden))
	for _, word := range p.Forbidden {
		n := norm.Normalize(word)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		c.forbidden = append(c.forbidden, n)
	}
	return c
}

// Finding describes a forbidden match together with the policy it came from.
type Finding struct {
	Term        string
	Warning     string
	NotifyAdmin bool
}

// Evaluate checks rawText against one snapshot of the policy, so the term,
// warning, and notify flag always belong to the same version of the file.
func (s *Store) Evaluate(rawText string) (Finding, bool) {
	text := s.norm.Normalize(rawText)
	if text == "" {
		return Finding{}, false
	}
	policy := s.file.Get()
	for _, word := range policy.forbidden {
		if strings.Contains(text, word) {
			return Finding{Term: word, Warning: policy.warning, NotifyAdmin: policy.notifyAdmin}, true
		}
	}
	return Finding{}, false
}

// Check returns the first forbidden entry contained in the normalized text.
// Containment is a plain substring test, so short entries can match inside
// longer words.
func (s *Store) Check(rawText string) (string, bool) {
	f, ok := s.Evaluate(rawText)
	return f.Term, ok
}

// IsForbidden reports whether rawText contains any forbidden entry.
func (s *Store) IsForbidden(rawText string) bool {
	_, ok := s.Check(rawText)
	return ok
}

// WarningMessage is the configured warning, or DefaultWarning.
func (s *Store) WarningMessage() string {
	return s.file.Get().warning
}

// NotifyAdmin reports the policy's notifyAdmin flag.
func (s *Store) NotifyAdmin() bool {
	return s.file.Get().notifyAdmin
}

// Invalidate forces the next call to reload the file.
func (s *Store) Invalidate() {
	s.file.Invalidate()
}

// Stats reports the backing cache state.
func (s *Store) Stats() filecache.Stats {
	return s.file.Stats()
}
