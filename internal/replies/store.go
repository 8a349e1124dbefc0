package replies

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"keyword_responder/internal/filecache"
	"keyword_responder/internal/fsstore"
	"keyword_responder/internal/normalize"
)

// Command tokens answered before any table lookup.
const (
	CommandTime = "!time"
	CommandDate = "!date"

	TimeLayout = "15:04:05"
	DateLayout = "2006-01-02"
)

// DefaultZone is the fixed UTC+3 offset used for command replies.
var DefaultZone = time.FixedZone("UTC+3", 3*60*60)

// Store resolves inbound text against the reply table file, reloading it
// only when the file changes.
type Store struct {
	file   *filecache.File[*Table]
	norm   *normalize.Normalizer
	now    func() time.Time
	zone   *time.Location
	logger *zap.Logger
	onLoad func(error)
}

// Option configures a Store.
type Option func(*Store)

// WithNormalizer sets the normalizer used for keys and input.
func WithNormalizer(n *normalize.Normalizer) Option {
	return func(s *Store) { s.norm = n }
}

// WithClock sets the clock used by the !time and !date commands.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithZone sets the zone used by the !time and !date commands.
func WithZone(zone *time.Location) Option {
	return func(s *Store) { s.zone = zone }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithLoadHook is called after every reload attempt.
func WithLoadHook(hook func(err error)) Option {
	return func(s *Store) { s.onLoad = hook }
}

// OpenStore creates a Store backed by the file at path.
func OpenStore(path string, opts ...Option) *Store {
	return NewStore(os.DirFS(filepath.Dir(path)), filepath.Base(path), opts...)
}

// NewStore creates a Store backed by name inside fsys. The format is picked
// from the name's extension.
func NewStore(fsys fs.FS, name string, opts ...Option) *Store {
	s := &Store{
		norm:   normalize.New(normalize.PolicyExtended),
		now:    time.Now,
		zone:   DefaultZone,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	format := fsstore.FormatOf(name)
	decode := func(data []byte) (*Table, error) {
		doc, err := DecodeDocument(format, data)
		if err != nil {
			return nil, err
		}
		t := Compile(doc, s.norm, s.logger)
		s.logger.Info("reply table compiled",
			zap.String("file", name),
			zap.Bool("flat", doc.Flat),
			zap.Int("entries", t.Len()),
			zap.Int("skipped", t.Skipped()),
		)
		return t, nil
	}

	fileOpts := []filecache.Option[*Table]{
		filecache.WithEmpty(EmptyTable),
		filecache.WithLogger[*Table](s.logger),
	}
	if s.onLoad != nil {
		fileOpts = append(fileOpts, filecache.WithLoadHook[*Table](s.onLoad))
	}
	s.file = filecache.New(fsys, name, decode, fileOpts...)
	return s
}

// Resolve returns the reply for rawText, or false when nothing matches.
func (s *Store) Resolve(rawText string) (string, bool) {
	m, ok := s.ResolveMatch(rawText)
	return m.Reply, ok
}

// ResolveMatch is Resolve with the matching layer and key.
func (s *Store) ResolveMatch(rawText string) (Match, bool) {
	trimmed := strings.TrimSpace(rawText)
	if trimmed == "" {
		return Match{}, false
	}
	normalized := s.norm.Normalize(rawText)

	if m, ok := s.command(trimmed, normalized); ok {
		return m, true
	}
	return s.file.Get().Match(rawText, normalized)
}

func (s *Store) command(trimmed, normalized string) (Match, bool) {
	switch {
	case trimmed == CommandTime || normalized == CommandTime:
		return Match{Reply: s.now().In(s.zone).Format(TimeLayout), Layer: LayerCommand, Key: CommandTime}, true
	case trimmed == CommandDate || normalized == CommandDate:
		return Match{Reply: s.now().In(s.zone).Format(DateLayout), Layer: LayerCommand, Key: CommandDate}, true
	}
	return Match{}, false
}

// Normalizer returns the normalizer used by the store.
func (s *Store) Normalizer() *normalize.Normalizer {
	return s.norm
}

// Invalidate forces the next resolution to reload the file.
func (s *Store) Invalidate() {
	s.file.Invalidate()
}

// Stats reports the backing cache state.
func (s *Store) Stats() filecache.Stats {
	return s.file.Stats()
}
