// Package filecache keeps a decoded copy of a small on-disk file and reloads
// it only when the file's modification time changes.
package filecache

import (
	"errors"
	"io/fs"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Decoder turns raw file bytes into a value.
type Decoder[T any] func(data []byte) (T, error)

// Stats describes the current cache state.
type Stats struct {
	Path     string    `json:"path"`
	Present  bool      `json:"present"`
	ModTime  time.Time `json:"mod_time,omitempty"`
	Size     int64     `json:"size"`
	LoadedAt time.Time `json:"loaded_at,omitempty"`
	Loads    int64     `json:"loads"`
	LastErr  string    `json:"last_error,omitempty"`
}

// snapshot is immutable once published.
type snapshot[T any] struct {
	value    T
	present  bool
	pinned   bool // false forces a reload on the next refresh
	modTime  time.Time
	size     int64
	loadedAt time.Time
	err      error
}

// File is a lazily refreshed, mtime-keyed cache of one file.
type File[T any] struct {
	fsys   fs.FS
	name   string
	decode Decoder[T]
	empty  func() T
	now    func() time.Time
	logger *zap.Logger
	onLoad func(err error)

	mu    sync.Mutex
	state atomic.Pointer[snapshot[T]]
	loads atomic.Int64
}

// Option configures a File.
type Option[T any] func(*File[T])

// WithEmpty sets the value served while the file is absent or unreadable.
func WithEmpty[T any](empty func() T) Option[T] {
	return func(f *File[T]) { f.empty = empty }
}

// WithLogger sets the logger used for reload diagnostics.
func WithLogger[T any](logger *zap.Logger) Option[T] {
	return func(f *File[T]) { f.logger = logger }
}

// WithClock overrides the clock used for LoadedAt.
func WithClock[T any](now func() time.Time) Option[T] {
	return func(f *File[T]) { f.now = now }
}

// WithLoadHook is called after every reload attempt with the decode or read
// error, if any.
func WithLoadHook[T any](hook func(err error)) Option[T] {
	return func(f *File[T]) { f.onLoad = hook }
}

// New creates a cache for name inside fsys. Nothing is read until the first
// Get or Refresh.
func New[T any](fsys fs.FS, name string, decode Decoder[T], opts ...Option[T]) *File[T] {
	f := &File[T]{
		fsys:   fsys,
		name:   name,
		decode: decode,
		empty:  func() T { var zero T; return zero },
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Name returns the file name inside the cache's file system.
func (f *File[T]) Name() string {
	return f.name
}

// Get refreshes the cache if needed and returns the current value. It never
// fails: missing, unreadable, or malformed files yield the empty value.
func (f *File[T]) Get() T {
	snap, _ := f.refresh()
	return snap.value
}

// Refresh stats the file and reloads it when the modification time or size
// differs from the cached snapshot. It reports whether a reload happened.
func (f *File[T]) Refresh() bool {
	_, reloaded := f.refresh()
	return reloaded
}

// refresh returns the snapshot it validated or published so callers never
// load the pointer a second time.
func (f *File[T]) refresh() (*snapshot[T], bool) {
	info, statErr := fs.Stat(f.fsys, f.name)
	if snap := f.state.Load(); f.fresh(snap, info, statErr) {
		return snap, false
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	// Another caller may have reloaded while we waited for the lock.
	if snap := f.state.Load(); f.fresh(snap, info, statErr) {
		return snap, false
	}

	snap := f.load(info, statErr)
	f.state.Store(snap)
	return snap, true
}

// Invalidate unpins the cached snapshot so the next Get reloads the file.
// Readers keep seeing the previous value until then.
func (f *File[T]) Invalidate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur := f.state.Load()
	if cur == nil || !cur.pinned {
		return
	}
	stale := *cur
	stale.pinned = false
	f.state.Store(&stale)
}

// Stats reports the state of the last load.
func (f *File[T]) Stats() Stats {
	st := Stats{Path: f.name, Loads: f.loads.Load()}
	snap := f.state.Load()
	if snap == nil {
		return st
	}
	st.Present = snap.present
	st.ModTime = snap.modTime
	st.Size = snap.size
	st.LoadedAt = snap.loadedAt
	if snap.err != nil {
		st.LastErr = snap.err.Error()
	}
	return st
}

func (f *File[T]) fresh(snap *snapshot[T], info fs.FileInfo, statErr error) bool {
	if snap == nil || !snap.pinned {
		return false
	}
	if statErr != nil {
		return !snap.present
	}
	return snap.present && snap.modTime.Equal(info.ModTime()) && snap.size == info.Size()
}

func (f *File[T]) load(info fs.FileInfo, statErr error) *snapshot[T] {
	f.loads.Add(1)
	snap := &snapshot[T]{value: f.empty(), loadedAt: f.now(), pinned: true}

	if statErr != nil {
		if !errors.Is(statErr, fs.ErrNotExist) {
			snap.pinned = false
			snap.err = statErr
			f.logger.Warn("stat failed, serving empty value", zap.String("file", f.name), zap.Error(statErr))
		} else {
			f.logger.Debug("file absent, serving empty value", zap.String("file", f.name))
		}
		f.hook(snap.err)
		return snap
	}

	snap.present = true
	snap.modTime = info.ModTime()
	snap.size = info.Size()

	data, err := fs.ReadFile(f.fsys, f.name)
	if err != nil {
		// Transient read failures are retried on the next call.
		snap.pinned = false
		snap.err = err
		f.logger.Warn("read failed, serving empty value", zap.String("file", f.name), zap.Error(err))
		f.hook(err)
		return snap
	}

	value, err := f.decode(data)
	if err != nil {
		// Malformed content stays empty until the file changes again.
		snap.err = err
		f.logger.Warn("decode failed, serving empty value", zap.String("file", f.name), zap.Error(err))
		f.hook(err)
		return snap
	}

	snap.value = value
	f.logger.Info("file loaded",
		zap.String("file", f.name),
		zap.Time("mod_time", snap.modTime),
		zap.Int64("size", snap.size),
	)
	f.hook(nil)
	return snap
}

func (f *File[T]) hook(err error) {
	if f.onLoad != nil {
		f.onLoad(err)
	}
}
