// Package fsstore reads and atomically writes the small structured files
// (reply table, moderation policy) that back the responder.
package fsstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	ErrInvalidPath       = errors.New("fsstore: invalid path")
	ErrEncodeFailed      = errors.New("fsstore: encode failed")
	ErrDecodeFailed      = errors.New("fsstore: decode failed")
	ErrAtomicWriteFailed = errors.New("fsstore: atomic write failed")
)

const (
	defaultDirPerm  = 0o755
	defaultFilePerm = 0o644
)

// Format is the on-disk encoding of a file.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

func (f Format) String() string {
	if f == FormatYAML {
		return "yaml"
	}
	return "json"
}

// FormatOf picks the format from the file extension; anything that is not
// .yaml or .yml is treated as JSON.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Unmarshal decodes data in the given format. Blank input decodes to the zero
// value of out.
func Unmarshal(format Format, data []byte, out any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	var err error
	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, out)
	default:
		err = json.Unmarshal(data, out)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDecodeFailed, format, err)
	}
	return nil
}

// Marshal encodes v in the given format. JSON output is indented and keeps
// non-ASCII and HTML characters unescaped so hand edits stay readable.
func Marshal(format Format, v any) ([]byte, error) {
	switch format {
	case FormatYAML:
		data, err := yaml.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("%w: yaml: %v", ErrEncodeFailed, err)
		}
		return data, nil
	default:
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return nil, fmt.Errorf("%w: json: %v", ErrEncodeFailed, err)
		}
		return buf.Bytes(), nil
	}
}

// Read returns the file contents, or (nil, false, nil) when it does not exist.
func Read(path string) ([]byte, bool, error) {
	normalized, err := normalizePath(path)
	if err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(normalized)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read %s: %w", normalized, err)
	}
	return data, true, nil
}

// WriteFile encodes v in the file's format and replaces path atomically.
func WriteFile(path string, v any) error {
	data, err := Marshal(FormatOf(path), v)
	if err != nil {
		return err
	}
	return WriteAtomic(path, data)
}

// WriteAtomic writes content to a temporary file in the same directory and
// renames it over path, so readers see either the old or the new file.
func WriteAtomic(path string, content []byte) error {
	normalized, err := normalizePath(path)
	if err != nil {
		return err
	}

	parentDir := filepath.Dir(normalized)
	if err := os.MkdirAll(parentDir, defaultDirPerm); err != nil {
		return fmt.Errorf("fsstore ensure dir %s: %w", parentDir, err)
	}

	perm := os.FileMode(defaultFilePerm)
	if info, err := os.Stat(normalized); err == nil {
		perm = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(parentDir, filepath.Base(normalized)+".tmp.*")
	if err != nil {
		return fmt.Errorf("%w: create temp for %s: %v", ErrAtomicWriteFailed, normalized, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}
	defer cleanup()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("%w: write temp for %s: %v", ErrAtomicWriteFailed, normalized, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("%w: sync temp for %s: %v", ErrAtomicWriteFailed, normalized, err)
	}
	if err := tmp.Chmod(perm); err != nil {
		return fmt.Errorf("%w: chmod temp for %s: %v", ErrAtomicWriteFailed, normalized, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close temp for %s: %v", ErrAtomicWriteFailed, normalized, err)
	}
	if err := os.Rename(tmpPath, normalized); err != nil {
		return fmt.Errorf("%w: rename temp for %s: %v", ErrAtomicWriteFailed, normalized, err)
	}

	// Best effort directory sync; ignore failures.
	if dirFD, err := os.Open(parentDir); err == nil {
		_ = dirFD.Sync()
		_ = dirFD.Close()
	}
	return nil
}

func normalizePath(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", ErrInvalidPath
	}
	return filepath.Clean(path), nil
}
