package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// DefaultOutputDir is used when no output directory is configured.
const DefaultOutputDir = "./outputs"

var unsafeFilenameChars = regexp.MustCompile(`[<>:"/\\|?*]`)

// OutputStore persists sync outputs and sheet diagnostics under a base directory.
type OutputStore struct {
	baseDir string
}

// NewOutputStore ensures the base directory exists and returns a handle.
func NewOutputStore(baseDir string) (*OutputStore, error) {
	if baseDir == "" {
		baseDir = DefaultOutputDir
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	return &OutputStore{baseDir: baseDir}, nil
}

// Save writes data to filename under the base dir and returns the full path.
func (s *OutputStore) Save(filename string, data []byte) (string, error) {
	path := s.resolve(filename)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("prepare output directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write output file: %w", err)
	}
	return path, nil
}

// SaveJSON writes v as indented JSON without HTML escaping.
func (s *OutputStore) SaveJSON(filename string, v interface{}) (string, error) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("encode %s: %w", filename, err)
	}
	return s.Save(filename, buf.Bytes())
}

// SaveStream copies from r into filename.
func (s *OutputStore) SaveStream(filename string, r io.Reader) (string, error) {
	path := s.resolve(filename)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("prepare output directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create output file: %w", err)
	}
	defer file.Close() //nolint:errcheck
	if _, err := io.Copy(file, r); err != nil {
		return "", fmt.Errorf("write output stream: %w", err)
	}
	return path, nil
}

// Open returns a read-only handle for a stored file.
func (s *OutputStore) Open(filename string) (*os.File, error) {
	file, err := os.Open(s.resolve(filename))
	if err != nil {
		return nil, fmt.Errorf("open output file: %w", err)
	}
	return file, nil
}

// Dir returns the base directory.
func (s *OutputStore) Dir() string {
	return s.baseDir
}

func (s *OutputStore) resolve(filename string) string {
	if filepath.IsAbs(filename) {
		return filename
	}
	return filepath.Join(s.baseDir, filename)
}

// SanitizeFilename replaces characters that are invalid in file names and
// trims surrounding spaces and dots.
func SanitizeFilename(value string) string {
	cleaned := unsafeFilenameChars.ReplaceAllString(value, "_")
	cleaned = strings.Trim(strings.TrimSpace(cleaned), ".")
	if cleaned == "" {
		return "Unknown_Class"
	}
	return cleaned
}
