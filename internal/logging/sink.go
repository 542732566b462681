package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// Sink fans log output out to a writer (normally stdout) and an append-only
// file, and serves the file's tail for the log endpoint. Writes are
// serialized so concurrent jobs cannot interleave partial lines.
type Sink struct {
	mu   sync.Mutex
	out  io.Writer
	file *os.File
	path string
}

// NewSink opens (or creates) the log file at path, creating parent
// directories as needed, and mirrors writes to stdout.
func NewSink(path string) (*Sink, error) {
	return newSink(path, os.Stdout)
}

func newSink(path string, out io.Writer) (*Sink, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return &Sink{out: out, file: f, path: path}, nil
}

// Write appends p to both destinations. The file write error wins because
// the file is the durable copy the log endpoint serves.
func (s *Sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.out != nil {
		_, _ = s.out.Write(p)
	}
	return s.file.Write(p)
}

// Flush forces buffered file contents to disk.
func (s *Sink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Sync()
}

// Close flushes and closes the log file.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.file.Sync(); err != nil {
		return err
	}
	return s.file.Close()
}

// Path returns the log file location.
func (s *Sink) Path() string {
	return s.path
}

// Tail returns the last n lines of the log file. A missing file surfaces
// as an fs.ErrNotExist error for the caller to map to a 404.
func (s *Sink) Tail(n int) ([]string, error) {
	s.mu.Lock()
	path := s.path
	s.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return lastLines(data, n), nil
}

func lastLines(data []byte, n int) []string {
	data = bytes.TrimRight(data, "\n")
	if len(data) == 0 || n <= 0 {
		return nil
	}
	raw := bytes.Split(data, []byte("\n"))
	if len(raw) > n {
		raw = raw[len(raw)-n:]
	}
	lines := make([]string, len(raw))
	for i, b := range raw {
		lines[i] = string(b)
	}
	return lines
}
