package session

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	loggerpkg "github.com/grid-link-inc/gpt-cli/pkg/logger"
	"github.com/peterh/liner"
)

// LineReader supplies one line of user input per call and returns io.EOF
// once input ends.
type LineReader interface {
	ReadLine(prompt string) (string, error)
}

// ScannerReader reads lines from a plain stream, echoing the prompt to out.
type ScannerReader struct {
	scanner *bufio.Scanner
	out     io.Writer
}

// NewScannerReader creates a ScannerReader. A nil out discards prompts.
func NewScannerReader(in io.Reader, out io.Writer) *ScannerReader {
	if out == nil {
		out = io.Discard
	}
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &ScannerReader{scanner: scanner, out: out}
}

func (r *ScannerReader) ReadLine(prompt string) (string, error) {
	_, _ = fmt.Fprint(r.out, prompt)
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.scanner.Text(), nil
}

// HistoryReader is a terminal line editor whose history is kept in a file
// across sessions.
type HistoryReader struct {
	line   *liner.State
	path   string
	logger loggerpkg.Logger
}

// NewHistoryReader takes over the terminal and loads history from path. A
// missing history file is not an error.
func NewHistoryReader(path string, logger loggerpkg.Logger) *HistoryReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	if f, err := os.Open(path); err == nil {
		if _, err := line.ReadHistory(f); err != nil {
			loggerpkg.Warn(logger, "read history", map[string]any{"path": path, "error": err.Error()})
		}
		_ = f.Close()
	} else if !errors.Is(err, os.ErrNotExist) {
		loggerpkg.Warn(logger, "open history", map[string]any{"path": path, "error": err.Error()})
	}
	return &HistoryReader{line: line, path: path, logger: logger}
}

// ReadLine prompts for a line. Ctrl-C discards the line being edited and
// Ctrl-D ends input.
func (r *HistoryReader) ReadLine(prompt string) (string, error) {
	input, err := r.line.Prompt(prompt)
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		r.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves the history and restores the terminal.
func (r *HistoryReader) Close() error {
	defer func() { _ = r.line.Close() }()
	return saveHistory(r.path, r.line)
}

func saveHistory(path string, w interface {
	WriteHistory(io.Writer) (int, error)
}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create history: %w", err)
	}
	if _, err := w.WriteHistory(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write history: %w", err)
	}
	return f.Close()
}
