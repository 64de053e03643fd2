package compiler

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jonathan/resume-editor/internal/runner"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

const (
	// CompilationTimeout is the default limit for a single toolchain run
	CompilationTimeout = 30 * time.Second
	// DefaultLogTailBytes bounds the diagnostics returned to callers
	DefaultLogTailBytes = 2048
	// maxDetails caps the number of error-marker lines surfaced
	maxDetails = 20
)

// Options configures the toolchain invocation.
type Options struct {
	Binary string
	Args   []string // placed before the document path
	// Timeout is required; a hung toolchain must not hold the edit lock forever.
	Timeout time.Duration
	// WarningExitCode is the lowest exit code treated as fatal. Codes in
	// 1..WarningExitCode-1 are warnings and still usable if the artifact
	// exists. A value of 1 makes every non-zero exit fatal.
	WarningExitCode int
	LogTailBytes    int
	// ScratchDir is the parent of per-request preview directories.
	ScratchDir string
	// AssetDir holds class files, fonts and images copied into previews.
	AssetDir string
}

// DefaultOptions returns options for tectonic.
func DefaultOptions() Options {
	return Options{
		Binary:          "tectonic",
		Timeout:         CompilationTimeout,
		WarningExitCode: 1,
		LogTailBytes:    DefaultLogTailBytes,
	}
}

// Result describes a compile that produced a usable artifact.
type Result struct {
	Succeeded    bool          `json:"succeeded"`
	ArtifactPath string        `json:"-"`
	Warnings     bool          `json:"warnings"`
	ExitCode     int           `json:"exit_code"`
	Pages        int           `json:"pages,omitempty"`
	Diagnostics  string        `json:"diagnostics,omitempty"`
	Duration     time.Duration `json:"duration_ns"`
}

// Compiler runs the toolchain through a runner.Runner.
type Compiler struct {
	runner     runner.Runner
	opts       Options
	logger     *slog.Logger
	countPages func(path string) (int, error)
}

// New creates a Compiler. Zero-valued options fall back to DefaultOptions.
func New(r runner.Runner, opts Options, logger *slog.Logger) *Compiler {
	def := DefaultOptions()
	if opts.Binary == "" {
		opts.Binary = def.Binary
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.WarningExitCode <= 0 {
		opts.WarningExitCode = def.WarningExitCode
	}
	if opts.LogTailBytes <= 0 {
		opts.LogTailBytes = def.LogTailBytes
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Compiler{
		runner:     r,
		opts:       opts,
		logger:     logger.With("component", "compiler"),
		countPages: api.PageCountFile,
	}
}

// Compile typesets texPath in its own directory and expects <base>.pdf next to it.
func (c *Compiler) Compile(ctx context.Context, texPath string) (*Result, error) {
	dir := filepath.Dir(texPath)
	name := filepath.Base(texPath)
	artifact := filepath.Join(dir, strings.TrimSuffix(name, filepath.Ext(name))+".pdf")

	// Only an artifact written by this run counts.
	if err := os.Remove(artifact); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, &CompilationError{Message: "previous artifact could not be removed", ExitCode: -1, Cause: err}
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	args := append(append([]string{}, c.opts.Args...), name)
	started := time.Now()
	res, err := c.runner.Run(ctx, runner.Command{Dir: dir, Name: c.opts.Binary, Args: args})
	elapsed := time.Since(started)

	if err != nil {
		var logs string
		if res != nil {
			logs = res.Combined()
		}
		msg := "toolchain could not be run"
		if errors.Is(err, context.DeadlineExceeded) {
			msg = fmt.Sprintf("toolchain timed out after %s", c.opts.Timeout)
		}
		return nil, &CompilationError{
			Message:     msg,
			ExitCode:    -1,
			Details:     ErrorLines(logs),
			Diagnostics: LogTail(logs, c.opts.LogTailBytes),
			Cause:       err,
		}
	}

	logs := res.Combined()
	// A negative code means the process was killed by a signal.
	if res.ExitCode < 0 || res.ExitCode >= c.opts.WarningExitCode {
		c.logger.Warn("compilation failed", "file", name, "exit_code", res.ExitCode, "duration", elapsed)
		return nil, &CompilationError{
			Message:     "toolchain exited with a fatal status",
			ExitCode:    res.ExitCode,
			Details:     ErrorLines(logs),
			Diagnostics: LogTail(logs, c.opts.LogTailBytes),
		}
	}

	if _, statErr := os.Stat(artifact); statErr != nil {
		return nil, &ArtifactMissingError{Path: artifact, Diagnostics: LogTail(logs, c.opts.LogTailBytes)}
	}

	result := &Result{
		Succeeded:    true,
		ArtifactPath: artifact,
		Warnings:     res.ExitCode != 0,
		ExitCode:     res.ExitCode,
		Duration:     elapsed,
	}
	if result.Warnings {
		result.Diagnostics = LogTail(logs, c.opts.LogTailBytes)
	}
	if pages, err := c.countPages(artifact); err == nil {
		result.Pages = pages
	} else {
		c.logger.Debug("page count unavailable", "file", artifact, "error", err)
	}

	c.logger.Info("compiled", "file", name, "exit_code", res.ExitCode, "pages", result.Pages, "duration", elapsed)
	return result, nil
}

// ErrorLines returns the lines of log that carry an error marker: TeX's
// leading "!" or an "error:"/"fatal" prefix as printed by tectonic.
func ErrorLines(log string) []string {
	var lines []string
	seen := make(map[string]bool)
	scanner := bufio.NewScanner(strings.NewReader(log))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || seen[line] || !isErrorLine(line) {
			continue
		}
		seen[line] = true
		lines = append(lines, line)
		if len(lines) == maxDetails {
			break
		}
	}
	return lines
}

func isErrorLine(line string) bool {
	if strings.HasPrefix(line, "!") {
		return true
	}
	lower := strings.ToLower(line)
	return strings.HasPrefix(lower, "error") ||
		strings.HasPrefix(lower, "fatal") ||
		strings.Contains(lower, " error:")
}

// LogTail returns at most n bytes from the end of s without splitting a rune.
func LogTail(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	cut := len(s) - n
	for cut < len(s) && !utf8.RuneStart(s[cut]) {
		cut++
	}
	return s[cut:]
}
