// Package history records document revisions in a git repository and reads
// them back for display.
package history

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jonathan/resume-editor/internal/runner"
)

const (
	// DefaultLogLimit is how many revisions Log returns when n <= 0.
	DefaultLogLimit = 10
	// minSecretLen keeps scrub from rewriting short user names like "git".
	minSecretLen = 8
	// logFormat must stay in sync with parseLog.
	logFormat = "--pretty=format:%H|%s|%an|%aI"
)

// VersionControlError represents a failed git step.
type VersionControlError struct {
	Op       string // add, commit, push, log, sync
	ExitCode int
	Output   string
	Cause    error
}

func (e *VersionControlError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("version control error: %s failed: %v", e.Op, e.Cause)
	}
	return fmt.Sprintf("version control error: %s failed with exit code %d: %s", e.Op, e.ExitCode, strings.TrimSpace(e.Output))
}

func (e *VersionControlError) Unwrap() error {
	return e.Cause
}

// Revision is one commit as shown to clients.
type Revision struct {
	ID        string    `json:"sha"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	Timestamp time.Time `json:"date"`
}

// CommitResult distinguishes a pushed commit from a no-op.
type CommitResult struct {
	Committed bool   `json:"committed"`
	Pushed    bool   `json:"pushed"`
	Revision  string `json:"sha,omitempty"`
}

// Options configures a Git store.
type Options struct {
	Dir         string
	RemoteURL   string // empty skips Sync
	Remote      string // defaults to origin
	Branch      string // defaults to main
	AuthorName  string
	AuthorEmail string
	Push        bool
	Timeout     time.Duration
}

// Git drives the git CLI through a runner.Runner.
type Git struct {
	runner runner.Runner
	opts   Options
	logger *slog.Logger
}

// New creates a Git store.
func New(r runner.Runner, opts Options, logger *slog.Logger) *Git {
	if opts.Remote == "" {
		opts.Remote = "origin"
	}
	if opts.Branch == "" {
		opts.Branch = "main"
	}
	if opts.AuthorName == "" {
		opts.AuthorName = "Resume Editor"
	}
	if opts.AuthorEmail == "" {
		opts.AuthorEmail = "resume-editor@localhost"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Git{runner: r, opts: opts, logger: logger.With("component", "git")}
}

func (g *Git) git(ctx context.Context, args ...string) (*runner.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()
	return g.runner.Run(ctx, runner.Command{Dir: g.opts.Dir, Name: "git", Args: args})
}

// step runs a git command and converts failures into a VersionControlError.
func (g *Git) step(ctx context.Context, op string, args ...string) (*runner.Result, error) {
	res, err := g.git(ctx, args...)
	if err != nil {
		return nil, &VersionControlError{Op: op, ExitCode: -1, Cause: err}
	}
	if res.ExitCode != 0 {
		return nil, &VersionControlError{Op: op, ExitCode: res.ExitCode, Output: g.scrub(res.Combined())}
	}
	return res, nil
}

// Sync initialises the working directory and hard-resets it to the remote
// branch. It does nothing when no remote is configured.
func (g *Git) Sync(ctx context.Context) error {
	if g.opts.RemoteURL == "" {
		g.logger.Info("no remote configured, skipping sync")
		return nil
	}

	if _, err := g.step(ctx, "sync", "init"); err != nil {
		return err
	}
	if _, err := g.step(ctx, "sync", "config", "user.name", g.opts.AuthorName); err != nil {
		return err
	}
	if _, err := g.step(ctx, "sync", "config", "user.email", g.opts.AuthorEmail); err != nil {
		return err
	}

	// The remote may survive from a previous run; point it at the configured URL.
	if _, err := g.step(ctx, "sync", "remote", "add", g.opts.Remote, g.opts.RemoteURL); err != nil {
		if _, err := g.step(ctx, "sync", "remote", "set-url", g.opts.Remote, g.opts.RemoteURL); err != nil {
			return err
		}
	}

	g.logger.Info("syncing", "remote", redact(g.opts.RemoteURL), "branch", g.opts.Branch)
	if _, err := g.step(ctx, "sync", "fetch", g.opts.Remote, g.opts.Branch); err != nil {
		return err
	}
	if _, err := g.step(ctx, "sync", "reset", "--hard", g.opts.Remote+"/"+g.opts.Branch); err != nil {
		return err
	}
	return nil
}

// Commit stages path, commits it and pushes. With nothing staged no commit is
// made, but local commits left behind by an earlier failed push are still
// pushed.
func (g *Git) Commit(ctx context.Context, path, message string) (*CommitResult, error) {
	if strings.TrimSpace(message) == "" {
		message = "Manual Commit"
	}

	if _, err := g.step(ctx, "add", "add", "--", path); err != nil {
		return nil, err
	}

	// diff --cached --quiet exits 1 when something is staged.
	res, err := g.git(ctx, "diff", "--cached", "--quiet", "--", path)
	if err != nil {
		return nil, &VersionControlError{Op: "commit", ExitCode: -1, Cause: err}
	}
	switch res.ExitCode {
	case 0:
		g.logger.Info("nothing to commit", "path", path)
		if !g.opts.Push {
			return &CommitResult{}, nil
		}
		return g.pushPending(ctx)
	case 1:
	default:
		return nil, &VersionControlError{Op: "commit", ExitCode: res.ExitCode, Output: g.scrub(res.Combined())}
	}

	if _, err := g.step(ctx, "commit",
		"-c", "user.name="+g.opts.AuthorName,
		"-c", "user.email="+g.opts.AuthorEmail,
		"commit", "-m", message, "--", path,
	); err != nil {
		return nil, err
	}

	result := &CommitResult{Committed: true}
	if head, err := g.step(ctx, "commit", "rev-parse", "HEAD"); err == nil {
		result.Revision = strings.TrimSpace(head.Stdout)
	}

	if !g.opts.Push {
		g.logger.Info("committed", "sha", result.Revision, "pushed", false)
		return result, nil
	}
	if _, err := g.step(ctx, "push", "push", g.opts.Remote, "HEAD:"+g.opts.Branch); err != nil {
		return result, err
	}
	result.Pushed = true
	g.logger.Info("committed", "sha", result.Revision, "pushed", true)
	return result, nil
}

// pushPending pushes HEAD when it is ahead of the remote branch. A remote
// branch that is unknown locally counts as behind.
func (g *Git) pushPending(ctx context.Context) (*CommitResult, error) {
	head, err := g.git(ctx, "rev-parse", "--verify", "-q", "HEAD")
	if err != nil {
		return nil, &VersionControlError{Op: "push", ExitCode: -1, Cause: err}
	}
	revision := strings.TrimSpace(head.Stdout)
	if head.ExitCode != 0 || revision == "" {
		return &CommitResult{}, nil
	}

	ahead := -1
	res, err := g.git(ctx, "rev-list", "--count", g.opts.Remote+"/"+g.opts.Branch+"..HEAD")
	if err != nil {
		return nil, &VersionControlError{Op: "push", ExitCode: -1, Cause: err}
	}
	if res.ExitCode == 0 {
		if n, convErr := strconv.Atoi(strings.TrimSpace(res.Stdout)); convErr == nil {
			ahead = n
		}
	}
	if ahead == 0 {
		return &CommitResult{Revision: revision}, nil
	}

	result := &CommitResult{Revision: revision}
	if _, err := g.step(ctx, "push", "push", g.opts.Remote, "HEAD:"+g.opts.Branch); err != nil {
		return result, err
	}
	result.Pushed = true
	g.logger.Info("pushed pending commits", "sha", revision, "ahead", ahead)
	return result, nil
}

// Log returns up to n revisions, newest first.
func (g *Git) Log(ctx context.Context, n int) ([]Revision, error) {
	if n <= 0 {
		n = DefaultLogLimit
	}
	res, err := g.git(ctx, "log", logFormat, "-n", strconv.Itoa(n))
	if err != nil {
		return nil, &VersionControlError{Op: "log", ExitCode: -1, Cause: err}
	}
	if res.ExitCode != 0 {
		// A fresh repository has no HEAD yet.
		if strings.Contains(res.Stderr, "does not have any commits") {
			return []Revision{}, nil
		}
		return nil, &VersionControlError{Op: "log", ExitCode: res.ExitCode, Output: g.scrub(res.Combined())}
	}
	return parseLog(res.Stdout), nil
}

// parseLog reads "sha|subject|author|date" lines. The subject may itself
// contain '|', so the sha is taken from the front and author/date from the back.
func parseLog(out string) []Revision {
	revisions := []Revision{}
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Split(line, "|")
		if len(fields) < 4 {
			continue
		}
		last := len(fields) - 1
		rev := Revision{
			ID:      fields[0],
			Message: strings.Join(fields[1:last-1], "|"),
			Author:  fields[last-1],
		}
		if ts, err := time.Parse(time.RFC3339, fields[last]); err == nil {
			rev.Timestamp = ts
		}
		revisions = append(revisions, rev)
	}
	return revisions
}

// redact strips credentials embedded in a remote URL.
func redact(remote string) string {
	u, err := url.Parse(remote)
	if err != nil || u.User == nil {
		return remote
	}
	u.User = url.User("redacted")
	return u.String()
}

// scrub removes remote credentials from git output, which echoes the remote
// URL on fetch and push failures and ends up in API error payloads.
func (g *Git) scrub(out string) string {
	remote := g.opts.RemoteURL
	if remote == "" {
		return out
	}
	out = strings.ReplaceAll(out, remote, redact(remote))
	u, err := url.Parse(remote)
	if err != nil || u.User == nil {
		return out
	}
	secrets := []string{u.User.Username()}
	if pw, ok := u.User.Password(); ok {
		secrets = append(secrets, pw)
	}
	for _, secret := range secrets {
		if len(secret) >= minSecretLen {
			out = strings.ReplaceAll(out, secret, "redacted")
		}
	}
	return out
}
