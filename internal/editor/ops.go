package editor

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/jonathan/resume-editor/internal/artifact"
	"github.com/jonathan/resume-editor/internal/compiler"
	"github.com/jonathan/resume-editor/internal/history"
)

// DefaultHistoryLimit is the number of revisions History returns by default.
const DefaultHistoryLimit = 10

// Document returns the current resume source.
func (e *Editor) Document(ctx context.Context) (string, error) {
	text, err := e.docs.Read(ctx)
	if err != nil {
		return "", &Error{Kind: KindInternal, Stage: StageIdle, Message: "failed to read document", Cause: err}
	}
	return text, nil
}

// Save replaces the document with latex after a security check. It does not
// compile.
func (e *Editor) Save(ctx context.Context, latex string) error {
	if err := e.gate.CheckContent(latex); err != nil {
		return classify(StageIdle, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.docs.Write(ctx, latex); err != nil {
		return &Error{Kind: KindInternal, Stage: StageIdle, Message: "failed to persist document", Cause: err}
	}
	e.logger.Info("document saved", "bytes", len(latex))
	return nil
}

// Preview compiles latex in a scratch directory and returns the PDF. An empty
// latex previews the current document. Nothing is persisted or published.
func (e *Editor) Preview(ctx context.Context, latex string) (*compiler.Preview, error) {
	if strings.TrimSpace(latex) == "" {
		current, err := e.Document(ctx)
		if err != nil {
			return nil, err
		}
		latex = current
	}
	if err := e.gate.CheckContent(latex); err != nil {
		return nil, classify(StageIdle, err)
	}

	preview, err := e.compiler.CompileSource(ctx, latex)
	if err != nil {
		return nil, classify(StagePatchesApplied, err)
	}
	return preview, nil
}

// Compile compiles the persisted document and publishes the artifact.
func (e *Editor) Compile(ctx context.Context) (*compiler.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	result, err := e.compileLocked(ctx)
	if err != nil {
		return nil, classify(StagePatchesApplied, err)
	}
	return result, nil
}

// Commit records the persisted document as a revision. An empty message
// becomes DefaultCommitMessage.
func (e *Editor) Commit(ctx context.Context, message string) (*history.CommitResult, error) {
	if e.vcs == nil {
		return nil, &Error{Kind: KindVersionControl, Stage: StageIdle, Message: "version control is not configured"}
	}
	if strings.TrimSpace(message) == "" {
		message = DefaultCommitMessage
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	result, err := e.vcs.Commit(ctx, e.docs.Path(), message)
	if err != nil {
		return result, classify(StageIdle, err)
	}
	return result, nil
}

// History returns up to n revisions, newest first.
func (e *Editor) History(ctx context.Context, n int) ([]history.Revision, error) {
	if e.vcs == nil {
		return []history.Revision{}, nil
	}
	if n <= 0 {
		n = DefaultHistoryLimit
	}
	revs, err := e.vcs.Log(ctx, n)
	if err != nil {
		return nil, classify(StageIdle, err)
	}
	return revs, nil
}

// Artifact opens the published PDF. A missing artifact is KindNotFound.
func (e *Editor) Artifact(ctx context.Context) (io.ReadCloser, error) {
	rc, err := e.artifacts.Open(ctx, ArtifactKey)
	if err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			return nil, &Error{Kind: KindNotFound, Stage: StageIdle, Message: "no compiled artifact", Cause: err}
		}
		return nil, &Error{Kind: KindInternal, Stage: StageIdle, Message: "failed to open artifact", Cause: err}
	}
	return rc, nil
}

// Bootstrap syncs the document from version control and compiles it. Neither
// failure is fatal; the service starts and reports errors per request.
func (e *Editor) Bootstrap(ctx context.Context) {
	if e.vcs != nil {
		if err := e.vcs.Sync(ctx); err != nil {
			e.logger.Error("document sync failed", "error", err)
		}
	}
	if _, err := e.Compile(ctx); err != nil {
		e.logger.Warn("initial compile failed", "error", err)
		return
	}
	e.logger.Info("initial compile complete", "pdf_url", e.PDFURL())
}
