// Package editor coordinates instruction-driven edits of the resume source:
// budget gate, model call, patch extraction and application, persistence,
// compilation and publication of the compiled artifact.
package editor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/resume-editor/internal/compiler"
	"github.com/jonathan/resume-editor/internal/conversation"
	"github.com/jonathan/resume-editor/internal/diff"
	"github.com/jonathan/resume-editor/internal/history"
	"github.com/jonathan/resume-editor/internal/ledger"
	"github.com/jonathan/resume-editor/internal/llm"
	"github.com/jonathan/resume-editor/internal/patch"
	"github.com/jonathan/resume-editor/internal/prompts"
)

const (
	// ArtifactKey is the artifact store key of the compiled resume.
	ArtifactKey = "resume.pdf"
	// DefaultPDFPath is the retrieval path clients are pointed at.
	DefaultPDFPath = "/pdf"
	// DefaultCommitMessage is used when a manual commit carries no message.
	DefaultCommitMessage = "Manual Commit"
	// DefaultModelTimeout bounds a single model call, which runs under the
	// document lock.
	DefaultModelTimeout = 90 * time.Second

	maxCommitSubject = 72
)

// Model generates a completion for a prompt.
type Model interface {
	Generate(ctx context.Context, prompt string) (*llm.Response, error)
	Model() string
}

// Budget gates and accrues paid work.
type Budget interface {
	CheckBudget(ctx context.Context) bool
	AddCost(ctx context.Context, amount float64)
}

// DocumentStore holds the resume source.
type DocumentStore interface {
	Read(ctx context.Context) (string, error)
	Write(ctx context.Context, text string) error
	Path() string
}

// Compiler typesets documents.
type Compiler interface {
	Compile(ctx context.Context, texPath string) (*compiler.Result, error)
	CompileSource(ctx context.Context, latex string) (*compiler.Preview, error)
}

// VersionControl records revisions of the document.
type VersionControl interface {
	Sync(ctx context.Context) error
	Commit(ctx context.Context, path, message string) (*history.CommitResult, error)
	Log(ctx context.Context, n int) ([]history.Revision, error)
}

// ArtifactStore publishes compiled artifacts.
type ArtifactStore interface {
	Put(ctx context.Context, key, contentType string, r io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// JobFetcher turns a job posting URL into plain text.
type JobFetcher interface {
	FetchText(ctx context.Context, url string) (string, error)
}

// Deps are the collaborators of an Editor. Conversations, VCS, Jobs and Gate
// are optional.
type Deps struct {
	Model         Model
	Budget        Budget
	Documents     DocumentStore
	Compiler      Compiler
	Artifacts     ArtifactStore
	VCS           VersionControl
	Conversations conversation.Store
	Jobs          JobFetcher
	Gate          *patch.Gate
}

// Options tune an Editor.
type Options struct {
	Rates      ledger.Rates
	AutoCommit bool
	PDFPath    string
	// HistoryTurns and HistoryChars bound the conversation window in prompts.
	HistoryTurns int
	HistoryChars int
	ModelTimeout time.Duration
}

// UpdateRequest asks for an instruction-driven edit.
type UpdateRequest struct {
	Instruction    string `json:"instruction" validate:"required"`
	ConversationID string `json:"conversation_id,omitempty"`
	JobDescription string `json:"job_description,omitempty"`
	JobURL         string `json:"job_url,omitempty" validate:"omitempty,url"`
}

// UpdateResult is the outcome of a successful update.
type UpdateResult struct {
	ConversationID string                `json:"conversation_id"`
	Latex          string                `json:"latex"`
	PDFURL         string                `json:"pdf_url"`
	Patches        patch.Batch           `json:"patches"`
	Diff           []diff.Hunk           `json:"diff"`
	Stats          diff.Stats            `json:"stats"`
	Compilation    *compiler.Result      `json:"compilation,omitempty"`
	Cost           float64               `json:"cost"`
	Model          string                `json:"model"`
	Revision       *history.CommitResult `json:"revision,omitempty"`
	// CommitError is set when auto-commit failed; the edit itself stands.
	CommitError string `json:"commit_error,omitempty"`
}

// Editor runs updates against a single shared document.
type Editor struct {
	model     Model
	budget    Budget
	docs      DocumentStore
	compiler  Compiler
	artifacts ArtifactStore
	vcs       VersionControl
	convs     conversation.Store
	jobs      JobFetcher
	gate      *patch.Gate
	opts      Options
	logger    *slog.Logger

	// mu spans reading the document through compiling it, so a batch is
	// always applied to the text it was generated from.
	mu      sync.Mutex
	version atomic.Int64
}

// New creates an Editor. Model, Budget, Documents, Compiler and Artifacts are
// required.
func New(deps Deps, opts Options, logger *slog.Logger) (*Editor, error) {
	switch {
	case deps.Model == nil:
		return nil, errors.New("editor: model is required")
	case deps.Budget == nil:
		return nil, errors.New("editor: budget is required")
	case deps.Documents == nil:
		return nil, errors.New("editor: document store is required")
	case deps.Compiler == nil:
		return nil, errors.New("editor: compiler is required")
	case deps.Artifacts == nil:
		return nil, errors.New("editor: artifact store is required")
	}
	if deps.Gate == nil {
		deps.Gate = patch.NewGate(nil)
	}
	if opts.Rates == (ledger.Rates{}) {
		opts.Rates = ledger.DefaultRates()
	}
	if opts.PDFPath == "" {
		opts.PDFPath = DefaultPDFPath
	}
	if opts.ModelTimeout <= 0 {
		opts.ModelTimeout = DefaultModelTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	e := &Editor{
		model:     deps.Model,
		budget:    deps.Budget,
		docs:      deps.Documents,
		compiler:  deps.Compiler,
		artifacts: deps.Artifacts,
		vcs:       deps.VCS,
		convs:     deps.Conversations,
		jobs:      deps.Jobs,
		gate:      deps.Gate,
		opts:      opts,
		logger:    logger.With("component", "editor"),
	}
	e.version.Store(time.Now().Unix())
	return e, nil
}

// Update runs one instruction through the edit pipeline. Cost is accrued as
// soon as the model call returns. Once patches are persisted they stay
// persisted: a later compile, publish or commit failure leaves the new text
// in place and only reports the failure.
func (e *Editor) Update(ctx context.Context, req UpdateRequest, observe Observer) (*UpdateResult, error) {
	run := &progress{observe: observe, stage: StageIdle}
	run.emit(StageIdle, "update received", nil)

	if strings.TrimSpace(req.Instruction) == "" {
		return nil, run.fail(&Error{Kind: KindInvalidInput, Message: "instruction is required"})
	}

	if !e.budget.CheckBudget(ctx) {
		return nil, run.fail(&Error{Kind: KindBudgetExceeded, Message: "daily spend limit reached"})
	}
	run.emit(StageBudgetChecked, "budget available", nil)

	convID := req.ConversationID
	if convID == "" {
		convID = uuid.NewString()
	}
	turns := e.loadHistory(ctx, convID)

	jobText := req.JobDescription
	if strings.TrimSpace(jobText) == "" && req.JobURL != "" {
		if e.jobs == nil {
			return nil, run.fail(&Error{Kind: KindInvalidInput, Message: "job URL fetching is not configured"})
		}
		text, err := e.jobs.FetchText(ctx, req.JobURL)
		if err != nil {
			return nil, run.fail(&Error{Kind: KindInvalidInput, Message: "failed to fetch job posting", Cause: err})
		}
		jobText = text
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	before, err := e.docs.Read(ctx)
	if err != nil {
		return nil, run.fail(&Error{Kind: KindInternal, Message: "failed to read document", Cause: err})
	}

	prompt, err := prompts.BuildEditPrompt(prompts.EditRequest{
		Document:       before,
		Instruction:    req.Instruction,
		JobDescription: jobText,
		History:        turns,
	})
	if err != nil {
		return nil, run.fail(&Error{Kind: KindInternal, Message: "failed to build prompt", Cause: err})
	}

	genCtx, cancel := context.WithTimeout(ctx, e.opts.ModelTimeout)
	resp, genErr := e.model.Generate(genCtx, prompt)
	cancel()
	cost := e.opts.Rates.Cost(llm.Usage(prompt, resp))
	if cost > 0 {
		e.budget.AddCost(ctx, cost)
	}
	if genErr != nil {
		msg := "model call failed"
		if errors.Is(genErr, context.DeadlineExceeded) && ctx.Err() == nil {
			msg = fmt.Sprintf("model call timed out after %s", e.opts.ModelTimeout)
		}
		e.logger.Error(msg, "model", e.model.Model(), "error", genErr)
		return nil, run.fail(&Error{Kind: KindModelUnavailable, Message: msg, Cause: genErr})
	}
	run.emit(StageModelInvoked, "model responded", map[string]any{"cost": cost})

	batch, err := patch.Extract(resp.Text)
	if err != nil {
		e.logger.Warn("no patches in model output", "error", err)
		return nil, run.fail(classify(run.stage, err))
	}
	run.emit(StagePatchesExtracted, fmt.Sprintf("%d patches extracted", len(batch)), batch)

	if err := e.gate.CheckBatch(batch); err != nil {
		e.logger.Warn("patch batch rejected", "error", err)
		return nil, run.fail(classify(run.stage, err))
	}
	after, err := patch.Apply(before, batch)
	if err != nil {
		e.logger.Warn("patch batch did not apply", "error", err)
		return nil, run.fail(classify(run.stage, err))
	}

	if err := e.docs.Write(ctx, after); err != nil {
		return nil, run.fail(&Error{Kind: KindInternal, Message: "failed to persist document", Cause: err})
	}
	hunks := diff.TextDiff(before, after)
	run.emit(StagePatchesApplied, "document updated", diff.Summarize(hunks))

	e.recordTurns(ctx, convID, req.Instruction, batch)

	result := &UpdateResult{
		ConversationID: convID,
		Latex:          after,
		Patches:        batch,
		Diff:           hunks,
		Stats:          diff.Summarize(hunks),
		Cost:           cost,
		Model:          e.model.Model(),
	}

	compiled, err := e.compileLocked(ctx)
	if err != nil {
		return nil, run.fail(classify(run.stage, err))
	}
	result.Compilation = compiled
	result.PDFURL = e.PDFURL()
	run.emit(StageCompiled, "document compiled", compiled)

	if e.opts.AutoCommit && e.vcs != nil {
		rev, err := e.vcs.Commit(ctx, e.docs.Path(), commitSubject(req.Instruction))
		result.Revision = rev
		if err != nil {
			e.logger.Error("auto-commit failed", "error", err)
			result.CommitError = err.Error()
		}
	}

	run.emit(StageSuccess, "update complete", nil)
	e.logger.Info("update complete",
		"conversation_id", convID,
		"patches", len(batch),
		"cost", cost,
		"pages", compiled.Pages,
	)
	return result, nil
}

// compileLocked compiles the persisted document and publishes the artifact.
// The caller holds e.mu.
func (e *Editor) compileLocked(ctx context.Context) (*compiler.Result, error) {
	result, err := e.compiler.Compile(ctx, e.docs.Path())
	if err != nil {
		return nil, err
	}

	f, err := os.Open(result.ArtifactPath)
	if err != nil {
		return nil, &compiler.ArtifactMissingError{Path: result.ArtifactPath, Diagnostics: result.Diagnostics}
	}
	defer f.Close()

	if err := e.artifacts.Put(ctx, ArtifactKey, "application/pdf", f); err != nil {
		return nil, fmt.Errorf("failed to publish artifact: %w", err)
	}
	e.version.Add(1)
	return result, nil
}

// PDFURL returns the artifact retrieval path with a token that changes after
// every publish.
func (e *Editor) PDFURL() string {
	return fmt.Sprintf("%s?t=%d", e.opts.PDFPath, e.version.Load())
}

func (e *Editor) loadHistory(ctx context.Context, id string) []conversation.Turn {
	if e.convs == nil {
		return nil
	}
	turns, err := e.convs.List(ctx, id)
	if err != nil {
		e.logger.Warn("conversation history unavailable", "conversation_id", id, "error", err)
		return nil
	}
	return conversation.Window(turns, e.opts.HistoryTurns, e.opts.HistoryChars)
}

func (e *Editor) recordTurns(ctx context.Context, id, instruction string, batch patch.Batch) {
	if e.convs == nil {
		return
	}
	now := time.Now().UTC()
	err := e.convs.Append(ctx, id,
		conversation.Turn{Role: conversation.RoleUser, Content: instruction, CreatedAt: now},
		conversation.Turn{Role: conversation.RoleAssistant, Content: batchJSON(batch), CreatedAt: now},
	)
	if err != nil {
		e.logger.Warn("failed to record conversation turns", "conversation_id", id, "error", err)
	}
}

func commitSubject(instruction string) string {
	subject := strings.Join(strings.Fields(instruction), " ")
	if r := []rune(subject); len(r) > maxCommitSubject {
		subject = string(r[:maxCommitSubject-3]) + "..."
	}
	return "AI Update: " + subject
}
