package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonathan/resume-editor/internal/artifact"
	"github.com/jonathan/resume-editor/internal/compiler"
	"github.com/jonathan/resume-editor/internal/config"
	"github.com/jonathan/resume-editor/internal/conversation"
	"github.com/jonathan/resume-editor/internal/db"
	"github.com/jonathan/resume-editor/internal/document"
	"github.com/jonathan/resume-editor/internal/editor"
	"github.com/jonathan/resume-editor/internal/fetch"
	"github.com/jonathan/resume-editor/internal/history"
	"github.com/jonathan/resume-editor/internal/ledger"
	"github.com/jonathan/resume-editor/internal/llm"
	"github.com/jonathan/resume-editor/internal/patch"
	"github.com/jonathan/resume-editor/internal/runner"
)

// loadConfig reads the optional config file, applies environment overrides
// and fills defaults.
func loadConfig(path string, getenv func(string) string) (config.Config, error) {
	var cfg config.Config
	if path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return cfg, err
		}
		cfg = *loaded
	}
	if err := cfg.ApplyEnv(getenv); err != nil {
		return cfg, err
	}
	cfg = cfg.MergeWithDefaults(config.Defaults())
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// newLogger builds the process logger from log_level and log_format.
func newLogger(cfg config.Config, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// app owns the components built from a Config and releases them on close.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	db      *db.DB
	closers []func() error
}

func newApp(cfg config.Config, logger *slog.Logger) *app {
	return &app{cfg: cfg, logger: logger}
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("failed to release resource", "error", err)
		}
	}
	a.closers = nil
}

// database connects once and applies pending migrations.
func (a *app) database(ctx context.Context) (*db.DB, error) {
	if a.db != nil {
		return a.db, nil
	}
	database, err := db.Connect(ctx, a.cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx, database.SQL(), db.MigrateUp); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	a.db = database
	a.closers = append(a.closers, func() error {
		database.Close()
		return nil
	})
	return database, nil
}

func (a *app) ledger(ctx context.Context) (*ledger.Ledger, error) {
	var store ledger.Store
	switch a.cfg.LedgerBackend {
	case config.BackendMemory:
		store = ledger.NewMemoryStore()
	case config.BackendSQLite:
		s, err := ledger.NewSQLiteStore(a.cfg.LedgerPath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		store = s
	case config.BackendPostgres:
		database, err := a.database(ctx)
		if err != nil {
			return nil, err
		}
		store = ledger.NewPostgresStore(database.SQL())
	case config.BackendDynamoDB:
		s, err := ledger.NewDynamoStore(ctx, a.cfg.AWSRegion, a.cfg.LedgerTable)
		if err != nil {
			return nil, err
		}
		store = s
	case config.BackendFirestore:
		s, err := ledger.NewFirestoreStore(ctx, a.cfg.GCPProject, a.cfg.LedgerTable)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		store = s
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", a.cfg.LedgerBackend)
	}

	return ledger.New(store, ledger.Config{
		Limit:  a.cfg.DailyLimit,
		Policy: ledger.Policy(a.cfg.LedgerPolicy),
	}, a.logger), nil
}

func (a *app) conversations(ctx context.Context) (conversation.Store, error) {
	switch a.cfg.ConversationBackend {
	case "", config.BackendMemory:
		return conversation.NewMemoryStore(), nil
	case config.BackendPostgres:
		database, err := a.database(ctx)
		if err != nil {
			return nil, err
		}
		return conversation.NewPostgresStore(database), nil
	case config.BackendDynamoDB:
		return conversation.NewDynamoStore(ctx, a.cfg.AWSRegion, a.cfg.ConversationTable)
	default:
		return nil, fmt.Errorf("unknown conversation backend %q", a.cfg.ConversationBackend)
	}
}

func (a *app) model(ctx context.Context) (llm.Client, error) {
	provider := llm.Provider(strings.ToLower(a.cfg.Provider))
	region := a.cfg.GCPRegion
	if provider == llm.ProviderBedrock {
		region = a.cfg.AWSRegion
	}
	client, err := llm.NewClient(ctx, &llm.Config{
		Provider:    provider,
		Model:       a.cfg.Model,
		Temperature: a.cfg.Temperature,
		MaxTokens:   int(a.cfg.MaxTokens),
		Project:     a.cfg.GCPProject,
		Region:      region,
		MaxRetries:  a.cfg.MaxRetries,
	}, a.cfg.APIKey, a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create model client: %w", err)
	}
	a.closers = append(a.closers, client.Close)
	return client, nil
}

func (a *app) rates() ledger.Rates {
	rates := ledger.DefaultRates()
	if a.cfg.InputPerToken > 0 {
		rates.InputPerToken = a.cfg.InputPerToken
	}
	if a.cfg.OutputPerToken > 0 {
		rates.OutputPerToken = a.cfg.OutputPerToken
	}
	return rates
}

func (a *app) compiler() *compiler.Compiler {
	timeout, _, _ := a.cfg.Durations()
	return compiler.New(runner.Exec{}, compiler.Options{
		Binary:          a.cfg.CompilerBinary,
		Args:            a.cfg.CompilerArgs,
		Timeout:         timeout,
		WarningExitCode: a.cfg.WarningExitCode,
		ScratchDir:      a.cfg.ScratchDir,
		AssetDir:        a.cfg.AssetDir,
	}, a.logger)
}

func (a *app) git() *history.Git {
	return history.New(runner.Exec{}, history.Options{
		Dir:         filepath.Dir(a.cfg.DocumentPath),
		RemoteURL:   a.cfg.RemoteURL(),
		Branch:      a.cfg.GitBranch,
		AuthorName:  a.cfg.GitAuthorName,
		AuthorEmail: a.cfg.GitAuthorEmail,
		Push:        a.cfg.GitPush,
		Timeout:     time.Minute,
	}, a.logger)
}

// editorParts holds the editor and the ledger it charges, which the server
// and idle monitor share.
type editorParts struct {
	editor *editor.Editor
	ledger *ledger.Ledger
}

// buildEditor wires every collaborator of the editor. withModel is false for
// commands that never call the model, so they run without credentials.
func (a *app) buildEditor(ctx context.Context, withModel bool) (*editorParts, error) {
	spend, err := a.ledger(ctx)
	if err != nil {
		return nil, err
	}

	var model editor.Model = offlineModel{}
	if withModel {
		client, err := a.model(ctx)
		if err != nil {
			return nil, err
		}
		model = client
	}

	artifacts, err := artifact.New(ctx, artifact.Config{
		Backend: a.cfg.ArtifactBackend,
		Dir:     a.cfg.ArtifactDir,
		Bucket:  a.cfg.ArtifactBucket,
		Prefix:  a.cfg.ArtifactPrefix,
		Region:  a.cfg.AWSRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create artifact store: %w", err)
	}

	conversations, err := a.conversations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation store: %w", err)
	}

	ed, err := editor.New(editor.Deps{
		Model:         model,
		Budget:        spend,
		Documents:     document.NewFileStore(a.cfg.DocumentPath),
		Compiler:      a.compiler(),
		Artifacts:     artifacts,
		VCS:           a.git(),
		Conversations: conversations,
		Jobs:          fetch.New(fetch.DefaultOptions()),
		Gate:          patch.NewGate(a.cfg.Directives),
	}, editor.Options{
		Rates:        a.rates(),
		AutoCommit:   a.cfg.AutoCommit,
		HistoryTurns: a.cfg.HistoryTurns,
		HistoryChars: a.cfg.HistoryMaxChars,
		ModelTimeout: a.cfg.ModelCallTimeout(),
	}, a.logger)
	if err != nil {
		return nil, err
	}
	return &editorParts{editor: ed, ledger: spend}, nil
}

// offlineModel stands in for the model in commands that only compile,
// commit or report.
type offlineModel struct{}

func (offlineModel) Generate(context.Context, string) (*llm.Response, error) {
	return nil, fmt.Errorf("model is not configured for this command")
}

func (offlineModel) Model() string { return "offline" }

// setup loads configuration and a logger for a command.
func setup() (*app, error) {
	cfg, err := loadConfig(configPath, os.Getenv)
	if err != nil {
		return nil, err
	}
	return newApp(cfg, newLogger(cfg, os.Stderr)), nil
}
