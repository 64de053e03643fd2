// Package config loads the service configuration from a JSON or YAML file and
// the environment.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Backends accepted by the *_backend fields.
const (
	BackendMemory    = "memory"
	BackendSQLite    = "sqlite"
	BackendPostgres  = "postgres"
	BackendDynamoDB  = "dynamodb"
	BackendFirestore = "firestore"
	BackendLocal     = "local"
	BackendS3        = "s3"
	BackendGCS       = "gcs"
)

// Terminators accepted by idle_terminator.
const (
	TerminatorNone   = "none"
	TerminatorECS    = "ecs"
	TerminatorCancel = "cancel"
)

// Config is the service configuration. Durations are Go duration strings
// ("30s", "10m"). Every field is optional; Defaults fills the rest.
type Config struct {
	// Server
	Port        int      `json:"port,omitempty" yaml:"port"`
	CORSOrigins []string `json:"cors_origins,omitempty" yaml:"cors_origins"`
	LogLevel    string   `json:"log_level,omitempty" yaml:"log_level"`
	LogFormat   string   `json:"log_format,omitempty" yaml:"log_format"` // text or json

	// Document and compiler
	DocumentPath    string   `json:"document_path,omitempty" yaml:"document_path"`
	AssetDir        string   `json:"asset_dir,omitempty" yaml:"asset_dir"`
	ScratchDir      string   `json:"scratch_dir,omitempty" yaml:"scratch_dir"`
	CompilerBinary  string   `json:"compiler_binary,omitempty" yaml:"compiler_binary"`
	CompilerArgs    []string `json:"compiler_args,omitempty" yaml:"compiler_args"`
	CompileTimeout  string   `json:"compile_timeout,omitempty" yaml:"compile_timeout"`
	WarningExitCode int      `json:"warning_exit_code,omitempty" yaml:"warning_exit_code"`
	Directives      []string `json:"forbidden_directives,omitempty" yaml:"forbidden_directives"`

	// Spend ledger
	DailyLimit    float64 `json:"daily_limit,omitempty" yaml:"daily_limit"`
	LedgerBackend string  `json:"ledger_backend,omitempty" yaml:"ledger_backend"`
	LedgerPolicy  string  `json:"ledger_policy,omitempty" yaml:"ledger_policy"` // fail_open or fail_closed
	LedgerPath    string  `json:"ledger_path,omitempty" yaml:"ledger_path"`     // sqlite file
	LedgerTable   string  `json:"ledger_table,omitempty" yaml:"ledger_table"`   // dynamodb table or firestore collection

	// Model
	Provider        string  `json:"provider,omitempty" yaml:"provider"`
	Model           string  `json:"model,omitempty" yaml:"model"`
	Temperature     float32 `json:"temperature,omitempty" yaml:"temperature"`
	MaxTokens       int32   `json:"max_tokens,omitempty" yaml:"max_tokens"`
	MaxRetries      int     `json:"max_retries,omitempty" yaml:"max_retries"`
	ModelTimeout    string  `json:"model_timeout,omitempty" yaml:"model_timeout"`
	APIKey          string  `json:"api_key,omitempty" yaml:"api_key"`
	InputPerToken   float64 `json:"input_price_per_token,omitempty" yaml:"input_price_per_token"`
	OutputPerToken  float64 `json:"output_price_per_token,omitempty" yaml:"output_price_per_token"`
	HistoryTurns    int     `json:"history_turns,omitempty" yaml:"history_turns"`
	HistoryMaxChars int     `json:"history_max_chars,omitempty" yaml:"history_max_chars"`

	// Cloud
	AWSRegion  string `json:"aws_region,omitempty" yaml:"aws_region"`
	GCPProject string `json:"gcp_project,omitempty" yaml:"gcp_project"`
	GCPRegion  string `json:"gcp_region,omitempty" yaml:"gcp_region"`

	// Version control
	GitRemote      string `json:"git_remote,omitempty" yaml:"git_remote"`
	GitHubRepo     string `json:"github_repo,omitempty" yaml:"github_repo"` // owner/name
	GitHubToken    string `json:"github_token,omitempty" yaml:"github_token"`
	GitBranch      string `json:"git_branch,omitempty" yaml:"git_branch"`
	GitAuthorName  string `json:"git_author_name,omitempty" yaml:"git_author_name"`
	GitAuthorEmail string `json:"git_author_email,omitempty" yaml:"git_author_email"`
	GitPush        bool   `json:"git_push,omitempty" yaml:"git_push"`
	AutoCommit     bool   `json:"auto_commit,omitempty" yaml:"auto_commit"`

	// Artifacts
	ArtifactBackend string `json:"artifact_backend,omitempty" yaml:"artifact_backend"`
	ArtifactDir     string `json:"artifact_dir,omitempty" yaml:"artifact_dir"`
	ArtifactBucket  string `json:"artifact_bucket,omitempty" yaml:"artifact_bucket"`
	ArtifactPrefix  string `json:"artifact_prefix,omitempty" yaml:"artifact_prefix"`

	// Conversations
	ConversationBackend string `json:"conversation_backend,omitempty" yaml:"conversation_backend"`
	ConversationTable   string `json:"conversation_table,omitempty" yaml:"conversation_table"`
	DatabaseURL         string `json:"database_url,omitempty" yaml:"database_url"`

	// Idle shutdown
	IdleTerminator string  `json:"idle_terminator,omitempty" yaml:"idle_terminator"`
	IdleInterval   string  `json:"idle_interval,omitempty" yaml:"idle_interval"`
	IdleTimeout    string  `json:"idle_timeout,omitempty" yaml:"idle_timeout"`
	IdleTickCost   float64 `json:"idle_tick_cost,omitempty" yaml:"idle_tick_cost"`
	ECSCluster     string  `json:"ecs_cluster,omitempty" yaml:"ecs_cluster"`
}

// Defaults returns the configuration used for anything a file or the
// environment leaves unset.
func Defaults() Config {
	return Config{
		Port:                8080,
		CORSOrigins:         []string{"*"},
		LogLevel:            "info",
		LogFormat:           "text",
		DocumentPath:        "resume.tex",
		CompilerBinary:      "tectonic",
		CompileTimeout:      "30s",
		WarningExitCode:     1,
		DailyLimit:          5.0,
		LedgerBackend:       BackendMemory,
		LedgerPolicy:        "fail_open",
		LedgerPath:          "spend.db",
		Provider:            "gemini",
		MaxRetries:          1,
		ModelTimeout:        "90s",
		GitBranch:           "main",
		ArtifactBackend:     BackendLocal,
		ArtifactDir:         "artifacts",
		ConversationBackend: BackendMemory,
		IdleTerminator:      TerminatorNone,
		IdleInterval:        "1m",
		IdleTimeout:         "10m",
		IdleTickCost:        0.00005,
	}
}

// LoadConfig reads a configuration file. Files ending in .yaml or .yml are
// parsed as YAML, everything else as JSON. ${VAR} references are expanded
// from the environment before parsing.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	expanded := []byte(os.ExpandEnv(string(data)))

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config YAML: %w", err)
		}
	default:
		if err := json.Unmarshal(expanded, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}

	return &cfg, nil
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' must be between 0 and 65535")
	}
	if c.DailyLimit < 0 {
		return fmt.Errorf("config error: 'daily_limit' must be non-negative")
	}
	if c.IdleTickCost < 0 {
		return fmt.Errorf("config error: 'idle_tick_cost' must be non-negative")
	}
	if c.WarningExitCode < 0 {
		return fmt.Errorf("config error: 'warning_exit_code' must be non-negative")
	}

	for name, value := range map[string]string{
		"compile_timeout": c.CompileTimeout,
		"model_timeout":   c.ModelTimeout,
		"idle_interval":   c.IdleInterval,
		"idle_timeout":    c.IdleTimeout,
	} {
		if value == "" {
			continue
		}
		if d, err := time.ParseDuration(value); err != nil || d < 0 {
			return fmt.Errorf("config error: '%s' is not a valid duration: %q", name, value)
		}
	}

	if err := oneOf("ledger_backend", c.LedgerBackend, BackendMemory, BackendSQLite, BackendPostgres, BackendDynamoDB, BackendFirestore); err != nil {
		return err
	}
	if err := oneOf("ledger_policy", c.LedgerPolicy, "fail_open", "fail_closed"); err != nil {
		return err
	}
	if err := oneOf("artifact_backend", c.ArtifactBackend, BackendLocal, BackendS3, BackendGCS); err != nil {
		return err
	}
	if err := oneOf("conversation_backend", c.ConversationBackend, BackendMemory, BackendPostgres, BackendDynamoDB); err != nil {
		return err
	}
	if err := oneOf("idle_terminator", c.IdleTerminator, TerminatorNone, TerminatorECS, TerminatorCancel); err != nil {
		return err
	}
	if err := oneOf("log_format", c.LogFormat, "text", "json"); err != nil {
		return err
	}

	if (c.LedgerBackend == BackendPostgres || c.ConversationBackend == BackendPostgres) && c.DatabaseURL == "" {
		return fmt.Errorf("config error: 'database_url' is required for the postgres backend")
	}
	if (c.ArtifactBackend == BackendS3 || c.ArtifactBackend == BackendGCS) && c.ArtifactBucket == "" {
		return fmt.Errorf("config error: 'artifact_bucket' is required for the %s backend", c.ArtifactBackend)
	}
	if c.LedgerBackend == BackendFirestore && c.GCPProject == "" {
		return fmt.Errorf("config error: 'gcp_project' is required for the firestore backend")
	}
	if c.IdleTerminator == TerminatorECS && c.ECSCluster == "" {
		return fmt.Errorf("config error: 'ecs_cluster' is required for the ecs terminator")
	}
	if c.GitRemote != "" && c.GitHubRepo != "" {
		return fmt.Errorf("config error: 'git_remote' and 'github_repo' are mutually exclusive")
	}

	return nil
}

func oneOf(field, value string, allowed ...string) error {
	if value == "" {
		return nil
	}
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("config error: '%s' must be one of %s, got %q", field, strings.Join(allowed, ", "), value)
}

// MergeWithDefaults returns a new Config with zero-valued fields filled from
// defaults. Booleans cannot be told apart from false and are not merged.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	setString := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}
	setString(&result.LogLevel, defaults.LogLevel)
	setString(&result.LogFormat, defaults.LogFormat)
	setString(&result.DocumentPath, defaults.DocumentPath)
	setString(&result.AssetDir, defaults.AssetDir)
	setString(&result.ScratchDir, defaults.ScratchDir)
	setString(&result.CompilerBinary, defaults.CompilerBinary)
	setString(&result.CompileTimeout, defaults.CompileTimeout)
	setString(&result.LedgerBackend, defaults.LedgerBackend)
	setString(&result.LedgerPolicy, defaults.LedgerPolicy)
	setString(&result.LedgerPath, defaults.LedgerPath)
	setString(&result.LedgerTable, defaults.LedgerTable)
	setString(&result.Provider, defaults.Provider)
	setString(&result.Model, defaults.Model)
	setString(&result.ModelTimeout, defaults.ModelTimeout)
	setString(&result.APIKey, defaults.APIKey)
	setString(&result.AWSRegion, defaults.AWSRegion)
	setString(&result.GCPProject, defaults.GCPProject)
	setString(&result.GCPRegion, defaults.GCPRegion)
	setString(&result.GitRemote, defaults.GitRemote)
	setString(&result.GitHubRepo, defaults.GitHubRepo)
	setString(&result.GitHubToken, defaults.GitHubToken)
	setString(&result.GitBranch, defaults.GitBranch)
	setString(&result.GitAuthorName, defaults.GitAuthorName)
	setString(&result.GitAuthorEmail, defaults.GitAuthorEmail)
	setString(&result.ArtifactBackend, defaults.ArtifactBackend)
	setString(&result.ArtifactDir, defaults.ArtifactDir)
	setString(&result.ArtifactBucket, defaults.ArtifactBucket)
	setString(&result.ArtifactPrefix, defaults.ArtifactPrefix)
	setString(&result.ConversationBackend, defaults.ConversationBackend)
	setString(&result.ConversationTable, defaults.ConversationTable)
	setString(&result.DatabaseURL, defaults.DatabaseURL)
	setString(&result.IdleTerminator, defaults.IdleTerminator)
	setString(&result.IdleInterval, defaults.IdleInterval)
	setString(&result.IdleTimeout, defaults.IdleTimeout)
	setString(&result.ECSCluster, defaults.ECSCluster)

	if result.Port == 0 {
		result.Port = defaults.Port
	}
	if result.WarningExitCode == 0 {
		result.WarningExitCode = defaults.WarningExitCode
	}
	if result.MaxTokens == 0 {
		result.MaxTokens = defaults.MaxTokens
	}
	if result.MaxRetries == 0 {
		result.MaxRetries = defaults.MaxRetries
	}
	if result.HistoryTurns == 0 {
		result.HistoryTurns = defaults.HistoryTurns
	}
	if result.HistoryMaxChars == 0 {
		result.HistoryMaxChars = defaults.HistoryMaxChars
	}
	if result.DailyLimit == 0 {
		result.DailyLimit = defaults.DailyLimit
	}
	if result.Temperature == 0 {
		result.Temperature = defaults.Temperature
	}
	if result.InputPerToken == 0 {
		result.InputPerToken = defaults.InputPerToken
	}
	if result.OutputPerToken == 0 {
		result.OutputPerToken = defaults.OutputPerToken
	}
	if result.IdleTickCost == 0 {
		result.IdleTickCost = defaults.IdleTickCost
	}
	if len(result.CORSOrigins) == 0 {
		result.CORSOrigins = defaults.CORSOrigins
	}
	if len(result.CompilerArgs) == 0 {
		result.CompilerArgs = defaults.CompilerArgs
	}
	if len(result.Directives) == 0 {
		result.Directives = defaults.Directives
	}

	return result
}

// ApplyEnv overrides fields from environment variables looked up through
// getenv. Unparseable numeric values are reported rather than ignored.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	str("LOG_LEVEL", &c.LogLevel)
	str("LOG_FORMAT", &c.LogFormat)
	str("DOCUMENT_PATH", &c.DocumentPath)
	str("COMPILER_BINARY", &c.CompilerBinary)
	str("COMPILE_TIMEOUT", &c.CompileTimeout)
	str("LEDGER_BACKEND", &c.LedgerBackend)
	str("LEDGER_POLICY", &c.LedgerPolicy)
	str("DYNAMODB_TABLE_NAME", &c.LedgerTable)
	str("LLM_PROVIDER", &c.Provider)
	str("LLM_MODEL", &c.Model)
	str("MODEL_TIMEOUT", &c.ModelTimeout)
	str("GEMINI_API_KEY", &c.APIKey)
	str("AWS_REGION", &c.AWSRegion)
	str("GCP_PROJECT", &c.GCPProject)
	str("GCP_REGION", &c.GCPRegion)
	str("GITHUB_REPO", &c.GitHubRepo)
	str("GITHUB_TOKEN", &c.GitHubToken)
	str("GIT_BRANCH", &c.GitBranch)
	str("ARTIFACT_BACKEND", &c.ArtifactBackend)
	str("PDF_BUCKET", &c.ArtifactBucket)
	str("CONVERSATION_BACKEND", &c.ConversationBackend)
	str("DATABASE_URL", &c.DatabaseURL)
	str("IDLE_TERMINATOR", &c.IdleTerminator)
	str("IDLE_TIMEOUT", &c.IdleTimeout)
	str("CLUSTER_NAME", &c.ECSCluster)

	if v := getenv("CORS_ORIGINS"); v != "" {
		c.CORSOrigins = splitList(v)
	}
	if v := getenv("FORBIDDEN_DIRECTIVES"); v != "" {
		c.Directives = splitList(v)
	}

	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT: %w", err)
		}
		c.Port = port
	}
	if v := getenv("DAILY_LIMIT"); v != "" {
		limit, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid DAILY_LIMIT: %w", err)
		}
		c.DailyLimit = limit
	}
	if v := getenv("AUTO_COMMIT"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid AUTO_COMMIT: %w", err)
		}
		c.AutoCommit = b
	}
	if v := getenv("GIT_PUSH"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid GIT_PUSH: %w", err)
		}
		c.GitPush = b
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// RemoteURL returns the git remote to sync from and push to. A github_repo
// with a token becomes an authenticated HTTPS URL.
func (c *Config) RemoteURL() string {
	if c.GitRemote != "" {
		return c.GitRemote
	}
	if c.GitHubRepo == "" {
		return ""
	}
	if c.GitHubToken == "" {
		return "https://github.com/" + c.GitHubRepo + ".git"
	}
	return "https://x-access-token:" + c.GitHubToken + "@github.com/" + c.GitHubRepo + ".git"
}

// Durations parses the duration fields. Call after Validate.
func (c *Config) Durations() (compileTimeout, idleInterval, idleTimeout time.Duration) {
	compileTimeout, _ = time.ParseDuration(c.CompileTimeout)
	idleInterval, _ = time.ParseDuration(c.IdleInterval)
	idleTimeout, _ = time.ParseDuration(c.IdleTimeout)
	return compileTimeout, idleInterval, idleTimeout
}

// ModelCallTimeout parses model_timeout. Call after Validate.
func (c *Config) ModelCallTimeout() time.Duration {
	d, _ := time.ParseDuration(c.ModelTimeout)
	return d
}
