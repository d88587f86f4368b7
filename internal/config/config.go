package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
	APIBind string `toml:"api_bind"`
}

// LLM contains connection settings for the model provider backing the
// generation pipeline.
type LLM struct {
	Provider       string  `toml:"provider"`
	APIKey         string  `toml:"api_key"`
	BaseURL        string  `toml:"base_url"`
	Model          string  `toml:"model"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	MaxTokens      int64   `toml:"max_tokens"`
	Temperature    float64 `toml:"temperature"`
	MaxRetries     int     `toml:"max_retries"`
}

// Generation contains tuning for evidence extraction and chapter drafting.
type Generation struct {
	// WindowSize is the maximum transcript segment, in characters, sent to a
	// single claim-extraction call. Longer segments are split into
	// overlapping windows.
	WindowSize int `toml:"window_size"`
	// WindowOverlap is the character overlap between adjacent windows so a
	// claim spanning a boundary is not lost.
	WindowOverlap int `toml:"window_overlap"`
	// SentenceSearchRadius bounds how far a window boundary may shift to land
	// on a sentence end.
	SentenceSearchRadius int `toml:"sentence_search_radius"`
	// MinSupportConfidence drops supporting quotes below this confidence.
	MinSupportConfidence float64 `toml:"min_support_confidence"`
	// JobTTLHours is the retention window for finished jobs before the sweep
	// removes them.
	JobTTLHours int `toml:"job_ttl_hours"`
}

// QA contains tuning for post-generation analysis.
type QA struct {
	MaxIssues int `toml:"max_issues"`
}

// Rewrite contains tuning for the targeted rewrite pass.
type Rewrite struct {
	// TraceabilityThreshold is the minimum fingerprint similarity between a
	// rewritten claim sentence and some evidence entry for the sentence to be
	// accepted.
	TraceabilityThreshold float64 `toml:"traceability_threshold"`
}

// Workflow contains daemon timing and interval configuration.
type Workflow struct {
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	SweepInterval      int `toml:"sweep_interval"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for the webinar2ebook daemon.
//
// Configuration sections by subsystem:
//   - Paths: data/log directories and the HTTP API bind address
//   - LLM: provider connection settings shared by all model calls
//   - Generation: evidence windowing and job retention tuning
//   - QA: analysis report limits
//   - Rewrite: targeted rewrite thresholds
//   - Workflow: daemon polling intervals
//   - Logging: log format and level
type Config struct {
	Paths      Paths      `toml:"paths"`
	LLM        LLM        `toml:"llm"`
	Generation Generation `toml:"generation"`
	QA         QA         `toml:"qa"`
	Rewrite    Rewrite    `toml:"rewrite"`
	Workflow   Workflow   `toml:"workflow"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/webinar2ebook/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("webinar2ebook.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// SocketPath returns the unix socket the daemon listens on for CLI requests.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.DataDir, "w2ed.sock")
}

// DatabasePath returns the SQLite database holding jobs and projects.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "webinar2ebook.db")
}

// LogFilePath returns the daemon log file tailed by the CLI.
func (c *Config) LogFilePath() string {
	return filepath.Join(c.Paths.LogDir, "w2ed.log")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
