package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLLM()
	c.normalizeGeneration()
	c.normalizeQA()
	c.normalizeRewrite()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeLLM() {
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	if c.LLM.Provider == "" {
		c.LLM.Provider = defaultLLMProvider
	}
	c.LLM.BaseURL = strings.TrimRight(strings.TrimSpace(c.LLM.BaseURL), "/")
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		switch c.LLM.Provider {
		case "anthropic":
			if value, ok := os.LookupEnv("ANTHROPIC_API_KEY"); ok {
				c.LLM.APIKey = strings.TrimSpace(value)
			}
		default:
			if value, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
				c.LLM.APIKey = strings.TrimSpace(value)
			}
		}
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
	if c.LLM.MaxTokens <= 0 {
		c.LLM.MaxTokens = defaultLLMMaxTokens
	}
	if c.LLM.Temperature < 0 {
		c.LLM.Temperature = 0
	}
	if c.LLM.MaxRetries <= 0 {
		c.LLM.MaxRetries = defaultLLMMaxRetries
	}
}

func (c *Config) normalizeGeneration() {
	if c.Generation.WindowSize <= 0 {
		c.Generation.WindowSize = defaultWindowSize
	}
	if c.Generation.WindowOverlap <= 0 {
		c.Generation.WindowOverlap = defaultWindowOverlap
	}
	if c.Generation.WindowOverlap >= c.Generation.WindowSize {
		c.Generation.WindowOverlap = c.Generation.WindowSize / 4
	}
	if c.Generation.SentenceSearchRadius <= 0 {
		c.Generation.SentenceSearchRadius = defaultSentenceSearchRadius
	}
	if c.Generation.MinSupportConfidence <= 0 || c.Generation.MinSupportConfidence > 1 {
		c.Generation.MinSupportConfidence = defaultMinSupportConfidence
	}
	if c.Generation.JobTTLHours <= 0 {
		c.Generation.JobTTLHours = defaultJobTTLHours
	}
}

func (c *Config) normalizeQA() {
	if c.QA.MaxIssues <= 0 {
		c.QA.MaxIssues = defaultQAMaxIssues
	}
}

func (c *Config) normalizeRewrite() {
	if c.Rewrite.TraceabilityThreshold <= 0 || c.Rewrite.TraceabilityThreshold > 1 {
		c.Rewrite.TraceabilityThreshold = defaultTraceabilityThreshold
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.QueuePollInterval <= 0 {
		c.Workflow.QueuePollInterval = defaultQueuePollInterval
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		c.Workflow.ErrorRetryInterval = defaultErrorRetryInterval
	}
	if c.Workflow.SweepInterval <= 0 {
		c.Workflow.SweepInterval = defaultSweepInterval
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
