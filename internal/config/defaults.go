package config

const (
	defaultDataDir   = "~/.local/share/webinar2ebook"
	defaultLogDir    = "~/.local/share/webinar2ebook/logs"
	defaultAPIBind   = "127.0.0.1:7519"
	defaultLogFormat = "console"
	defaultLogLevel  = "info"

	defaultLLMProvider       = "openai"
	defaultLLMModel          = "gpt-4o-mini"
	defaultLLMTimeoutSeconds = 120
	defaultLLMMaxTokens      = 4096
	defaultLLMTemperature    = 0.4
	defaultLLMMaxRetries     = 3

	defaultWindowSize           = 12000
	defaultWindowOverlap        = 1500
	defaultSentenceSearchRadius = 200
	defaultMinSupportConfidence = 0.55
	defaultJobTTLHours          = 72

	defaultQAMaxIssues = 50

	defaultTraceabilityThreshold = 0.35

	defaultQueuePollInterval  = 3
	defaultErrorRetryInterval = 10
	defaultSweepInterval      = 600
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		LLM: LLM{
			Provider:       defaultLLMProvider,
			Model:          defaultLLMModel,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
			MaxTokens:      defaultLLMMaxTokens,
			Temperature:    defaultLLMTemperature,
			MaxRetries:     defaultLLMMaxRetries,
		},
		Generation: Generation{
			WindowSize:           defaultWindowSize,
			WindowOverlap:        defaultWindowOverlap,
			SentenceSearchRadius: defaultSentenceSearchRadius,
			MinSupportConfidence: defaultMinSupportConfidence,
			JobTTLHours:          defaultJobTTLHours,
		},
		QA: QA{
			MaxIssues: defaultQAMaxIssues,
		},
		Rewrite: Rewrite{
			TraceabilityThreshold: defaultTraceabilityThreshold,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			SweepInterval:      defaultSweepInterval,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
