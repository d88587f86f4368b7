package config

import (
	"errors"
	"fmt"
	"strings"
)

var knownProviders = map[string]struct{}{
	"openai":    {},
	"anthropic": {},
}

var knownLogFormats = map[string]struct{}{
	"console": {},
	"json":    {},
}

// Validate checks configuration invariants that normalize cannot repair.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Paths.DataDir) == "" {
		problems = append(problems, "paths.data_dir must not be empty")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		problems = append(problems, "paths.log_dir must not be empty")
	}
	if _, ok := knownProviders[c.LLM.Provider]; !ok {
		problems = append(problems, fmt.Sprintf("llm.provider %q is not supported (openai, anthropic)", c.LLM.Provider))
	}
	if c.LLM.Temperature > 2 {
		problems = append(problems, "llm.temperature must be <= 2")
	}
	if c.Generation.WindowOverlap >= c.Generation.WindowSize {
		problems = append(problems, "generation.window_overlap must be smaller than generation.window_size")
	}
	if _, ok := knownLogFormats[c.Logging.Format]; !ok {
		problems = append(problems, fmt.Sprintf("logging.format %q is not supported (console, json)", c.Logging.Format))
	}

	if len(problems) > 0 {
		return errors.New("invalid configuration: " + strings.Join(problems, "; "))
	}
	return nil
}
