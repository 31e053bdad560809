package conf

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/joshua2020181/textgpt/internal/biz/usecase"
)

// PromptsConfig contains reply texts loaded from YAML
type PromptsConfig struct {
	SystemPrompt string `yaml:"system_prompt"`
	HelpText     string `yaml:"help_text"`
}

// DefaultPromptsConfig returns the built-in texts
func DefaultPromptsConfig() *PromptsConfig {
	return &PromptsConfig{
		SystemPrompt: usecase.DefaultSessionConfig.SystemPrompt,
		HelpText:     usecase.DefaultSessionConfig.HelpText,
	}
}

// LoadPromptsConfig loads prompts configuration from YAML file.
// With an empty path the usual locations are searched and a missing file is not an error.
func LoadPromptsConfig(configPath string) (*PromptsConfig, error) {
	var data []byte
	var loadedPath string

	if configPath != "" {
		b, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read prompts config: %w", err)
		}
		data, loadedPath = b, configPath
	} else {
		for _, p := range searchPaths() {
			if b, err := os.ReadFile(p); err == nil {
				data, loadedPath = b, p
				break
			}
		}
	}

	if data == nil {
		log.Debug().Msg("No prompts.yaml found, using defaults")
		return DefaultPromptsConfig(), nil
	}

	log.Info().Str("path", loadedPath).Msg("Loading prompts")

	var config PromptsConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse prompts.yaml: %w", err)
	}

	// Fill in defaults for empty values
	config.fillDefaults()

	return &config, nil
}

func searchPaths() []string {
	paths := []string{
		"configs/prompts.yaml",
		"/etc/textgpt/prompts.yaml",
	}
	// Add path relative to executable
	if execPath, err := os.Executable(); err == nil {
		paths = append(paths, filepath.Join(filepath.Dir(execPath), "configs", "prompts.yaml"))
	}
	return paths
}

func (c *PromptsConfig) fillDefaults() {
	defaults := DefaultPromptsConfig()
	if c.SystemPrompt == "" {
		c.SystemPrompt = defaults.SystemPrompt
	}
	if c.HelpText == "" {
		c.HelpText = defaults.HelpText
	}
}
