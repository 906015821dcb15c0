// Package config loads latextools defaults from global and local configuration files.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/temirov/latextools/internal/utils"
)

// LoadOptions controls how application configuration is discovered.
type LoadOptions struct {
	WorkingDirectory string
	ExplicitFilePath string
}

// ApplicationConfiguration holds command-specific configuration defaults.
type ApplicationConfiguration struct {
	Process   ProcessConfiguration  `mapstructure:"process"`
	Check     CheckConfiguration    `mapstructure:"check"`
	Citations CitationConfiguration `mapstructure:"citations"`
}

// ProcessConfiguration defines defaults for the consolidating root command.
type ProcessConfiguration struct {
	Output       string             `mapstructure:"output"`
	Mode         string             `mapstructure:"mode"`
	Format       string             `mapstructure:"format"`
	Verbose      *bool              `mapstructure:"verbose"`
	Markers      *bool              `mapstructure:"markers"`
	Bibliography []string           `mapstructure:"bibliography"`
	Clipboard    *bool              `mapstructure:"clipboard"`
	Tokens       TokenConfiguration `mapstructure:"tokens"`
}

// TokenConfiguration controls token counting defaults.
type TokenConfiguration struct {
	Enabled *bool  `mapstructure:"enabled"`
	Model   string `mapstructure:"model"`
}

// CheckConfiguration defines defaults for the check command.
type CheckConfiguration struct {
	Format  string `mapstructure:"format"`
	Verbose *bool  `mapstructure:"verbose"`
	Strict  *bool  `mapstructure:"strict"`
}

// CitationConfiguration lists the citation commands to recognize.
type CitationConfiguration struct {
	Commands []string `mapstructure:"commands"`
}

// LoadApplicationConfiguration loads configuration from global and local files.
// Local values override global ones.
func LoadApplicationConfiguration(options LoadOptions) (ApplicationConfiguration, error) {
	workingDirectory := options.WorkingDirectory
	if workingDirectory == "" {
		currentDirectory, err := os.Getwd()
		if err != nil {
			return ApplicationConfiguration{}, fmt.Errorf("determine working directory: %w", err)
		}
		workingDirectory = currentDirectory
	}

	var merged ApplicationConfiguration

	if homeDirectory, err := os.UserHomeDir(); err == nil && homeDirectory != "" {
		globalPath := filepath.Join(homeDirectory, utils.GlobalConfigDirectoryName, utils.ConfigFileName)
		globalConfig, loadErr := loadConfigurationFromPath(globalPath)
		if loadErr != nil {
			return ApplicationConfiguration{}, loadErr
		}
		merged = merged.Merge(globalConfig)
	}

	localPath, resolveErr := resolveLocalConfigPath(workingDirectory, options.ExplicitFilePath)
	if resolveErr != nil {
		return ApplicationConfiguration{}, resolveErr
	}
	if localPath != "" {
		localConfig, loadErr := loadConfigurationFromPath(localPath)
		if loadErr != nil {
			return ApplicationConfiguration{}, loadErr
		}
		merged = merged.Merge(localConfig)
	}

	merged.Citations.Commands = utils.DeduplicateStrings(merged.Citations.Commands)

	return merged, nil
}

func resolveLocalConfigPath(workingDirectory, explicitPath string) (string, error) {
	if explicitPath != "" {
		if filepath.IsAbs(explicitPath) {
			return explicitPath, nil
		}
		if workingDirectory == "" {
			absolute, err := filepath.Abs(explicitPath)
			if err != nil {
				return "", fmt.Errorf("resolve configuration path %s: %w", explicitPath, err)
			}
			return absolute, nil
		}
		return filepath.Join(workingDirectory, explicitPath), nil
	}
	if workingDirectory == "" {
		return "", nil
	}
	return filepath.Join(workingDirectory, utils.LocalConfigFileName), nil
}

func loadConfigurationFromPath(path string) (ApplicationConfiguration, error) {
	if path == "" {
		return ApplicationConfiguration{}, nil
	}
	info, statErr := os.Stat(path)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return ApplicationConfiguration{}, nil
		}
		return ApplicationConfiguration{}, fmt.Errorf("stat configuration %s: %w", path, statErr)
	}
	if info.IsDir() {
		return ApplicationConfiguration{}, fmt.Errorf("configuration path %s is a directory", path)
	}

	reader := viper.New()
	reader.SetConfigFile(path)
	reader.SetConfigType(utils.ConfigFileType)
	if readErr := reader.ReadInConfig(); readErr != nil {
		return ApplicationConfiguration{}, fmt.Errorf("read configuration from %s: %w", path, readErr)
	}
	var config ApplicationConfiguration
	if decodeErr := reader.Unmarshal(&config); decodeErr != nil {
		return ApplicationConfiguration{}, fmt.Errorf("decode configuration from %s: %w", path, decodeErr)
	}
	return config, nil
}

// Merge overlays override onto the receiver returning the combined configuration.
func (config ApplicationConfiguration) Merge(override ApplicationConfiguration) ApplicationConfiguration {
	result := config
	result.Process = result.Process.merge(override.Process)
	result.Check = result.Check.merge(override.Check)
	if len(override.Citations.Commands) > 0 {
		result.Citations.Commands = append([]string{}, override.Citations.Commands...)
	}
	return result
}

func (config ProcessConfiguration) merge(override ProcessConfiguration) ProcessConfiguration {
	result := config
	if override.Output != "" {
		result.Output = override.Output
	}
	if override.Mode != "" {
		result.Mode = override.Mode
	}
	if override.Format != "" {
		result.Format = override.Format
	}
	if override.Verbose != nil {
		result.Verbose = cloneBool(override.Verbose)
	}
	if override.Markers != nil {
		result.Markers = cloneBool(override.Markers)
	}
	if len(override.Bibliography) > 0 {
		result.Bibliography = append([]string{}, override.Bibliography...)
	}
	if override.Clipboard != nil {
		result.Clipboard = cloneBool(override.Clipboard)
	}
	result.Tokens = result.Tokens.merge(override.Tokens)
	return result
}

func (config TokenConfiguration) merge(override TokenConfiguration) TokenConfiguration {
	result := config
	if override.Enabled != nil {
		result.Enabled = cloneBool(override.Enabled)
	}
	if override.Model != "" {
		result.Model = override.Model
	}
	return result
}

func (config CheckConfiguration) merge(override CheckConfiguration) CheckConfiguration {
	result := config
	if override.Format != "" {
		result.Format = override.Format
	}
	if override.Verbose != nil {
		result.Verbose = cloneBool(override.Verbose)
	}
	if override.Strict != nil {
		result.Strict = cloneBool(override.Strict)
	}
	return result
}

func cloneBool(value *bool) *bool {
	if value == nil {
		return nil
	}
	cloned := *value
	return &cloned
}
