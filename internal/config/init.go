package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/temirov/latextools/internal/utils"
)

// InitTarget identifies where configuration should be initialized.
type InitTarget string

const (
	// InitTargetLocal writes .latextools.yaml into the working directory.
	InitTargetLocal InitTarget = "local"
	// InitTargetGlobal writes config.yaml into ~/.latextools.
	InitTargetGlobal InitTarget = "global"

	configurationFilePermissions      = 0o600
	configurationDirectoryPermissions = 0o755

	defaultConfigurationTemplate = `process:
  output: onefile.tex
  mode: all
  format: raw
  verbose: false
  markers: true
  bibliography: []
  clipboard: false
  tokens:
    enabled: false
    model: gpt-4o
check:
  format: raw
  verbose: false
  strict: false
citations:
  commands: [cite, citep, citet]
`
)

// InitOptions controls how configuration initialization behaves.
type InitOptions struct {
	Target           InitTarget
	Force            bool
	WorkingDirectory string
}

// ConfigurationPath returns the file written for target.
func ConfigurationPath(target InitTarget, workingDirectory string) (string, error) {
	switch target {
	case InitTargetLocal, "":
		if workingDirectory == "" {
			current, err := os.Getwd()
			if err != nil {
				return "", fmt.Errorf("determine working directory for configuration: %w", err)
			}
			workingDirectory = current
		}
		return filepath.Join(workingDirectory, utils.LocalConfigFileName), nil
	case InitTargetGlobal:
		homeDirectory, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory for configuration: %w", err)
		}
		return filepath.Join(homeDirectory, utils.GlobalConfigDirectoryName, utils.ConfigFileName), nil
	default:
		return "", fmt.Errorf("unsupported init target %q", target)
	}
}

// InitializeConfiguration writes the default configuration to the requested
// target and returns its path. An existing file is only replaced with Force.
func InitializeConfiguration(options InitOptions) (string, error) {
	destinationPath, pathError := ConfigurationPath(options.Target, options.WorkingDirectory)
	if pathError != nil {
		return "", pathError
	}

	_, statError := os.Stat(destinationPath)
	switch {
	case statError == nil && !options.Force:
		return "", fmt.Errorf("configuration file already exists at %s", destinationPath)
	case statError != nil && !errors.Is(statError, fs.ErrNotExist):
		return "", fmt.Errorf("inspect configuration path %s: %w", destinationPath, statError)
	}

	directory := filepath.Dir(destinationPath)
	if err := os.MkdirAll(directory, configurationDirectoryPermissions); err != nil {
		return "", fmt.Errorf("create configuration directory %s: %w", directory, err)
	}
	if err := os.WriteFile(destinationPath, []byte(defaultConfigurationTemplate), configurationFilePermissions); err != nil {
		return "", fmt.Errorf("write configuration to %s: %w", destinationPath, err)
	}
	return destinationPath, nil
}
