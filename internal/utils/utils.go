// Package utils contains helpers shared by the latextools packages.
package utils

// Configuration constants used across the project.
const (
	// ConfigFileName is the name of the global configuration file.
	ConfigFileName = "config.yaml"
	// LocalConfigFileName is the name of the per-project configuration file.
	LocalConfigFileName = ".latextools.yaml"
	// GlobalConfigDirectoryName is the directory under the user's home holding ConfigFileName.
	GlobalConfigDirectoryName = ".latextools"
	// ConfigFileType is the format of every configuration file.
	ConfigFileType = "yaml"
)

// DeduplicateStrings removes duplicate values from a slice while preserving order.
// The first occurrence of each value is kept.
func DeduplicateStrings(values []string) []string {
	if values == nil {
		return nil
	}
	encountered := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, value := range values {
		if _, exists := encountered[value]; !exists {
			encountered[value] = struct{}{}
			result = append(result, value)
		}
	}
	return result
}
