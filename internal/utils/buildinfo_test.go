package utils

import (
	"runtime/debug"
	"testing"
)

// TestVersionFromBuildInfo verifies that released module versions win over VCS revisions.
func TestVersionFromBuildInfo(testingHandle *testing.T) {
	testCases := []struct {
		name      string
		buildInfo *debug.BuildInfo
		expected  string
	}{
		{name: "missing", buildInfo: nil, expected: unknownVersion},
		{
			name:      "released",
			buildInfo: &debug.BuildInfo{Main: debug.Module{Path: "github.com/temirov/latextools", Version: "v1.2.0"}},
			expected:  "v1.2.0",
		},
		{
			name: "development_with_revision",
			buildInfo: &debug.BuildInfo{
				Main:     debug.Module{Version: developmentVersion},
				Settings: []debug.BuildSetting{{Key: revisionSettingKey, Value: "0123456789abcdef0123"}},
			},
			expected: "0123456789ab",
		},
		{
			name: "modified_tree",
			buildInfo: &debug.BuildInfo{
				Main: debug.Module{Version: developmentVersion},
				Settings: []debug.BuildSetting{
					{Key: revisionSettingKey, Value: "abc123"},
					{Key: modifiedSettingKey, Value: "true"},
				},
			},
			expected: "abc123-dirty",
		},
		{name: "no_revision", buildInfo: &debug.BuildInfo{Main: debug.Module{Version: developmentVersion}}, expected: unknownVersion},
	}
	for _, testCase := range testCases {
		testingHandle.Run(testCase.name, func(subtestHandle *testing.T) {
			if version := versionFromBuildInfo(testCase.buildInfo); version != testCase.expected {
				subtestHandle.Fatalf("expected %q, got %q", testCase.expected, version)
			}
		})
	}
}
