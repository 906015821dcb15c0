package utils

import "runtime/debug"

const (
	unknownVersion      = "unknown"
	developmentVersion  = "(devel)"
	revisionSettingKey  = "vcs.revision"
	modifiedSettingKey  = "vcs.modified"
	shortRevisionLength = 12
	dirtySuffix         = "-dirty"
)

// GetApplicationVersion reports the version latextools was built as: the module
// version for released builds, else the VCS revision stamped by the Go toolchain.
func GetApplicationVersion() string {
	buildInfo, available := debug.ReadBuildInfo()
	if !available {
		return unknownVersion
	}
	return versionFromBuildInfo(buildInfo)
}

func versionFromBuildInfo(buildInfo *debug.BuildInfo) string {
	if buildInfo == nil {
		return unknownVersion
	}
	if version := buildInfo.Main.Version; version != "" && version != developmentVersion {
		return version
	}
	var revision string
	var modified bool
	for _, setting := range buildInfo.Settings {
		switch setting.Key {
		case revisionSettingKey:
			revision = setting.Value
		case modifiedSettingKey:
			modified = setting.Value == "true"
		}
	}
	if revision == "" {
		return unknownVersion
	}
	if len(revision) > shortRevisionLength {
		revision = revision[:shortRevisionLength]
	}
	if modified {
		revision += dirtySuffix
	}
	return revision
}
