//nolint:gochecknoglobals // allow global variables
package config

var (
	// Version is the sorm version number, which is injected during build time.
	Version = "0.0.0"

	// CommitHash is the sorm git commit hash, which is injected during build time.
	CommitHash = ""

	// BuildTimestamp is the timestamp at which sorm was built, injected during build time.
	BuildTimestamp = ""

	// Branch is the git branch from which sorm was built, injected during build time.
	Branch = ""
)
