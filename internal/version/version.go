// Package version holds flowsync build information, set via ldflags:
//
//	go build -ldflags "-X github.com/wadc/flowsync/internal/version.Version=1.0.0 \
//	                   -X github.com/wadc/flowsync/internal/version.Commit=$(git rev-parse --short HEAD) \
//	                   -X github.com/wadc/flowsync/internal/version.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)" \
//	    ./cmd/flowsync
package version

var (
	Version   = "dev"     // Semantic version
	Commit    = "unknown" // Short git hash
	BuildTime = "unknown" // UTC, ISO 8601
)

// String returns "<version> (<commit>) built <time>".
func String() string {
	return Version + " (" + Commit + ") built " + BuildTime
}

// LogAttrs returns the build information as slog key/value pairs.
func LogAttrs() []any {
	return []any{"version", Version, "commit", Commit, "built", BuildTime}
}
