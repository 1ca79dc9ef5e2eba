package types

// Version is overwritten at build time via -ldflags.
var Version = "dev"

const (
	// AppName is the binary and service name reported by health checks.
	AppName = "offlinecache"

	// EnvPrefix prefixes every environment variable read by the CLI.
	EnvPrefix = "OFFLINECACHE_"
)
