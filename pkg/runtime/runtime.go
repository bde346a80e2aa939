package runtime

// Build information, populated at build time via -ldflags.
var (
	Version   = "0.0.0-dev"
	GitCommit = "none"
	Timestamp = "unknown"
)
