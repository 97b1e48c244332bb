package version

// Build information set by ldflags
var (
	Version = "dev"     // -X github.com/wowplug/wowplug/internal/version.Version={{.Version}}
	Commit  = "unknown" // -X github.com/wowplug/wowplug/internal/version.Commit={{.Commit}}
	Date    = "unknown" // -X github.com/wowplug/wowplug/internal/version.Date={{.Date}}
)
