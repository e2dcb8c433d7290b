package version

// Set at build time via -ldflags, e.g.
//
//	go build -ldflags "-X github.com/karki-p/userd/internal/version.Version=v0.1.0"
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)
