package version

import (
	"runtime"
	"time"
)

// Overridden at build time with -ldflags "-X github.com/MrSnakeDoc/scout/internal/version.Version=..."
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = time.Now().UTC().Format(time.RFC3339)
	GoVersion = runtime.Version()
)

// UserAgent is sent on every outbound marketplace request.
func UserAgent() string {
	return "scout/" + Version
}
