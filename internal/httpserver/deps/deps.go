package deps

import (
	"time"

	"github.com/MrSnakeDoc/scout/internal/logger"
	"github.com/MrSnakeDoc/scout/internal/scheduler"
	"github.com/MrSnakeDoc/scout/internal/store"
)

// Investigator is the part of the scheduler exposed over HTTP.
type Investigator interface {
	Trigger() error
	Status() scheduler.Status
}

type Deps struct {
	Logger       logger.Logger
	StartTime    time.Time
	Version      string
	Commit       string
	BuildDate    string
	GoVersion    string
	TimeNow      func() time.Time    // for testing, defaults to time.Now
	AllowedCIDRS []string            // IPs allowed to access readyz
	TrustProxy   bool                // true if running behind a trusted reverse proxy (e.g., cloudflared)
	AdminToken   string              // shared secret expected in X-Admin-Token
	StoreKind    string              // postgres | redis | memory, reported by /status
	Catalog      store.CatalogStore  // product catalog
	Scheduler    Investigator        // single-flight discovery queue
	Reports      store.ReportArchive // run history, nil when the store keeps none
}
