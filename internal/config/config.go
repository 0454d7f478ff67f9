package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends.
const (
	StorePostgres = "postgres"
	StoreRedis    = "redis"
	StoreMemory   = "memory"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 10s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	SourcesFile string // path to sources.yaml (empty = embedded default)

	// Scheduling
	ScheduleInterval time.Duration // interval between discovery cycles (default: 12h)
	RunOnStart       bool          // queue a cycle at startup

	// Pipeline
	TopK               int           // candidates kept after ranking (default: 20)
	PageSize           int           // page size asked to every source (default: 50)
	MaxPages           int           // pages read per source and cycle (default: 1)
	DiscoveryWorkers   int           // sources fetched concurrently (default: 4)
	SourceTimeout      time.Duration // bound of one page fetch (default: 30s)
	AffiliationBudget  time.Duration // wall clock budget of the affiliation phase (default: 30m)
	AffiliationTimeout time.Duration // bound of one affiliation call (default: 20s)
	AutoApprove        bool          // approve sources without affiliation endpoint using their product link
	DeactivateAfter    int           // consecutive missed cycles before deactivation (default: 3, -1 = never)

	// Storage
	Store       string // "postgres" | "redis" | "memory"
	DatabaseURL string // required when Store = postgres
	DBMaxConns  int    // pgx pool size

	// Redis
	RedisAddr           string        // ex: "localhost:6379"
	RedisUser           string        // optional
	RedisPassword       string        // optional
	RedisDB             int           // Redis DB number
	RedisDT             time.Duration // Redis dial timeout (ex: 5s)
	RedisRT             time.Duration // Redis read timeout (ex: 3s)
	RedisWT             time.Duration // Redis write timeout (ex: 3s)
	RedisPoolSize       int           // Redis connection pool size
	ConnectTimeout      time.Duration // Total time to retry connecting to the store (ex: 30s)
	ConnectRetry        time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	ConnectMaxWait      time.Duration // max wait between retries (ex: 10s)
	ConnectPingTimeout  time.Duration // timeout for each ping attempt (ex: 5s)
	ConnectWarnAttempts int           // warn after this many attempts

	// Downstream
	ForwardURL      string // sales bot endpoint (empty = forwarding disabled)
	ForwardToken    string // bearer secret sent to the sales bot
	TelegramToken   string // bot token (empty = announcements disabled)
	TelegramChannel string // channel id or @name

	// Operator surface
	AdminToken   string   // required, checked against X-Admin-Token
	AllowedCIDRS []string // optional, restrict /readyz to specific IP (e.g. "1.2.3.4, 10.0.0.0/8")
	TrustProxy   bool     // true => trust X-Forwarded-For headers (e.g. cloudflared)
}

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:      getenv("SCOUT_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("SCOUT_SHUTDOWN_TIMEOUT", 10*time.Second),

		// Logging
		LogLevel:  getenv("SCOUT_LOG_LEVEL", "info"),
		PrettyLog: mustBool("SCOUT_PRETTY_LOG", false),

		SourcesFile: getenv("SCOUT_SOURCES_FILE", ""),

		// Scheduling
		ScheduleInterval: scheduleInterval(),
		RunOnStart:       mustBool("SCOUT_RUN_ON_START", true),

		// Pipeline
		TopK:               getenvInt("SCOUT_TOP_K", 20),
		PageSize:           getenvInt("SCOUT_PAGE_SIZE", 50),
		MaxPages:           getenvInt("SCOUT_MAX_PAGES", 1),
		DiscoveryWorkers:   getenvInt("SCOUT_DISCOVERY_CONCURRENCY", 4),
		SourceTimeout:      mustDuration("SCOUT_SOURCE_TIMEOUT", 30*time.Second),
		AffiliationBudget:  mustDuration("SCOUT_AFFILIATION_BUDGET", 30*time.Minute),
		AffiliationTimeout: mustDuration("SCOUT_AFFILIATION_TIMEOUT", 20*time.Second),
		AutoApprove:        mustBool("SCOUT_AUTO_APPROVE", false),
		DeactivateAfter:    getenvInt("SCOUT_DEACTIVATE_AFTER", 3),

		// Storage
		Store:      strings.ToLower(getenv("SCOUT_STORE", StorePostgres)),
		DBMaxConns: getenvInt("SCOUT_DB_MAX_CONNS", 10),

		// Redis settings
		RedisAddr:           getenv("SCOUT_REDIS_ADDR", "localhost:6379"),
		RedisUser:           getenv("SCOUT_REDIS_USERNAME", ""),
		RedisPassword:       getenv("SCOUT_REDIS_PASSWORD", ""),
		RedisDB:             getenvInt("SCOUT_REDIS_DB", 0),
		RedisDT:             mustDuration("SCOUT_REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:             mustDuration("SCOUT_REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:             mustDuration("SCOUT_REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisPoolSize:       getenvInt("SCOUT_REDIS_POOL_SIZE", 10),
		ConnectTimeout:      mustDuration("SCOUT_CONNECT_TIMEOUT", 30*time.Second),
		ConnectRetry:        mustDuration("SCOUT_CONNECT_RETRY_INTERVAL", 2*time.Second),
		ConnectMaxWait:      mustDuration("SCOUT_CONNECT_MAX_WAIT", 10*time.Second),
		ConnectPingTimeout:  mustDuration("SCOUT_CONNECT_PING_TIMEOUT", 5*time.Second),
		ConnectWarnAttempts: getenvInt("SCOUT_CONNECT_WARN_THRESHOLD", 3),

		// Downstream
		ForwardURL:      getenv("SCOUT_FORWARD_URL", ""),
		ForwardToken:    getenv("SCOUT_FORWARD_TOKEN", ""),
		TelegramToken:   getenv("SCOUT_TELEGRAM_TOKEN", ""),
		TelegramChannel: getenv("SCOUT_TELEGRAM_CHANNEL", ""),

		// Access restrictions
		AdminToken:   requireEnv("SCOUT_ADMIN_TOKEN"),
		AllowedCIDRS: parseAllowedIPs(getenv("SCOUT_ALLOWED_CIDRS", "")),
		TrustProxy:   mustBool("SCOUT_TRUST_PROXY", false),
	}

	switch cfg.Store {
	case StorePostgres:
		cfg.DatabaseURL = requireEnv("SCOUT_DATABASE_URL")
	case StoreRedis, StoreMemory:
	default:
		panic(fmt.Sprintf("❌ FATAL: SCOUT_STORE must be postgres, redis or memory, got %q", cfg.Store))
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		log.Printf("[DEBUG] cfg: %+v\n", cfg.Redacted())
	}

	return cfg
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() Config {
	cp := *c
	for _, s := range []*string{&cp.RedisPassword, &cp.ForwardToken, &cp.TelegramToken, &cp.AdminToken} {
		if *s != "" {
			*s = "***REDACTED***"
		}
	}
	if cp.DatabaseURL != "" {
		cp.DatabaseURL = "***REDACTED***"
	}
	return cp
}

// scheduleInterval reads SCOUT_SCHEDULE_INTERVAL, then the legacy
// SCHEDULE_CRON_HOURS (whole hours), then defaults to 12h.
func scheduleInterval() time.Duration {
	if d := mustDuration("SCOUT_SCHEDULE_INTERVAL", 0); d > 0 {
		return d
	}
	if h := getenvInt("SCHEDULE_CRON_HOURS", 0); h > 0 {
		return time.Duration(h) * time.Hour
	}
	return 12 * time.Hour
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
