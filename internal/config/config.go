package config

import (
	"os"
	"strings"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type Config struct {
	Mode     Mode
	HTTPAddr string
	SiteID   string // stamped on every event_log row

	DBDriver string
	DBDSN    string

	AuthSecret      string
	EnableLocalAuth bool
	// AllowRoleClaimFallback lets a JWT role claim stand in when the user has no
	// role row yet. Dev/offline only.
	AllowRoleClaimFallback bool

	CORSOriginsOnline  []string
	CORSOriginsOffline []string

	// AdminBootstrap is "username:password"; when set, the account is created
	// or refreshed with the admin role at startup.
	AdminBootstrap string
}

func FromEnv() Config {
	mode := Mode(os.Getenv("MODE"))
	if mode == "" {
		mode = ModeOffline
	}
	return Config{
		Mode:                   mode,
		HTTPAddr:               envOr("HTTP_ADDR", ":8080"),
		SiteID:                 envOr("SITE_ID", "local"),
		DBDriver:               envOr("DB_DRIVER", "sqlite"),
		DBDSN:                  envOr("DB_DSN", ""),
		AuthSecret:             envOr("AUTH_HMAC_SECRET", "supersecret-dev-key"),
		EnableLocalAuth:        envBool("ENABLE_LOCAL_AUTH", true),
		AllowRoleClaimFallback: envBool("ALLOW_ROLE_CLAIM_FALLBACK", mode == ModeOffline),
		CORSOriginsOnline:      csvOr("CORS_ORIGINS_ONLINE", "https://quiz.mindengage.ai"),
		CORSOriginsOffline:     csvOr("CORS_ORIGINS_OFFLINE", "http://localhost:3000,http://localhost:3010"),
		AdminBootstrap:         os.Getenv("ADMIN_BOOTSTRAP"),
	}
}

// CORSOrigins picks the origin list for the configured mode.
func (c Config) CORSOrigins() []string {
	if c.Mode == ModeOnline {
		return c.CORSOriginsOnline
	}
	return c.CORSOriginsOffline
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}
func csvOr(k, def string) []string {
	v := envOr(k, def)
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
