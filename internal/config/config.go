// Package config loads the daemon configuration from the environment.
package config

import (
	"os"
	"strings"
)

type Config struct {
	HTTPAddr  string
	PublicURL string

	DBDriver string
	DBDSN    string

	// LaunchCacheDriver is "memory" or "bolt".
	LaunchCacheDriver string
	LaunchCachePath   string

	// Issuer identifies the platform in every token it signs. Defaults
	// to PublicURL.
	Issuer string

	// Platform signing identity.
	PrivateKeyPEM string
	KeyID         string

	CORSOrigins []string
}

func FromEnv() Config {
	addr := envOr("HTTP_ADDR", ":8080")
	pub := strings.TrimSuffix(os.Getenv("PUBLIC_URL"), "/")
	return Config{
		HTTPAddr:          addr,
		PublicURL:         pub,
		DBDriver:          envOr("DB_DRIVER", "sqlite"),
		DBDSN:             envOr("DB_DSN", ""),
		LaunchCacheDriver: envOr("LAUNCH_CACHE_DRIVER", "memory"),
		LaunchCachePath:   envOr("LAUNCH_CACHE_PATH", "./data/launches.db"),
		Issuer:            envOr("LTI_ISSUER", pub),
		PrivateKeyPEM:     readKey("LTI_PRIVATE_KEY", "LTI_PRIVATE_KEY_FILE"),
		KeyID:             envOr("LTI_KEY_ID", "platform-1"),
		CORSOrigins:       csvOr("CORS_ORIGINS", "http://localhost:3000"),
	}
}

// readKey reads PEM material from the env var directly, or from the file
// a companion *_FILE var points at.
func readKey(envKey, fileKey string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	if p := os.Getenv(fileKey); p != "" {
		if raw, err := os.ReadFile(p); err == nil {
			return string(raw)
		}
	}
	return ""
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
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
