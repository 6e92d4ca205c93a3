package instance

import (
	"os"

	"github.com/angelmondragon/storefront-payments/pkg/env"
)

// GetID identifies this process in logs and cron lock ownership. It prefers
// an explicit id, then the platform dyno name, then the host name.
func GetID() string {
	if id := env.Get("STOREFRONT_INSTANCE_ID", ""); id != "" {
		return id
	}
	if id := env.Get("DYNO", ""); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
