package instance

import (
	"os"
	"strings"

	"github.com/angelmondragon/storefront/pkg/env"
)

// ID returns the process identifier used in logs and lock ownership.
// STOREFRONT_INSTANCE_ID wins, then the platform's DYNO, then the hostname.
func ID() string {
	if id := strings.TrimSpace(env.Get("STOREFRONT_INSTANCE_ID", os.Getenv("DYNO"))); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
