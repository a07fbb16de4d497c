package module

import (
	"strings"
	"time"

	"relay/internal/platform/config"
)

// Config holds the watch module settings
type Config struct {
	WatchVK          bool
	WatchSite        bool
	OwnerID          int64
	FallbackInterval time.Duration
	SiteInterval     time.Duration
	UpdatesTimeout   int
}

// FromConfig reads the watch settings from the environment
func FromConfig(cfg config.Conf) Config {
	mode := strings.ToLower(cfg.MayEnum("SOURCE_MODE", "vk+site", "vk", "site", "vk+site"))
	return Config{
		WatchVK:          strings.Contains(mode, "vk"),
		WatchSite:        strings.Contains(mode, "site"),
		OwnerID:          cfg.MustInt64("OWNER_ID"),
		FallbackInterval: cfg.MayDuration("VK_FALLBACK_INTERVAL", 5*time.Minute),
		SiteInterval:     cfg.MayDuration("SITE_POLL_INTERVAL", 15*time.Minute),
		UpdatesTimeout:   cfg.MayInt("TG_UPDATES_TIMEOUT", 20),
	}
}
