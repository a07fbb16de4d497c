package module

import "relay/internal/platform/config"

// Config holds the publish module settings
type Config struct {
	Channel string
	GroupID int64
	DryRun  bool
}

// FromConfig reads the publish settings from the environment
func FromConfig(cfg config.Conf) Config {
	return Config{
		Channel: cfg.MustString("TG_CHANNEL_ID"),
		GroupID: cfg.MayInt64("VK_GROUP_ID", 0),
		DryRun:  cfg.MayBool("DRY_RUN", false),
	}
}
