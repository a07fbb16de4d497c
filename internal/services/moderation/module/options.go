package module

import (
	"strconv"
	"strings"

	"relay/internal/platform/config"
)

// Config holds the moderation module settings
type Config struct {
	OwnerID            int64
	Moderators         []int64
	ModerationRequired bool
}

// FromConfig reads the moderation settings from the environment
func FromConfig(cfg config.Conf) Config {
	mode := cfg.MayEnum("MODERATION_MODE", "required", "required", "off")
	var moderators []int64
	for _, raw := range cfg.MayCSV("MODERATOR_IDS", nil) {
		id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil || id == 0 {
			continue
		}
		moderators = append(moderators, id)
	}
	return Config{
		OwnerID:            cfg.MustInt64("OWNER_ID"),
		Moderators:         moderators,
		ModerationRequired: mode == "required",
	}
}
