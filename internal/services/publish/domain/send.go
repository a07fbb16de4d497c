package domain

import (
	"context"

	"relay/internal/platform/logger"
)

// SendMediaGroupSafe sends a media group and falls back to per-item photo
// sends when the group call returns fewer message ids than items. Telegram
// rejects whole groups over one bad entry; single sends salvage the rest.
func SendMediaGroupSafe(ctx context.Context, log logger.Logger, m Messenger, chat string, items []MediaItem) ([]int64, error) {
	if len(items) == 0 {
		return nil, nil
	}
	ids, err := m.SendMediaGroup(ctx, chat, items)
	if err == nil && len(ids) == len(items) {
		return ids, nil
	}
	log.Warn().
		Err(err).
		Int("sent", len(ids)).
		Int("items", len(items)).
		Msg("media group failed or partial, falling back to single sends")

	var fallback []int64
	for _, item := range items {
		id, sendErr := m.SendPhoto(ctx, chat, item.URL, item.Caption)
		if sendErr != nil {
			log.Warn().Err(sendErr).Str("url", item.URL).Msg("media fallback send failed")
			continue
		}
		if id != 0 {
			fallback = append(fallback, id)
		}
	}
	return fallback, nil
}
