package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"relay/internal/core/chunker"
	"relay/internal/core/content"
	"relay/internal/core/render"
	pubdom "relay/internal/services/publish/domain"
)

const promptWallLimit = 1000
const promptNewsLimit = 3500

func extendedWallKeyboard(token string) pubdom.Keyboard {
	return pubdom.Keyboard{
		{
			{Text: "📢 ВК", Data: "post:vk:" + token},
			{Text: "✈️ TG", Data: "post:tg:" + token},
		},
		{
			{Text: "📢+✈️ ВК+TG", Data: "post:both:" + token},
			{Text: "🚫 Отклонить", Data: "post:reject:" + token},
		},
	}
}

func reducedWallKeyboard(token string) pubdom.Keyboard {
	return pubdom.Keyboard{
		{
			{Text: "✅ Опубликовать в TG", Data: "approve:" + token},
			{Text: "🚫 Отклонить", Data: "reject:" + token},
		},
	}
}

func newsKeyboard(token string) pubdom.Keyboard {
	return pubdom.Keyboard{
		{
			{Text: "📢 ВК", Data: "news:vk:" + token},
			{Text: "✈️ TG", Data: "news:tg:" + token},
		},
		{
			{Text: "📢+✈️ ВК+TG", Data: "news:both:" + token},
			{Text: "🚫 Отклонить", Data: "news:reject:" + token},
		},
	}
}

// sendWallPrompt delivers the moderation preview of a wall post to every
// moderator chat. A failed target is logged and skipped; the ids that did
// go out are recorded so the prompt can be cleaned up later.
func (s *Service) sendWallPrompt(ctx context.Context, p content.Payload, token string, extended, warnDuplicate bool) {
	s.log.Info().Str("item", p.Key()).Msg("post pending moderation")

	text := render.EscapeHTML(p.Text)
	if text == "" {
		text = "(без текста)"
	}
	header := fmt.Sprintf("Новый пост #%d из ВК:\n%s", p.PostID, render.EscapeHTML(p.Link))
	if warnDuplicate {
		header += "\n⚠️ Найден дубликат, уверены ли вы, что хотите продолжить?"
	}
	parts := chunker.Chunk(header+"\n\n"+text, promptWallLimit)

	kb := extendedWallKeyboard(token)
	if !extended {
		kb = reducedWallKeyboard(token)
	}

	byChat := make(map[int64][]int64)
	for _, chatID := range s.moderationTargets() {
		ids, err := s.sendPromptTo(ctx, chatID, parts, kb, p.MediaURLs(), p.Poll)
		if err != nil {
			s.log.Warn().Err(err).Int64("chat", chatID).Msg("moderation preview send failed")
			continue
		}
		if len(ids) > 0 {
			byChat[chatID] = ids
		}
	}
	if err := s.store.SetModerationMessages(ctx, p.Key(), byChat); err != nil {
		s.log.Warn().Err(err).Str("item", p.Key()).Msg("failed to record moderation messages")
	}
}

// sendNewsPrompt delivers the moderation preview of a news page
func (s *Service) sendNewsPrompt(ctx context.Context, key string, p content.Payload, token string) {
	body := render.EscapeHTML(p.Text)
	if body == "" {
		body = "(без текста)"
	}
	if p.IsEvent {
		body = render.BoldEventFields(body)
	}
	prefix := "Новая новость на сайте"
	if p.IsDigest {
		prefix = "Новый дайджест на сайте"
	}
	s.log.Info().Str("item", key).Bool("digest", p.IsDigest).Msg("news pending moderation")

	header := prefix + ":\n" + render.NewsText(p, true, false)
	chunks := chunker.ChunkPreservingMarkers(header+"\n\n"+body, promptNewsLimit)
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		parts = append(parts, render.MoreLinks(c, true))
	}

	images := p.MediaURLs()
	limit := 10
	if p.IsDigest {
		limit = 1
	}
	if len(images) > limit {
		images = images[:limit]
	}

	byChat := make(map[int64][]int64)
	for _, chatID := range s.moderationTargets() {
		ids, err := s.sendPromptTo(ctx, chatID, parts, newsKeyboard(token), images, nil)
		if err != nil {
			s.log.Warn().Err(err).Int64("chat", chatID).Msg("news preview send failed")
			continue
		}
		if len(ids) > 0 {
			byChat[chatID] = ids
		}
	}
	if err := s.store.SetModerationMessages(ctx, key, byChat); err != nil {
		s.log.Warn().Err(err).Str("item", key).Msg("failed to record moderation messages")
	}
}

// sendPromptTo sends one full preview: text parts with the keyboard on the
// first message, then the media, then the poll
func (s *Service) sendPromptTo(ctx context.Context, chatID int64, parts []string,
	kb pubdom.Keyboard, images []string, poll *content.Poll,
) ([]int64, error) {
	chat := strconv.FormatInt(chatID, 10)
	var ids []int64
	keep := func(id int64) {
		if id != 0 {
			ids = append(ids, id)
		}
	}

	for i, part := range parts {
		opts := pubdom.SendOpts{}
		if i == 0 {
			opts.Keyboard = kb
		}
		id, err := s.tg.SendText(ctx, chat, part, opts)
		if err != nil {
			return ids, err
		}
		keep(id)
	}

	switch {
	case len(images) == 1:
		id, err := s.tg.SendPhoto(ctx, chat, images[0], "")
		if err != nil {
			return ids, err
		}
		keep(id)
	case len(images) > 1:
		items := make([]pubdom.MediaItem, 0, len(images))
		for _, img := range images {
			items = append(items, pubdom.MediaItem{Kind: "photo", URL: img})
		}
		mids, err := pubdom.SendMediaGroupSafe(ctx, s.log, s.tg, chat, items)
		if err != nil {
			return ids, err
		}
		ids = append(ids, mids...)
	}

	if poll != nil {
		id, err := s.tg.SendPoll(ctx, chat, poll.Question, poll.Options, poll.Anonymous)
		if err != nil {
			return ids, err
		}
		keep(id)
	}
	return ids, nil
}

// deleteModerationMessages removes every moderation prompt for a key.
// For news records the trailing-slash aliases of both the key and the
// payload URL are swept as well.
func (s *Service) deleteModerationMessages(ctx context.Context, key string, payload *content.Payload) {
	aliases := map[string]struct{}{key: {}}
	if payload != nil && payload.Kind == content.KindSiteNews {
		for _, v := range urlVariants(key) {
			aliases[v] = struct{}{}
		}
		for _, v := range urlVariants(payload.URL) {
			aliases[v] = struct{}{}
		}
	}

	byChat := make(map[int64]map[int64]struct{})
	var withIDs []string
	for alias := range aliases {
		m := s.store.ModerationMessages(ctx, alias)
		if len(m) == 0 {
			continue
		}
		withIDs = append(withIDs, alias)
		for chatID, msgIDs := range m {
			if byChat[chatID] == nil {
				byChat[chatID] = make(map[int64]struct{})
			}
			for _, id := range msgIDs {
				byChat[chatID][id] = struct{}{}
			}
		}
	}
	if len(byChat) == 0 && len(withIDs) == 0 {
		return
	}

	deleted, total := 0, 0
	for chatID, idSet := range byChat {
		ids := make([]int64, 0, len(idSet))
		for id := range idSet {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		total += len(ids)
		deleted += s.tg.DeleteMessages(ctx, strconv.FormatInt(chatID, 10), ids)
	}
	for _, alias := range withIDs {
		if err := s.store.ClearModerationMessages(ctx, alias); err != nil {
			s.log.Warn().Err(err).Str("item", alias).Msg("failed to clear moderation messages")
		}
	}
	if total > 0 {
		s.log.Info().Str("item", key).Int("deleted", deleted).Int("total", total).
			Msg("deleted moderation messages")
	}
}
