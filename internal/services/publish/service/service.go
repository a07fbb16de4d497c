// Package service renders payloads per target and delivers them.
// Telegram is the primary target, VK is secondary and only receives site
// news (wall posts already live there).
package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"relay/internal/core/chunker"
	"relay/internal/core/content"
	"relay/internal/core/render"
	perr "relay/internal/platform/errors"
	"relay/internal/platform/logger"
	pubdom "relay/internal/services/publish/domain"
)

const (
	captionLimit = 1000
	bodyLimit    = 3500
	// caption re-chunk limit when expanded continue-reading links push a
	// rendered caption over captionLimit
	captionRetryLimit = 900
	vkTextLimit       = 6000
	maxGroupImages    = 10
)

// Service implements pubdom.Publisher
type Service struct {
	log     logger.Logger
	tg      pubdom.Messenger
	vk      pubdom.WallPoster
	channel string
	groupID int64
	dryRun  bool
}

// New wires a publisher. vk may be nil when wall posting is not configured
func New(log logger.Logger, tg pubdom.Messenger, vk pubdom.WallPoster, channel string, vkGroupID int64, dryRun bool) *Service {
	return &Service{
		log:     log.With().Str("svc", "publish").Logger(),
		tg:      tg,
		vk:      vk,
		channel: channel,
		groupID: vkGroupID,
		dryRun:  dryRun,
	}
}

// Publish delivers a payload to the selected targets. A Telegram publish
// that produces no messages fails with ErrorCodeEmptyPublish, leaving the
// record unmarked so the item can be retried.
func (s *Service) Publish(ctx context.Context, p content.Payload, t pubdom.Targets) (pubdom.Result, error) {
	var res pubdom.Result
	if t.TG {
		ids, err := s.publishTG(ctx, p)
		if err != nil {
			return res, err
		}
		if len(ids) == 0 {
			return res, perr.EmptyPublishf(
				"telegram publish produced no messages, check channel id and bot rights")
		}
		res.TGMessageIDs = ids
		s.log.Info().Str("item", p.Key()).Int("messages", len(ids)).Msg("published to telegram")
	}
	if t.VK && p.Kind == content.KindSiteNews {
		id, err := s.publishNewsVK(ctx, p)
		if err != nil {
			return res, err
		}
		res.VKPostID = id
		s.log.Info().Str("item", p.Key()).Int64("vk_post", id).Msg("published to vk")
	}
	return res, nil
}

func (s *Service) publishTG(ctx context.Context, p content.Payload) ([]int64, error) {
	if p.Kind == content.KindSiteNews {
		return s.publishNewsTG(ctx, p)
	}
	return s.publishWallTG(ctx, p)
}

func (s *Service) publishWallTG(ctx context.Context, p content.Payload) ([]int64, error) {
	chunks := chunker.Chunk(render.EscapeHTML(p.Text), bodyLimit)
	var ids []int64
	keep := func(id int64) {
		if id != 0 {
			ids = append(ids, id)
		}
	}

	if len(p.Media) > 0 {
		caption, extras := chunker.SplitCaption(chunks, captionLimit, bodyLimit, false, false)
		if len(p.Media) == 1 {
			id, err := s.tg.SendPhoto(ctx, s.channel, p.Media[0].URL, caption)
			if err != nil {
				return nil, err
			}
			keep(id)
		} else {
			mids, err := pubdom.SendMediaGroupSafe(ctx, s.log, s.tg, s.channel, s.mediaGroup(p.Media, caption))
			if err != nil {
				return nil, err
			}
			ids = append(ids, mids...)
		}
		for _, extra := range extras {
			id, err := s.tg.SendText(ctx, s.channel, extra, pubdom.SendOpts{})
			if err != nil {
				return nil, err
			}
			keep(id)
		}
	} else {
		for _, part := range chunks {
			if part == "" {
				continue
			}
			id, err := s.tg.SendText(ctx, s.channel, part, pubdom.SendOpts{})
			if err != nil {
				return nil, err
			}
			keep(id)
		}
	}

	if p.Poll != nil {
		id, err := s.tg.SendPoll(ctx, s.channel, p.Poll.Question, p.Poll.Options, p.Poll.Anonymous)
		if err != nil {
			return nil, err
		}
		keep(id)
	}
	return ids, nil
}

func (s *Service) publishNewsTG(ctx context.Context, p content.Payload) ([]int64, error) {
	full := render.NewsText(p, true, true)
	chunks := chunker.ChunkPreservingMarkers(full, bodyLimit)
	images := capImages(p)

	var ids []int64
	keep := func(id int64) {
		if id != 0 {
			ids = append(ids, id)
		}
	}
	sendRendered := func(part string) error {
		id, err := s.tg.SendText(ctx, s.channel, render.MoreLinks(part, true), pubdom.SendOpts{})
		if err != nil {
			return err
		}
		keep(id)
		return nil
	}

	if len(images) == 0 {
		for _, part := range chunks {
			if part == "" {
				continue
			}
			if err := sendRendered(part); err != nil {
				return nil, err
			}
		}
		return ids, nil
	}

	caption, extras := chunker.SplitCaption(chunks, captionLimit, bodyLimit, true, true)
	rendered := render.MoreLinks(caption, true)
	if utf8.RuneCountInString(rendered) > captionLimit {
		// expanded links blew the budget, shrink and push the rest down
		parts := chunker.ChunkPreservingMarkers(caption, captionRetryLimit)
		caption = ""
		if len(parts) > 0 {
			caption = parts[0]
		}
		rendered = render.MoreLinks(caption, true)
		var lead []string
		for _, part := range parts[1:] {
			if part != "" {
				lead = append(lead, part)
			}
		}
		extras = append(lead, extras...)
	}

	if len(images) == 1 {
		id, err := s.tg.SendPhoto(ctx, s.channel, images[0], rendered)
		if err != nil {
			return nil, err
		}
		keep(id)
	} else {
		items := make([]pubdom.MediaItem, 0, len(images))
		for i, img := range images {
			item := pubdom.MediaItem{Kind: "photo", URL: img}
			if i == 0 && rendered != "" {
				item.Caption = rendered
				item.HTML = true
			}
			items = append(items, item)
		}
		mids, err := pubdom.SendMediaGroupSafe(ctx, s.log, s.tg, s.channel, items)
		if err != nil {
			return nil, err
		}
		ids = append(ids, mids...)
	}
	for _, extra := range extras {
		if err := sendRendered(extra); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

func (s *Service) publishNewsVK(ctx context.Context, p content.Payload) (int64, error) {
	if s.vk == nil {
		return 0, perr.Unavailablef("vk posting is not configured")
	}
	text := render.NewsText(p, false, true)
	src := strings.TrimSpace(p.URL)
	if src != "" && !strings.Contains(text, src) {
		if text != "" {
			text = src + "\n\n" + text
		} else {
			text = src
		}
	}
	if utf8.RuneCountInString(text) > vkTextLimit {
		text = chunker.TruncateWords(text, vkTextLimit)
	}

	var attachments []string
	images := capImages(p)
	if len(images) > 0 && !s.dryRun {
		maxImages := maxGroupImages
		if p.IsDigest {
			maxImages = 1
		}
		atts, err := s.vk.UploadWallPhotos(ctx, images, maxImages)
		if err != nil {
			return 0, err
		}
		attachments = atts
		if len(attachments) == 0 && src != "" {
			// group tokens have no upload rights; the link preview covers it
			s.log.Warn().Str("url", src).
				Msg("vk photo upload returned no attachments, relying on link preview")
		}
	}
	if s.dryRun {
		s.log.Info().Str("text", chunker.TruncateWords(text, 200)).Msg("[dry-run] vk wall post")
		return 0, nil
	}
	return s.vk.PostWall(ctx, text, attachments)
}

func (s *Service) mediaGroup(media []content.Media, caption string) []pubdom.MediaItem {
	items := make([]pubdom.MediaItem, 0, len(media))
	for i, m := range media {
		item := pubdom.MediaItem{Kind: m.Kind, URL: m.URL}
		if i == 0 && caption != "" {
			item.Caption = caption
			item.HTML = true
		}
		items = append(items, item)
	}
	return items
}

// capImages applies the per-kind image budget: digests carry exactly one
func capImages(p content.Payload) []string {
	urls := p.MediaURLs()
	limit := maxGroupImages
	if p.IsDigest {
		limit = 1
	}
	if len(urls) > limit {
		urls = urls[:limit]
	}
	return urls
}

// TGLink builds a t.me permalink for the first published message
func (s *Service) TGLink(messageIDs []int64) string {
	if len(messageIDs) == 0 {
		return ""
	}
	id := messageIDs[0]
	chat := strings.TrimSpace(s.channel)
	switch {
	case strings.HasPrefix(chat, "https://t.me/"):
		return fmt.Sprintf("%s/%d", strings.TrimRight(chat, "/"), id)
	case strings.HasPrefix(chat, "@"):
		if name := chat[1:]; name != "" {
			return fmt.Sprintf("https://t.me/%s/%d", name, id)
		}
		return ""
	case strings.HasPrefix(chat, "-100") && isDigits(chat[4:]):
		return fmt.Sprintf("https://t.me/c/%s/%d", chat[4:], id)
	case chat != "" && !strings.HasPrefix(chat, "-"):
		return fmt.Sprintf("https://t.me/%s/%d", chat, id)
	default:
		return ""
	}
}

// VKLink builds the wall permalink for a created VK post
func (s *Service) VKLink(postID int64) string {
	if postID == 0 {
		return ""
	}
	group := s.groupID
	if group < 0 {
		group = -group
	}
	return fmt.Sprintf("https://vk.com/wall-%d_%d", group, postID)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
