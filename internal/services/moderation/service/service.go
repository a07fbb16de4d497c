// Package service drives the moderation gate: new content lands as a
// pending record with a single-use token, moderators decide through inline
// buttons, approved items go through the publisher
package service

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"relay/internal/core/content"
	"relay/internal/core/normalize"
	"relay/internal/platform/logger"
	"relay/internal/services/moderation/domain"
	"relay/internal/services/moderation/repo"
	pubdom "relay/internal/services/publish/domain"
)

// Wall post arrival sources
const (
	SourceLongpoll      = "longpoll"
	SourceEdit          = "edit"
	SourceFallback      = "fallback"
	SourceManualRefresh = "manual-refresh"
)

// Settings holds the moderation policy knobs
type Settings struct {
	OwnerID            int64
	Moderators         []int64
	ModerationRequired bool
}

// Service implements the moderation workflow
type Service struct {
	log   logger.Logger
	store domain.Store
	tg    pubdom.Messenger
	pub   pubdom.Publisher
	feed  domain.Feed
	site  domain.Site
	cfg   Settings

	newToken func() string

	mu      sync.Mutex
	pending map[string]content.Payload
}

// New wires the moderation service. feed and site may be nil when the
// matching source is disabled.
func New(log logger.Logger, store domain.Store, tg pubdom.Messenger, pub pubdom.Publisher,
	feed domain.Feed, site domain.Site, cfg Settings,
) *Service {
	return &Service{
		log:      log.With().Str("svc", "moderation").Logger(),
		store:    store,
		tg:       tg,
		pub:      pub,
		feed:     feed,
		site:     site,
		cfg:      cfg,
		newToken: uuid.NewString,
		pending:  make(map[string]content.Payload),
	}
}

// HandleWallPost runs a raw wall post through the gate. Suggested and
// postponed posts are ignored; force re-moderates even settled records.
func (s *Service) HandleWallPost(ctx context.Context, post normalize.WallPost, source string, force bool) error {
	if post.Key() == 0 {
		return nil
	}
	if post.PostType == "suggest" || post.PostType == "postpone" {
		return nil
	}
	payload, err := normalize.Wall(post)
	if err != nil {
		return err
	}
	key := payload.Key()
	hash := payload.Hash()
	log := logger.C(logger.WithItem(ctx, source, key))

	existing, exists := s.store.Get(ctx, key)
	alreadyPublished := exists && existing.Status.Published()
	if force {
		s.deleteModerationMessages(ctx, key, nil)
	}
	if !force {
		if exists && existing.Hash == hash {
			log.Info().Msg("skip post, duplicate hash")
			return nil
		}
		if exists && existing.Status == repo.StatusPublished {
			log.Info().Msg("skip edit of published post to avoid duplicate")
			return nil
		}
		if s.store.ShouldSkip(ctx, key, hash) {
			log.Info().Msg("skip post, already handled")
			return nil
		}
	}

	token := ""
	if s.cfg.ModerationRequired {
		token = s.newToken()
	}
	if err := s.store.MarkPending(ctx, key, hash, token, payload); err != nil {
		return err
	}
	s.cachePending(key, payload)

	if !s.cfg.ModerationRequired {
		return s.autoPublishWall(ctx, key, payload)
	}
	extended := !(force && source == SourceManualRefresh)
	warnDup := force && source == SourceManualRefresh && alreadyPublished
	s.sendWallPrompt(ctx, payload, token, extended, warnDup)
	return nil
}

// HandleNews runs a feed headline through the gate, fetching the article
// page first. The record is keyed by the incoming feed URL.
func (s *Service) HandleNews(ctx context.Context, item normalize.NewsItem, force bool) error {
	url := strings.TrimSpace(item.URL)
	if url == "" {
		return nil
	}
	log := logger.C(logger.WithItem(ctx, "site", url))

	existing, exists := s.store.Get(ctx, url)
	if force && exists {
		s.deleteModerationMessages(ctx, url, existing.Payload)
	}
	if !force && exists {
		switch existing.Status {
		case repo.StatusPending, repo.StatusApproved, repo.StatusRejected:
			log.Info().Str("status", string(existing.Status)).Msg("skip news")
			return nil
		}
		if existing.Status.Published() {
			log.Info().Str("status", string(existing.Status)).Msg("skip news")
			return nil
		}
	}

	var detail normalize.NewsDetail
	if s.site != nil {
		d, err := s.site.NewsDetail(ctx, url, item.Title)
		if err != nil {
			return err
		}
		detail = d
	}
	payload, err := normalize.News(item, detail)
	if err != nil {
		return err
	}
	hash := payload.Hash()
	if !force && s.store.ShouldSkip(ctx, url, hash) {
		log.Info().Msg("skip news, duplicate hash")
		return nil
	}

	token := ""
	if s.cfg.ModerationRequired {
		token = s.newToken()
	}
	if err := s.store.MarkPending(ctx, url, hash, token, payload); err != nil {
		return err
	}
	s.cachePending(url, payload)

	if !s.cfg.ModerationRequired {
		return s.autoPublishNews(ctx, url, payload)
	}
	s.sendNewsPrompt(ctx, url, payload, token)
	return nil
}

// RefreshRecent re-runs the newest wall posts through the gate, oldest
// first. With force and count 1 an empty feed falls back to re-moderating
// the latest cached record.
func (s *Service) RefreshRecent(ctx context.Context, count int, force bool) (int, error) {
	if s.feed == nil {
		return 0, nil
	}
	s.log.Info().Int("count", count).Bool("force", force).Msg("manual refresh of recent posts")
	items, err := s.feed.WallRecent(ctx, count)
	if err != nil {
		return 0, err
	}
	if len(items) == 0 {
		s.log.Warn().Int("count", count).Msg("no posts returned for refresh")
		if force && count == 1 {
			if s.remoderateLatestCached(ctx) {
				return 1, nil
			}
		}
		return 0, nil
	}
	for i := len(items) - 1; i >= 0; i-- {
		if err := s.HandleWallPost(ctx, items[i], SourceManualRefresh, force); err != nil {
			s.log.Warn().Err(err).Int64("post", items[i].Key()).Msg("refresh item failed")
		}
	}
	return len(items), nil
}

func (s *Service) remoderateLatestCached(ctx context.Context) bool {
	key, rec, ok := s.store.LatestWallEntry(ctx)
	if !ok || rec.Payload == nil {
		return false
	}
	payload := *rec.Payload
	s.deleteModerationMessages(ctx, key, nil)
	token := ""
	if s.cfg.ModerationRequired {
		token = s.newToken()
	}
	if err := s.store.MarkPending(ctx, key, payload.Hash(), token, payload); err != nil {
		s.log.Warn().Err(err).Str("item", key).Msg("latest cached re-moderation failed")
		return false
	}
	s.cachePending(key, payload)
	if s.cfg.ModerationRequired {
		s.sendWallPrompt(ctx, payload, token, false, rec.Status.Published())
	} else if err := s.autoPublishWall(ctx, key, payload); err != nil {
		s.log.Warn().Err(err).Str("item", key).Msg("latest cached publish failed")
		return false
	}
	s.log.Info().Str("item", key).Msg("latest cached post sent for moderation")
	return true
}

// RefreshLatestNews re-runs the newest site headline through the gate
func (s *Service) RefreshLatestNews(ctx context.Context, force bool) error {
	if s.site == nil {
		return nil
	}
	item, err := s.site.LatestNews(ctx)
	if err != nil {
		return err
	}
	if item == nil {
		s.log.Warn().Msg("no news returned for refresh")
		return nil
	}
	return s.HandleNews(ctx, *item, force)
}

// SubmitNewsURL moderates an arbitrary article URL, bypassing dedup
func (s *Service) SubmitNewsURL(ctx context.Context, url string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil
	}
	return s.HandleNews(ctx, normalize.NewsItem{URL: url}, true)
}

func (s *Service) autoPublishWall(ctx context.Context, key string, payload content.Payload) error {
	res, err := s.pub.Publish(ctx, payload, pubdom.Targets{TG: true})
	if err != nil {
		return err
	}
	if err := s.store.MarkPublished(ctx, key, res.TGMessageIDs, 0, ""); err != nil {
		return err
	}
	s.notifyWallPublished(ctx, payload, res.TGMessageIDs)
	return nil
}

func (s *Service) autoPublishNews(ctx context.Context, key string, payload content.Payload) error {
	targets := pubdom.Targets{TG: true}
	res, err := s.pub.Publish(ctx, payload, targets)
	if err != nil {
		return err
	}
	if err := s.store.MarkPublished(ctx, key, res.TGMessageIDs, res.VKPostID, targets.Label()); err != nil {
		return err
	}
	s.notifyNewsPublished(ctx, key, payload, targets.Label())
	return nil
}

func (s *Service) cachePending(key string, payload content.Payload) {
	s.mu.Lock()
	s.pending[key] = payload
	s.mu.Unlock()
}

// pendingPayload prefers the in-memory cache, falling back to the record
func (s *Service) pendingPayload(ctx context.Context, key string) (content.Payload, bool) {
	s.mu.Lock()
	payload, ok := s.pending[key]
	s.mu.Unlock()
	if ok {
		return payload, true
	}
	return s.store.Payload(ctx, key)
}

func (s *Service) isOwner(id int64) bool {
	return id != 0 && id == s.cfg.OwnerID
}

func (s *Service) isModerator(id int64) bool {
	if id == 0 {
		return false
	}
	if id == s.cfg.OwnerID {
		return true
	}
	for _, m := range s.cfg.Moderators {
		if m == id {
			return true
		}
	}
	return false
}

// moderationTargets returns the prompt recipients, owner first, deduplicated
func (s *Service) moderationTargets() []int64 {
	var out []int64
	seen := make(map[int64]struct{})
	for _, id := range append([]int64{s.cfg.OwnerID}, s.cfg.Moderators...) {
		if id == 0 {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// urlVariants returns the trailing-slash aliases a news URL may be keyed by
func urlVariants(url string) []string {
	base := strings.TrimSpace(url)
	if base == "" {
		return nil
	}
	variant := base + "/"
	if strings.HasSuffix(base, "/") {
		variant = strings.TrimRight(base, "/")
	}
	if variant == "" || variant == base {
		return []string{base}
	}
	return []string{base, variant}
}
