// Package service runs the source loops: VK longpoll with a periodic
// fallback sweep, the site news poll, and the bot update dispatch
package service

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	perr "relay/internal/platform/errors"
	"relay/internal/platform/logger"
	moddom "relay/internal/services/moderation/domain"
	pubdom "relay/internal/services/publish/domain"
	"relay/internal/services/watch/domain"
)

const (
	defaultFallbackInterval = 5 * time.Minute
	defaultSiteInterval     = 15 * time.Minute
	defaultUpdatesTimeout   = 20

	// identical longpoll errors in a row before the process gives up
	errorStreakLimit = 5

	pollRetryDelay    = 5 * time.Second
	updatesRetryDelay = 3 * time.Second

	// posts per fallback sweep
	fallbackCount = 3
)

// Settings selects the sources and their cadence
type Settings struct {
	WatchVK          bool
	WatchSite        bool
	OwnerID          int64
	FallbackInterval time.Duration
	SiteInterval     time.Duration
	UpdatesTimeout   int
}

func (s Settings) withDefaults() Settings {
	if s.FallbackInterval <= 0 {
		s.FallbackInterval = defaultFallbackInterval
	}
	if s.SiteInterval <= 0 {
		s.SiteInterval = defaultSiteInterval
	}
	if s.UpdatesTimeout <= 0 {
		s.UpdatesTimeout = defaultUpdatesTimeout
	}
	return s
}

// Service drives the watch loops until the context ends or the longpoll
// source is declared dead
type Service struct {
	log    logger.Logger
	wf     moddom.WorkflowPort
	lp     domain.LongPoller
	upd    domain.UpdatesSource
	cursor domain.CursorStore
	tg     pubdom.Messenger
	cfg    Settings

	sleep func(ctx context.Context, d time.Duration) error

	awaitLink bool
}

// New wires the watch service. Longpoll, updates and cursor ports may be
// nil when the matching loop is disabled.
func New(log logger.Logger, wf moddom.WorkflowPort, ports domain.Ports, cfg Settings) *Service {
	return &Service{
		log:    log.With().Str("svc", "watch").Logger(),
		wf:     wf,
		lp:     ports.Longpoll,
		upd:    ports.Updates,
		cursor: ports.Cursor,
		tg:     ports.Messenger,
		cfg:    cfg.withDefaults(),
		sleep:  sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run blocks until every loop stops. A longpoll error streak stops the
// whole group.
func (s *Service) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	if s.cfg.WatchVK && s.lp != nil {
		g.Go(func() error { return s.longpollLoop(ctx) })
		g.Go(func() error { return s.fallbackLoop(ctx) })
	}
	if s.cfg.WatchSite {
		g.Go(func() error { return s.siteLoop(ctx) })
	}
	if s.upd != nil {
		g.Go(func() error { return s.updatesLoop(ctx) })
	}
	return g.Wait()
}

// streak counts consecutive identical error strings
type streak struct {
	last string
	n    int
}

func (s *streak) observe(err error) int {
	msg := err.Error()
	if msg == s.last {
		s.n++
	} else {
		s.last, s.n = msg, 1
	}
	return s.n
}

func (s *streak) reset() { *s = streak{} }

func (s *Service) longpollLoop(ctx context.Context) error {
	cursor := ""
	if s.cursor != nil {
		cursor = s.cursor.Cursor(ctx)
	}
	var st streak
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		next, posts, err := s.lp.Poll(ctx, cursor)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			n := st.observe(err)
			s.log.Warn().Err(err).Int("streak", n).Msg("longpoll failed")
			if n >= errorStreakLimit {
				s.notifyOwner(ctx, "Остановка: повторяющаяся ошибка VK longpoll: "+err.Error())
				return perr.Unavailablef("longpoll failed %d times in a row: %v", n, err)
			}
			if err := s.sleep(ctx, pollRetryDelay); err != nil {
				return err
			}
			continue
		}
		st.reset()
		if next != "" && next != cursor {
			cursor = next
			if s.cursor != nil {
				if err := s.cursor.SetCursor(ctx, cursor); err != nil {
					s.log.Warn().Err(err).Msg("cursor persist failed")
				}
			}
		}
		for _, post := range posts {
			if err := s.wf.HandleWallPost(ctx, post, "longpoll", false); err != nil {
				s.log.Warn().Err(err).Int64("post", post.Key()).Msg("wall post handling failed")
			}
		}
	}
}

// fallbackLoop sweeps the newest wall posts on a timer, catching anything
// the longpoll stream dropped
func (s *Service) fallbackLoop(ctx context.Context) error {
	t := time.NewTicker(s.cfg.FallbackInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
		if _, err := s.wf.RefreshRecent(ctx, fallbackCount, false); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.log.Warn().Err(err).Msg("fallback sweep failed")
		}
	}
}

func (s *Service) siteLoop(ctx context.Context) error {
	t := time.NewTicker(s.cfg.SiteInterval)
	defer t.Stop()
	for {
		if err := s.wf.RefreshLatestNews(ctx, false); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.log.Warn().Err(err).Msg("site poll failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

func (s *Service) updatesLoop(ctx context.Context) error {
	var offset int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		ups, err := s.upd.Updates(ctx, offset, s.cfg.UpdatesTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.log.Warn().Err(err).Msg("updates poll failed")
			if err := s.sleep(ctx, updatesRetryDelay); err != nil {
				return err
			}
			continue
		}
		for _, u := range ups {
			if u.ID >= offset {
				offset = u.ID + 1
			}
			s.dispatch(ctx, u)
		}
	}
}

func (s *Service) dispatch(ctx context.Context, u domain.Update) {
	switch {
	case u.Callback != nil:
		s.dispatchCallback(ctx, *u.Callback)
	case u.Message != nil:
		s.dispatchMessage(ctx, *u.Message)
	}
}

func (s *Service) dispatchCallback(ctx context.Context, cb moddom.Callback) {
	switch cb.Data {
	case moddom.CmdRefreshPosts, moddom.CmdLatestVK, moddom.CmdLatestSite, moddom.CmdNewsByLink:
		if cb.From.ID != s.cfg.OwnerID {
			s.answer(ctx, cb.ID, "Нет доступа")
			return
		}
	default:
		if err := s.wf.HandleCallback(ctx, cb); err != nil {
			s.log.Warn().Err(err).Str("data", cb.Data).Msg("callback rejected")
		}
		return
	}

	switch cb.Data {
	case moddom.CmdRefreshPosts:
		s.answer(ctx, cb.ID, "Обновление запущено")
		s.refreshPosts(ctx)
	case moddom.CmdLatestVK:
		s.answer(ctx, cb.ID, "Обновление запущено")
		if _, err := s.wf.RefreshRecent(ctx, 1, true); err != nil {
			s.log.Warn().Err(err).Msg("latest post refresh failed")
		}
	case moddom.CmdLatestSite:
		s.answer(ctx, cb.ID, "Обновление запущено")
		if err := s.wf.RefreshLatestNews(ctx, true); err != nil {
			s.log.Warn().Err(err).Msg("latest news refresh failed")
		}
	case moddom.CmdNewsByLink:
		s.answer(ctx, cb.ID, "")
		s.awaitLink = true
		s.notifyOwner(ctx, "Пришлите ссылку на новость сообщением.")
	}
}

func (s *Service) dispatchMessage(ctx context.Context, m domain.Message) {
	if m.From.ID != s.cfg.OwnerID {
		return
	}
	text := strings.TrimSpace(m.Text)
	switch {
	case text == "/refresh" || strings.EqualFold(text, "обновить посты"):
		s.refreshPosts(ctx)
	case s.awaitLink || strings.HasPrefix(text, "http://") || strings.HasPrefix(text, "https://"):
		s.awaitLink = false
		if err := s.wf.SubmitNewsURL(ctx, text); err != nil {
			s.log.Warn().Err(err).Str("url", text).Msg("news by link failed")
			s.notifyOwner(ctx, "Не удалось обработать ссылку: "+err.Error())
		}
	}
}

func (s *Service) refreshPosts(ctx context.Context) {
	if _, err := s.wf.RefreshRecent(ctx, fallbackCount, false); err != nil {
		s.log.Warn().Err(err).Msg("manual refresh failed")
		s.notifyOwner(ctx, "Ошибка обновления постов: "+err.Error())
		return
	}
	if s.tg != nil {
		if err := s.tg.NotifyOwner(ctx, "Ручное обновление завершено (без дублей).", moddom.OwnerMenu()); err != nil {
			s.log.Warn().Err(err).Msg("owner notification failed")
		}
	}
}

func (s *Service) answer(ctx context.Context, id, text string) {
	if s.tg == nil || id == "" {
		return
	}
	if err := s.tg.AnswerCallback(ctx, id, text); err != nil {
		s.log.Warn().Err(err).Str("callback", id).Msg("answer callback failed")
	}
}

func (s *Service) notifyOwner(ctx context.Context, text string) {
	if s.tg == nil {
		return
	}
	if err := s.tg.NotifyOwner(ctx, text, nil); err != nil {
		s.log.Warn().Err(err).Msg("owner notification failed")
	}
}
