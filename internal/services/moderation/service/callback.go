package service

import (
	"context"
	"strings"

	"relay/internal/core/content"
	perr "relay/internal/platform/errors"
	"relay/internal/services/moderation/domain"
	pubdom "relay/internal/services/publish/domain"
)

// callback answer texts
const (
	answerNoAccess     = "Нет доступа"
	answerBadCommand   = "Неверная команда"
	answerStale        = "Устарело"
	answerNoData       = "Нет данных"
	answerUnknown      = "Неизвестная команда"
	answerRejected     = "Отклонено"
	answerPublished    = "Опубликовано"
	answerPublishedTG  = "Опубликовано в TG"
	answerPublishError = "Ошибка публикации"
)

// HandleCallback resolves a moderation button press. Unknown namespaces are
// ignored; access, staleness and action problems return coded errors after
// answering the callback.
func (s *Service) HandleCallback(ctx context.Context, cb domain.Callback) error {
	data := cb.Data
	switch {
	case strings.HasPrefix(data, "post:"):
		return s.handlePostCallback(ctx, cb, false)
	case strings.HasPrefix(data, "approve:"), strings.HasPrefix(data, "reject:"):
		return s.handlePostCallback(ctx, cb, true)
	case strings.HasPrefix(data, "news:"),
		strings.HasPrefix(data, "approve_news:"),
		strings.HasPrefix(data, "reject_news:"):
		return s.handleNewsCallback(ctx, cb)
	default:
		return nil
	}
}

func (s *Service) answer(ctx context.Context, cb domain.Callback, text string) {
	if cb.ID == "" {
		return
	}
	if err := s.tg.AnswerCallback(ctx, cb.ID, text); err != nil {
		s.log.Warn().Err(err).Str("callback", cb.ID).Msg("answer callback failed")
	}
}

func (s *Service) actorForOwner(cb domain.Callback) string {
	if s.isOwner(cb.From.ID) {
		return ""
	}
	return cb.From.Label()
}

func (s *Service) handlePostCallback(ctx context.Context, cb domain.Callback, legacy bool) error {
	if !s.isModerator(cb.From.ID) {
		s.answer(ctx, cb, answerNoAccess)
		return perr.Deniedf("user %d is not a moderator", cb.From.ID)
	}

	var action, token string
	if legacy {
		action, token, _ = strings.Cut(cb.Data, ":")
		if action == "approve" {
			action = "tg"
		}
	} else {
		parts := strings.SplitN(cb.Data, ":", 3)
		if len(parts) != 3 {
			s.answer(ctx, cb, answerBadCommand)
			return perr.InvalidActionf("malformed callback %q", cb.Data)
		}
		action, token = parts[1], parts[2]
	}

	key, ok := s.store.ByToken(ctx, token)
	if !ok {
		s.answer(ctx, cb, answerStale)
		return perr.Stalef("token does not resolve")
	}
	payload, ok := s.pendingPayload(ctx, key)
	if !ok {
		s.answer(ctx, cb, answerNoData)
		return perr.NotFoundf("no payload for %s", key)
	}

	switch action {
	case "vk", "tg", "both", "reject":
	default:
		s.answer(ctx, cb, answerUnknown)
		return perr.InvalidActionf("unknown post action %q", action)
	}

	actor := s.actorForOwner(cb)
	if action == "reject" {
		return s.rejectPost(ctx, cb, key, token, payload, actor)
	}
	return s.approvePost(ctx, cb, key, token, payload, action, legacy, actor)
}

func (s *Service) rejectPost(ctx context.Context, cb domain.Callback, key, token string,
	payload content.Payload, actor string,
) error {
	if err := s.store.MarkRejected(ctx, key); err != nil {
		return err
	}
	if err := s.store.InvalidateToken(ctx, token); err != nil {
		return err
	}
	s.deleteModerationMessages(ctx, key, &payload)
	s.notifyPostResult(ctx, postResult{sourceLink: payload.Link, actor: actor})
	s.answer(ctx, cb, answerRejected)
	return nil
}

func (s *Service) approvePost(ctx context.Context, cb domain.Callback, key, token string,
	payload content.Payload, action string, legacy bool, actor string,
) error {
	if err := s.store.MarkApproved(ctx, key); err != nil {
		return err
	}
	if err := s.store.InvalidateToken(ctx, token); err != nil {
		return err
	}

	publishTG := action == "tg" || action == "both"
	publishVK := action == "vk" || action == "both"

	var tgIDs []int64
	if publishTG {
		res, err := s.pub.Publish(ctx, payload, pubdom.Targets{TG: true})
		if err != nil {
			s.log.Error().Err(err).Str("item", key).Msg("post publish failed")
			s.deleteModerationMessages(ctx, key, &payload)
			s.answer(ctx, cb, answerPublishError)
			s.notifyPublishError(ctx, "Ошибка публикации поста: "+err.Error(), actor)
			return nil
		}
		tgIDs = res.TGMessageIDs
		if err := s.store.MarkPublished(ctx, key, tgIDs, 0, ""); err != nil {
			return err
		}
	}

	// a vk-only approval keeps the post where it already lives
	var vkLink string
	if publishVK {
		vkLink = payload.Link
	}

	s.deleteModerationMessages(ctx, key, &payload)
	s.notifyPostResult(ctx, postResult{
		published:  true,
		sourceLink: payload.Link,
		publishTG:  publishTG,
		tgIDs:      tgIDs,
		publishVK:  publishVK,
		vkLink:     vkLink,
		actor:      actor,
	})
	if legacy {
		s.answer(ctx, cb, answerPublishedTG)
	} else {
		s.answer(ctx, cb, answerPublished)
	}
	return nil
}

func (s *Service) handleNewsCallback(ctx context.Context, cb domain.Callback) error {
	if !s.isModerator(cb.From.ID) {
		s.answer(ctx, cb, answerNoAccess)
		return perr.Deniedf("user %d is not a moderator", cb.From.ID)
	}

	var action, token string
	if strings.HasPrefix(cb.Data, "news:") {
		parts := strings.SplitN(cb.Data, ":", 3)
		if len(parts) == 3 {
			action, token = parts[1], parts[2]
		}
	} else {
		action, token, _ = strings.Cut(cb.Data, ":")
	}

	key, ok := s.store.ByToken(ctx, token)
	if !ok {
		s.answer(ctx, cb, answerStale)
		return perr.Stalef("token does not resolve")
	}
	payload, ok := s.pendingPayload(ctx, key)
	if !ok {
		s.answer(ctx, cb, answerNoData)
		return perr.NotFoundf("no payload for %s", key)
	}

	switch action {
	case "approve_news", "reject_news", "reject", "vk", "tg", "both":
	default:
		s.answer(ctx, cb, answerUnknown)
		return perr.InvalidActionf("unknown news action %q", action)
	}

	actor := s.actorForOwner(cb)
	if action == "reject_news" || action == "reject" {
		if err := s.store.MarkRejected(ctx, key); err != nil {
			return err
		}
		if err := s.store.InvalidateToken(ctx, token); err != nil {
			return err
		}
		s.deleteModerationMessages(ctx, key, &payload)
		s.notifyNewsResult(ctx, newsResult{
			sourceLink: key,
			isDigest:   payload.IsDigest,
			actor:      actor,
		})
		s.answer(ctx, cb, answerRejected)
		return nil
	}

	targets := pubdom.Targets{
		TG: action == "tg" || action == "both" || action == "approve_news",
		VK: action == "vk" || action == "both",
	}
	if err := s.store.MarkApproved(ctx, key); err != nil {
		return err
	}
	if err := s.store.InvalidateToken(ctx, token); err != nil {
		return err
	}
	res, err := s.pub.Publish(ctx, payload, targets)
	if err != nil {
		s.log.Error().Err(err).Str("item", key).Msg("news publish failed")
		s.deleteModerationMessages(ctx, key, &payload)
		s.answer(ctx, cb, answerPublishError)
		s.notifyPublishError(ctx, "Ошибка публикации новости: "+err.Error(), actor)
		return nil
	}
	var tgIDs []int64
	if targets.TG {
		tgIDs = res.TGMessageIDs
	}
	if err := s.store.MarkPublished(ctx, key, tgIDs, res.VKPostID, targets.Label()); err != nil {
		return err
	}
	s.deleteModerationMessages(ctx, key, &payload)
	s.notifyNewsResult(ctx, newsResult{
		published:  true,
		sourceLink: key,
		publishTG:  targets.TG,
		tgIDs:      tgIDs,
		publishVK:  targets.VK,
		vkPostID:   res.VKPostID,
		isDigest:   payload.IsDigest,
		actor:      actor,
	})
	s.answer(ctx, cb, answerPublished)
	return nil
}
