package service

import (
	"context"
	"fmt"
	"strings"

	"relay/internal/core/content"
	"relay/internal/services/moderation/domain"
)

type postResult struct {
	published  bool
	sourceLink string
	publishTG  bool
	tgIDs      []int64
	publishVK  bool
	vkLink     string
	actor      string
}

type newsResult struct {
	published  bool
	sourceLink string
	publishTG  bool
	tgIDs      []int64
	publishVK  bool
	vkPostID   int64
	isDigest   bool
	actor      string
}

// notifyOwnerMenu sends the owner a message with the operator menu attached
func (s *Service) notifyOwnerMenu(ctx context.Context, text string) {
	if err := s.tg.NotifyOwner(ctx, text, domain.OwnerMenu()); err != nil {
		s.log.Warn().Err(err).Msg("owner notification failed")
	}
}

func (s *Service) notifyPublishError(ctx context.Context, text, actor string) {
	if actor != "" {
		text += "\nДействие модератора: " + actor
	}
	s.notifyOwnerMenu(ctx, text)
}

func (s *Service) notifyPostResult(ctx context.Context, r postResult) {
	lines := []string{"Публикация поста отклонена."}
	if r.published {
		lines[0] = "Пост опубликован."
		var links []string
		if r.publishTG {
			if tg := s.pub.TGLink(r.tgIDs); tg != "" {
				links = append(links, "TG: "+tg)
			}
		}
		if r.publishVK && r.vkLink != "" {
			links = append(links, "ВК: "+r.vkLink)
		}
		if len(links) > 0 {
			lines = append(lines, "Публикация: "+strings.Join(links, ", "))
		}
	}
	lines = append(lines, "Исходный пост ВК: "+r.sourceLink)
	if r.actor != "" {
		lines = append(lines, "Действие модератора: "+r.actor)
	}
	s.notifyOwnerMenu(ctx, strings.Join(lines, "\n"))
}

func (s *Service) notifyNewsResult(ctx context.Context, r newsResult) {
	rejected := "Публикация новости отклонена."
	published := "Новость опубликована."
	if r.isDigest {
		rejected = "Публикация дайджеста отклонена."
		published = "Дайджест опубликован."
	}

	lines := []string{rejected}
	if r.published {
		lines[0] = published
		var links []string
		if r.publishTG {
			if tg := s.pub.TGLink(r.tgIDs); tg != "" {
				links = append(links, "TG: "+tg)
			}
		}
		if r.publishVK {
			if vk := s.pub.VKLink(r.vkPostID); vk != "" {
				links = append(links, "ВК: "+vk)
			}
		}
		if len(links) > 0 {
			lines = append(lines, "Публикация: "+strings.Join(links, ", "))
		}
	}
	lines = append(lines, "Исходная новость: "+r.sourceLink)
	if r.actor != "" {
		lines = append(lines, "Действие модератора: "+r.actor)
	}
	s.notifyOwnerMenu(ctx, strings.Join(lines, "\n"))
}

// notifyWallPublished reports an auto-mode wall publish to the owner
func (s *Service) notifyWallPublished(ctx context.Context, p content.Payload, tgIDs []int64) {
	lines := []string{
		fmt.Sprintf("Пост %d опубликован в канал, сообщений: %d.", p.PostID, len(tgIDs)),
	}
	if link := s.pub.TGLink(tgIDs); link != "" {
		lines = append(lines, "Ссылка TG: "+link)
	}
	if p.Link != "" {
		lines = append(lines, "Исходный пост ВК: "+p.Link)
	}
	if err := s.tg.NotifyOwner(ctx, strings.Join(lines, "\n"), nil); err != nil {
		s.log.Warn().Err(err).Msg("owner notification failed")
	}
}

// notifyNewsPublished reports an auto-mode news publish to the owner
func (s *Service) notifyNewsPublished(ctx context.Context, key string, p content.Payload, label string) {
	entity := "Новость"
	if p.IsDigest {
		entity = "Дайджест"
	}
	verb := "опубликована"
	if p.IsDigest {
		verb = "опубликован"
	}
	text := fmt.Sprintf("%s %s: %s (%s)", entity, verb, key, label)
	if err := s.tg.NotifyOwner(ctx, text, nil); err != nil {
		s.log.Warn().Err(err).Msg("owner notification failed")
	}
}
