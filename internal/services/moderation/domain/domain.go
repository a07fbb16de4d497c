// Package domain declares the moderation ports: the persisted ledger, the
// content sources consumed by manual refresh, and the callback envelope
package domain

import (
	"context"
	"fmt"
	"strings"

	"relay/internal/core/content"
	"relay/internal/core/normalize"
	"relay/internal/services/moderation/repo"
	pubdom "relay/internal/services/publish/domain"
)

// Store is the moderation ledger the service drives
type Store interface {
	Get(ctx context.Context, key string) (repo.Record, bool)
	ShouldSkip(ctx context.Context, key, hash string) bool
	MarkPending(ctx context.Context, key, hash, token string, payload content.Payload) error
	MarkApproved(ctx context.Context, key string) error
	MarkRejected(ctx context.Context, key string) error
	MarkPublished(ctx context.Context, key string, tgIDs []int64, vkPostID int64, label string) error
	ByToken(ctx context.Context, token string) (string, bool)
	InvalidateToken(ctx context.Context, token string) error
	SetModerationMessages(ctx context.Context, key string, byChat map[int64][]int64) error
	ModerationMessages(ctx context.Context, key string) map[int64][]int64
	ClearModerationMessages(ctx context.Context, key string) error
	Payload(ctx context.Context, key string) (content.Payload, bool)
	LatestWallEntry(ctx context.Context) (string, repo.Record, bool)
}

// Feed serves recent wall posts for manual refresh
type Feed interface {
	WallRecent(ctx context.Context, count int) ([]normalize.WallPost, error)
}

// Site serves the news feed and article pages
type Site interface {
	LatestNews(ctx context.Context) (*normalize.NewsItem, error)
	NewsDetail(ctx context.Context, url, title string) (normalize.NewsDetail, error)
}

// Actor is the Telegram user behind a callback
type Actor struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
}

// Label renders the actor for owner notifications
func (a Actor) Label() string {
	label := ""
	if u := strings.TrimSpace(a.Username); u != "" {
		label = "@" + u
	} else {
		var parts []string
		for _, p := range []string{strings.TrimSpace(a.FirstName), strings.TrimSpace(a.LastName)} {
			if p != "" {
				parts = append(parts, p)
			}
		}
		label = strings.Join(parts, " ")
		if label == "" {
			label = "неизвестный пользователь"
		}
	}
	if a.ID != 0 {
		return fmt.Sprintf("%s (id=%d)", label, a.ID)
	}
	return label
}

// Callback is an inline button press
type Callback struct {
	ID   string
	Data string
	From Actor
}

// Owner menu callback commands
const (
	CmdRefreshPosts = "refresh_posts"
	CmdLatestVK     = "latest_vk"
	CmdLatestSite   = "latest_site"
	CmdNewsByLink   = "news_by_link"
)

// OwnerMenu is the operator keyboard attached to owner notifications
func OwnerMenu() pubdom.Keyboard {
	return pubdom.Keyboard{
		{{Text: "🔄 Обновить посты", Data: CmdRefreshPosts}},
		{{Text: "📌 Крайний пост VK", Data: CmdLatestVK}},
		{{Text: "📰 Крайняя новость сайта", Data: CmdLatestSite}},
		{{Text: "🔗 Новость по ссылке", Data: CmdNewsByLink}},
	}
}

// WorkflowPort is the moderation surface the watch loops drive
type WorkflowPort interface {
	HandleWallPost(ctx context.Context, post normalize.WallPost, source string, force bool) error
	HandleNews(ctx context.Context, item normalize.NewsItem, force bool) error
	HandleCallback(ctx context.Context, cb Callback) error
	RefreshRecent(ctx context.Context, count int, force bool) (int, error)
	RefreshLatestNews(ctx context.Context, force bool) error
	SubmitNewsURL(ctx context.Context, url string) error
}

// Ports are the dependencies the moderation module needs wired in.
// Feed and Site may be nil when the matching source is disabled.
type Ports struct {
	Store     Store
	Messenger pubdom.Messenger
	Publisher pubdom.Publisher
	Feed      Feed
	Site      Site
}
