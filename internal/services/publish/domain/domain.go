// Package domain declares the outbound messaging ports and the publishing
// contract the moderation and watch services depend on
package domain

import (
	"context"

	"relay/internal/core/content"
)

// Button is one inline keyboard button
type Button struct {
	Text string
	Data string
}

// Keyboard is rows of inline buttons
type Keyboard [][]Button

// SendOpts tunes a text send. Zero value means HTML parse mode, link
// preview disabled, no keyboard.
type SendOpts struct {
	Keyboard Keyboard
	Plain    bool
	Preview  bool
}

// MediaItem is one entry of a media group send
type MediaItem struct {
	Kind    string
	URL     string
	Caption string
	HTML    bool
}

// Messenger is the Telegram surface the pipeline uses. Send methods return
// the created message id, 0 when nothing was sent (dry-run).
type Messenger interface {
	SendText(ctx context.Context, chat, text string, opts SendOpts) (int64, error)
	SendPhoto(ctx context.Context, chat, photoURL, caption string) (int64, error)
	SendMediaGroup(ctx context.Context, chat string, items []MediaItem) ([]int64, error)
	SendPoll(ctx context.Context, chat, question string, options []string, anonymous bool) (int64, error)
	// DeleteMessages removes what it can and reports how many went away
	DeleteMessages(ctx context.Context, chat string, ids []int64) int
	AnswerCallback(ctx context.Context, callbackID, text string) error
	// NotifyOwner messages the operator; kb may be nil
	NotifyOwner(ctx context.Context, text string, kb Keyboard) error
}

// WallPoster is the VK publishing surface
type WallPoster interface {
	PostWall(ctx context.Context, message string, attachments []string) (int64, error)
	// UploadWallPhotos returns attachment ids; empty when the credential
	// has no upload rights
	UploadWallPhotos(ctx context.Context, urls []string, maxImages int) ([]string, error)
}

// Ports are the outbound dependencies the publish module needs wired in.
// Wall may be nil when VK posting is not configured.
type Ports struct {
	Messenger Messenger
	Wall      WallPoster
}

// Targets selects where an approved item goes
type Targets struct {
	TG bool
	VK bool
}

// Label renders the target set the way the state file records it
func (t Targets) Label() string {
	switch {
	case t.TG && t.VK:
		return "both"
	case t.VK:
		return "vk"
	case t.TG:
		return "tg"
	default:
		return ""
	}
}

// Result reports what a publish produced
type Result struct {
	TGMessageIDs []int64
	VKPostID     int64
}

// Publisher renders and delivers a payload to the selected targets
type Publisher interface {
	Publish(ctx context.Context, p content.Payload, t Targets) (Result, error)
	// TGLink builds a t.me permalink for the first published message
	TGLink(messageIDs []int64) string
	// VKLink builds a wall permalink for a created VK post
	VKLink(postID int64) string
}
