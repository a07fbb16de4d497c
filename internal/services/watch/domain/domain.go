// Package domain declares the ports the watch loops run against
package domain

import (
	"context"

	"relay/internal/core/normalize"
	moddom "relay/internal/services/moderation/domain"
	pubdom "relay/internal/services/publish/domain"
)

// LongPoller streams wall events from the group event server. Poll blocks
// up to the server wait window and returns the advanced cursor; an empty
// batch with the same cursor is a normal timeout.
type LongPoller interface {
	Poll(ctx context.Context, cursor string) (string, []normalize.WallPost, error)
}

// Message is an incoming private message to the bot
type Message struct {
	ChatID int64
	From   moddom.Actor
	Text   string
}

// Update is one long-poll update from the bot API, either a callback
// press or a message
type Update struct {
	ID       int64
	Callback *moddom.Callback
	Message  *Message
}

// UpdatesSource long-polls the bot API for callbacks and messages
type UpdatesSource interface {
	Updates(ctx context.Context, offset int64, timeoutSec int) ([]Update, error)
}

// CursorStore persists the long-poll cursor between runs
type CursorStore interface {
	Cursor(ctx context.Context) string
	SetCursor(ctx context.Context, cursor string) error
}

// Runner is the module surface: blocks until the context ends or a loop
// declares the process unhealthy
type Runner interface {
	Run(ctx context.Context) error
}

// Ports lists what the watch service needs wired
type Ports struct {
	Workflow  moddom.WorkflowPort
	Longpoll  LongPoller
	Updates   UpdatesSource
	Cursor    CursorStore
	Messenger pubdom.Messenger
}
