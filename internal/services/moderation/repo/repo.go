// Package repo persists the moderation ledger: one record per content item,
// a single-use token index and the source cursor, snapshotted to a JSON
// file through platform/store
package repo

import (
	"context"
	"strings"
	"time"

	"relay/internal/core/content"
	"relay/internal/platform/store"
)

// maxSeen bounds the processed-item history; oldest entries fall off
const maxSeen = 300

// Status is the moderation lifecycle of a record
type Status string

const (
	StatusAuto      Status = "auto"
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusPublished Status = "published"
)

// Published reports whether the record reached any publish target
func (s Status) Published() bool {
	return strings.HasPrefix(string(s), string(StatusPublished))
}

// PublishedAs derives the stored status for a target label, published_tg,
// published_vk, published_both, or bare published when no label applies
func PublishedAs(label string) Status {
	if label == "" {
		return StatusPublished
	}
	return Status(string(StatusPublished) + "_" + label)
}

// Record is the per-item moderation entry
type Record struct {
	Hash            string            `json:"hash"`
	Status          Status            `json:"status"`
	Token           string            `json:"token,omitempty"`
	ChannelMessages []int64           `json:"tg_message_ids,omitempty"`
	Moderation      map[int64][]int64 `json:"moderation_messages,omitempty"`
	VKPostID        int64             `json:"vk_post_id,omitempty"`
	PublishedTo     string            `json:"published_to,omitempty"`
	Payload         *content.Payload  `json:"payload,omitempty"`
	UpdatedAt       int64             `json:"updated_at"`
}

// State is the full snapshot written to disk. Wall posts and site news
// share one record map, keyed wall:<id> and canonical URL respectively.
type State struct {
	Cursor     string            `json:"last_ts,omitempty"`
	LastWallID int64             `json:"last_post_id,omitempty"`
	Records    map[string]Record `json:"records"`
	Tokens     map[string]string `json:"tokens"`
	Seen       []string          `json:"seen"`
}

func (s *State) ensure() {
	if s.Records == nil {
		s.Records = make(map[string]Record)
	}
	if s.Tokens == nil {
		s.Tokens = make(map[string]string)
	}
}

// Store wraps the snapshot file with the moderation operations
type Store struct {
	f   *store.File[State]
	now func() time.Time
}

// Open loads the snapshot at path, quarantining a corrupt file
func Open(path string) (*Store, error) {
	f, err := store.Open[State](path)
	if err != nil {
		return nil, err
	}
	return &Store{f: f, now: time.Now}, nil
}

// Get returns the record for a key
func (s *Store) Get(_ context.Context, key string) (Record, bool) {
	var rec Record
	var ok bool
	s.f.View(func(st State) {
		rec, ok = st.Records[key]
	})
	return rec, ok
}

// ShouldSkip reports whether an item with this hash was already handled:
// same hash and a settled or in-flight status
func (s *Store) ShouldSkip(ctx context.Context, key, hash string) bool {
	rec, ok := s.Get(ctx, key)
	if !ok || rec.Hash != hash {
		return false
	}
	switch rec.Status {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return rec.Status.Published()
}

// MarkPending registers a new revision of an item. A non-empty token puts
// it in moderation; an empty token records an auto-published revision.
// The record's previous token, if any, is dropped from the index.
func (s *Store) MarkPending(_ context.Context, key, hash, token string, payload content.Payload) error {
	return s.f.Mutate(func(st *State) error {
		st.ensure()
		if prev, ok := st.Records[key]; ok && prev.Token != "" {
			delete(st.Tokens, prev.Token)
		}
		status := StatusAuto
		if token != "" {
			status = StatusPending
		}
		st.Records[key] = Record{
			Hash:      hash,
			Status:    status,
			Token:     token,
			Payload:   &payload,
			UpdatedAt: s.now().Unix(),
		}
		if token != "" {
			st.Tokens[token] = key
		}
		if payload.Kind == content.KindWallPost {
			st.LastWallID = payload.PostID
		}
		appendSeen(st, key)
		return nil
	})
}

// MarkApproved settles a record as approved and drops its token
func (s *Store) MarkApproved(ctx context.Context, key string) error {
	return s.settle(ctx, key, StatusApproved)
}

// MarkRejected settles a record as rejected and drops its token
func (s *Store) MarkRejected(ctx context.Context, key string) error {
	return s.settle(ctx, key, StatusRejected)
}

func (s *Store) settle(_ context.Context, key string, status Status) error {
	return s.f.Mutate(func(st *State) error {
		st.ensure()
		rec, ok := st.Records[key]
		if !ok {
			return nil
		}
		if rec.Token != "" {
			delete(st.Tokens, rec.Token)
		}
		rec.Status = status
		rec.UpdatedAt = s.now().Unix()
		st.Records[key] = rec
		return nil
	})
}

// MarkPublished stamps a record published. label selects the target
// variant (tg, vk, both); tgIDs and vkPostID are stored when present.
func (s *Store) MarkPublished(_ context.Context, key string, tgIDs []int64, vkPostID int64, label string) error {
	return s.f.Mutate(func(st *State) error {
		st.ensure()
		rec := st.Records[key]
		rec.Status = PublishedAs(label)
		rec.PublishedTo = label
		if tgIDs != nil {
			rec.ChannelMessages = tgIDs
		}
		if vkPostID != 0 {
			rec.VKPostID = vkPostID
		}
		rec.UpdatedAt = s.now().Unix()
		st.Records[key] = rec
		appendSeen(st, key)
		return nil
	})
}

// ByToken resolves a moderation token to its record key
func (s *Store) ByToken(_ context.Context, token string) (string, bool) {
	var key string
	var ok bool
	s.f.View(func(st State) {
		key, ok = st.Tokens[token]
	})
	return key, ok
}

// InvalidateToken removes a token from the index; the record keeps it for
// audit but it no longer resolves
func (s *Store) InvalidateToken(_ context.Context, token string) error {
	return s.f.Mutate(func(st *State) error {
		st.ensure()
		delete(st.Tokens, token)
		return nil
	})
}

// SetModerationMessages records the prompt message ids per moderator chat
func (s *Store) SetModerationMessages(_ context.Context, key string, byChat map[int64][]int64) error {
	return s.f.Mutate(func(st *State) error {
		st.ensure()
		rec, ok := st.Records[key]
		if !ok {
			return nil
		}
		rec.Moderation = byChat
		st.Records[key] = rec
		return nil
	})
}

// ModerationMessages returns the prompt message ids per moderator chat
func (s *Store) ModerationMessages(ctx context.Context, key string) map[int64][]int64 {
	rec, ok := s.Get(ctx, key)
	if !ok {
		return nil
	}
	return rec.Moderation
}

// ClearModerationMessages forgets the prompt message ids for a key
func (s *Store) ClearModerationMessages(_ context.Context, key string) error {
	return s.f.Mutate(func(st *State) error {
		st.ensure()
		rec, ok := st.Records[key]
		if !ok {
			return nil
		}
		rec.Moderation = nil
		st.Records[key] = rec
		return nil
	})
}

// Payload returns the stored payload snapshot for a key
func (s *Store) Payload(ctx context.Context, key string) (content.Payload, bool) {
	rec, ok := s.Get(ctx, key)
	if !ok || rec.Payload == nil {
		return content.Payload{}, false
	}
	return *rec.Payload, true
}

// LatestWallEntry returns the most recently updated wall record, used by
// the forced refresh fallback when the feed comes back empty
func (s *Store) LatestWallEntry(_ context.Context) (string, Record, bool) {
	var bestKey string
	var best Record
	var found bool
	s.f.View(func(st State) {
		for key, rec := range st.Records {
			if rec.Payload == nil || rec.Payload.Kind != content.KindWallPost {
				continue
			}
			if !found || rec.UpdatedAt > best.UpdatedAt ||
				(rec.UpdatedAt == best.UpdatedAt && rec.Payload.PostID > best.Payload.PostID) {
				bestKey, best, found = key, rec, true
			}
		}
	})
	return bestKey, best, found
}

// Cursor returns the long-poll cursor
func (s *Store) Cursor(_ context.Context) string {
	var ts string
	s.f.View(func(st State) { ts = st.Cursor })
	return ts
}

// SetCursor persists the long-poll cursor
func (s *Store) SetCursor(_ context.Context, ts string) error {
	return s.f.Mutate(func(st *State) error {
		st.ensure()
		st.Cursor = ts
		return nil
	})
}

func appendSeen(st *State, key string) {
	for _, k := range st.Seen {
		if k == key {
			return
		}
	}
	st.Seen = append(st.Seen, key)
	if n := len(st.Seen); n > maxSeen {
		st.Seen = st.Seen[n-maxSeen:]
	}
}
