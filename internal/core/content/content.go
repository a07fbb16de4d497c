// Package content defines the canonical payload that flows through the
// pipeline once a source item is normalized. Field order is fixed so the
// JSON encoding, and the content hash derived from it, stay deterministic
package content

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"

	"github.com/go-playground/validator/v10"

	perr "relay/internal/platform/errors"
)

// Kind discriminates the two payload shapes
type Kind string

const (
	KindWallPost Kind = "wall_post"
	KindSiteNews Kind = "site_news"
)

// Media is a single visual attachment
type Media struct {
	Kind string `json:"type"`
	URL  string `json:"url" validate:"required,url"`
}

// Poll mirrors a source poll; question and options are pre-capped upstream
type Poll struct {
	Question  string   `json:"question"`
	Options   []string `json:"options"`
	Anonymous bool     `json:"is_anonymous"`
}

// Payload is the normalized item handed to moderation and publishing.
// Wall posts carry PostID/OwnerID/Link, site news carry URL/Title/Date;
// Text and Media are common to both.
type Payload struct {
	Kind     Kind    `json:"kind" validate:"required,oneof=wall_post site_news"`
	PostID   int64   `json:"post_id,omitempty"`
	OwnerID  int64   `json:"owner_id,omitempty"`
	URL      string  `json:"url,omitempty" validate:"required_if=Kind site_news,omitempty,url"`
	Title    string  `json:"title,omitempty"`
	Date     string  `json:"date,omitempty"`
	Text     string  `json:"text"`
	Media    []Media `json:"media,omitempty" validate:"dive"`
	Poll     *Poll   `json:"poll,omitempty"`
	Link     string  `json:"link,omitempty" validate:"required_if=Kind wall_post,omitempty,url"`
	IsDigest bool    `json:"is_digest,omitempty"`
	IsEvent  bool    `json:"is_event,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate gates a payload before it enters the pipeline
func (p Payload) Validate() error {
	if err := validate.Struct(p); err != nil {
		return perr.Wrap(err, perr.ErrorCodeValidation, "invalid payload")
	}
	return nil
}

// Key identifies the payload in the state store: wall:<post_id> for wall
// posts, the canonical URL for site news
func (p Payload) Key() string {
	if p.Kind == KindWallPost {
		return WallKey(p.PostID)
	}
	return p.URL
}

// WallKey builds the store key for a wall post id
func WallKey(postID int64) string {
	return "wall:" + strconv.FormatInt(postID, 10)
}

// Hash is the deduplication fingerprint: SHA-256 hex over the canonical
// JSON encoding. Encoding a struct keeps field order stable, so equal
// payloads always hash equal.
func (p Payload) Hash() string {
	raw, err := json.Marshal(p)
	if err != nil {
		// only reachable with non-encodable values, which Payload has none of
		return ""
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// MediaURLs returns attachment URLs in payload order
func (p Payload) MediaURLs() []string {
	if len(p.Media) == 0 {
		return nil
	}
	urls := make([]string, 0, len(p.Media))
	for _, m := range p.Media {
		urls = append(urls, m.URL)
	}
	return urls
}
