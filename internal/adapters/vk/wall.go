package vk

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"relay/internal/core/normalize"
	perr "relay/internal/platform/errors"
)

type wallGetResponse struct {
	Items []normalize.WallPost `json:"items"`
}

// WallRecent reads the newest group wall posts. Without a user token the
// wall is not readable, so the call degrades to an empty batch.
func (c *Client) WallRecent(ctx context.Context, count int) ([]normalize.WallPost, error) {
	token := c.readToken()
	if token == "" {
		c.mu.Lock()
		warned := c.warnedNoReadToken
		c.warnedNoReadToken = true
		c.mu.Unlock()
		if !warned {
			c.log.Info().Msg("wall.get skipped, no user token configured")
		}
		return nil, nil
	}

	params := url.Values{}
	params.Set("owner_id", strconv.FormatInt(groupOwnerID(c.opts.GroupID), 10))
	params.Set("count", strconv.Itoa(count))
	raw, err := c.call(ctx, "wall.get", token, params)
	if err != nil {
		c.mu.Lock()
		warned := c.warnedWallGet
		c.warnedWallGet = true
		c.mu.Unlock()
		if !warned {
			c.log.Warn().Err(err).Msg("wall.get failed")
		}
		return nil, nil
	}
	var out wallGetResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "vk wall.get decode failed")
	}
	return out.Items, nil
}

type wallPostResponse struct {
	PostID int64 `json:"post_id"`
}

// PostWall publishes a message on the group wall. Some link attachments
// are rejected with link_photo_sizing_rule; those retry once bare.
func (c *Client) PostWall(ctx context.Context, message string, attachments []string) (int64, error) {
	params := url.Values{}
	params.Set("owner_id", strconv.FormatInt(groupOwnerID(c.opts.GroupID), 10))
	params.Set("from_group", "1")
	params.Set("message", message)
	if len(attachments) > 0 {
		params.Set("attachments", strings.Join(attachments, ","))
	}

	raw, err := c.call(ctx, "wall.post", c.opts.Token, params)
	if err != nil {
		if len(attachments) > 0 && strings.Contains(err.Error(), "link_photo_sizing_rule") {
			c.log.Warn().Msg("wall attachments rejected, retrying without them")
			params.Del("attachments")
			raw, err = c.call(ctx, "wall.post", c.opts.Token, params)
		}
		if err != nil {
			return 0, err
		}
	}
	var out wallPostResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return 0, perr.Wrapf(err, perr.ErrorCodeUnknown, "vk wall.post decode failed")
	}
	return out.PostID, nil
}
