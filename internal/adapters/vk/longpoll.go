package vk

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"relay/internal/core/normalize"
	perr "relay/internal/platform/errors"
)

type lpServerInfo struct {
	Server string `json:"server"`
	Key    string `json:"key"`
	TS     string `json:"ts"`
}

type lpUpdate struct {
	Type   string          `json:"type"`
	Object json.RawMessage `json:"object"`
}

type lpResponse struct {
	Failed  int        `json:"failed"`
	TS      string     `json:"ts"`
	Updates []lpUpdate `json:"updates"`
}

func (c *Client) refreshLongpollServer(ctx context.Context) error {
	params := url.Values{}
	params.Set("group_id", strconv.FormatInt(c.opts.GroupID, 10))
	raw, err := c.call(ctx, "groups.getLongPollServer", c.opts.Token, params)
	if err != nil {
		return err
	}
	var info lpServerInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnknown, "vk longpoll server decode failed")
	}
	if info.Server == "" || info.Key == "" {
		return perr.Newf(perr.ErrorCodeUnavailable, "vk longpoll server response incomplete")
	}
	c.mu.Lock()
	c.lpServer, c.lpKey, c.lpTS = info.Server, info.Key, info.TS
	c.mu.Unlock()
	c.log.Info().Str("server", info.Server).Msg("longpoll server updated")
	return nil
}

// Poll waits for wall events. cursor is the last confirmed ts; an empty
// cursor starts from the server's current position. A server-side timeout
// returns the same cursor with no posts.
func (c *Client) Poll(ctx context.Context, cursor string) (string, []normalize.WallPost, error) {
	c.mu.Lock()
	server, key, ts := c.lpServer, c.lpKey, c.lpTS
	c.mu.Unlock()
	if server == "" || key == "" {
		if err := c.refreshLongpollServer(ctx); err != nil {
			return cursor, nil, err
		}
		c.mu.Lock()
		server, key, ts = c.lpServer, c.lpKey, c.lpTS
		c.mu.Unlock()
	}
	if cursor != "" {
		ts = cursor
	}

	endpoint := server
	if !strings.HasPrefix(endpoint, "http") {
		endpoint = "https://" + endpoint
	}
	q := url.Values{}
	q.Set("act", "a_check")
	q.Set("key", key)
	q.Set("ts", ts)
	q.Set("wait", strconv.Itoa(c.opts.LongpollWait))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return ts, nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "vk longpoll request failed")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		// the host may have rotated, pick up a fresh one before the retry
		if rerr := c.refreshLongpollServer(ctx); rerr != nil {
			c.log.Warn().Err(rerr).Msg("longpoll server refresh failed")
		}
		return ts, nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "vk longpoll transport failed")
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	_ = resp.Body.Close()
	if err != nil {
		return ts, nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "vk longpoll read failed")
	}
	if resp.StatusCode != http.StatusOK {
		return ts, nil, perr.Newf(perr.ErrorCodeUnavailable, "vk longpoll status %d", resp.StatusCode)
	}

	var out lpResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return ts, nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "vk longpoll decode failed")
	}
	switch out.Failed {
	case 0:
	case 1, 2:
		// history is out of sync, resume from the ts the server suggests
		next := out.TS
		if next == "" {
			next = ts
		}
		c.setTS(next)
		return next, nil, nil
	default:
		if err := c.refreshLongpollServer(ctx); err != nil {
			return ts, nil, err
		}
		c.mu.Lock()
		next := c.lpTS
		c.mu.Unlock()
		return next, nil, nil
	}

	next := out.TS
	if next == "" {
		next = ts
	}
	c.setTS(next)

	var posts []normalize.WallPost
	for _, u := range out.Updates {
		if u.Type != "wall_post_new" && u.Type != "wall_post_edit" {
			continue
		}
		var post normalize.WallPost
		if err := json.Unmarshal(u.Object, &post); err != nil {
			c.log.Warn().Err(err).Str("type", u.Type).Msg("wall event decode failed")
			continue
		}
		posts = append(posts, post)
	}
	return next, posts, nil
}

func (c *Client) setTS(ts string) {
	c.mu.Lock()
	c.lpTS = ts
	c.mu.Unlock()
}
