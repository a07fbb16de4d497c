// Package telegram provides a Bot API client: channel publishing,
// moderation prompts and the update long poll
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	perr "relay/internal/platform/errors"
	"relay/internal/platform/logger"
)

const (
	baseURLDefault    = "https://api.telegram.org"
	defaultTimeout    = 90 * time.Second
	defaultRetryBase  = 500 * time.Millisecond
	defaultMaxElapsed = 60 * time.Second

	maxBodyBytes = 1 << 20
)

// Options configures the Client
type Options struct {
	Token   string
	OwnerID int64

	BaseURL string
	Timeout time.Duration

	// DryRun logs sends instead of performing them
	DryRun bool

	RetryBase  time.Duration
	MaxElapsed time.Duration
}

// Client is a Bot API client with rate-limit aware retries
type Client struct {
	http *http.Client
	opts Options
	log  logger.Logger
}

// NewClient creates a new Client with sane defaults
func NewClient(o Options) *Client {
	if o.BaseURL == "" {
		o.BaseURL = baseURLDefault
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.RetryBase <= 0 {
		o.RetryBase = defaultRetryBase
	}
	if o.MaxElapsed <= 0 {
		o.MaxElapsed = defaultMaxElapsed
	}
	return &Client{
		http: &http.Client{Timeout: o.Timeout},
		opts: o,
		log:  *logger.Named("telegram"),
	}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

// call invokes a bot method with a JSON payload, retrying transport
// errors, 5xx and 429 responses
func (c *Client) call(ctx context.Context, method string, payload any) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "telegram %s encode failed", method)
	}
	url := c.opts.BaseURL + "/bot" + c.opts.Token + "/" + method

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.opts.RetryBase
	bo.MaxElapsedTime = c.opts.MaxElapsed

	var out json.RawMessage
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(perr.Wrapf(err, perr.ErrorCodeUnknown, "telegram new request failed"))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return perr.Wrapf(err, perr.ErrorCodeUnavailable, "telegram %s transport failed", method)
		}
		raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		_ = resp.Body.Close()
		if err != nil {
			return perr.Wrapf(err, perr.ErrorCodeUnavailable, "telegram %s read failed", method)
		}

		var env apiResponse
		if derr := json.Unmarshal(raw, &env); derr != nil {
			if resp.StatusCode >= 500 {
				return perr.Newf(perr.ErrorCodeUnavailable, "telegram %s status %d", method, resp.StatusCode)
			}
			return backoff.Permanent(perr.Wrapf(derr, perr.ErrorCodeUnknown, "telegram %s decode failed", method))
		}
		if env.OK {
			out = env.Result
			return nil
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			after := time.Second
			if env.Parameters != nil && env.Parameters.RetryAfter > 0 {
				after = time.Duration(env.Parameters.RetryAfter) * time.Second
			}
			c.log.Warn().Dur("retry_after", after).Str("method", method).Msg("telegram rate limited")
			return backoff.RetryAfter(int(after / time.Second))
		}
		if resp.StatusCode >= 500 {
			return perr.Newf(perr.ErrorCodeUnavailable, "telegram %s status %d: %s", method, resp.StatusCode, env.Description)
		}
		return backoff.Permanent(perr.Newf(perr.ErrorCodeUnknown, "telegram %s failed: %s", method, env.Description))
	}
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return out, nil
}
