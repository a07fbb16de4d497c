// Package vk provides a VK API client: group longpoll, wall reads and
// wall publishing with photo uploads
package vk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	perr "relay/internal/platform/errors"
	"relay/internal/platform/logger"
)

const (
	apiURLDefault       = "https://api.vk.com/method"
	apiVersionDefault   = "5.199"
	defaultTimeout      = 30 * time.Second
	defaultLongpollWait = 25
	defaultRetryBase    = 500 * time.Millisecond
	defaultMaxElapsed   = 30 * time.Second

	maxBodyBytes = 1 << 20
)

// VK API error codes that are worth retrying
const (
	errCodeTooMany   = 6
	errCodeRateLimit = 29
)

// Options configures the Client
type Options struct {
	// Group access token, used for longpoll and publishing
	Token string
	// Optional user token, preferred for wall reads and photo uploads
	UserToken string
	GroupID   int64

	APIURL       string
	APIVersion   string
	Timeout      time.Duration
	LongpollWait int

	// Retry config for transient and rate limited responses
	RetryBase  time.Duration
	MaxElapsed time.Duration
}

// Client is a VK API client with rate-limit aware retries
type Client struct {
	http *http.Client
	opts Options
	log  logger.Logger

	mu       sync.Mutex
	lpServer string
	lpKey    string
	lpTS     string

	warnedNoReadToken bool
	warnedWallGet     bool
	warnedUploadBlock bool
}

// NewClient creates a new Client with sane defaults
func NewClient(o Options) *Client {
	if o.APIURL == "" {
		o.APIURL = apiURLDefault
	}
	if o.APIVersion == "" {
		o.APIVersion = apiVersionDefault
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.LongpollWait <= 0 {
		o.LongpollWait = defaultLongpollWait
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
		log:  *logger.Named("vk"),
	}
}

// APIError is a structured VK API error response
type APIError struct {
	Code int    `json:"error_code"`
	Msg  string `json:"error_msg"`
}

// Error interface
func (e *APIError) Error() string { return fmt.Sprintf("vk api error %d: %s", e.Code, e.Msg) }

func (e *APIError) retryable() bool {
	return e.Code == errCodeTooMany || e.Code == errCodeRateLimit
}

type apiEnvelope struct {
	Response json.RawMessage `json:"response"`
	Error    *APIError       `json:"error"`
}

// call invokes an API method with form-encoded params, retrying transport
// errors and rate limits. token falls back to the group token.
func (c *Client) call(ctx context.Context, method, token string, params url.Values) (json.RawMessage, error) {
	if strings.TrimSpace(token) == "" {
		token = c.opts.Token
	}
	form := url.Values{}
	for k, vs := range params {
		form[k] = vs
	}
	form.Set("v", c.opts.APIVersion)
	form.Set("access_token", token)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.opts.RetryBase
	bo.MaxElapsedTime = c.opts.MaxElapsed

	var out json.RawMessage
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.opts.APIURL+"/"+method, strings.NewReader(form.Encode()))
		if err != nil {
			return backoff.Permanent(perr.Wrapf(err, perr.ErrorCodeUnknown, "vk new request failed"))
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := c.http.Do(req)
		if err != nil {
			return perr.Wrapf(err, perr.ErrorCodeUnavailable, "vk %s transport failed", method)
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		_ = resp.Body.Close()
		if err != nil {
			return perr.Wrapf(err, perr.ErrorCodeUnavailable, "vk %s read failed", method)
		}
		if resp.StatusCode != http.StatusOK {
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return perr.Newf(perr.ErrorCodeUnavailable, "vk %s status %d", method, resp.StatusCode)
			}
			return backoff.Permanent(perr.Newf(perr.ErrorCodeUnknown,
				"vk %s status %d body %s", method, resp.StatusCode, string(body)))
		}

		var env apiEnvelope
		if err := json.Unmarshal(body, &env); err != nil {
			return backoff.Permanent(perr.Wrapf(err, perr.ErrorCodeUnknown, "vk %s decode failed", method))
		}
		if env.Error != nil {
			if env.Error.retryable() {
				c.log.Warn().Int("code", env.Error.Code).Str("method", method).Msg("vk rate limited retrying")
				return env.Error
			}
			return backoff.Permanent(env.Error)
		}
		out = env.Response
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) readToken() string { return strings.TrimSpace(c.opts.UserToken) }

func (c *Client) uploadToken() string {
	if t := c.readToken(); t != "" {
		return t
	}
	return c.opts.Token
}

func groupOwnerID(groupID int64) int64 {
	if groupID < 0 {
		return groupID
	}
	return -groupID
}
