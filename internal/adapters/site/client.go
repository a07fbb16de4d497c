// Package site scrapes the faculty site: the alumni events feed and
// article detail pages
package site

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"

	"relay/internal/core/normalize"
	perr "relay/internal/platform/errors"
	"relay/internal/platform/logger"
)

const (
	defaultTimeout    = 30 * time.Second
	imageProbeTimeout = 10 * time.Second
	maxDetailImages   = 10
	maxPageBytes      = 4 << 20
)

// Options configures the Client
type Options struct {
	// BaseURL without a trailing slash, e.g. https://www.econ.msu.ru
	BaseURL  string
	NewsPath string
	Timeout  time.Duration
}

// Client reads the news feed and article pages
type Client struct {
	http *http.Client
	opts Options
	log  logger.Logger
}

// NewClient creates a new Client with sane defaults
func NewClient(o Options) *Client {
	o.BaseURL = strings.TrimRight(o.BaseURL, "/")
	if o.NewsPath == "" {
		o.NewsPath = "/alumni/"
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	return &Client{
		http: &http.Client{Timeout: o.Timeout},
		opts: o,
		log:  *logger.Named("site"),
	}
}

// LatestNews returns the newest feed entry, or nil when the page carries
// no recognizable news block
func (c *Client) LatestNews(ctx context.Context) (*normalize.NewsItem, error) {
	doc, raw, err := c.fetchPage(ctx, c.opts.BaseURL+c.opts.NewsPath)
	if err != nil {
		return nil, err
	}

	items := parseFeed(raw)
	if len(items) == 0 {
		items = parseLegacyFeed(doc)
	}
	if len(items) == 0 {
		c.log.Warn().Msg("no news block found on feed page")
		return nil, nil
	}
	first := items[0]
	item := &normalize.NewsItem{
		URL:      absURL(c.opts.BaseURL, first.href),
		Title:    first.title,
		Date:     first.date,
		IsDigest: isDigestTitle(first.title),
	}
	return item, nil
}

// NewsDetail scrapes an article page: main-block text, candidate images
// verified by a content-type probe. title drives digest cleanup.
func (c *Client) NewsDetail(ctx context.Context, url, title string) (normalize.NewsDetail, error) {
	doc, _, err := c.fetchPage(ctx, url)
	if err != nil {
		return normalize.NewsDetail{}, err
	}

	block := mainBlock(doc)
	isDigest := isDigestTitle(title)
	text := cleanText(extractText(block), title, isDigest)

	var candidates []string
	for _, src := range collectImages(block) {
		if !c.isCandidateImage(src) {
			continue
		}
		candidates = append(candidates, absURL(c.opts.BaseURL, src))
	}
	images := c.filterImages(ctx, dedup(candidates))
	if isDigest && len(images) > 1 {
		images = images[:1]
	}

	return normalize.NewsDetail{
		Text:     text,
		Images:   images,
		IsDigest: isDigest,
	}, nil
}

func (c *Client) fetchPage(ctx context.Context, url string) (*html.Node, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", perr.Wrapf(err, perr.ErrorCodeUnknown, "site request failed")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, "", perr.Wrapf(err, perr.ErrorCodeUnavailable, "site fetch failed: %s", url)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, "", perr.Newf(perr.ErrorCodeUnavailable, "site fetch status %d: %s", resp.StatusCode, url)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, "", perr.Wrapf(err, perr.ErrorCodeUnavailable, "site read failed: %s", url)
	}
	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return nil, "", perr.Wrapf(err, perr.ErrorCodeUnknown, "site parse failed: %s", url)
	}
	return doc, string(body), nil
}

// isCandidateImage accepts site-hosted images by extension plus raw.php
// download links
func (c *Client) isCandidateImage(src string) bool {
	if strings.Contains(src, "raw.php") {
		return true
	}
	lower := strings.ToLower(src)
	ok := false
	for _, ext := range []string{".jpg", ".jpeg", ".png", ".webp", ".gif"} {
		if strings.HasSuffix(lower, ext) {
			ok = true
			break
		}
	}
	if !ok {
		return false
	}
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		return strings.HasPrefix(src, c.opts.BaseURL)
	}
	return true
}

// filterImages keeps URLs that actually serve an image, probing at most
// twice the result budget
func (c *Client) filterImages(ctx context.Context, urls []string) []string {
	var good []string
	checks := 0
	for _, url := range urls {
		if len(good) >= maxDetailImages || checks >= maxDetailImages*2 {
			break
		}
		checks++
		if c.probeImage(ctx, url) {
			good = append(good, url)
		}
	}
	return good
}

func (c *Client) probeImage(ctx context.Context, url string) bool {
	probeCtx, cancel := context.WithTimeout(ctx, imageProbeTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str("url", url).Msg("image probe failed")
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1))
	if resp.StatusCode >= 300 || !strings.HasPrefix(resp.Header.Get("Content-Type"), "image") {
		c.log.Warn().Int("status", resp.StatusCode).Str("url", url).Msg("image probe rejected")
		return false
	}
	return true
}

func isDigestTitle(title string) bool {
	return strings.Contains(strings.ToLower(title), "дайджест")
}

func absURL(base, url string) string {
	switch {
	case strings.HasPrefix(url, "http://"), strings.HasPrefix(url, "https://"):
		return url
	case strings.HasPrefix(url, "//"):
		return "https:" + url
	case strings.HasPrefix(url, "/"):
		return base + url
	default:
		return base + "/" + url
	}
}

func dedup(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	var out []string
	for _, v := range in {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
