package vk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	perr "relay/internal/platform/errors"
)

// API rejects uploads for group tokens with this code
const errCodeGroupAuth = 27

type uploadServerResponse struct {
	UploadURL string `json:"upload_url"`
}

type uploadResult struct {
	Server int64  `json:"server"`
	Photo  string `json:"photo"`
	Hash   string `json:"hash"`
}

type savedPhoto struct {
	ID        int64  `json:"id"`
	OwnerID   int64  `json:"owner_id"`
	AccessKey string `json:"access_key"`
}

// UploadWallPhotos mirrors remote images into the group photo storage and
// returns wall attachment ids. Images that fail to upload are skipped;
// once the upload API reports a token without upload rights the rest of
// the batch is skipped too.
func (c *Client) UploadWallPhotos(ctx context.Context, urls []string, maxImages int) ([]string, error) {
	if maxImages > 0 && len(urls) > maxImages {
		urls = urls[:maxImages]
	}
	token := c.uploadToken()
	var attachments []string
	blocked := false
	for _, raw := range urls {
		src := strings.TrimSpace(raw)
		if src == "" || blocked {
			continue
		}
		att, err := c.uploadOne(ctx, token, src)
		if err != nil {
			if isUploadBlocked(err) {
				blocked = true
				c.mu.Lock()
				warned := c.warnedUploadBlock
				c.warnedUploadBlock = true
				c.mu.Unlock()
				if !warned {
					c.log.Warn().Msg("photo upload api unavailable for this token")
				}
				continue
			}
			c.log.Warn().Err(err).Str("url", src).Msg("image upload skipped")
			continue
		}
		attachments = append(attachments, att)
	}
	return attachments, nil
}

func (c *Client) uploadOne(ctx context.Context, token, src string) (string, error) {
	params := url.Values{}
	params.Set("group_id", strconv.FormatInt(absGroupID(c.opts.GroupID), 10))
	raw, err := c.call(ctx, "photos.getWallUploadServer", token, params)
	if err != nil {
		return "", err
	}
	var srv uploadServerResponse
	if err := json.Unmarshal(raw, &srv); err != nil {
		return "", perr.Wrapf(err, perr.ErrorCodeUnknown, "vk upload server decode failed")
	}
	if srv.UploadURL == "" {
		return "", perr.Newf(perr.ErrorCodeUnavailable, "vk upload url missing")
	}

	img, err := c.fetchImage(ctx, src)
	if err != nil {
		return "", err
	}
	up, err := c.postImage(ctx, srv.UploadURL, fileName(src), img)
	if err != nil {
		return "", err
	}

	save := url.Values{}
	save.Set("group_id", strconv.FormatInt(absGroupID(c.opts.GroupID), 10))
	save.Set("server", strconv.FormatInt(up.Server, 10))
	save.Set("photo", up.Photo)
	save.Set("hash", up.Hash)
	raw, err = c.call(ctx, "photos.saveWallPhoto", token, save)
	if err != nil {
		return "", err
	}
	var saved []savedPhoto
	if err := json.Unmarshal(raw, &saved); err != nil {
		return "", perr.Wrapf(err, perr.ErrorCodeUnknown, "vk save photo decode failed")
	}
	if len(saved) == 0 || saved[0].ID == 0 || saved[0].OwnerID == 0 {
		return "", perr.Newf(perr.ErrorCodeUnknown, "vk save photo returned no usable photo")
	}
	p := saved[0]
	if p.AccessKey != "" {
		return fmt.Sprintf("photo%d_%d_%s", p.OwnerID, p.ID, p.AccessKey), nil
	}
	return fmt.Sprintf("photo%d_%d", p.OwnerID, p.ID), nil
}

func (c *Client) fetchImage(ctx context.Context, src string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "image request failed")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "image fetch failed")
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, perr.Newf(perr.ErrorCodeUnavailable, "image fetch status %d", resp.StatusCode)
	}
	const maxImageBytes = 20 << 20
	return io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
}

func (c *Client) postImage(ctx context.Context, uploadURL, name string, data []byte) (uploadResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("photo", name)
	if err != nil {
		return uploadResult{}, perr.Wrapf(err, perr.ErrorCodeUnknown, "multipart build failed")
	}
	if _, err := fw.Write(data); err != nil {
		return uploadResult{}, perr.Wrapf(err, perr.ErrorCodeUnknown, "multipart write failed")
	}
	if err := mw.Close(); err != nil {
		return uploadResult{}, perr.Wrapf(err, perr.ErrorCodeUnknown, "multipart close failed")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, &buf)
	if err != nil {
		return uploadResult{}, perr.Wrapf(err, perr.ErrorCodeUnknown, "upload request failed")
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := c.http.Do(req)
	if err != nil {
		return uploadResult{}, perr.Wrapf(err, perr.ErrorCodeUnavailable, "upload post failed")
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	_ = resp.Body.Close()
	if err != nil {
		return uploadResult{}, perr.Wrapf(err, perr.ErrorCodeUnavailable, "upload read failed")
	}
	if resp.StatusCode != http.StatusOK {
		return uploadResult{}, perr.Newf(perr.ErrorCodeUnavailable, "upload status %d", resp.StatusCode)
	}
	var out uploadResult
	if err := json.Unmarshal(body, &out); err != nil {
		return uploadResult{}, perr.Wrapf(err, perr.ErrorCodeUnknown, "upload decode failed")
	}
	return out, nil
}

func isUploadBlocked(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == errCodeGroupAuth
	}
	return strings.Contains(err.Error(), "method is unavailable with group auth")
}

func fileName(src string) string {
	if i := strings.LastIndex(src, "/"); i >= 0 && i+1 < len(src) {
		return src[i+1:]
	}
	return "image.jpg"
}

func absGroupID(id int64) int64 {
	if id < 0 {
		return -id
	}
	return id
}
