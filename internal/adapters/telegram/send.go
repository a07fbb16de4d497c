package telegram

import (
	"context"
	"encoding/json"
	"strconv"

	perr "relay/internal/platform/errors"
	pubdom "relay/internal/services/publish/domain"
)

type inlineButton struct {
	Text string `json:"text"`
	Data string `json:"callback_data"`
}

type inlineKeyboard struct {
	Rows [][]inlineButton `json:"inline_keyboard"`
}

func keyboardMarkup(kb pubdom.Keyboard) *inlineKeyboard {
	if len(kb) == 0 {
		return nil
	}
	rows := make([][]inlineButton, 0, len(kb))
	for _, row := range kb {
		out := make([]inlineButton, 0, len(row))
		for _, b := range row {
			out = append(out, inlineButton{Text: b.Text, Data: b.Data})
		}
		rows = append(rows, out)
	}
	return &inlineKeyboard{Rows: rows}
}

type sentMessage struct {
	MessageID int64 `json:"message_id"`
}

func chatValue(chat string) any {
	if id, err := strconv.ParseInt(chat, 10, 64); err == nil {
		return id
	}
	return chat
}

// SendText delivers a message, HTML parse mode and disabled link preview
// unless opts say otherwise
func (c *Client) SendText(ctx context.Context, chat, text string, opts pubdom.SendOpts) (int64, error) {
	if c.opts.DryRun {
		c.log.Info().Str("chat", chat).Int("len", len(text)).Msg("dry run, text not sent")
		return 0, nil
	}
	payload := map[string]any{
		"chat_id":                  chatValue(chat),
		"text":                     text,
		"disable_web_page_preview": !opts.Preview,
	}
	if !opts.Plain {
		payload["parse_mode"] = "HTML"
	}
	if kb := keyboardMarkup(opts.Keyboard); kb != nil {
		payload["reply_markup"] = kb
	}
	raw, err := c.call(ctx, "sendMessage", payload)
	if err != nil {
		return 0, err
	}
	return messageID(raw)
}

// SendPhoto delivers a photo by URL with an HTML caption
func (c *Client) SendPhoto(ctx context.Context, chat, photoURL, caption string) (int64, error) {
	if c.opts.DryRun {
		c.log.Info().Str("chat", chat).Str("photo", photoURL).Msg("dry run, photo not sent")
		return 0, nil
	}
	payload := map[string]any{
		"chat_id": chatValue(chat),
		"photo":   photoURL,
	}
	if caption != "" {
		payload["caption"] = caption
		payload["parse_mode"] = "HTML"
	}
	raw, err := c.call(ctx, "sendPhoto", payload)
	if err != nil {
		return 0, err
	}
	return messageID(raw)
}

// SendMediaGroup delivers an album; each item carries its own caption
func (c *Client) SendMediaGroup(ctx context.Context, chat string, items []pubdom.MediaItem) ([]int64, error) {
	if c.opts.DryRun {
		c.log.Info().Str("chat", chat).Int("items", len(items)).Msg("dry run, media group not sent")
		return nil, nil
	}
	media := make([]map[string]any, 0, len(items))
	for _, it := range items {
		m := map[string]any{
			"type":  "photo",
			"media": it.URL,
		}
		if it.Caption != "" {
			m["caption"] = it.Caption
			if it.HTML {
				m["parse_mode"] = "HTML"
			}
		}
		media = append(media, m)
	}
	raw, err := c.call(ctx, "sendMediaGroup", map[string]any{
		"chat_id": chatValue(chat),
		"media":   media,
	})
	if err != nil {
		return nil, err
	}
	var sent []sentMessage
	if err := json.Unmarshal(raw, &sent); err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "telegram media group decode failed")
	}
	ids := make([]int64, 0, len(sent))
	for _, m := range sent {
		ids = append(ids, m.MessageID)
	}
	return ids, nil
}

// SendPoll delivers a native poll
func (c *Client) SendPoll(ctx context.Context, chat, question string, options []string, anonymous bool) (int64, error) {
	if c.opts.DryRun {
		c.log.Info().Str("chat", chat).Msg("dry run, poll not sent")
		return 0, nil
	}
	raw, err := c.call(ctx, "sendPoll", map[string]any{
		"chat_id":      chatValue(chat),
		"question":     question,
		"options":      options,
		"is_anonymous": anonymous,
	})
	if err != nil {
		return 0, err
	}
	return messageID(raw)
}

// DeleteMessages removes messages one by one and reports how many went
// away; failures are logged and skipped
func (c *Client) DeleteMessages(ctx context.Context, chat string, ids []int64) int {
	deleted := 0
	for _, id := range ids {
		_, err := c.call(ctx, "deleteMessage", map[string]any{
			"chat_id":    chatValue(chat),
			"message_id": id,
		})
		if err != nil {
			c.log.Warn().Err(err).Str("chat", chat).Int64("message", id).Msg("delete failed")
			continue
		}
		deleted++
	}
	return deleted
}

// AnswerCallback acknowledges a button press
func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string) error {
	payload := map[string]any{"callback_query_id": callbackID}
	if text != "" {
		payload["text"] = text
	}
	_, err := c.call(ctx, "answerCallbackQuery", payload)
	return err
}

// NotifyOwner messages the operator chat; dry run still delivers so the
// operator sees what would have been published
func (c *Client) NotifyOwner(ctx context.Context, text string, kb pubdom.Keyboard) error {
	if c.opts.DryRun {
		c.log.Info().Int64("chat", c.opts.OwnerID).Int("len", len(text)).Msg("dry run, owner notice not sent")
		return nil
	}
	payload := map[string]any{
		"chat_id":                  c.opts.OwnerID,
		"text":                     text,
		"disable_web_page_preview": true,
	}
	if markup := keyboardMarkup(kb); markup != nil {
		payload["reply_markup"] = markup
	}
	_, err := c.call(ctx, "sendMessage", payload)
	return err
}

func messageID(raw json.RawMessage) (int64, error) {
	var m sentMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return 0, perr.Wrapf(err, perr.ErrorCodeUnknown, "telegram message decode failed")
	}
	return m.MessageID, nil
}
