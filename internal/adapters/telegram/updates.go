package telegram

import (
	"context"
	"encoding/json"

	perr "relay/internal/platform/errors"
	moddom "relay/internal/services/moderation/domain"
	watchdom "relay/internal/services/watch/domain"
)

type wireUser struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (u wireUser) actor() moddom.Actor {
	return moddom.Actor{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

type wireUpdate struct {
	UpdateID int64 `json:"update_id"`
	Callback *struct {
		ID   string   `json:"id"`
		Data string   `json:"data"`
		From wireUser `json:"from"`
	} `json:"callback_query"`
	Message *struct {
		MessageID int64 `json:"message_id"`
		Chat      struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		From wireUser `json:"from"`
		Text string   `json:"text"`
	} `json:"message"`
}

// Updates long-polls the bot API for callback presses and messages
func (c *Client) Updates(ctx context.Context, offset int64, timeoutSec int) ([]watchdom.Update, error) {
	payload := map[string]any{
		"timeout":         timeoutSec,
		"allowed_updates": []string{"callback_query", "message"},
	}
	if offset > 0 {
		payload["offset"] = offset
	}
	raw, err := c.call(ctx, "getUpdates", payload)
	if err != nil {
		return nil, err
	}
	var wire []wireUpdate
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "telegram updates decode failed")
	}
	out := make([]watchdom.Update, 0, len(wire))
	for _, w := range wire {
		u := watchdom.Update{ID: w.UpdateID}
		switch {
		case w.Callback != nil:
			u.Callback = &moddom.Callback{
				ID:   w.Callback.ID,
				Data: w.Callback.Data,
				From: w.Callback.From.actor(),
			}
		case w.Message != nil:
			u.Message = &watchdom.Message{
				ChatID: w.Message.Chat.ID,
				From:   w.Message.From.actor(),
				Text:   w.Message.Text,
			}
		default:
			continue
		}
		out = append(out, u)
	}
	return out, nil
}
