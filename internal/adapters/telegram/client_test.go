package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	pubdom "relay/internal/services/publish/domain"
)

func testClient(t *testing.T, h http.Handler, mut func(*Options)) *Client {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	opts := Options{
		Token:     "bot-token",
		OwnerID:   100,
		BaseURL:   ts.URL,
		RetryBase: time.Millisecond,
		Timeout:   5 * time.Second,
	}
	if mut != nil {
		mut(&opts)
	}
	return NewClient(opts)
}

func decodePayload(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	body, err := io.ReadAll(r.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	return out
}

func TestSendTextPayload(t *testing.T) {
	t.Parallel()

	var got map[string]any
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/botbot-token/sendMessage") {
			t.Errorf("path = %s", r.URL.Path)
		}
		got = decodePayload(t, r)
		fmt.Fprint(w, `{"ok":true,"result":{"message_id":12}}`)
	}), nil)

	kb := pubdom.Keyboard{{{Text: "✈️ TG", Data: "post:tg:tok"}}}
	id, err := c.SendText(context.Background(), "-1001234", "<b>привет</b>", pubdom.SendOpts{Keyboard: kb})
	if err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if id != 12 {
		t.Fatalf("message id = %d", id)
	}
	if got["chat_id"] != float64(-1001234) {
		t.Fatalf("chat_id = %v", got["chat_id"])
	}
	if got["parse_mode"] != "HTML" || got["disable_web_page_preview"] != true {
		t.Fatalf("payload = %v", got)
	}
	markup, _ := got["reply_markup"].(map[string]any)
	if markup == nil || markup["inline_keyboard"] == nil {
		t.Fatalf("reply_markup = %v", got["reply_markup"])
	}
}

func TestSendTextPlainSkipsParseMode(t *testing.T) {
	t.Parallel()

	var got map[string]any
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = decodePayload(t, r)
		fmt.Fprint(w, `{"ok":true,"result":{"message_id":1}}`)
	}), nil)

	if _, err := c.SendText(context.Background(), "@chan", "текст", pubdom.SendOpts{Plain: true}); err != nil {
		t.Fatal(err)
	}
	if _, has := got["parse_mode"]; has {
		t.Fatalf("plain send must not set parse_mode: %v", got)
	}
	if got["chat_id"] != "@chan" {
		t.Fatalf("chat_id = %v", got["chat_id"])
	}
}

func TestTransientErrorsRetry(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	calls := 0
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			w.WriteHeader(http.StatusBadGateway)
			fmt.Fprint(w, `{"ok":false,"description":"bad gateway"}`)
			return
		}
		fmt.Fprint(w, `{"ok":true,"result":{"message_id":3}}`)
	}), nil)

	id, err := c.SendText(context.Background(), "1", "x", pubdom.SendOpts{})
	if err != nil || id != 3 {
		t.Fatalf("got %d, %v", id, err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d", calls)
	}
}

func TestSendMediaGroup(t *testing.T) {
	t.Parallel()

	var got map[string]any
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = decodePayload(t, r)
		fmt.Fprint(w, `{"ok":true,"result":[{"message_id":5},{"message_id":6}]}`)
	}), nil)

	ids, err := c.SendMediaGroup(context.Background(), "1", []pubdom.MediaItem{
		{Kind: "photo", URL: "https://a/1.jpg", Caption: "<b>заголовок</b>", HTML: true},
		{Kind: "photo", URL: "https://a/2.jpg"},
	})
	if err != nil {
		t.Fatalf("SendMediaGroup: %v", err)
	}
	if len(ids) != 2 || ids[0] != 5 || ids[1] != 6 {
		t.Fatalf("ids = %v", ids)
	}
	media, _ := got["media"].([]any)
	if len(media) != 2 {
		t.Fatalf("media = %v", got["media"])
	}
	first, _ := media[0].(map[string]any)
	if first["caption"] == nil || first["parse_mode"] != "HTML" {
		t.Fatalf("first item = %v", first)
	}
	second, _ := media[1].(map[string]any)
	if _, has := second["caption"]; has {
		t.Fatalf("second item = %v", second)
	}
}

func TestDeleteMessagesCountsSuccesses(t *testing.T) {
	t.Parallel()

	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := decodePayload(t, r)
		if got["message_id"] == float64(2) {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"ok":false,"description":"message to delete not found"}`)
			return
		}
		fmt.Fprint(w, `{"ok":true,"result":true}`)
	}), nil)

	if n := c.DeleteMessages(context.Background(), "1", []int64{1, 2, 3}); n != 2 {
		t.Fatalf("deleted = %d", n)
	}
}

func TestUpdatesDecoding(t *testing.T) {
	t.Parallel()

	var got map[string]any
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = decodePayload(t, r)
		fmt.Fprint(w, `{"ok":true,"result":[
			{"update_id":7,"callback_query":{"id":"cb1","data":"post:tg:tok",
				"from":{"id":200,"username":"mod"}}},
			{"update_id":8,"message":{"message_id":1,"chat":{"id":100},
				"from":{"id":100,"first_name":"Иван"},"text":"обновить посты"}},
			{"update_id":9}
		]}`)
	}), nil)

	ups, err := c.Updates(context.Background(), 5, 20)
	if err != nil {
		t.Fatalf("Updates: %v", err)
	}
	if got["offset"] != float64(5) || got["timeout"] != float64(20) {
		t.Fatalf("payload = %v", got)
	}
	if len(ups) != 2 {
		t.Fatalf("updates = %+v", ups)
	}
	if ups[0].Callback == nil || ups[0].Callback.Data != "post:tg:tok" || ups[0].Callback.From.ID != 200 {
		t.Fatalf("callback = %+v", ups[0].Callback)
	}
	if ups[1].Message == nil || ups[1].Message.Text != "обновить посты" || ups[1].Message.ChatID != 100 {
		t.Fatalf("message = %+v", ups[1].Message)
	}
}

func TestDryRunSendsNothing(t *testing.T) {
	t.Parallel()

	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("dry run must not hit the API for sends")
	}), func(o *Options) { o.DryRun = true })

	if id, err := c.SendText(context.Background(), "1", "x", pubdom.SendOpts{}); err != nil || id != 0 {
		t.Fatalf("got %d, %v", id, err)
	}
	if ids, err := c.SendMediaGroup(context.Background(), "1", []pubdom.MediaItem{{URL: "u"}}); err != nil || ids != nil {
		t.Fatalf("got %v, %v", ids, err)
	}
	if id, err := c.SendPoll(context.Background(), "1", "q", []string{"a", "b"}, true); err != nil || id != 0 {
		t.Fatalf("got %d, %v", id, err)
	}
	if err := c.NotifyOwner(context.Background(), "x", nil); err != nil {
		t.Fatalf("NotifyOwner: %v", err)
	}
}
