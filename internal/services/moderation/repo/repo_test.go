package repo

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"relay/internal/core/content"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func wallPayload(id int64) content.Payload {
	return content.Payload{
		Kind:    content.KindWallPost,
		PostID:  id,
		OwnerID: -123,
		Text:    "text",
		Link:    fmt.Sprintf("https://vk.com/wall-123_%d", id),
	}
}

func TestMarkPendingAndTokens(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTestStore(t)
	p := wallPayload(1)

	if err := s.MarkPending(ctx, p.Key(), "h1", "tok-1", p); err != nil {
		t.Fatalf("MarkPending: %v", err)
	}
	rec, ok := s.Get(ctx, "wall:1")
	if !ok || rec.Status != StatusPending || rec.Hash != "h1" {
		t.Fatalf("record = %+v ok=%v", rec, ok)
	}
	if key, ok := s.ByToken(ctx, "tok-1"); !ok || key != "wall:1" {
		t.Fatalf("ByToken = %q %v", key, ok)
	}

	// a new revision drops the previous token
	if err := s.MarkPending(ctx, p.Key(), "h2", "tok-2", p); err != nil {
		t.Fatalf("MarkPending: %v", err)
	}
	if _, ok := s.ByToken(ctx, "tok-1"); ok {
		t.Fatal("old token must be dropped")
	}
	if key, ok := s.ByToken(ctx, "tok-2"); !ok || key != "wall:1" {
		t.Fatalf("ByToken = %q %v", key, ok)
	}
}

func TestMarkPendingWithoutTokenIsAuto(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTestStore(t)
	p := wallPayload(2)

	if err := s.MarkPending(ctx, p.Key(), "h", "", p); err != nil {
		t.Fatalf("MarkPending: %v", err)
	}
	rec, _ := s.Get(ctx, "wall:2")
	if rec.Status != StatusAuto {
		t.Fatalf("status = %q", rec.Status)
	}
}

func TestShouldSkip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTestStore(t)
	p := wallPayload(3)
	key := p.Key()

	if s.ShouldSkip(ctx, key, "h") {
		t.Fatal("unknown key must not skip")
	}
	if err := s.MarkPending(ctx, key, "h", "tok", p); err != nil {
		t.Fatal(err)
	}
	if !s.ShouldSkip(ctx, key, "h") {
		t.Fatal("pending with same hash must skip")
	}
	if s.ShouldSkip(ctx, key, "other") {
		t.Fatal("different hash must not skip")
	}

	if err := s.MarkPublished(ctx, key, []int64{10}, 0, "tg"); err != nil {
		t.Fatal(err)
	}
	if !s.ShouldSkip(ctx, key, "h") {
		t.Fatal("published variant must skip")
	}
}

func TestSettleAndPublish(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTestStore(t)
	p := wallPayload(4)
	key := p.Key()

	if err := s.MarkPending(ctx, key, "h", "tok", p); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkApproved(ctx, key); err != nil {
		t.Fatal(err)
	}
	rec, _ := s.Get(ctx, key)
	if rec.Status != StatusApproved {
		t.Fatalf("status = %q", rec.Status)
	}
	if _, ok := s.ByToken(ctx, "tok"); ok {
		t.Fatal("approve must drop the token")
	}

	if err := s.MarkPublished(ctx, key, []int64{1, 2}, 77, "both"); err != nil {
		t.Fatal(err)
	}
	rec, _ = s.Get(ctx, key)
	if rec.Status != "published_both" || !rec.Status.Published() {
		t.Fatalf("status = %q", rec.Status)
	}
	if len(rec.ChannelMessages) != 2 || rec.VKPostID != 77 {
		t.Fatalf("record = %+v", rec)
	}
}

func TestModerationMessages(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTestStore(t)
	p := wallPayload(5)
	key := p.Key()

	if err := s.MarkPending(ctx, key, "h", "tok", p); err != nil {
		t.Fatal(err)
	}
	byChat := map[int64][]int64{100: {1, 2}, 200: {3}}
	if err := s.SetModerationMessages(ctx, key, byChat); err != nil {
		t.Fatal(err)
	}
	got := s.ModerationMessages(ctx, key)
	if len(got) != 2 || len(got[100]) != 2 || got[200][0] != 3 {
		t.Fatalf("messages = %v", got)
	}
	if err := s.ClearModerationMessages(ctx, key); err != nil {
		t.Fatal(err)
	}
	if got := s.ModerationMessages(ctx, key); got != nil {
		t.Fatalf("messages not cleared: %v", got)
	}
}

func TestLatestWallEntry(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openTestStore(t)

	if _, _, ok := s.LatestWallEntry(ctx); ok {
		t.Fatal("empty store must report no entry")
	}

	for i := int64(1); i <= 3; i++ {
		p := wallPayload(i)
		if err := s.MarkPending(ctx, p.Key(), fmt.Sprintf("h%d", i), "", p); err != nil {
			t.Fatal(err)
		}
	}
	news := content.Payload{Kind: content.KindSiteNews, URL: "https://site/news/1/", Text: "x"}
	if err := s.MarkPending(ctx, news.Key(), "hn", "", news); err != nil {
		t.Fatal(err)
	}

	key, rec, ok := s.LatestWallEntry(ctx)
	if !ok || key != "wall:3" || rec.Payload.PostID != 3 {
		t.Fatalf("latest = %q %+v ok=%v", key, rec, ok)
	}
}

func TestCursorPersists(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if s.Cursor(ctx) != "" {
		t.Fatal("fresh store must have no cursor")
	}
	if err := s.SetCursor(ctx, "171234"); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := reopened.Cursor(ctx); got != "171234" {
		t.Fatalf("cursor = %q", got)
	}
}

func TestSeenCap(t *testing.T) {
	t.Parallel()

	st := State{}
	st.ensure()
	for i := 0; i < maxSeen+50; i++ {
		appendSeen(&st, fmt.Sprintf("wall:%d", i))
	}
	if len(st.Seen) != maxSeen {
		t.Fatalf("seen = %d, want %d", len(st.Seen), maxSeen)
	}
	if st.Seen[0] != "wall:50" {
		t.Fatalf("oldest not evicted: %s", st.Seen[0])
	}
}
