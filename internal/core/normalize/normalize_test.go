package normalize

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestBestPhotoURL(t *testing.T) {
	t.Parallel()

	t.Run("largest area wins", func(t *testing.T) {
		p := &Photo{Sizes: []PhotoSize{
			{Type: "s", URL: "https://img/s.jpg", Width: 75, Height: 50},
			{Type: "z", URL: "https://img/z.jpg", Width: 1280, Height: 720},
			{Type: "x", URL: "https://img/x.jpg", Width: 604, Height: 340},
		}}
		if got := BestPhotoURL(p); got != "https://img/z.jpg" {
			t.Fatalf("got %q", got)
		}
	})

	t.Run("size class breaks zero dimensions", func(t *testing.T) {
		p := &Photo{Sizes: []PhotoSize{
			{Type: "m", URL: "https://img/m.jpg"},
			{Type: "w", URL: "https://img/w.jpg"},
			{Type: "y", URL: "https://img/y.jpg"},
		}}
		if got := BestPhotoURL(p); got != "https://img/w.jpg" {
			t.Fatalf("got %q", got)
		}
	})

	t.Run("orig photo beats sized variants", func(t *testing.T) {
		p := &Photo{
			Sizes: []PhotoSize{{Type: "z", URL: "https://img/z.jpg", Width: 1280, Height: 720}},
			Orig:  &PhotoSize{URL: "https://img/orig.jpg"},
		}
		if got := BestPhotoURL(p); got != "https://img/orig.jpg" {
			t.Fatalf("got %q", got)
		}
	})

	t.Run("flat legacy keys", func(t *testing.T) {
		p := &Photo{Extra: map[string]string{
			"src":       "https://img/src.jpg",
			"src_xxbig": "https://img/xxbig.jpg",
			"photo_604": "https://img/604.jpg",
		}}
		if got := BestPhotoURL(p); got != "https://img/xxbig.jpg" {
			t.Fatalf("got %q", got)
		}
	})

	t.Run("nil and empty", func(t *testing.T) {
		if BestPhotoURL(nil) != "" || BestPhotoURL(&Photo{}) != "" {
			t.Fatal("expected empty URL")
		}
	})
}

func TestAttachmentDecode(t *testing.T) {
	t.Parallel()

	raw := `[
		{"type":"photo","photo":{"sizes":[{"type":"x","url":"https://img/x.jpg","width":604,"height":340}]}},
		{"type":"video","video":{"id":7,"owner_id":-55}},
		{"type":"link","link":{"url":"https://example.org","title":"site"}},
		{"type":"poll","poll":{"question":"q?","answers":[{"text":"да"},{"text":"нет"}]}},
		{"type":"sticker","sticker":{"url":"https://stick"}}
	]`
	var atts []Attachment
	if err := json.Unmarshal([]byte(raw), &atts); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if atts[0].Photo == nil || len(atts[0].Photo.Sizes) != 1 {
		t.Fatal("photo not decoded")
	}
	if atts[1].Video == nil || *atts[1].Video.OwnerID != -55 {
		t.Fatal("video not decoded")
	}
	if atts[2].Link == nil || atts[2].Link.URL != "https://example.org" {
		t.Fatal("link not decoded")
	}
	if atts[3].Poll == nil || len(atts[3].Poll.Answers) != 2 {
		t.Fatal("poll not decoded")
	}
	if atts[4].Generic == nil || atts[4].Generic.URL != "https://stick" {
		t.Fatal("generic attachment not decoded")
	}
}

func TestWall(t *testing.T) {
	t.Parallel()

	t.Run("repost flatten and extras dedup", func(t *testing.T) {
		link := Attachment{Type: "link", Link: &LinkAttachment{URL: "https://example.org/a"}}
		post := WallPost{
			ID: 10, OwnerID: -123, Text: "родной текст",
			Attachments: []Attachment{link},
			CopyHistory: []WallPost{
				{Text: "первый источник", Attachments: []Attachment{link}},
				{Text: "второй источник"},
			},
		}
		got, err := Wall(post)
		if err != nil {
			t.Fatalf("Wall: %v", err)
		}
		if !strings.Contains(got.Text, "[Перепост]:\nпервый источник") {
			t.Fatalf("first repost prefix missing:\n%s", got.Text)
		}
		if !strings.Contains(got.Text, "[Перепост #2]:\nвторой источник") {
			t.Fatalf("second repost prefix missing:\n%s", got.Text)
		}
		if strings.Count(got.Text, "Ссылка: https://example.org/a") != 1 {
			t.Fatalf("extra line not deduplicated:\n%s", got.Text)
		}
		if got.Link != "https://vk.com/wall-123_10" {
			t.Fatalf("permalink = %q", got.Link)
		}
		if got.Key() != "wall:10" {
			t.Fatalf("key = %q", got.Key())
		}
	})

	t.Run("media dedup by url", func(t *testing.T) {
		photo := &Photo{Sizes: []PhotoSize{{Type: "z", URL: "https://img/one.jpg", Width: 100, Height: 100}}}
		post := WallPost{
			ID: 1, OwnerID: -1, Text: "x",
			Attachments: []Attachment{
				{Type: "photo", Photo: photo},
				{Type: "photo", Photo: photo},
			},
		}
		got, err := Wall(post)
		if err != nil {
			t.Fatalf("Wall: %v", err)
		}
		if len(got.Media) != 1 {
			t.Fatalf("media = %v", got.Media)
		}
	})

	t.Run("poll defaults anonymous", func(t *testing.T) {
		post := WallPost{
			ID: 2, OwnerID: -1, Text: "опрос",
			Attachments: []Attachment{{Type: "poll", Poll: &PollAttachment{
				Question: "вопрос?",
				Answers:  []struct{ Text string `json:"text"` }{{Text: "да"}, {Text: "нет"}},
			}}},
		}
		got, err := Wall(post)
		if err != nil {
			t.Fatalf("Wall: %v", err)
		}
		if got.Poll == nil || !got.Poll.Anonymous || len(got.Poll.Options) != 2 {
			t.Fatalf("poll = %+v", got.Poll)
		}
	})
}

func TestRewriteMarkup(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name, in, want string
	}{
		{"explicit url part", "см. [club1|Клуб|https://vk.com/club1]", "см. https://vk.com/club1"},
		{"url-shaped alias", "[https://example.org|сайт]", "https://example.org"},
		{"url-shaped label gains scheme", "[id5|www.example.org]", "https://www.example.org"},
		{"plain label survives", "[id5|Мария Иванова]", "Мария Иванова"},
		{"no markup untouched", "обычный [текст", "обычный [текст"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := RewriteMarkup(tc.in); got != tc.want {
				t.Fatalf("RewriteMarkup(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestNews(t *testing.T) {
	t.Parallel()

	t.Run("merges feed and detail", func(t *testing.T) {
		got, err := News(
			NewsItem{URL: "https://www.econ.msu.ru/news/item.123/", Title: "Заголовок", Date: "1 сентября"},
			NewsDetail{Text: "тело новости", Images: []string{"https://img/1.jpg", "https://img/2.jpg"}},
		)
		if err != nil {
			t.Fatalf("News: %v", err)
		}
		if got.Title != "Заголовок" || got.Date != "1 сентября" {
			t.Fatalf("got %+v", got)
		}
		if got.IsDigest || got.IsEvent {
			t.Fatalf("misclassified: %+v", got)
		}
		if len(got.Media) != 2 {
			t.Fatalf("media = %v", got.Media)
		}
	})

	t.Run("event by url", func(t *testing.T) {
		got, err := News(NewsItem{URL: "https://site/events/конференция/"}, NewsDetail{Text: "x"})
		if err != nil {
			t.Fatalf("News: %v", err)
		}
		if !got.IsEvent {
			t.Fatal("event URL not detected")
		}
	})

	t.Run("digest trims footer and caps images", func(t *testing.T) {
		got, err := News(
			NewsItem{URL: "https://site/digest/42/", Title: "Дайджест недели"},
			NewsDetail{
				Text:   "полезное содержание\n\nЮбилейные встречи выпускников пройдут позже",
				Images: []string{"https://img/1.jpg", "https://img/2.jpg", "https://img/3.jpg"},
			},
		)
		if err != nil {
			t.Fatalf("News: %v", err)
		}
		if !got.IsDigest {
			t.Fatal("digest not detected")
		}
		if got.Text != "полезное содержание" {
			t.Fatalf("footer kept: %q", got.Text)
		}
		if len(got.Media) != 1 {
			t.Fatalf("media not capped: %v", got.Media)
		}
	})

	t.Run("digest by body marker", func(t *testing.T) {
		got, err := News(
			NewsItem{URL: "https://site/news/1/"},
			NewsDetail{Text: "пишите на alumni@econ.msu.ru"},
		)
		if err != nil {
			t.Fatalf("News: %v", err)
		}
		if !got.IsDigest {
			t.Fatal("body marker not detected")
		}
	})

	t.Run("placeholder date dropped", func(t *testing.T) {
		if got := SanitizeDate("0 auto;"); got != "" {
			t.Fatalf("got %q", got)
		}
		if got := SanitizeDate(" 12 мая "); got != "12 мая" {
			t.Fatalf("got %q", got)
		}
	})

	t.Run("canonical prefers detail", func(t *testing.T) {
		got, err := News(
			NewsItem{URL: "https://site/news/alias/"},
			NewsDetail{CanonicalURL: "https://site/news/item.5/", Text: "x"},
		)
		if err != nil {
			t.Fatalf("News: %v", err)
		}
		if got.URL != "https://site/news/item.5/" {
			t.Fatalf("url = %q", got.URL)
		}
	})
}
