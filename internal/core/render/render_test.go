package render

import (
	"strings"
	"testing"

	"relay/internal/core/content"
)

func TestEscapeHTML(t *testing.T) {
	t.Parallel()

	if got := EscapeHTML(`a < b & c > d`); got != "a &lt; b &amp; c &gt; d" {
		t.Fatalf("got %q", got)
	}
}

func TestMoreLinks(t *testing.T) {
	t.Parallel()

	in := "Первая новость\n[[MORE:https://site/news/1/]]\n\n\n\nВторая"
	html := MoreLinks(in, true)
	if !strings.Contains(html, `<a href="https://site/news/1/">&gt;&gt;</a>`) {
		t.Fatalf("anchor missing: %q", html)
	}
	if strings.Contains(html, "\n\n\n") {
		t.Fatalf("blank lines not collapsed: %q", html)
	}

	plain := MoreLinks(in, false)
	if !strings.Contains(plain, ">> https://site/news/1/") {
		t.Fatalf("plain link missing: %q", plain)
	}
}

func TestBoldEventFields(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name, in, want string
	}{
		{"label with colon", "Начало: 18:00", "<b>Начало</b>: 18:00"},
		{"label with space", "Спикеры приглашённые гости", "<b>Спикеры</b> приглашённые гости"},
		{"bare label line", "Целевая аудитория:", "<b>Целевая аудитория</b>:"},
		{"mid-line label untouched", "вчера началось мероприятие", "вчера началось мероприятие"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := BoldEventFields(tc.in); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestNewsText(t *testing.T) {
	t.Parallel()

	p := content.Payload{
		Kind:  content.KindSiteNews,
		URL:   "https://site/news/1/",
		Title: "Заголовок <важный>",
		Date:  "1 сентября",
		Text:  "тело & текст",
	}

	html := NewsText(p, true, true)
	if !strings.HasPrefix(html, "Заголовок &lt;важный&gt;\n1 сентября\nhttps://site/news/1/\n\n") {
		t.Fatalf("header wrong: %q", html)
	}
	if !strings.Contains(html, "тело &amp; текст") {
		t.Fatalf("body not escaped: %q", html)
	}

	header := NewsText(p, true, false)
	if strings.Contains(header, "тело") {
		t.Fatalf("body leaked into header: %q", header)
	}

	event := p
	event.IsEvent = true
	event.Text = "Начало: 18:00"
	if got := NewsText(event, true, true); !strings.Contains(got, "<b>Начало</b>: 18:00") {
		t.Fatalf("event fields not bolded: %q", got)
	}
}
