package site

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const feedPage = `<html><body>
<nav><a href="/contacts/">Контакты</a></nav>
<h2>Лента событий</h2>
<div class="date">17 ноября 2025</div>
<a href="/news/first/">Первая новость</a>
<div class="date">16 ноября 2025</div>
<a href="/news/second/">Вторая новость</a>
<a href="/about/">О факультете</a>
<button>Показать еще</button>
<a href="/news/hidden/">Скрытая новость</a>
</body></html>`

const legacyPage = `<html><body>
<div class="w33 headline status-Published">
  <p class="title_text">5 мая 2025</p>
  <h3 class="news_text"><a href="/news/legacy/">Старая  <b>вёрстка</b></a></h3>
</div>
</body></html>`

func newSite(t *testing.T, mux *http.ServeMux) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewClient(Options{BaseURL: srv.URL, NewsPath: "/alumni/"}), srv
}

func TestLatestNewsFromFeed(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/alumni/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, feedPage)
	})
	c, srv := newSite(t, mux)

	item, err := c.LatestNews(context.Background())
	if err != nil {
		t.Fatalf("LatestNews: %v", err)
	}
	if item == nil {
		t.Fatal("no item")
	}
	if item.URL != srv.URL+"/news/first/" {
		t.Fatalf("url = %q", item.URL)
	}
	if item.Title != "Первая новость" || item.Date != "17 ноября 2025" {
		t.Fatalf("item = %+v", item)
	}
	if item.IsDigest {
		t.Fatal("plain news flagged as digest")
	}
}

func TestLatestNewsLegacyMarkup(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/alumni/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, legacyPage)
	})
	c, srv := newSite(t, mux)

	item, err := c.LatestNews(context.Background())
	if err != nil {
		t.Fatalf("LatestNews: %v", err)
	}
	if item == nil {
		t.Fatal("no item")
	}
	if item.URL != srv.URL+"/news/legacy/" || item.Title != "Старая вёрстка" || item.Date != "5 мая 2025" {
		t.Fatalf("item = %+v", item)
	}
}

func TestLatestNewsEmptyPage(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/alumni/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><p>ничего</p></body></html>`)
	})
	c, _ := newSite(t, mux)

	item, err := c.LatestNews(context.Background())
	if err != nil || item != nil {
		t.Fatalf("got %+v, %v", item, err)
	}
}

func TestNewsDetail(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	c, srv := newSite(t, mux)
	detailPage := `<html><body>
<header><a href="/">Меню</a></header>
<div class="main_col">
  <h1>Заголовок новости</h1>
  <p>17 ноября 2025</p>
  <p>Первый абзац текста.</p>
  <p>Второй абзац.</p>
  <img src="/upload/pic.jpg">
  <img src="https://elsewhere.example/x.png">
  <a href="/files/raw.php?id=5">вложение</a>
  <script>var hidden = 1;</script>
</div>
</body></html>`
	mux.HandleFunc("/news/1/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, detailPage)
	})
	mux.HandleFunc("/upload/pic.jpg", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("jpeg"))
	})
	mux.HandleFunc("/files/raw.php", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "not an image")
	})

	detail, err := c.NewsDetail(context.Background(), srv.URL+"/news/1/", "Заголовок новости")
	if err != nil {
		t.Fatalf("NewsDetail: %v", err)
	}
	if strings.Contains(detail.Text, "Заголовок новости") {
		t.Fatalf("title must be dropped from text: %q", detail.Text)
	}
	if strings.Contains(detail.Text, "17 ноября 2025") {
		t.Fatalf("bare date line must be dropped: %q", detail.Text)
	}
	if strings.Contains(detail.Text, "hidden") || strings.Contains(detail.Text, "Меню") {
		t.Fatalf("chrome leaked into text: %q", detail.Text)
	}
	if !strings.Contains(detail.Text, "Первый абзац текста.") || !strings.Contains(detail.Text, "Второй абзац.") {
		t.Fatalf("text = %q", detail.Text)
	}
	// off-domain image filtered by candidate check, raw.php by the probe
	if len(detail.Images) != 1 || detail.Images[0] != srv.URL+"/upload/pic.jpg" {
		t.Fatalf("images = %v", detail.Images)
	}
	if detail.IsDigest {
		t.Fatal("plain article flagged as digest")
	}
}

func TestNewsDetailDigest(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	c, srv := newSite(t, mux)
	digestPage := `<html><body>
<div class="main_col">
  <p>Свежие материалы месяца.</p>
  <p>EF MSU Alumni</p>
  <p>Группы для нашего общения</p>
  <img src="/upload/a.jpg">
  <img src="/upload/b.jpg">
</div>
</body></html>`
	mux.HandleFunc("/digest/5/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, digestPage)
	})
	for _, p := range []string{"/upload/a.jpg", "/upload/b.jpg"} {
		mux.HandleFunc(p, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "image/jpeg")
			_, _ = w.Write([]byte("jpeg"))
		})
	}

	detail, err := c.NewsDetail(context.Background(), srv.URL+"/digest/5/", "Дайджест №5")
	if err != nil {
		t.Fatalf("NewsDetail: %v", err)
	}
	if !detail.IsDigest {
		t.Fatal("digest title must flag the detail")
	}
	if strings.Contains(strings.ToLower(detail.Text), "группы для нашего общения") {
		t.Fatalf("digest boilerplate must be dropped: %q", detail.Text)
	}
	if !strings.Contains(detail.Text, "Свежие материалы месяца.") {
		t.Fatalf("text = %q", detail.Text)
	}
	if len(detail.Images) != 1 {
		t.Fatalf("digest images = %v", detail.Images)
	}
}

func TestCandidateImageRules(t *testing.T) {
	t.Parallel()

	c := NewClient(Options{BaseURL: "https://www.econ.msu.ru"})
	cases := []struct {
		src  string
		want bool
	}{
		{"/upload/pic.jpg", true},
		{"/upload/pic.svg", false},
		{"/files/raw.php?id=1", true},
		{"https://www.econ.msu.ru/upload/x.png", true},
		{"https://cdn.example.com/x.png", false},
		{"banner.gif", true},
	}
	for _, tc := range cases {
		if got := c.isCandidateImage(tc.src); got != tc.want {
			t.Errorf("isCandidateImage(%q) = %v, want %v", tc.src, got, tc.want)
		}
	}
}
