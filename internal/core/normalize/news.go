package normalize

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/purell"

	"relay/internal/core/content"
)

// digestMarkers are body phrases that only the periodic digest mailing
// carries; any of them classifies the page as a digest
var digestMarkers = []string{
	"юбилейные встречи выпускников",
	"ef msu alumni",
	"alumni@econ.msu.ru",
	"группы для нашего общения",
}

// digestFooter opens the boilerplate footer of a digest page
const digestFooter = "юбилейные встречи"

var placeholderDateRe = regexp.MustCompile(`^0\s*auto;?$`)

// News merges a feed headline with its scraped detail page into a payload.
// Classification (digest, event) runs before hashing so re-scrapes of an
// unchanged page dedup correctly.
func News(item NewsItem, detail NewsDetail) (content.Payload, error) {
	canonical := CanonicalURL(firstNonEmpty(detail.CanonicalURL, item.URL))
	lowerURL := strings.ToLower(canonical)

	payload := content.Payload{
		Kind:  content.KindSiteNews,
		URL:   canonical,
		Title: firstNonEmpty(item.Title, detail.Title),
		Date:  SanitizeDate(firstNonEmpty(item.Date, detail.Date)),
		Text:  detail.Text,
		IsEvent: detail.IsEvent ||
			strings.Contains(lowerURL, "/events.") ||
			strings.Contains(lowerURL, "/events/"),
	}
	for _, img := range detail.Images {
		payload.Media = append(payload.Media, content.Media{Kind: "photo", URL: img})
	}

	if item.IsDigest || detail.IsDigest ||
		strings.Contains(lowerURL, "/digest/") || isDigestContent(payload.Title, payload.Text) {
		payload.IsDigest = true
		payload.Text = TrimDigestFooter(payload.Text)
		if len(payload.Media) > 1 {
			payload.Media = payload.Media[:1]
		}
	}

	if err := payload.Validate(); err != nil {
		return content.Payload{}, err
	}
	return payload, nil
}

// CanonicalURL normalizes a page URL so trivial variants map to one store
// key. Unparseable input passes through trimmed.
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	normalized, err := purell.NormalizeURLString(raw, purell.FlagsSafe)
	if err != nil {
		return raw
	}
	return normalized
}

// SanitizeDate strips NBSPs and drops the site's "0 auto;" CSS placeholder
// that leaks into scraped date fields
func SanitizeDate(date string) string {
	cleaned := strings.TrimSpace(strings.ReplaceAll(date, " ", " "))
	if placeholderDateRe.MatchString(strings.ToLower(cleaned)) {
		return ""
	}
	return cleaned
}

// TrimDigestFooter cuts the digest body before its boilerplate footer
func TrimDigestFooter(text string) string {
	if text == "" {
		return ""
	}
	if idx := strings.Index(strings.ToLower(text), digestFooter); idx != -1 {
		return strings.TrimRightFunc(text[:idx], func(r rune) bool {
			return r == ' ' || r == '\t' || r == '\n' || r == '\r'
		})
	}
	return strings.TrimSpace(text)
}

func isDigestContent(title, text string) bool {
	titleL := strings.ToLower(title)
	if strings.Contains(titleL, "дайджест") || strings.Contains(titleL, "digest") {
		return true
	}
	textL := strings.ToLower(text)
	for _, marker := range digestMarkers {
		if strings.Contains(textL, marker) {
			return true
		}
	}
	return false
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
