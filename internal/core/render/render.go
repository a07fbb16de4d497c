// Package render holds the text shaping shared by channel publishing and
// moderation previews: HTML escaping, continue-reading links, event field
// highlighting and the news header layout
package render

import (
	"regexp"
	"strings"

	"relay/internal/core/content"
)

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// EscapeHTML escapes the characters Telegram's HTML parse mode interprets
func EscapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}

var (
	moreLinkRe    = regexp.MustCompile(`\[\[MORE:([^\]]+)\]\]`)
	trailingWSRe  = regexp.MustCompile(`[ \t]+\n`)
	blankLinesRe  = regexp.MustCompile(`\n{3,}`)
	eventLabel    = `(целевая аудитория|начало|окончание|спикеры)`
	eventBareRe   = regexp.MustCompile(`(?im)^(\s*)` + eventLabel + `(\s*:?\s*)$`)
	eventPunctRe  = regexp.MustCompile(`(?im)^(\s*)` + eventLabel + `(\s*[:\-]\s*)(\S)`)
	eventSpacedRe = regexp.MustCompile(`(?im)^(\s*)` + eventLabel + `(\s+)(\S)`)
)

// MoreLinks expands [[MORE:url]] markers into a continue-reading link,
// an <a> anchor in HTML mode or a plain ">> url" line, then collapses the
// whitespace the substitution leaves behind
func MoreLinks(text string, html bool) string {
	if text == "" {
		return ""
	}
	rendered := moreLinkRe.ReplaceAllStringFunc(text, func(m string) string {
		url := strings.TrimSpace(moreLinkRe.FindStringSubmatch(m)[1])
		if url == "" {
			return ""
		}
		if html {
			return `<a href="` + url + `">&gt;&gt;</a>`
		}
		return ">> " + url
	})
	rendered = trailingWSRe.ReplaceAllString(rendered, "\n")
	rendered = blankLinesRe.ReplaceAllString(rendered, "\n\n")
	return strings.TrimSpace(rendered)
}

// BoldEventFields wraps known event field labels at line starts in <b> tags
func BoldEventFields(text string) string {
	if text == "" {
		return ""
	}
	out := eventBareRe.ReplaceAllString(text, "${1}<b>${2}</b>${3}")
	out = eventPunctRe.ReplaceAllString(out, "${1}<b>${2}</b>${3}${4}")
	out = eventSpacedRe.ReplaceAllString(out, "${1}<b>${2}</b>${3}${4}")
	return out
}

// NewsText lays out a news payload: title, date and link lines, then the
// body. HTML mode escapes everything and bolds event fields; plain mode
// expands continue-reading markers inline.
func NewsText(p content.Payload, html, includeBody bool) string {
	title, date, link, body := p.Title, p.Date, p.URL, p.Text
	if html {
		title = EscapeHTML(title)
		date = EscapeHTML(date)
		link = EscapeHTML(link)
		body = EscapeHTML(body)
		if p.IsEvent {
			body = BoldEventFields(body)
		}
	} else {
		body = MoreLinks(body, false)
	}

	var lines []string
	for _, l := range []string{title, date, link} {
		if l != "" {
			lines = append(lines, l)
		}
	}
	full := strings.Join(lines, "\n")
	if includeBody && body != "" {
		if full != "" {
			full = full + "\n\n" + body
		} else {
			full = body
		}
	}
	return strings.TrimSpace(full)
}
