package site

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

type feedItem struct {
	href  string
	title string
	date  string
}

var feedDateRe = regexp.MustCompile(`(?i)\d{1,2}\s+[A-Za-zА-Яа-яЁё]+(?:\s+\d{4})?`)

func isNewsLink(href string) bool {
	lower := strings.ToLower(href)
	for _, token := range []string{"news.", "article.", "/news/", "/article/"} {
		if strings.Contains(lower, token) {
			return true
		}
	}
	return false
}

// parseFeed walks the feed page in document order. The feed starts at the
// "Лента событий" heading and ends at the show-more control or the
// contacts section; dates appear as standalone text before their links.
func parseFeed(raw string) []feedItem {
	z := html.NewTokenizer(strings.NewReader(raw))
	var items []feedItem
	inFeed, done := false, false
	var href string
	var titleParts []string
	lastDate := ""

	for {
		switch z.Next() {
		case html.ErrorToken:
			return items
		case html.StartTagToken:
			name, hasAttr := z.TagName()
			if atom.Lookup(name) != atom.A {
				continue
			}
			href, titleParts = "", nil
			for hasAttr {
				var k, v []byte
				k, v, hasAttr = z.TagAttr()
				if string(k) == "href" {
					href = string(v)
				}
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if atom.Lookup(name) != atom.A || href == "" {
				continue
			}
			if inFeed && !done {
				title := strings.TrimSpace(strings.Join(titleParts, " "))
				if title != "" && isNewsLink(href) {
					items = append(items, feedItem{href: href, title: title, date: lastDate})
				}
			}
			href, titleParts = "", nil
		case html.TextToken:
			text := strings.TrimSpace(string(z.Text()))
			if text == "" {
				continue
			}
			if !inFeed && strings.Contains(text, "Лента событий") {
				inFeed = true
				continue
			}
			if inFeed && !done {
				lower := strings.ToLower(text)
				if strings.Contains(lower, "показать") && strings.Contains(lower, "еще") {
					done = true
					continue
				}
				if lower == "контакты" {
					done = true
					continue
				}
				if m := feedDateRe.FindString(text); m != "" {
					lastDate = strings.TrimSpace(m)
				}
			}
			if href != "" && inFeed && !done {
				titleParts = append(titleParts, text)
			}
		}
	}
}

// parseLegacyFeed handles the old markup: a published headline block with
// an h3 news link and a date paragraph
func parseLegacyFeed(doc *html.Node) []feedItem {
	block := findNode(doc, func(n *html.Node) bool {
		return n.DataAtom == atom.Div &&
			hasClass(n, "headline") && hasClass(n, "status-Published")
	})
	if block == nil {
		return nil
	}
	h3 := findNode(block, func(n *html.Node) bool {
		return n.DataAtom == atom.H3 && hasClass(n, "news_text")
	})
	if h3 == nil {
		return nil
	}
	link := findNode(h3, func(n *html.Node) bool { return n.DataAtom == atom.A })
	if link == nil {
		return nil
	}
	href := attrValue(link, "href")
	if href == "" || !isNewsLink(href) {
		return nil
	}
	title := collapseSpaces(nodeText(link))

	date := ""
	if p := findNode(block, func(n *html.Node) bool {
		return n.DataAtom == atom.P && hasClass(n, "title_text")
	}); p != nil {
		date = collapseSpaces(nodeText(p))
	}
	return []feedItem{{href: href, title: title, date: date}}
}

// mainBlock isolates the article content so menus and icon strips stay
// out of the text and image sweep
func mainBlock(doc *html.Node) *html.Node {
	selectors := []func(*html.Node) bool{
		func(n *html.Node) bool {
			return n.DataAtom == atom.Section && hasClass(n, "container") && hasClass(n, "content")
		},
		func(n *html.Node) bool { return n.DataAtom == atom.Div && hasClass(n, "main_col") },
		func(n *html.Node) bool { return n.DataAtom == atom.Div && hasClass(n, "content") },
		func(n *html.Node) bool { return n.DataAtom == atom.Div && hasClass(n, "right_col") },
	}
	for _, match := range selectors {
		if n := findNode(doc, match); n != nil {
			return n
		}
	}
	return doc
}

var (
	spaceRunRe     = regexp.MustCompile(`[ \t]+`)
	spaceNewlineRe = regexp.MustCompile(`\s+\n`)
)

// extractText flattens a subtree to text, skipping chrome elements and
// breaking lines after block tags
func extractText(root *html.Node) string {
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Nav, atom.Header, atom.Footer:
				return
			}
		}
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				sb.WriteString(text)
				sb.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.P, atom.Br, atom.Div, atom.H1, atom.H2, atom.H3:
				sb.WriteString("\n")
			}
		}
	}
	walk(root)
	joined := spaceRunRe.ReplaceAllString(sb.String(), " ")
	return strings.TrimSpace(spaceNewlineRe.ReplaceAllString(joined, "\n"))
}

var bareDateLineRe = regexp.MustCompile(`^\d{1,2}\s+\p{L}+\s+\d{4}$`)

// digestSkip lines are mailing boilerplate that repeats in every digest
var digestSkip = []string{
	"юбилейные встречи выпускников",
	"организовать встречу выпуска",
	"ef msu alumni",
	"alumni@econ.msu.ru",
	"самые свежие новости факультета",
	"экономический факультет всегда рад",
	"ваши предложения, вопросы и пожелания",
	"группы для нашего общения",
}

var digestBlockRe = regexp.MustCompile(`(?si)Юбилейные встречи выпускников.*?Группы для нашего общения`)

// stopLines are sidebar fragments the content block drags in on every page
var stopLines = []string{
	"алumni анкетирование на выпуске выпускники",
	"фурасов владислав дмитриевич",
}

// cleanText drops the page title, sidebar noise and bare date lines from
// extracted article text; digests also lose their mailing boilerplate
func cleanText(text, title string, isDigest bool) string {
	if isDigest {
		text = digestBlockRe.ReplaceAllString(text, "")
	}
	titleNorm := strings.ToLower(strings.TrimSpace(strings.ReplaceAll(title, " ", " ")))
	var cleaned []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.ReplaceAll(line, " ", " "))
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		if titleNorm != "" && lower == titleNorm {
			continue
		}
		if containsAny(lower, stopLines, true) {
			continue
		}
		if isDigest && containsAny(lower, digestSkip, false) {
			continue
		}
		if bareDateLineRe.MatchString(lower) {
			continue
		}
		cleaned = append(cleaned, line)
	}
	return strings.Join(cleaned, "\n")
}

func containsAny(line string, phrases []string, exact bool) bool {
	for _, p := range phrases {
		if exact && line == p {
			return true
		}
		if !exact && strings.Contains(line, p) {
			return true
		}
	}
	return false
}

// collectImages gathers img sources and raw.php download links in
// document order
func collectImages(root *html.Node) []string {
	var out []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Img:
				if src := attrValue(n, "src"); src != "" {
					out = append(out, src)
				}
			case atom.A:
				if href := attrValue(n, "href"); strings.Contains(href, "raw.php") {
					out = append(out, href)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return out
}

func findNode(root *html.Node, match func(*html.Node) bool) *html.Node {
	if root.Type == html.ElementNode && match(root) {
		return root
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if n := findNode(c, match); n != nil {
			return n
		}
	}
	return nil
}

func hasClass(n *html.Node, class string) bool {
	for _, f := range strings.Fields(attrValue(n, "class")) {
		if f == class {
			return true
		}
	}
	return false
}

func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
