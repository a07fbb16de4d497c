// Package normalize turns raw source records, VK wall posts and site news
// pages, into the canonical content.Payload the rest of the pipeline
// consumes. Decoding quirks of the sources stay behind this package
package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"relay/internal/core/content"
)

// sizeRank orders VK photo size classes when a size reports no dimensions
var sizeRank = map[string]int{
	"w": 12, "z": 11, "y": 10, "x": 9, "r": 8,
	"q": 7, "p": 6, "o": 5, "m": 4, "s": 3,
}

// flatKeyRank scores legacy flat photo keys; all sit below any real
// dimension product but above size-class ranks
var flatKeyRank = []struct {
	key   string
	score int
}{
	{"src_xxbig", 9_500_000},
	{"src_xbig", 9_400_000},
	{"src_big", 9_300_000},
	{"src", 9_200_000},
	{"url", 9_100_000},
}

const origPhotoScore = 10_000_000

var photoNumKeyRe = regexp.MustCompile(`^photo_(\d+)$`)

// BestPhotoURL picks the largest available rendition of a photo across
// every shape VK serves. Returns "" when the photo carries no usable URL.
func BestPhotoURL(p *Photo) string {
	if p == nil {
		return ""
	}
	best := ""
	bestScore := -1
	consider := func(url string, score int) {
		if url != "" && score > bestScore {
			best, bestScore = url, score
		}
	}

	for _, size := range p.Sizes {
		url := strings.TrimSpace(size.URL)
		if url == "" {
			url = strings.TrimSpace(size.Src)
		}
		if url == "" {
			continue
		}
		score := size.Width * size.Height
		if score <= 0 {
			score = sizeRank[strings.ToLower(size.Type)]
		}
		consider(url, score)
	}

	if p.Orig != nil {
		if url := strings.TrimSpace(p.Orig.URL); url != "" {
			score := p.Orig.Width * p.Orig.Height
			if p.Orig.Width == 0 || p.Orig.Height == 0 {
				score = origPhotoScore
			}
			consider(url, score)
		}
	}

	for _, fk := range flatKeyRank {
		consider(strings.TrimSpace(p.Extra[fk.key]), fk.score)
	}

	for key, val := range p.Extra {
		m := photoNumKeyRe.FindStringSubmatch(key)
		if m == nil {
			continue
		}
		score, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		consider(strings.TrimSpace(val), score)
	}
	return best
}

const pollFieldLimit = 255

// Wall flattens a raw wall post, reposts included, into a payload
func Wall(post WallPost) (content.Payload, error) {
	text := post.Text
	var media []content.Media
	var extras []string
	var poll *content.Poll

	appendPhoto := func(p *Photo) {
		url := BestPhotoURL(p)
		if url == "" {
			return
		}
		for _, m := range media {
			if m.URL == url {
				return
			}
		}
		media = append(media, content.Media{Kind: "photo", URL: url})
	}

	parse := func(atts []Attachment) {
		for _, att := range atts {
			switch att.Type {
			case "photo", "posted_photo":
				appendPhoto(att.Photo)
			case "video":
				if att.Video != nil && att.Video.OwnerID != nil && att.Video.ID != nil {
					extras = append(extras,
						fmt.Sprintf("Видео: https://vk.com/video%d_%d", *att.Video.OwnerID, *att.Video.ID))
				}
			case "link":
				if att.Link != nil {
					appendPhoto(att.Link.Photo)
					if att.Link.URL != "" {
						extras = append(extras, "Ссылка: "+att.Link.URL)
					}
				}
			case "doc":
				if att.Doc != nil {
					appendPhoto(att.Doc.Preview.Photo)
					if att.Doc.URL != "" {
						extras = append(extras, "Документ: "+att.Doc.URL)
					}
				}
			case "poll":
				if att.Poll != nil {
					p := content.Poll{
						Question:  capRunes(att.Poll.Question, pollFieldLimit),
						Anonymous: att.Poll.Anonymous == nil || *att.Poll.Anonymous,
					}
					for _, ans := range att.Poll.Answers {
						p.Options = append(p.Options, capRunes(ans.Text, pollFieldLimit))
					}
					poll = &p
				}
			default:
				if att.Generic != nil && att.Generic.URL != "" {
					label := att.Generic.Title
					if label == "" {
						label = att.Type
					}
					extras = append(extras, label+": "+att.Generic.URL)
				}
			}
		}
	}

	parse(post.Attachments)

	for idx, src := range post.CopyHistory {
		if src.Text != "" {
			prefix := "[Перепост]:"
			if idx > 0 {
				prefix = fmt.Sprintf("[Перепост #%d]:", idx+1)
			}
			if text != "" {
				text = text + "\n\n" + prefix + "\n" + src.Text
			} else {
				text = prefix + "\n" + src.Text
			}
		}
		parse(src.Attachments)
	}

	// the same link often arrives from both the post and its repost source
	if len(extras) > 0 {
		seen := make(map[string]struct{}, len(extras))
		deduped := extras[:0]
		for _, line := range extras {
			if _, dup := seen[line]; dup {
				continue
			}
			seen[line] = struct{}{}
			deduped = append(deduped, line)
		}
		block := strings.Join(deduped, "\n")
		if text != "" {
			text = text + "\n\n" + block
		} else {
			text = block
		}
	}

	text = RewriteMarkup(strings.TrimSpace(text))

	payload := content.Payload{
		Kind:    content.KindWallPost,
		PostID:  post.Key(),
		OwnerID: post.OwnerID,
		Text:    strings.TrimSpace(text),
		Media:   media,
		Poll:    poll,
		Link:    fmt.Sprintf("https://vk.com/wall%d_%d", post.OwnerID, post.Key()),
	}
	if err := payload.Validate(); err != nil {
		return content.Payload{}, err
	}
	return payload, nil
}

var markupRe = regexp.MustCompile(`\[([^|\]]+)\|([^|\]]+)(?:\|([^\]]+))?\]`)

// RewriteMarkup converts VK link markup [alias|label|url?] into a bare URL.
// Preference order: explicit url part, url-shaped alias, url-shaped label,
// otherwise the label verbatim. A www. prefix gains https://.
func RewriteMarkup(text string) string {
	return markupRe.ReplaceAllStringFunc(text, func(m string) string {
		groups := markupRe.FindStringSubmatch(m)
		alias, label, url := groups[1], groups[2], groups[3]
		switch {
		case url != "" && looksLikeURL(url):
			return ensureScheme(url)
		case looksLikeURL(alias):
			return ensureScheme(alias)
		case looksLikeURL(label):
			return ensureScheme(label)
		default:
			return label
		}
	})
}

func looksLikeURL(v string) bool {
	return strings.HasPrefix(v, "http://") ||
		strings.HasPrefix(v, "https://") ||
		strings.HasPrefix(v, "www.")
}

func ensureScheme(v string) string {
	if strings.HasPrefix(v, "www.") {
		return "https://" + v
	}
	return v
}

func capRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
