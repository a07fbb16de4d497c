// Package chunker splits arbitrary text into ordered pieces under a size
// limit without breaking words
// Splitting order
// 1 Pack blank-line separated paragraphs while the joined chunk fits
// 2 Word-preserving split for a paragraph over the limit
// 3 Hard split only for a single token longer than the limit
// Limits are rune counts, not bytes; output is deterministic for fixed input
package chunker

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Chunk splits text into pieces of at most limit runes each.
// Empty input yields a single empty chunk.
func Chunk(text string, limit int) []string {
	cleaned := strings.TrimSpace(text)
	if cleaned == "" {
		return []string{""}
	}
	if utf8.RuneCountInString(cleaned) <= limit {
		return []string{cleaned}
	}

	var paragraphs []string
	for _, p := range strings.Split(cleaned, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	if len(paragraphs) == 0 {
		return splitWords(cleaned, limit)
	}

	var chunks []string
	current := ""
	for _, para := range paragraphs {
		candidate := para
		if current != "" {
			candidate = current + "\n\n" + para
		}
		if utf8.RuneCountInString(candidate) <= limit {
			current = candidate
			continue
		}
		if current != "" {
			chunks = append(chunks, current)
			current = ""
		}
		if utf8.RuneCountInString(para) <= limit {
			current = para
			continue
		}
		parts := splitWords(para, limit)
		if len(parts) == 0 {
			continue
		}
		chunks = append(chunks, parts[:len(parts)-1]...)
		current = parts[len(parts)-1]
	}
	if current != "" {
		chunks = append(chunks, current)
	}
	if len(chunks) == 0 {
		return []string{cleaned}
	}
	return chunks
}

// TruncateWords shortens text to at most limit runes without cutting a word,
// appending an ellipsis when anything was dropped
func TruncateWords(text string, limit int) string {
	cleaned := strings.TrimSpace(text)
	if utf8.RuneCountInString(cleaned) <= limit {
		return cleaned
	}
	parts := splitWords(cleaned, limit)
	if len(parts) == 0 {
		return strings.TrimRightFunc(headRunes(cleaned, limit), unicode.IsSpace) + "…"
	}
	return strings.TrimRightFunc(parts[0], unicode.IsSpace) + "…"
}

// splitWords splits a single block into limit-sized pieces on token
// boundaries. Only a token longer than limit itself is hard-split.
func splitWords(text string, limit int) []string {
	if text == "" {
		return nil
	}
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var parts []string
	current := ""
	flush := func() {
		if strings.TrimSpace(current) != "" {
			parts = append(parts, strings.TrimRightFunc(current, unicode.IsSpace))
		}
		current = ""
	}

	for _, tok := range tokenize(text) {
		tlen := utf8.RuneCountInString(tok)
		if tlen > limit {
			flush()
			r := []rune(tok)
			for start := 0; start < len(r); start += limit {
				end := min(start+limit, len(r))
				piece := string(r[start:end])
				if end-start == limit {
					parts = append(parts, strings.TrimRightFunc(piece, unicode.IsSpace))
				} else {
					current = piece
				}
			}
			continue
		}
		if utf8.RuneCountInString(current)+tlen <= limit {
			current += tok
			continue
		}
		if strings.TrimSpace(current) != "" {
			parts = append(parts, strings.TrimRightFunc(current, unicode.IsSpace))
		}
		// a whitespace token never starts a fresh piece
		if strings.TrimSpace(tok) == "" {
			current = ""
		} else {
			current = tok
		}
	}
	flush()
	return parts
}

// tokenize splits text into alternating runs of whitespace and non-whitespace
func tokenize(s string) []string {
	if s == "" {
		return nil
	}
	var toks []string
	start := 0
	prevSpace := false
	first := true
	for i, r := range s {
		isSp := unicode.IsSpace(r)
		if first {
			prevSpace = isSp
			first = false
			continue
		}
		if isSp != prevSpace {
			toks = append(toks, s[start:i])
			start = i
			prevSpace = isSp
		}
	}
	return append(toks, s[start:])
}

// headRunes returns at most n leading runes of s
func headRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
