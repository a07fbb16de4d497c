package chunker

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// minFillRoom is the smallest leftover caption budget worth borrowing body
// text into. Below it the borrowed fragment would be a useless stub
const minFillRoom = 40

// SplitCaption reshapes pre-chunked text for a media post: the first piece
// becomes a photo caption of at most capLimit runes, everything left over is
// re-chunked into follow-up messages of at most bodyLimit runes.
//
// With fillFromBody set, leftover caption room above minFillRoom is filled
// from the top of the body so short posts fit the caption alone. The fill is
// skipped when the body opens with a continue-reading marker and
// preserveMarkers is set, markers must stay with their own block.
// An empty caption means the post has no leading text.
func SplitCaption(chunks []string, capLimit, bodyLimit int, preserveMarkers, fillFromBody bool) (string, []string) {
	if len(chunks) == 0 {
		return "", nil
	}
	first := chunks[0]
	if first == "" {
		var extras []string
		for _, p := range chunks[1:] {
			if p != "" {
				extras = append(extras, p)
			}
		}
		return "", extras
	}

	split := Chunk
	if preserveMarkers {
		split = ChunkPreservingMarkers
	}

	capParts := split(first, capLimit)
	if len(capParts) == 0 {
		capParts = splitWords(first, capLimit)
		if len(capParts) == 0 {
			capParts = []string{headRunes(first, capLimit)}
		}
	}
	caption := capParts[0]

	var tail string
	if strings.HasPrefix(first, caption) {
		tail = strings.TrimLeftFunc(first[len(caption):], unicode.IsSpace)
	} else if len(capParts) > 1 {
		var rest []string
		for _, p := range capParts[1:] {
			if p != "" {
				rest = append(rest, p)
			}
		}
		tail = strings.TrimSpace(strings.Join(rest, "\n\n"))
	}

	var remainder []string
	if tail != "" {
		remainder = append(remainder, tail)
	}
	for _, p := range chunks[1:] {
		if p != "" {
			remainder = append(remainder, p)
		}
	}

	if fillFromBody && caption != "" && utf8.RuneCountInString(caption) < capLimit && len(remainder) > 0 &&
		!(preserveMarkers && strings.Contains(remainder[0], MorePrefix)) {
		const sep = "\n\n"
		available := capLimit - utf8.RuneCountInString(caption) - len(sep)
		if available > minFillRoom {
			firstBlock := remainder[0]
			donor := ""
			if donorParts := splitWords(firstBlock, available); len(donorParts) > 0 {
				donor = strings.TrimSpace(donorParts[0])
			}
			if donor != "" {
				caption += sep + donor
				rest := ""
				if strings.HasPrefix(firstBlock, donor) {
					rest = strings.TrimLeftFunc(firstBlock[len(donor):], unicode.IsSpace)
				}
				if rest != "" {
					remainder[0] = rest
				} else {
					remainder = remainder[1:]
				}
			}
		}
	}

	var blocks []string
	for _, b := range remainder {
		if strings.TrimSpace(b) != "" {
			blocks = append(blocks, b)
		}
	}
	if len(blocks) == 0 {
		return caption, nil
	}
	return caption, split(strings.Join(blocks, "\n\n"), bodyLimit)
}
