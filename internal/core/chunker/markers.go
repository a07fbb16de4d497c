package chunker

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MorePrefix opens an inline continue-reading marker: [[MORE:<url>]].
// Markers ride through chunking as atoms glued to the text above them
const MorePrefix = "[[MORE:"

var (
	markerLineRe = regexp.MustCompile(`^\[\[MORE:[^\]]+\]\]$`)
	markerPairRe = regexp.MustCompile(`(?s)(.*?)(\[\[MORE:[^\]]+\]\])`)
)

// ChunkPreservingMarkers behaves like Chunk but never separates a
// continue-reading marker from the block it annotates.
func ChunkPreservingMarkers(text string, limit int) []string {
	cleaned := strings.TrimSpace(text)
	if cleaned == "" {
		return []string{""}
	}
	if !strings.Contains(cleaned, MorePrefix) {
		return Chunk(cleaned, limit)
	}

	var blocks []string
	pos := 0
	for _, m := range markerPairRe.FindAllStringSubmatchIndex(cleaned, -1) {
		before := strings.TrimSpace(cleaned[m[2]:m[3]])
		marker := strings.TrimSpace(cleaned[m[4]:m[5]])
		switch {
		case before != "":
			blocks = append(blocks, before+"\n"+marker)
		case marker != "":
			if len(blocks) > 0 {
				blocks[len(blocks)-1] += "\n" + marker
			} else {
				blocks = append(blocks, marker)
			}
		}
		pos = m[1]
	}
	if tail := strings.TrimSpace(cleaned[pos:]); tail != "" {
		blocks = append(blocks, tail)
	}
	if len(blocks) == 0 {
		return Chunk(cleaned, limit)
	}

	var chunks []string
	current := ""
	for _, block := range blocks {
		candidate := block
		if current != "" {
			candidate = current + "\n\n" + block
		}
		if utf8.RuneCountInString(candidate) <= limit {
			current = candidate
			continue
		}
		if current != "" {
			chunks = append(chunks, current)
			current = ""
		}
		if utf8.RuneCountInString(block) <= limit {
			current = block
			continue
		}
		var parts []string
		if strings.Contains(block, MorePrefix) {
			parts = splitMarkerBlock(block, limit)
		} else {
			parts = splitWords(block, limit)
		}
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

// splitMarkerBlock splits an oversize block line by line, keeping each
// marker line attached to the line above it
func splitMarkerBlock(text string, limit int) []string {
	var lines []string
	for _, ln := range strings.Split(text, "\n") {
		if ln = strings.TrimSpace(ln); ln != "" {
			lines = append(lines, ln)
		}
	}
	if len(lines) == 0 {
		return nil
	}

	var atoms []string
	for i := 0; i < len(lines); {
		line := lines[i]
		if markerLineRe.MatchString(line) {
			// orphan marker, glue backwards
			if len(atoms) > 0 {
				atoms[len(atoms)-1] += "\n" + line
			} else {
				atoms = append(atoms, line)
			}
			i++
			continue
		}
		atom := line
		i++
		for i < len(lines) && markerLineRe.MatchString(lines[i]) {
			atom += "\n" + lines[i]
			i++
		}
		atoms = append(atoms, atom)
	}

	var parts []string
	current := ""
	for _, atom := range atoms {
		candidate := atom
		if current != "" {
			candidate = current + "\n" + atom
		}
		if utf8.RuneCountInString(candidate) <= limit {
			current = candidate
			continue
		}
		if current != "" {
			parts = append(parts, current)
			current = ""
		}
		if utf8.RuneCountInString(atom) <= limit {
			current = atom
			continue
		}
		sub := splitWords(atom, limit)
		if len(sub) == 0 {
			continue
		}
		parts = append(parts, sub[:len(sub)-1]...)
		current = sub[len(sub)-1]
	}
	if current != "" {
		parts = append(parts, current)
	}
	return parts
}
