package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestChunkShortAndEmpty(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", []string{""}},
		{"whitespace only", "  \n\t ", []string{""}},
		{"fits", "short text", []string{"short text"}},
		{"trimmed", "  padded  ", []string{"padded"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Chunk(tc.in, 50)
			if len(got) != len(tc.want) {
				t.Fatalf("Chunk(%q) = %v, want %v", tc.in, got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("chunk %d = %q, want %q", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestChunkPacksParagraphs(t *testing.T) {
	t.Parallel()

	text := "first para\n\nsecond para\n\nthird one here"
	got := Chunk(text, 24)
	want := []string{"first para\n\nsecond para", "third one here"}
	if len(got) != len(want) {
		t.Fatalf("got %d chunks %v, want %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("chunk %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestChunkNeverBreaksWords(t *testing.T) {
	t.Parallel()

	words := strings.Repeat("слово ", 200)
	for _, chunk := range Chunk(words, 100) {
		if utf8.RuneCountInString(chunk) > 100 {
			t.Fatalf("chunk over limit: %d runes", utf8.RuneCountInString(chunk))
		}
		for _, w := range strings.Fields(chunk) {
			if w != "слово" {
				t.Fatalf("word split across chunks: %q", w)
			}
		}
	}
}

func TestChunkHardSplitsOversizeToken(t *testing.T) {
	t.Parallel()

	token := strings.Repeat("x", 25)
	got := Chunk(token, 10)
	if len(got) != 3 {
		t.Fatalf("got %d chunks %v, want 3", len(got), got)
	}
	if got[0] != strings.Repeat("x", 10) || got[2] != strings.Repeat("x", 5) {
		t.Fatalf("unexpected hard split: %v", got)
	}
}

func TestChunkRuneLimits(t *testing.T) {
	t.Parallel()

	// 30 two-byte runes must count as 30, not 60
	text := strings.Repeat("я", 30)
	got := Chunk(text, 30)
	if len(got) != 1 || got[0] != text {
		t.Fatalf("rune-counted text should fit in one chunk, got %v", got)
	}
}

func TestChunkPreservingMarkersKeepsMarkerWithBlock(t *testing.T) {
	t.Parallel()

	first := "Заголовок новости\n" + strings.Repeat("текст ", 10) + "\n[[MORE:https://example.org/a]]"
	second := "Вторая новость\n[[MORE:https://example.org/b]]"
	chunks := ChunkPreservingMarkers(first+"\n\n"+second, 120)

	if len(chunks) != 2 {
		t.Fatalf("got %d chunks %v, want 2", len(chunks), chunks)
	}
	if !strings.HasSuffix(chunks[0], "[[MORE:https://example.org/a]]") {
		t.Fatalf("first marker detached: %q", chunks[0])
	}
	if !strings.HasSuffix(chunks[1], "[[MORE:https://example.org/b]]") {
		t.Fatalf("second marker detached: %q", chunks[1])
	}
	for _, c := range chunks {
		if markerLineRe.MatchString(c) {
			t.Fatalf("chunk is a bare marker: %q", c)
		}
	}
}

func TestChunkPreservingMarkersPlainFallback(t *testing.T) {
	t.Parallel()

	text := "no markers here\n\njust paragraphs"
	got := ChunkPreservingMarkers(text, 100)
	want := Chunk(text, 100)
	if len(got) != len(want) || got[0] != want[0] {
		t.Fatalf("marker-free input must match Chunk: %v vs %v", got, want)
	}
}

func TestTruncateWords(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		in    string
		limit int
		want  string
	}{
		{"fits", "short", 10, "short"},
		{"cut on word boundary", "one two three", 8, "one two…"},
		{"single long token", strings.Repeat("a", 20), 5, "aaaaa…"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := TruncateWords(tc.in, tc.limit); got != tc.want {
				t.Fatalf("TruncateWords(%q, %d) = %q, want %q", tc.in, tc.limit, got, tc.want)
			}
		})
	}
}

func TestSplitCaption(t *testing.T) {
	t.Parallel()

	t.Run("short text fits caption", func(t *testing.T) {
		caption, extras := SplitCaption([]string{"a short caption"}, 1000, 3500, false, true)
		if caption != "a short caption" || len(extras) != 0 {
			t.Fatalf("got caption %q extras %v", caption, extras)
		}
	})

	t.Run("empty first chunk yields no caption", func(t *testing.T) {
		caption, extras := SplitCaption([]string{"", "body"}, 1000, 3500, false, false)
		if caption != "" || len(extras) != 1 || extras[0] != "body" {
			t.Fatalf("got caption %q extras %v", caption, extras)
		}
	})

	t.Run("overflow moves to body", func(t *testing.T) {
		long := strings.Repeat("слово ", 400)
		caption, extras := SplitCaption([]string{long}, 1000, 3500, false, false)
		if utf8.RuneCountInString(caption) > 1000 {
			t.Fatalf("caption over limit: %d runes", utf8.RuneCountInString(caption))
		}
		if len(extras) == 0 {
			t.Fatal("expected overflow in extras")
		}
		for _, e := range extras {
			if utf8.RuneCountInString(e) > 3500 {
				t.Fatalf("extra over limit: %d runes", utf8.RuneCountInString(e))
			}
		}
	})

	t.Run("fill from body", func(t *testing.T) {
		chunks := []string{"title line", "body paragraph that should be pulled up"}
		caption, extras := SplitCaption(chunks, 1000, 3500, false, true)
		if !strings.Contains(caption, "body paragraph") {
			t.Fatalf("caption %q did not absorb body", caption)
		}
		if len(extras) != 0 {
			t.Fatalf("unexpected extras %v", extras)
		}
	})

	t.Run("no fill when room too small", func(t *testing.T) {
		caption, extras := SplitCaption([]string{strings.Repeat("a", 70), "body text"}, 100, 3500, false, true)
		if caption != strings.Repeat("a", 70) {
			t.Fatalf("caption changed: %q", caption)
		}
		if len(extras) != 1 || extras[0] != "body text" {
			t.Fatalf("extras = %v", extras)
		}
	})

	t.Run("no fill across marker block", func(t *testing.T) {
		chunks := []string{"caption", "[[MORE:https://example.org/x]]\nrest"}
		caption, _ := SplitCaption(chunks, 1000, 3500, true, true)
		if strings.Contains(caption, MorePrefix) {
			t.Fatalf("marker pulled into caption: %q", caption)
		}
	})
}
