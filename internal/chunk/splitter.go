package chunk

import (
	"strings"
	"unicode/utf8"
)

// Default splitter parameters. The window size keeps chunks comfortably below
// the embedding model's input limit and the index provider's per-record
// metadata cap.
const (
	DefaultSize    = 1000
	DefaultOverlap = 150
)

// separators is the ranked list used for recursive splitting: paragraph
// break, line break, sentence terminators, comma, space, and finally a hard
// character split.
var separators = []string{"\n\n", "\n", ". ", "! ", "? ", ", ", " ", ""}

// Splitter produces overlapping text windows from page text.
// The zero value is not usable; call NewSplitter.
type Splitter struct {
	size    int
	overlap int
}

// NewSplitter creates a splitter with the given window size and overlap,
// both measured in characters (runes). Out-of-range values fall back to the
// defaults.
func NewSplitter(size, overlap int) *Splitter {
	if size <= 0 {
		size = DefaultSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultOverlap
		if overlap >= size {
			overlap = size / 4
		}
	}
	return &Splitter{size: size, overlap: overlap}
}

// SplitPages concatenates the pages in order and splits the combined text
// into chunks. Each chunk carries the page index of its first character.
// Whitespace-only windows are dropped; ordinals are dense from 0.
func (s *Splitter) SplitPages(pages []Page) []Chunk {
	var b strings.Builder
	pageStarts := make([]int, len(pages)) // rune offset where each page begins
	offset := 0
	for i, p := range pages {
		pageStarts[i] = offset
		b.WriteString(p.Text)
		offset += utf8.RuneCountInString(p.Text)
		if !strings.HasSuffix(p.Text, "\n") {
			b.WriteString("\n")
			offset++
		}
	}
	text := b.String()

	windows := s.splitText(text, separators)

	chunks := make([]Chunk, 0, len(windows))
	searchFrom := 0 // byte offset; windows come back in document order
	for _, w := range windows {
		idx := strings.Index(text[searchFrom:], w)
		var byteStart int
		if idx < 0 {
			byteStart = searchFrom
		} else {
			byteStart = searchFrom + idx
			// Overlapping windows may share a prefix; never rewind.
			searchFrom = byteStart + 1
		}

		trimmed := strings.TrimSpace(w)
		if trimmed == "" {
			continue
		}

		runeStart := utf8.RuneCountInString(text[:byteStart])
		chunks = append(chunks, Chunk{
			Ordinal:   len(chunks),
			Text:      trimmed,
			PageIndex: pageForOffset(pageStarts, runeStart),
		})
	}
	return chunks
}

// Split splits a single text blob, treating it as one page.
func (s *Splitter) Split(text string) []Chunk {
	return s.SplitPages([]Page{{Index: 0, Text: text}})
}

// splitText recursively splits text on the first separator present, then
// merges the pieces back into windows of at most s.size characters with
// s.overlap characters carried between neighbours.
func (s *Splitter) splitText(text string, seps []string) []string {
	if utf8.RuneCountInString(text) <= s.size {
		return []string{text}
	}

	sep := ""
	rest := seps
	for i, candidate := range seps {
		if candidate == "" {
			sep = ""
			rest = nil
			break
		}
		if strings.Contains(text, candidate) {
			sep = candidate
			rest = seps[i+1:]
			break
		}
	}

	if sep == "" {
		return s.hardSplit(text)
	}

	pieces := splitKeepSep(text, sep)

	var out []string
	var pending []string
	for _, piece := range pieces {
		if utf8.RuneCountInString(piece) < s.size {
			pending = append(pending, piece)
			continue
		}
		if len(pending) > 0 {
			out = append(out, s.merge(pending)...)
			pending = nil
		}
		out = append(out, s.splitText(piece, rest)...)
	}
	if len(pending) > 0 {
		out = append(out, s.merge(pending)...)
	}
	return out
}

// merge combines small pieces into windows of at most s.size characters,
// dropping pieces from the front until at most s.overlap characters remain
// between consecutive windows.
func (s *Splitter) merge(pieces []string) []string {
	var chunks []string
	var cur []string
	curLen := 0

	for _, p := range pieces {
		pl := utf8.RuneCountInString(p)
		if curLen+pl > s.size && curLen > 0 {
			chunks = append(chunks, strings.Join(cur, ""))
			for curLen > s.overlap || (curLen+pl > s.size && curLen > 0) {
				curLen -= utf8.RuneCountInString(cur[0])
				cur = cur[1:]
			}
		}
		cur = append(cur, p)
		curLen += pl
	}
	if curLen > 0 {
		chunks = append(chunks, strings.Join(cur, ""))
	}
	return chunks
}

// hardSplit cuts text into fixed windows when no separator applies.
func (s *Splitter) hardSplit(text string) []string {
	runes := []rune(text)
	step := s.size - s.overlap
	if step <= 0 {
		step = s.size
	}

	var out []string
	for start := 0; start < len(runes); start += step {
		end := start + s.size
		if end > len(runes) {
			end = len(runes)
		}
		out = append(out, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return out
}

// splitKeepSep splits text on sep, keeping the separator attached to the
// preceding piece so no characters are lost on rejoin.
func splitKeepSep(text, sep string) []string {
	parts := strings.Split(text, sep)
	out := make([]string, 0, len(parts))
	for i, p := range parts {
		if i < len(parts)-1 {
			p += sep
		}
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// pageForOffset returns the index of the page containing the given rune
// offset, assuming pageStarts is sorted ascending.
func pageForOffset(pageStarts []int, offset int) int {
	page := 0
	for i, start := range pageStarts {
		if start > offset {
			break
		}
		page = i
	}
	return page
}
