package chunker

import (
	"errors"
)

// ErrInvalidMaxChars is returned when the chunk size limit is not positive.
var ErrInvalidMaxChars = errors.New("max chunk chars must be positive")

// Segment is one bounded slice of the input text. Start and End are rune
// offsets into the original text, half-open [Start, End).
type Segment struct {
	Start   int
	End     int
	Content string
}

// Chunker splits free text into ordered, non-overlapping segments of at most
// maxChars runes, preferring to cut after a sentence terminator (period or
// line break). Splitting is deterministic: the same text and limit always
// produce identical boundaries, which is what makes re-chunking idempotent.
type Chunker struct {
	maxChars int
}

// New creates a Chunker with the given rune limit per segment.
func New(maxChars int) (*Chunker, error) {
	if maxChars < 1 {
		return nil, ErrInvalidMaxChars
	}
	return &Chunker{maxChars: maxChars}, nil
}

// MaxChars returns the configured per-segment rune limit.
func (c *Chunker) MaxChars() int {
	return c.maxChars
}

// Split chunks text into segments. Empty text yields no segments; text
// within the limit yields exactly one. Consecutive segments never overlap
// and their concatenation reproduces the input text.
func (c *Chunker) Split(text string) []Segment {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	segments := make([]Segment, 0, (len(runes)+c.maxChars-1)/c.maxChars)
	offset := 0

	for offset < len(runes) {
		end := offset + c.maxChars
		if end >= len(runes) {
			segments = append(segments, c.segment(runes, offset, len(runes)))
			break
		}

		cut := c.boundaryCut(runes, offset, end)
		if cut < 0 {
			cut = c.hardCut(runes, offset, end)
		}

		segments = append(segments, c.segment(runes, offset, cut))
		offset = cut
	}

	return segments
}

func (c *Chunker) segment(runes []rune, start, end int) Segment {
	return Segment{
		Start:   start,
		End:     end,
		Content: string(runes[start:end]),
	}
}

// boundaryCut searches backward from the window end for the nearest sentence
// terminator and returns the cut point just after it, or -1 when the window
// holds no usable boundary. A terminator immediately followed by another
// terminator is skipped so a cut never lands inside a terminator sequence.
func (c *Chunker) boundaryCut(runes []rune, offset, end int) int {
	for i := end - 1; i >= offset; i-- {
		if !isTerminator(runes[i]) {
			continue
		}
		if i+1 < len(runes) && isTerminator(runes[i+1]) {
			continue
		}
		return i + 1
	}
	return -1
}

// hardCut cuts at the character limit. If the limit lands inside a run of
// terminators that started within the window, the cut moves back to the
// start of the run instead of splitting it.
func (c *Chunker) hardCut(runes []rune, offset, end int) int {
	if isTerminator(runes[end]) && isTerminator(runes[end-1]) {
		runStart := end
		for runStart > offset && isTerminator(runes[runStart-1]) {
			runStart--
		}
		if runStart > offset {
			return runStart
		}
	}
	return end
}

func isTerminator(r rune) bool {
	return r == '.' || r == '\n'
}
