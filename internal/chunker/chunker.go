package chunker

import (
	"strings"
	"unicode"

	"docintel/internal/models"
)

const defaultLookback = 10 // denominator for the word-boundary search window

// Config controls chunk sizing. Size and Overlap are counted in runes.
type Config struct {
	Size    int
	Overlap int
}

func (c Config) Validate() error {
	if c.Size <= 0 || c.Overlap < 0 || c.Overlap >= c.Size {
		return models.ErrInvalidChunking
	}
	return nil
}

// Chunker splits extracted sections into overlapping chunks while keeping
// each section's provenance on the chunks drawn from it.
type Chunker struct {
	cfg Config
}

func New(cfg Config) (*Chunker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Chunker{cfg: cfg}, nil
}

// Split produces chunks in document order with contiguous indices
// starting at zero. Sections with no extractable text are skipped, and
// empty input yields no chunks.
func (c *Chunker) Split(sections []models.Section) []models.TextChunk {
	var out []models.TextChunk
	idx := 0
	for _, sec := range sections {
		text := strings.TrimSpace(sec.Text)
		if text == "" {
			continue
		}
		for _, piece := range c.chunkText(text) {
			out = append(out, models.TextChunk{
				Index:      idx,
				Content:    piece,
				Source:     sec.Source,
				Heading:    sec.Heading,
				PageNumber: sec.PageNumber,
			})
			idx++
		}
	}
	return out
}

// chunkText accumulates sentences up to the target size, seeding each
// following chunk with the configured overlap trimmed to a word boundary.
func (c *Chunker) chunkText(text string) []string {
	var chunks []string
	var current []rune

	flush := func() {
		piece := strings.TrimSpace(string(current))
		if piece != "" {
			chunks = append(chunks, piece)
		}
	}

	for _, sentence := range splitSentences(text) {
		sr := []rune(sentence)
		if len(sr) > c.cfg.Size {
			// A single sentence longer than the target size is split on
			// rune windows at word boundaries instead of being emitted
			// oversized.
			flush()
			current = nil
			windows := c.window(sr)
			for i, w := range windows {
				if i == len(windows)-1 {
					current = []rune(w)
					break
				}
				chunks = append(chunks, strings.TrimSpace(w))
			}
			continue
		}
		if len(current) > 0 && len(current)+len(sr) > c.cfg.Size {
			flush()
			current = overlapTail(current, c.cfg.Overlap)
		}
		current = append(current, sr...)
	}
	flush()
	return chunks
}

// window splits an oversized run of runes into Size-wide pieces stepped
// by Size-Overlap, preferring a space near the window edge. The lookback
// is capped at the overlap so the fixed step never opens a gap.
func (c *Chunker) window(runes []rune) []string {
	var pieces []string
	step := c.cfg.Size - c.cfg.Overlap
	lookback := c.cfg.Size / defaultLookback
	if lookback > c.cfg.Overlap {
		lookback = c.cfg.Overlap
	}
	for start := 0; start < len(runes); start += step {
		end := start + c.cfg.Size
		if end >= len(runes) {
			pieces = append(pieces, string(runes[start:]))
			break
		}
		cut := end
		for i := end - 1; i > end-lookback && i > start; i-- {
			if unicode.IsSpace(runes[i]) {
				cut = i + 1
				break
			}
		}
		pieces = append(pieces, string(runes[start:cut]))
	}
	return pieces
}

// overlapTail returns the last n runes trimmed forward to the first word
// start, so the seeded context never begins mid-word.
func overlapTail(runes []rune, n int) []rune {
	if n <= 0 {
		return nil
	}
	if len(runes) <= n {
		return append([]rune(nil), runes...)
	}
	tail := runes[len(runes)-n:]
	for i, r := range tail {
		if unicode.IsSpace(r) && i+1 < len(tail) {
			return append([]rune(nil), tail[i+1:]...)
		}
	}
	return append([]rune(nil), tail...)
}

// splitSentences cuts text after terminal punctuation followed by
// whitespace, keeping a single trailing space per sentence.
func splitSentences(text string) []string {
	var sentences []string
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if (r == '.' || r == '!' || r == '?') && i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
			s := strings.TrimSpace(string(runes[start : i+1]))
			if s != "" {
				sentences = append(sentences, s+" ")
			}
			start = i + 1
		}
	}
	if start < len(runes) {
		s := strings.TrimSpace(string(runes[start:]))
		if s != "" {
			sentences = append(sentences, s+" ")
		}
	}
	return sentences
}
