package ingestion_engine

import (
	"strings"
	"unicode"

	"github.com/yuanqii/feishu-rag/internal/models"
)

// ChunkerConfig bounds chunk sizes by character count.
type ChunkerConfig struct {
	// MaxCharacters is the hard cap; a chunk's text never exceeds it.
	MaxCharacters int
	// NewAfterNChars is the soft threshold; once reached, the next element
	// starts a new chunk.
	NewAfterNChars int
	// CombineTextUnderNChars merges chunks below this size into their
	// predecessor instead of keeping them standalone.
	CombineTextUnderNChars int
}

// DefaultChunkerConfig mirrors the knowledge-base defaults.
func DefaultChunkerConfig() ChunkerConfig {
	return ChunkerConfig{
		MaxCharacters:          3000,
		NewAfterNChars:         2400,
		CombineTextUnderNChars: 500,
	}
}

const textSeparator = "\n\n"

type chunkBuilder struct {
	texts  []string
	tables []string
	images []string
	size   int
}

func (b *chunkBuilder) add(el models.Element) {
	switch el.Category {
	case models.CategoryTable:
		b.tables = append(b.tables, el.TableHTML)
		b.appendText(el.Text)
	case models.CategoryImage:
		b.images = append(b.images, el.ImageB64)
	default:
		b.appendText(el.Text)
	}
}

func (b *chunkBuilder) appendText(s string) {
	if s == "" {
		return
	}
	if len(b.texts) > 0 {
		b.size += len(textSeparator)
	}
	b.texts = append(b.texts, s)
	b.size += len([]rune(s))
}

func (b *chunkBuilder) empty() bool {
	return b.size == 0 && len(b.images) == 0 && len(b.tables) == 0
}

func (b *chunkBuilder) build() models.Chunk {
	return models.Chunk{
		Text:   strings.Join(b.texts, textSeparator),
		Tables: b.tables,
		Images: b.images,
	}
}

// ChunkByTitle groups elements into character-bounded chunks, preferring
// breaks at title elements. Deterministic for a given input and config:
//
//   - the hard cap is never exceeded: an element whose text is itself
//     larger than the cap is split into cap-sized pieces first, breaking at
//     whitespace where possible;
//   - past the soft threshold the next element starts a new chunk;
//   - a title starts a new chunk unless the current one is still under the
//     merge threshold;
//   - a trailing pass merges undersized chunks into their predecessor when
//     the combined text stays within the hard cap.
func ChunkByTitle(elements []models.Element, cfg ChunkerConfig) []models.Chunk {
	var (
		chunks []models.Chunk
		cur    chunkBuilder
	)

	flush := func() {
		if cur.empty() {
			return
		}
		chunks = append(chunks, cur.build())
		cur = chunkBuilder{}
	}

	for _, el := range elements {
		for _, piece := range splitElement(el, cfg.MaxCharacters) {
			pieceLen := len([]rune(piece.Text))

			switch {
			case piece.Category == models.CategoryTitle && cur.size >= cfg.CombineTextUnderNChars:
				flush()
			case cur.size >= cfg.NewAfterNChars:
				flush()
			case cur.size > 0 && cur.size+len(textSeparator)+pieceLen > cfg.MaxCharacters:
				flush()
			}

			cur.add(piece)
		}
	}
	flush()

	return mergeSmall(chunks, cfg)
}

// splitElement breaks an element whose text exceeds max into pieces that
// each fit the hard cap. The first piece keeps the element's category and
// table sidecar; the rest become plain text.
func splitElement(el models.Element, max int) []models.Element {
	if el.Category == models.CategoryImage || len([]rune(el.Text)) <= max {
		return []models.Element{el}
	}

	pieces := splitText(el.Text, max)
	out := make([]models.Element, 0, len(pieces))
	for i, p := range pieces {
		if i == 0 {
			first := el
			first.Text = p
			out = append(out, first)
			continue
		}
		out = append(out, models.Element{Category: models.CategoryText, Text: p})
	}
	return out
}

// splitText cuts s into pieces of at most max runes, preferring the last
// whitespace in the window so words stay intact.
func splitText(s string, max int) []string {
	runes := []rune(s)
	var pieces []string
	for len(runes) > max {
		cut := max
		for i := max; i > max/2; i-- {
			if unicode.IsSpace(runes[i-1]) {
				cut = i
				break
			}
		}
		if p := strings.TrimSpace(string(runes[:cut])); p != "" {
			pieces = append(pieces, p)
		}
		runes = runes[cut:]
	}
	if p := strings.TrimSpace(string(runes)); p != "" {
		pieces = append(pieces, p)
	}
	return pieces
}

// mergeSmall folds chunks under the merge threshold into the previous
// chunk, provided the merged text respects the hard cap. The first chunk
// merges forward instead.
func mergeSmall(chunks []models.Chunk, cfg ChunkerConfig) []models.Chunk {
	if len(chunks) < 2 {
		return chunks
	}

	out := make([]models.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if len(out) > 0 {
			prev := &out[len(out)-1]
			small := len([]rune(c.Text)) < cfg.CombineTextUnderNChars ||
				len([]rune(prev.Text)) < cfg.CombineTextUnderNChars
			if small && len([]rune(prev.Text))+len(textSeparator)+len([]rune(c.Text)) <= cfg.MaxCharacters {
				*prev = mergeChunks(*prev, c)
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

func mergeChunks(a, b models.Chunk) models.Chunk {
	text := a.Text
	switch {
	case text == "":
		text = b.Text
	case b.Text != "":
		text = a.Text + textSeparator + b.Text
	}
	return models.Chunk{
		Text:   text,
		Tables: append(append([]string{}, a.Tables...), b.Tables...),
		Images: append(append([]string{}, a.Images...), b.Images...),
	}
}
