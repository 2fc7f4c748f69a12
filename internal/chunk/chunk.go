package chunk

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Config controls how text is split into chunks. Sizes are in characters.
type Config struct {
	ChunkSize          int
	ChunkOverlap       int
	MinChunkSize       int
	PreserveParagraphs bool
}

func (c Config) withDefaults() Config {
	if c.ChunkSize <= 0 {
		c.ChunkSize = 1000
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		c.ChunkOverlap = c.ChunkSize / 5
	}
	if c.MinChunkSize <= 0 {
		c.MinChunkSize = 100
	}
	if c.MinChunkSize > c.ChunkSize {
		c.MinChunkSize = c.ChunkSize
	}
	return c
}

// Chunk is one contiguous piece of a document's text. Start and End are
// character offsets into the source text handed to Split, and Content is
// always the verbatim slice text[Start:End].
type Chunk struct {
	Content       string
	Index         int
	Start         int
	End           int
	TokenEstimate int
}

// Splitter cuts extracted text into overlapping chunks, preferring
// paragraph boundaries and falling back to sentences for oversized
// paragraphs.
type Splitter struct {
	cfg Config
}

// NewSplitter creates a splitter with the given config (zero values get defaults).
func NewSplitter(cfg Config) *Splitter {
	return &Splitter{cfg: cfg.withDefaults()}
}

var paragraphSep = regexp.MustCompile(`\n{2,}`)

// span is a half-open [start, end) byte range into the source text.
type span struct {
	start, end int
}

// Split cuts text into chunks. Whitespace-only input yields no chunks.
// Consecutive chunks share the configured overlap so sentences cut at a
// boundary stay retrievable from both sides. Every chunk fits ChunkSize;
// the one exception is a trailing fragment below MinChunkSize, which is
// folded into the previous chunk instead of being emitted on its own.
func (s *Splitter) Split(text string) []Chunk {
	segments := s.segment(text)
	if len(segments) == 0 {
		return nil
	}

	var chunks []Chunk
	emit := func(start, end int) {
		content := text[start:end]
		chunks = append(chunks, Chunk{
			Content:       content,
			Index:         len(chunks),
			Start:         start,
			End:           end,
			TokenEstimate: estimateTokens(content),
		})
	}

	curStart := segments[0].start
	prevEnd := segments[0].end
	for _, sp := range segments[1:] {
		if sp.end-curStart > s.cfg.ChunkSize {
			emit(curStart, prevEnd)
			// Seed the next chunk with the tail of this one. The seed
			// counts against the size budget; drop it if the next segment
			// would not fit alongside it.
			seed := overlapStart(text, curStart, prevEnd, s.cfg.ChunkOverlap)
			if seed >= prevEnd || sp.end-seed > s.cfg.ChunkSize {
				seed = sp.start
			}
			curStart = seed
		}
		prevEnd = sp.end
	}

	if len(chunks) > 0 && prevEnd-curStart < s.cfg.MinChunkSize {
		// Too small to stand alone; keep accumulating into the last chunk
		// rather than losing the text.
		last := &chunks[len(chunks)-1]
		last.End = prevEnd
		last.Content = text[last.Start:prevEnd]
		last.TokenEstimate = estimateTokens(last.Content)
	} else {
		emit(curStart, prevEnd)
	}

	return chunks
}

// segment produces trimmed spans that each fit the per-segment limit:
// paragraphs as-is when they fit, sentence runs otherwise, hard cuts as a
// last resort.
func (s *Splitter) segment(text string) []span {
	var paragraphs []span
	if s.cfg.PreserveParagraphs {
		paragraphs = paragraphSpans(text)
	} else {
		paragraphs = []span{{0, len(text)}}
	}

	limit := s.segmentLimit()
	var segments []span
	for _, p := range paragraphs {
		p = trimSpan(text, p)
		if p.start >= p.end {
			continue
		}
		if p.end-p.start <= limit {
			segments = append(segments, p)
			continue
		}
		segments = append(segments, s.packSentences(text, p)...)
	}
	return segments
}

// segmentLimit reserves room for the overlap seed so a seeded chunk still
// fits ChunkSize.
func (s *Splitter) segmentLimit() int {
	return s.cfg.ChunkSize - s.cfg.ChunkOverlap
}

// packSentences packs a paragraph's sentences into spans no larger than
// the segment limit.
func (s *Splitter) packSentences(text string, p span) []span {
	limit := s.segmentLimit()
	var segments []span
	cur := span{-1, -1}

	flush := func() {
		if cur.start >= 0 {
			segments = append(segments, cur)
			cur = span{-1, -1}
		}
	}

	for _, sen := range sentenceSpans(text, p) {
		if sen.end-sen.start > limit {
			flush()
			segments = append(segments, hardSplitSpans(text, sen, limit)...)
			continue
		}
		if cur.start >= 0 && sen.end-cur.start > limit {
			flush()
		}
		if cur.start < 0 {
			cur = sen
		} else {
			cur.end = sen.end
		}
	}
	flush()
	return segments
}

// sentenceSpans cuts a span at sentence-ending punctuation followed by
// whitespace. No abbreviation handling; good enough for chunking.
func sentenceSpans(text string, p span) []span {
	var spans []span
	start := p.start
	for i := p.start; i < p.end; i++ {
		c := text[i]
		if c != '.' && c != '!' && c != '?' {
			continue
		}
		if i+1 < p.end {
			r, _ := utf8.DecodeRuneInString(text[i+1 : p.end])
			if !unicode.IsSpace(r) {
				continue
			}
		}
		if sp := trimSpan(text, span{start, i + 1}); sp.start < sp.end {
			spans = append(spans, sp)
		}
		start = i + 1
	}
	if sp := trimSpan(text, span{start, p.end}); sp.start < sp.end {
		spans = append(spans, sp)
	}
	return spans
}

// hardSplitSpans cuts a span into fixed-size pieces at rune boundaries.
func hardSplitSpans(text string, sp span, size int) []span {
	var pieces []span
	start := sp.start
	for start < sp.end {
		end := start + size
		if end >= sp.end {
			end = sp.end
		} else {
			for end > start && !utf8.RuneStart(text[end]) {
				end--
			}
			if end == start {
				end = start + size
			}
		}
		pieces = append(pieces, span{start, end})
		start = end
	}
	return pieces
}

func paragraphSpans(text string) []span {
	var spans []span
	start := 0
	for _, sep := range paragraphSep.FindAllStringIndex(text, -1) {
		spans = append(spans, span{start, sep[0]})
		start = sep[1]
	}
	return append(spans, span{start, len(text)})
}

func trimSpan(text string, sp span) span {
	for sp.start < sp.end && isSpaceByte(text[sp.start]) {
		sp.start++
	}
	for sp.end > sp.start && isSpaceByte(text[sp.end-1]) {
		sp.end--
	}
	return sp
}

func isSpaceByte(c byte) bool {
	return c == ' ' || c == '\n' || c == '\t' || c == '\r'
}

// overlapStart returns the start offset of the overlap seed: at most
// `overlap` characters before end, advanced to the next word boundary so
// chunks never start mid-word. Returns end when no seed applies.
func overlapStart(text string, chunkStart, end, overlap int) int {
	if overlap <= 0 || end-chunkStart <= overlap {
		return end
	}
	start := end - overlap
	i := strings.IndexAny(text[start:end], " \n\t")
	if i < 0 {
		return end
	}
	start += i + 1
	for start < end && isSpaceByte(text[start]) {
		start++
	}
	return start
}

// estimateTokens approximates token usage at four characters per token.
func estimateTokens(text string) int {
	return (len(text) + 3) / 4
}
