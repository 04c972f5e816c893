package ssml

import (
	"strings"
	"unicode/utf8"

	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/services"
)

const (
	// DefaultByteBudget leaves margin under the provider's 5000-byte hard
	// limit per synthesis request.
	DefaultByteBudget = 4500
	// DefaultChunkChars bounds the word chunks an oversized paragraph is
	// split into.
	DefaultChunkChars = 1000
)

// Limits controls segmentation budgets.
type Limits struct {
	ByteBudget int
	ChunkChars int
}

func (l Limits) withDefaults() Limits {
	if l.ByteBudget <= 0 {
		l.ByteBudget = DefaultByteBudget
	}
	if l.ChunkChars <= 0 {
		l.ChunkChars = DefaultChunkChars
	}
	return l
}

// Payload is a single bounded synthesis request.
type Payload struct {
	// SSML is the exact markup transmitted to the provider.
	SSML string
	// Title is set on the one payload that carries the article title.
	Title string
	// Paragraphs holds the plain-text units packed into this payload, in
	// order. Chunks of a split paragraph appear as separate units.
	Paragraphs []string
}

// Document is the segmentation result for one article.
type Document struct {
	Payloads []Payload
	// Characters estimates billed characters: the rune count of the title
	// and every paragraph before markup escaping. An estimate, not a
	// provider guarantee.
	Characters int
}

var ssmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// Segment splits a title plus ordered paragraphs into synthesis payloads.
// Any subtitle must already be prepended as the first paragraph. Empty
// paragraphs are dropped. With no body text at all, a single title-only
// payload is returned.
func Segment(title string, paragraphs []string, limits Limits) (Document, error) {
	limits = limits.withDefaults()
	title = strings.TrimSpace(title)

	body := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		if p = strings.TrimSpace(p); p != "" {
			body = append(body, p)
		}
	}

	chars := utf8.RuneCountInString(title)
	for _, p := range body {
		chars += utf8.RuneCountInString(p)
	}

	if len(body) == 0 {
		ssml := render(title, nil)
		if len(ssml) > limits.ByteBudget {
			return Document{}, services.Wrap(services.ErrConfiguration, "segment", "title",
				"title-only payload exceeds byte budget", nil)
		}
		return Document{
			Payloads:   []Payload{{SSML: ssml, Title: title}},
			Characters: chars,
		}, nil
	}

	packer := packer{title: title, limits: limits}
	for _, para := range body {
		if err := packer.place(para, false); err != nil {
			return Document{}, err
		}
	}
	packer.flush()

	return Document{Payloads: packer.payloads, Characters: chars}, nil
}

type packer struct {
	title    string
	limits   Limits
	payloads []Payload
	current  []string
}

// titled reports whether the payload being assembled is the first one and so
// carries the title.
func (p *packer) titled() bool {
	return len(p.payloads) == 0 && p.title != ""
}

func (p *packer) place(unit string, isChunk bool) error {
	trial := append(append([]string(nil), p.current...), unit)
	titleText := ""
	if p.titled() {
		titleText = p.title
	}
	if len(render(titleText, trial)) <= p.limits.ByteBudget {
		p.current = trial
		return nil
	}

	if len(p.current) > 0 {
		p.flush()
		return p.place(unit, isChunk)
	}

	// The unit alone overflows an empty payload.
	if !isChunk {
		for _, chunk := range wordChunks(unit, p.limits.ChunkChars) {
			if err := p.place(chunk, true); err != nil {
				return err
			}
		}
		return nil
	}
	return services.Wrap(services.ErrConfiguration, "segment", "pack",
		"chunk budget too large relative to byte budget", nil)
}

func (p *packer) flush() {
	if len(p.current) == 0 {
		return
	}
	titleText := ""
	if p.titled() {
		titleText = p.title
	}
	p.payloads = append(p.payloads, Payload{
		SSML:       render(titleText, p.current),
		Title:      titleText,
		Paragraphs: p.current,
	})
	p.current = nil
}

// render produces the exact SSML transmitted for a payload. The byte-budget
// check measures this escaped form, not the raw text.
func render(title string, paragraphs []string) string {
	var b strings.Builder
	b.WriteString("<speak>")
	if title != "" {
		b.WriteString("\n<p>")
		b.WriteString(ssmlEscaper.Replace(title))
		b.WriteString("</p>")
	}
	for _, p := range paragraphs {
		b.WriteString("\n<p>")
		b.WriteString(ssmlEscaper.Replace(p))
		b.WriteString("</p>")
	}
	b.WriteString("\n</speak>")
	return b.String()
}

// wordChunks splits text into whitespace-delimited chunks of at most
// maxChars runes each. A single word longer than maxChars is hard-split.
func wordChunks(text string, maxChars int) []string {
	words := strings.Fields(text)
	var chunks []string
	var current strings.Builder
	currentLen := 0

	appendWord := func(word string) {
		wordLen := utf8.RuneCountInString(word)
		sep := 0
		if currentLen > 0 {
			sep = 1
		}
		if currentLen+sep+wordLen <= maxChars {
			if sep == 1 {
				current.WriteByte(' ')
			}
			current.WriteString(word)
			currentLen += sep + wordLen
			return
		}
		if currentLen > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
			currentLen = 0
		}
		if wordLen <= maxChars {
			current.WriteString(word)
			currentLen = wordLen
			return
		}
		for _, piece := range splitRunes(word, maxChars) {
			chunks = append(chunks, piece)
		}
	}

	for _, word := range words {
		appendWord(word)
	}
	if currentLen > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}

func splitRunes(word string, maxChars int) []string {
	var pieces []string
	runes := []rune(word)
	for len(runes) > maxChars {
		pieces = append(pieces, string(runes[:maxChars]))
		runes = runes[maxChars:]
	}
	if len(runes) > 0 {
		pieces = append(pieces, string(runes))
	}
	return pieces
}
