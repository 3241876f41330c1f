package domain

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// DefaultFooterPatterns match page footers repeated on every page of the
// indexed source documents.
var DefaultFooterPatterns = []string{
	`Angebotsnummer \S+ vom \d{2}\.\d{2}\.\d{4} Seite \d+ von \d+`,
	`^\s*Page \d+ of \d+\s*$`,
}

var (
	horizontalSpace = regexp.MustCompile(`[ \t]+`)
	multiCitation   = regexp.MustCompile(`\[(\d+(?:\s*,\s*\d+)+)\]`)
	citationIndex   = regexp.MustCompile(`\d+`)
)

// TextNormalizer cleans raw passage text before it is placed into context.
type TextNormalizer struct {
	footers []*regexp.Regexp
}

// NewTextNormalizer compiles the given footer patterns.
func NewTextNormalizer(footerPatterns ...string) (*TextNormalizer, error) {
	footers := make([]*regexp.Regexp, 0, len(footerPatterns))
	for _, p := range footerPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid footer pattern %q: %w", p, err)
		}
		footers = append(footers, re)
	}
	return &TextNormalizer{footers: footers}, nil
}

var defaultNormalizer = mustNormalizer(DefaultFooterPatterns...)

func mustNormalizer(patterns ...string) *TextNormalizer {
	n, err := NewTextNormalizer(patterns...)
	if err != nil {
		panic(err)
	}
	return n
}

// CleanSourceText cleans text with the default footer patterns.
func CleanSourceText(text string) string {
	return defaultNormalizer.Clean(text)
}

// Clean strips footer lines, joins wrapped lines, keeps paragraph breaks and
// collapses horizontal whitespace. Lines starting with a pipe are table rows
// and keep their line breaks. Clean is idempotent.
func (n *TextNormalizer) Clean(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var paragraphs []string
	var current []string
	flush := func() {
		if len(current) > 0 {
			// footers wrapped over several lines only match once joined
			if para := n.stripJoinedFooters(joinParagraph(current)); para != "" {
				paragraphs = append(paragraphs, para)
			}
			current = current[:0]
		}
	}

	for _, line := range strings.Split(text, "\n") {
		stripped := n.stripFooters(line)
		if stripped != line && strings.TrimSpace(stripped) == "" {
			// a footer-only line vanishes without breaking the paragraph
			continue
		}
		line = strings.TrimSpace(horizontalSpace.ReplaceAllString(stripped, " "))
		if line == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()

	return strings.Join(paragraphs, "\n\n")
}

func (n *TextNormalizer) stripFooters(line string) string {
	for _, re := range n.footers {
		line = re.ReplaceAllString(line, "")
	}
	return line
}

func (n *TextNormalizer) stripJoinedFooters(para string) string {
	stripped := n.stripFooters(para)
	if stripped == para {
		return para
	}
	lines := strings.Split(stripped, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(horizontalSpace.ReplaceAllString(line, " "))
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

func joinParagraph(lines []string) string {
	var sb strings.Builder
	for i, line := range lines {
		if i == 0 {
			sb.WriteString(line)
			continue
		}
		prev := lines[i-1]
		switch {
		case isTableLine(prev) || isTableLine(line):
			sb.WriteByte('\n')
		case endsWithHyphenatedWord(prev) && startsLowercase(line):
			// drop the hyphen of a word broken across lines
			s := sb.String()
			sb.Reset()
			sb.WriteString(s[:len(s)-1])
		default:
			sb.WriteByte(' ')
		}
		sb.WriteString(line)
	}
	return sb.String()
}

func isTableLine(line string) bool {
	return strings.HasPrefix(line, "|")
}

func endsWithHyphenatedWord(line string) bool {
	if !strings.HasSuffix(line, "-") || len(line) < 2 {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(line[:len(line)-1])
	return unicode.IsLetter(r)
}

func startsLowercase(line string) bool {
	r, _ := utf8.DecodeRuneInString(line)
	return unicode.IsLower(r)
}

// SplitMultiCitations rewrites brackets holding several indices, like "[2, 4]",
// into one bracket per index: "[2][4]". Single-index brackets are untouched.
func SplitMultiCitations(text string) string {
	return multiCitation.ReplaceAllStringFunc(text, func(match string) string {
		var sb strings.Builder
		for _, idx := range citationIndex.FindAllString(match, -1) {
			sb.WriteByte('[')
			sb.WriteString(idx)
			sb.WriteByte(']')
		}
		return sb.String()
	})
}

// NormalizeUnicode returns text in NFC form.
func NormalizeUnicode(text string) string {
	return norm.NFC.String(text)
}

// maxPendingCitation bounds how much text the splitter holds back while
// waiting for a citation bracket to close.
const maxPendingCitation = 64

// CitationStreamSplitter applies SplitMultiCitations to streamed chunks. A
// trailing bracket that may still become a multi-index citation is held back
// until the next chunk or Flush.
type CitationStreamSplitter struct {
	pending string
}

// Push returns the normalized text that is safe to emit.
func (s *CitationStreamSplitter) Push(chunk string) string {
	buf := s.pending + chunk
	cut := openCitationStart(buf)
	s.pending = buf[cut:]
	return SplitMultiCitations(buf[:cut])
}

// Flush returns whatever is still held back.
func (s *CitationStreamSplitter) Flush() string {
	out := SplitMultiCitations(s.pending)
	s.pending = ""
	return out
}

// openCitationStart returns the offset of an unterminated citation bracket at
// the end of buf, or len(buf) when there is none.
func openCitationStart(buf string) int {
	open := strings.LastIndexByte(buf, '[')
	if open < 0 || len(buf)-open > maxPendingCitation {
		return len(buf)
	}
	for _, r := range buf[open+1:] {
		if !(r >= '0' && r <= '9') && r != ',' && r != ' ' {
			return len(buf)
		}
	}
	return open
}
