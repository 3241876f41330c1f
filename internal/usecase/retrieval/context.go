package retrieval

import (
	"strconv"
	"strings"

	"rag-chat/internal/domain"
)

// PrepareContext cleans each passage, labels it "[i]" in order and joins the
// labeled passages with blank lines. The citation map holds the same cleaned
// texts under the same indices.
func PrepareContext(passages []domain.Passage, clean func(string) string) (string, domain.CitationMap) {
	if clean == nil {
		clean = domain.CleanSourceText
	}

	blocks := make([]string, len(passages))
	citations := make(domain.CitationMap, 0, len(passages))
	for i, p := range passages {
		text := clean(p.Text)
		blocks[i] = "[" + strconv.Itoa(i+1) + "] " + text
		citations = citations.Append(text)
	}
	return strings.Join(blocks, "\n\n"), citations
}
