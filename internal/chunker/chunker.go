// Package chunker splits extracted document text into self-contained,
// independently retrievable chunks.
package chunker

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/sweetbite/mealqa/internal/store"
)

// sectionMarker structures documents into a general-rules header followed
// by titled sections.
const sectionMarker = "Section: "

// ErrMalformedDocument is returned when a document contains no titled
// sections and therefore cannot be chunked.
var ErrMalformedDocument = errors.New("document has no titled sections")

// Split cuts the document text on the section marker. The text before the
// first marker is treated as document-wide general rules and is prepended
// to every chunk, so each chunk retrieved in isolation still carries its
// context. Chunk order is the order sections appear in the document.
func Split(docLabel, text string) ([]store.Chunk, error) {
	sections := strings.Split(text, sectionMarker)
	generalRules := strings.TrimSpace(sections[0])

	var chunks []store.Chunk
	for _, section := range sections[1:] {
		titleEnd := strings.Index(section, "\n")
		if titleEnd == -1 {
			continue
		}
		title := strings.TrimSpace(section[:titleEnd])
		body := strings.TrimSpace(section[titleEnd+1:])
		if title == "" {
			continue
		}

		chunks = append(chunks, store.Chunk{
			ID:      uuid.NewString(),
			Title:   title,
			Content: renderChunk(docLabel, generalRules, title, body),
		})
	}

	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrMalformedDocument, docLabel)
	}
	return chunks, nil
}

func renderChunk(docLabel, generalRules, title, body string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Document: %s\n\n", docLabel)
	if generalRules != "" {
		b.WriteString(generalRules)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "## %s\n%s", title, body)
	return b.String()
}
