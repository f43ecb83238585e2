package chunker

import (
	"errors"
	"strings"
	"testing"
)

const sampleDoc = `Always prefer low glycemic options.
Pair carbs with protein.

Section: Breakfast
Oatmeal with nuts is a solid start.

Section: Drinks
Skip juice, drink water with meals.
`

func TestSplit(t *testing.T) {
	chunks, err := Split("meal-guide", sampleDoc)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}

	// Section order must survive.
	if chunks[0].Title != "Breakfast" || chunks[1].Title != "Drinks" {
		t.Errorf("titles = %q, %q", chunks[0].Title, chunks[1].Title)
	}

	// Every chunk is self-contained: provenance, general rules, own section.
	for _, chunk := range chunks {
		if !strings.HasPrefix(chunk.Content, "Document: meal-guide\n\n") {
			t.Errorf("chunk %q missing provenance tag:\n%s", chunk.Title, chunk.Content)
		}
		if !strings.Contains(chunk.Content, "Pair carbs with protein.") {
			t.Errorf("chunk %q missing general rules:\n%s", chunk.Title, chunk.Content)
		}
		if !strings.Contains(chunk.Content, "## "+chunk.Title+"\n") {
			t.Errorf("chunk %q missing titled block:\n%s", chunk.Title, chunk.Content)
		}
	}

	if !strings.Contains(chunks[1].Content, "drink water with meals") {
		t.Errorf("chunk content lost section body:\n%s", chunks[1].Content)
	}
}

func TestSplitAssignsUniqueIDs(t *testing.T) {
	chunks, err := Split("doc", sampleDoc)
	if err != nil {
		t.Fatal(err)
	}
	seen := make(map[string]bool)
	for _, chunk := range chunks {
		if chunk.ID == "" {
			t.Fatal("empty chunk id")
		}
		if seen[chunk.ID] {
			t.Fatalf("duplicate chunk id %s", chunk.ID)
		}
		seen[chunk.ID] = true
	}
}

func TestSplitMalformed(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"no sections", "just some prose without any markers"},
		{"empty", ""},
		{"marker without title line", "rules\n\nSection: dangling"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Split("doc", tt.text)
			if !errors.Is(err, ErrMalformedDocument) {
				t.Errorf("error = %v, want ErrMalformedDocument", err)
			}
		})
	}
}

func TestSplitWithoutGeneralRules(t *testing.T) {
	chunks, err := Split("doc", "Section: Snacks\nNuts over chips.")
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
	want := "Document: doc\n\n## Snacks\nNuts over chips."
	if chunks[0].Content != want {
		t.Errorf("content = %q, want %q", chunks[0].Content, want)
	}
}
