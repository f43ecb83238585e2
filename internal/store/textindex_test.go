package store

import (
	"path/filepath"
	"testing"
)

func openTestTextIndex(t *testing.T) *TextIndex {
	t.Helper()
	idx, err := OpenTextIndex(filepath.Join(t.TempDir(), "chunks.bleve"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestTextIndexSearch(t *testing.T) {
	idx := openTestTextIndex(t)

	chunks := []Chunk{
		{ID: "c1", Title: "Breakfast", Content: "oatmeal with walnuts and berries"},
		{ID: "c2", Title: "Drinks", Content: "water instead of fruit juice"},
	}
	if err := idx.IndexChunks("guide", chunks); err != nil {
		t.Fatalf("IndexChunks() error = %v", err)
	}

	hits, err := idx.Search("oatmeal", 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("got %d hits, want 1", len(hits))
	}
	if hits[0].ChunkID != "c1" || hits[0].DocID != "guide" || hits[0].Title != "Breakfast" {
		t.Errorf("hit = %+v", hits[0])
	}
}

func TestTextIndexDeleteDocument(t *testing.T) {
	idx := openTestTextIndex(t)

	if err := idx.IndexChunks("guide", []Chunk{
		{ID: "c1", Title: "Drinks", Content: "water instead of juice"},
	}); err != nil {
		t.Fatal(err)
	}
	if err := idx.IndexChunks("other", []Chunk{
		{ID: "c2", Title: "Drinks", Content: "sparkling water is fine"},
	}); err != nil {
		t.Fatal(err)
	}

	if err := idx.DeleteDocument("guide"); err != nil {
		t.Fatalf("DeleteDocument() error = %v", err)
	}

	hits, err := idx.Search("water", 10)
	if err != nil {
		t.Fatal(err)
	}
	for _, hit := range hits {
		if hit.DocID == "guide" {
			t.Errorf("deleted document still searchable: %+v", hit)
		}
	}
	if len(hits) == 0 {
		t.Error("unrelated document was removed too")
	}
}
