package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/sweetbite/mealqa/internal/store"
)

type fakeStore struct {
	docs map[string][]store.ScoredChunk
	errs map[string]error
}

func (f *fakeStore) Documents(ctx context.Context) ([]string, error) {
	ids := make([]string, 0, len(f.docs))
	for id := range f.docs {
		ids = append(ids, id)
	}
	for id := range f.errs {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeStore) SearchOne(ctx context.Context, docID string, queryVec []float32, k int) ([]store.ScoredChunk, error) {
	if err := f.errs[docID]; err != nil {
		return nil, err
	}
	hits := f.docs[docID]
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

type fakeEmbedder struct {
	calls int
	err   error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []float32{1, 0}, nil
}

func hit(docID, chunkID string, position int, score float64) store.ScoredChunk {
	return store.ScoredChunk{
		Chunk:      store.Chunk{ID: chunkID, Title: chunkID, Content: "body " + chunkID},
		DocumentID: docID,
		Position:   position,
		Score:      score,
	}
}

func TestSearchMergesAcrossDocuments(t *testing.T) {
	fs := &fakeStore{docs: map[string][]store.ScoredChunk{
		"breakfast": {hit("breakfast", "b1", 0, 0.9), hit("breakfast", "b2", 1, 0.4)},
		"drinks":    {hit("drinks", "d1", 0, 0.7), hit("drinks", "d2", 1, 0.2)},
	}}
	emb := &fakeEmbedder{}

	got, err := New(fs, emb).Search(context.Background(), "rice for dinner", 3, 0.3)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	// d2 falls below threshold; the rest merge sorted by score.
	want := []string{"b1", "d1", "b2"}
	if len(got) != len(want) {
		t.Fatalf("got %d hits, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].Chunk.ID != id {
			t.Errorf("hit[%d] = %q, want %q", i, got[i].Chunk.ID, id)
		}
		if got[i].Score < 0.3 {
			t.Errorf("hit[%d] score %v below threshold", i, got[i].Score)
		}
	}
	if emb.calls != 1 {
		t.Errorf("query embedded %d times, want 1", emb.calls)
	}
}

func TestSearchTopKCapBeatsThreshold(t *testing.T) {
	// A locally-strong 0.7 hit survives the threshold but loses to the
	// global topK cap.
	fs := &fakeStore{docs: map[string][]store.ScoredChunk{
		"a": {hit("a", "a-high", 0, 0.9), hit("a", "a-mid", 1, 0.7)},
		"b": {hit("b", "b-high", 0, 0.85)},
	}}

	got, err := New(fs, &fakeEmbedder{}).Search(context.Background(), "q", 2, 0.6)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d hits, want 2", len(got))
	}
	if got[0].Chunk.ID != "a-high" || got[1].Chunk.ID != "b-high" {
		t.Errorf("hits = %q, %q, want a-high, b-high", got[0].Chunk.ID, got[1].Chunk.ID)
	}
}

func TestSearchTruncatesToTopK(t *testing.T) {
	fs := &fakeStore{docs: map[string][]store.ScoredChunk{
		"doc": {
			hit("doc", "a", 0, 0.9),
			hit("doc", "b", 1, 0.8),
			hit("doc", "c", 2, 0.7),
		},
	}}

	got, err := New(fs, &fakeEmbedder{}).Search(context.Background(), "q", 2, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d hits, want 2", len(got))
	}
	if got[0].Chunk.ID != "a" || got[1].Chunk.ID != "b" {
		t.Errorf("hits = %q, %q", got[0].Chunk.ID, got[1].Chunk.ID)
	}
}

func TestSearchTieBreakIsDeterministic(t *testing.T) {
	fs := &fakeStore{docs: map[string][]store.ScoredChunk{
		"zeta":  {hit("zeta", "z0", 0, 0.5)},
		"alpha": {hit("alpha", "a1", 1, 0.5), hit("alpha", "a0", 0, 0.5)},
	}}

	for i := 0; i < 5; i++ {
		got, err := New(fs, &fakeEmbedder{}).Search(context.Background(), "q", 3, 0)
		if err != nil {
			t.Fatal(err)
		}
		want := []string{"a0", "a1", "z0"}
		for j, id := range want {
			if got[j].Chunk.ID != id {
				t.Fatalf("run %d: hit[%d] = %q, want %q", i, j, got[j].Chunk.ID, id)
			}
		}
	}
}

func TestSearchSkipsFailingDocument(t *testing.T) {
	fs := &fakeStore{
		docs: map[string][]store.ScoredChunk{
			"good": {hit("good", "g", 0, 0.8)},
		},
		errs: map[string]error{
			"bad": errors.New("index unreadable"),
		},
	}

	got, err := New(fs, &fakeEmbedder{}).Search(context.Background(), "q", 5, 0)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 1 || got[0].Chunk.ID != "g" {
		t.Errorf("got %v, want single hit from good document", got)
	}
}

func TestSearchEmbedFailure(t *testing.T) {
	fs := &fakeStore{docs: map[string][]store.ScoredChunk{}}
	emb := &fakeEmbedder{err: errors.New("gateway down")}

	if _, err := New(fs, emb).Search(context.Background(), "q", 5, 0); err == nil {
		t.Fatal("expected error when embedding fails")
	}
}

func TestSearchNoDocuments(t *testing.T) {
	got, err := New(&fakeStore{}, &fakeEmbedder{}).Search(context.Background(), "q", 5, 0.3)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d hits, want 0", len(got))
	}
}
