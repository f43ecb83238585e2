package store

import (
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
)

// TextIndex is a keyword index over all indexed chunks, used by the
// admin chunk lookup. It lives next to the vector store but is not part
// of the QA retrieval path, which is similarity-only.
type TextIndex struct {
	index bleve.Index
}

// TextDoc is the indexed representation of one chunk.
type TextDoc struct {
	DocID   string `json:"doc_id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// KeywordHit is one keyword search result.
type KeywordHit struct {
	ChunkID string
	DocID   string
	Title   string
	Score   float64
}

// OpenTextIndex opens the keyword index at dir, creating it if needed.
func OpenTextIndex(dir string) (*TextIndex, error) {
	index, err := bleve.Open(dir)
	if err == nil {
		return &TextIndex{index: index}, nil
	}
	if err != bleve.ErrorIndexPathDoesNotExist {
		return nil, fmt.Errorf("open text index: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create text index dir: %w", err)
	}
	index, err = bleve.New(dir, buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create text index: %w", err)
	}
	return &TextIndex{index: index}, nil
}

// IndexChunks adds all chunks of one document in a single batch.
func (t *TextIndex) IndexChunks(docID string, chunks []Chunk) error {
	batch := t.index.NewBatch()
	for _, chunk := range chunks {
		doc := TextDoc{
			DocID:   docID,
			Title:   chunk.Title,
			Content: chunk.Content,
		}
		if err := batch.Index(chunk.ID, doc); err != nil {
			return fmt.Errorf("index chunk %s: %w", chunk.ID, err)
		}
	}
	return t.index.Batch(batch)
}

// DeleteDocument removes all chunks belonging to one document.
func (t *TextIndex) DeleteDocument(docID string) error {
	docQuery := bleve.NewTermQuery(docID)
	docQuery.SetField("doc_id")
	req := bleve.NewSearchRequestOptions(docQuery, 1000, 0, false)

	res, err := t.index.Search(req)
	if err != nil {
		return fmt.Errorf("lookup chunks for %s: %w", docID, err)
	}

	batch := t.index.NewBatch()
	for _, hit := range res.Hits {
		batch.Delete(hit.ID)
	}
	return t.index.Batch(batch)
}

// Search runs a keyword query over chunk titles and contents.
func (t *TextIndex) Search(query string, topK int) ([]KeywordHit, error) {
	if topK <= 0 {
		topK = 10
	}

	contentQuery := bleve.NewMatchQuery(query)
	contentQuery.SetField("content")
	contentQuery.SetBoost(1.0)
	titleQuery := bleve.NewMatchQuery(query)
	titleQuery.SetField("title")
	titleQuery.SetBoost(2.0)
	disjunction := bleve.NewDisjunctionQuery(contentQuery, titleQuery)

	req := bleve.NewSearchRequestOptions(disjunction, topK, 0, false)
	req.Fields = []string{"doc_id", "title"}

	res, err := t.index.Search(req)
	if err != nil {
		return nil, err
	}

	var hits []KeywordHit
	for _, hit := range res.Hits {
		docID, _ := hit.Fields["doc_id"].(string)
		title, _ := hit.Fields["title"].(string)
		hits = append(hits, KeywordHit{
			ChunkID: hit.ID,
			DocID:   docID,
			Title:   title,
			Score:   hit.Score,
		})
	}
	return hits, nil
}

// Close closes the underlying index.
func (t *TextIndex) Close() error {
	return t.index.Close()
}

func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = "en"
	indexMapping.DefaultField = "content"

	docMapping := bleve.NewDocumentMapping()

	contentField := bleve.NewTextFieldMapping()
	contentField.Store = false
	contentField.Index = true
	docMapping.AddFieldMappingsAt("content", contentField)

	titleField := bleve.NewTextFieldMapping()
	titleField.Store = true
	titleField.Index = true
	docMapping.AddFieldMappingsAt("title", titleField)

	docIDField := bleve.NewTextFieldMapping()
	docIDField.Store = true
	docIDField.Index = true
	docIDField.Analyzer = "keyword"
	docMapping.AddFieldMappingsAt("doc_id", docIDField)

	indexMapping.DefaultMapping = docMapping
	return indexMapping
}
