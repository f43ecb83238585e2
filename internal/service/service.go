// Package service wires the indexing and answering pipelines together and
// is the surface the HTTP layer and CLI call into.
package service

import (
	"context"
	"fmt"
	"log"

	"github.com/sweetbite/mealqa/internal/chunker"
	"github.com/sweetbite/mealqa/internal/config"
	"github.com/sweetbite/mealqa/internal/llm"
	"github.com/sweetbite/mealqa/internal/retrieval"
	"github.com/sweetbite/mealqa/internal/router"
	"github.com/sweetbite/mealqa/internal/store"
)

// Service runs the document write path and the query read path.
type Service struct {
	cfg       *config.Manager
	store     *store.Store
	textIndex *store.TextIndex
	gateway   llm.Client
	router    *router.Router
	retriever *retrieval.Retriever
}

// New assembles a service. textIndex may be nil, in which case keyword
// lookup is unavailable but indexing and QA work normally.
func New(cfg *config.Manager, s *store.Store, textIndex *store.TextIndex, gateway llm.Client) *Service {
	retriever := retrieval.New(s, gateway)
	return &Service{
		cfg:       cfg,
		store:     s,
		textIndex: textIndex,
		gateway:   gateway,
		router:    router.New(gateway, retriever),
		retriever: retriever,
	}
}

// Answer is the result of one answered query.
type Answer struct {
	Text              string
	CountsTowardLimit bool
}

// ClassifyAndAnswer routes one query through classification, retrieval and
// generation. Each call works from a config snapshot taken at entry.
func (s *Service) ClassifyAndAnswer(ctx context.Context, query string, history []llm.Message) (Answer, error) {
	cfg := s.cfg.Snapshot()

	outcome, err := s.router.Route(ctx, cfg, query, history)
	if err != nil {
		return Answer{}, err
	}
	return Answer{
		Text:              outcome.Answer,
		CountsTowardLimit: outcome.CountsTowardLimit,
	}, nil
}

// IndexDocument chunks the document text, embeds every chunk and builds
// the document's index entry. A malformed document leaves no artifacts.
func (s *Service) IndexDocument(ctx context.Context, docID, text string) (int, error) {
	exists, err := s.store.Exists(ctx, docID)
	if err != nil {
		return 0, err
	}
	if exists {
		return 0, fmt.Errorf("%w: %s", store.ErrDocumentExists, docID)
	}

	chunks, err := chunker.Split(docID, text)
	if err != nil {
		return 0, err
	}

	contents := make([]string, len(chunks))
	for i, chunk := range chunks {
		contents[i] = chunk.Content
	}
	vectors, err := s.gateway.EmbedBatch(ctx, contents)
	if err != nil {
		return 0, err
	}

	if err := s.store.Build(ctx, docID, chunks, vectors); err != nil {
		return 0, err
	}

	if s.textIndex != nil {
		// The vector index is already live; a keyword index failure only
		// degrades the admin lookup.
		if err := s.textIndex.IndexChunks(docID, chunks); err != nil {
			log.Printf("Keyword indexing failed for document %s: %v", docID, err)
		}
	}
	return len(chunks), nil
}

// RemoveDocument deletes a document's index artifacts. Removing an absent
// document is a no-op.
func (s *Service) RemoveDocument(ctx context.Context, docID string) error {
	if err := s.store.Delete(ctx, docID); err != nil {
		return err
	}
	if s.textIndex != nil {
		if err := s.textIndex.DeleteDocument(docID); err != nil {
			log.Printf("Keyword index cleanup failed for document %s: %v", docID, err)
		}
	}
	return nil
}

// Documents lists all indexed document ids.
func (s *Service) Documents(ctx context.Context) ([]string, error) {
	return s.store.Documents(ctx)
}

// SearchChunks runs an admin keyword search over indexed chunks.
func (s *Service) SearchChunks(query string, topK int) ([]store.KeywordHit, error) {
	if s.textIndex == nil {
		return nil, fmt.Errorf("keyword index is not configured")
	}
	return s.textIndex.Search(query, topK)
}

// Config returns the live configuration manager.
func (s *Service) Config() *config.Manager {
	return s.cfg
}
