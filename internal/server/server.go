// Package server exposes the QA service over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sweetbite/mealqa/internal/chunker"
	"github.com/sweetbite/mealqa/internal/config"
	"github.com/sweetbite/mealqa/internal/llm"
	"github.com/sweetbite/mealqa/internal/service"
	"github.com/sweetbite/mealqa/internal/store"
)

// Server handles the HTTP API. Uploaded source documents are kept under
// filesDir so deletes can remove the source alongside the index artifacts.
type Server struct {
	svc      *service.Service
	filesDir string
	logPath  string
	mux      *http.ServeMux
}

// New creates a server around the service. logPath may be empty if no log
// file is configured; GET /logs then returns 404.
func New(svc *service.Service, filesDir, logPath string) *Server {
	s := &Server{
		svc:      svc,
		filesDir: filesDir,
		logPath:  logPath,
		mux:      http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("POST /ask", s.handleAsk)
	s.mux.HandleFunc("POST /upload", s.handleUpload)
	s.mux.HandleFunc("DELETE /delete/{name}", s.handleDelete)
	s.mux.HandleFunc("GET /files", s.handleFiles)
	s.mux.HandleFunc("GET /config", s.handleGetConfig)
	s.mux.HandleFunc("POST /config", s.handleUpdateConfig)
	s.mux.HandleFunc("GET /chunks/search", s.handleChunkSearch)
	s.mux.HandleFunc("GET /logs", s.handleLogs)
}

// ServeHTTP applies permissive CORS and dispatches to the API routes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.mux.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type askRequest struct {
	Query   string        `json:"query"`
	History []llm.Message `json:"history,omitempty"`
}

type askResponse struct {
	Answer            string `json:"answer"`
	CountsTowardLimit bool   `json:"counts_toward_limit"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	answer, err := s.svc.ClassifyAndAnswer(r.Context(), req.Query, req.History)
	if err != nil {
		log.Printf("Query failed: %v", err)
		writeError(w, http.StatusBadGateway, "failed to answer the query")
		return
	}
	writeJSON(w, http.StatusOK, askResponse{
		Answer:            answer.Text,
		CountsTowardLimit: answer.CountsTowardLimit,
	})
}

type uploadRequest struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	var req uploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	name := sanitizeName(req.Name)
	if name == "" || req.Text == "" {
		writeError(w, http.StatusBadRequest, "name and text are required")
		return
	}

	chunks, err := s.svc.IndexDocument(r.Context(), name, req.Text)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrDocumentExists):
			writeError(w, http.StatusBadRequest, fmt.Sprintf("document %q is already indexed", name))
		case errors.Is(err, chunker.ErrMalformedDocument):
			writeError(w, http.StatusBadRequest, "document contains no titled sections")
		default:
			log.Printf("Upload failed for %s: %v", name, err)
			writeError(w, http.StatusInternalServerError, "failed to index the document")
		}
		return
	}

	if err := s.saveSource(name, req.Text); err != nil {
		log.Printf("Failed to save source for %s: %v", name, err)
	}
	writeJSON(w, http.StatusOK, map[string]any{"name": name, "chunks": chunks})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	name := sanitizeName(r.PathValue("name"))
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	if err := s.svc.RemoveDocument(r.Context(), name); err != nil {
		log.Printf("Delete failed for %s: %v", name, err)
		writeError(w, http.StatusInternalServerError, "failed to delete the document")
		return
	}
	if s.filesDir != "" {
		if err := os.Remove(filepath.Join(s.filesDir, name)); err != nil && !os.IsNotExist(err) {
			log.Printf("Failed to remove source file for %s: %v", name, err)
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": name})
}

func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	docs, err := s.svc.Documents(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list documents")
		return
	}
	if docs == nil {
		docs = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"files": docs})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg := s.svc.Config().Snapshot()
	cfg.LLM.APIKey = "***"
	writeJSON(w, http.StatusOK, configView(cfg))
}

type configUpdate struct {
	BasePrompt          *string  `json:"base_prompt,omitempty"`
	FollowUpPrompt      *string  `json:"follow_up_prompt,omitempty"`
	TopK                *int     `json:"top_k,omitempty"`
	SimilarityThreshold *float64 `json:"similarity_threshold,omitempty"`
	TokenLimit          *int     `json:"token_limit,omitempty"`
	HistoryTokenBudget  *int     `json:"history_token_budget,omitempty"`
	ChatTemperature     *float64 `json:"chat_temperature,omitempty"`
	FollowUpCounts      *bool    `json:"follow_up_counts,omitempty"`
	BestCategoryCounts  *bool    `json:"best_category_counts,omitempty"`
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req configUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	err := s.svc.Config().Update(func(cfg *config.Config) {
		if req.BasePrompt != nil {
			cfg.Prompt.Base = *req.BasePrompt
		}
		if req.FollowUpPrompt != nil {
			cfg.Prompt.FollowUp = *req.FollowUpPrompt
		}
		if req.TopK != nil {
			cfg.Search.TopK = *req.TopK
		}
		if req.SimilarityThreshold != nil {
			cfg.Search.SimilarityThreshold = *req.SimilarityThreshold
		}
		if req.TokenLimit != nil {
			cfg.Budget.TokenLimit = *req.TokenLimit
		}
		if req.HistoryTokenBudget != nil {
			cfg.Budget.HistoryTokenBudget = *req.HistoryTokenBudget
		}
		if req.ChatTemperature != nil {
			cfg.LLM.ChatTemp = *req.ChatTemperature
		}
		if req.FollowUpCounts != nil {
			cfg.Usage.FollowUpCounts = req.FollowUpCounts
		}
		if req.BestCategoryCounts != nil {
			cfg.Usage.BestCategoryCounts = req.BestCategoryCounts
		}
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cfg := s.svc.Config().Snapshot()
	cfg.LLM.APIKey = "***"
	writeJSON(w, http.StatusOK, configView(cfg))
}

func (s *Server) handleChunkSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	topK := 10
	if raw := r.URL.Query().Get("k"); raw != "" {
		k, err := strconv.Atoi(raw)
		if err != nil || k <= 0 {
			writeError(w, http.StatusBadRequest, "k must be a positive integer")
			return
		}
		topK = k
	}

	hits, err := s.svc.SearchChunks(query, topK)
	if err != nil {
		log.Printf("Chunk search failed: %v", err)
		writeError(w, http.StatusInternalServerError, "keyword search failed")
		return
	}
	if hits == nil {
		hits = []store.KeywordHit{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"hits": hits})
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if s.logPath == "" {
		writeError(w, http.StatusNotFound, "no log file configured")
		return
	}
	data, err := os.ReadFile(s.logPath)
	if err != nil {
		writeError(w, http.StatusNotFound, "log file not readable")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write(data)
}

func (s *Server) saveSource(name, text string) error {
	if s.filesDir == "" {
		return nil
	}
	if err := os.MkdirAll(s.filesDir, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.filesDir, name), []byte(text), 0644)
}

// sanitizeName keeps document names safe for use as file names.
func sanitizeName(name string) string {
	name = strings.TrimSpace(name)
	name = filepath.Base(name)
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	return name
}

// configView flattens the snapshot for the admin UI, omitting secrets.
func configView(cfg config.Config) map[string]any {
	return map[string]any{
		"chat_model":           cfg.LLM.ChatModel,
		"embedding_model":      cfg.LLM.EmbeddingModel,
		"chat_temperature":     cfg.LLM.ChatTemp,
		"base_prompt":          cfg.Prompt.Base,
		"follow_up_prompt":     cfg.Prompt.FollowUp,
		"top_k":                cfg.Search.TopK,
		"similarity_threshold": cfg.Search.SimilarityThreshold,
		"follow_up_threshold":  cfg.Search.FollowUpThreshold,
		"token_limit":          cfg.Budget.TokenLimit,
		"history_token_budget": cfg.Budget.HistoryTokenBudget,
		"follow_up_counts":     cfg.Usage.CountsForFollowUp(),
		"best_category_counts": cfg.Usage.CountsForBestCategory(),
	}
}
