// Package router implements the query classification state machine: it
// decides whether a query is answered with a canned response, a follow-up
// answer, or a fully budgeted generation.
package router

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/sweetbite/mealqa/internal/config"
	"github.com/sweetbite/mealqa/internal/llm"
	"github.com/sweetbite/mealqa/internal/prompt"
	"github.com/sweetbite/mealqa/internal/store"
)

// Canned responses for the short-circuit paths.
const (
	greetingResponse = "Hey hey! Good to see you here 😄\nI need a specific meal or beverage to optimize. What exactly are you eating or drinking?"

	outOfScopeResponse = "I need a specific meal to optimize. What are you eating/drinking today?"

	bestCategoryResponse = "Excellent choice!\nThis is already excellent for blood sugar! Nothing to modify here.\nEnjoy and savor every moment."
)

// bestCategory is the most favorable meal rating; it needs no advice and
// short-circuits generation.
const bestCategory = "D"

// Intent is the first classification over an incoming query.
type Intent int

const (
	IntentProceed Intent = iota
	IntentGreeting
	IntentOutOfScope
	IntentFollowUp
)

// OutcomeKind tags how a query was resolved.
type OutcomeKind int

const (
	// OutcomeShortCircuit means a canned response was returned without
	// calling the generation service with the real query.
	OutcomeShortCircuit OutcomeKind = iota
	// OutcomeGenerated means a budgeted prompt was sent to the
	// generation service.
	OutcomeGenerated
)

// Outcome is the tagged result of routing one query.
type Outcome struct {
	Kind              OutcomeKind
	Answer            string
	CountsTowardLimit bool
}

// Retriever is the search surface the router needs.
type Retriever interface {
	Search(ctx context.Context, query string, topK int, threshold float64) ([]store.ScoredChunk, error)
	FollowUpSearch(ctx context.Context, query string, maxChunks int, threshold float64) ([]store.ScoredChunk, error)
}

// Router routes queries through intent and category classification. All
// tunables come from the config snapshot passed to Route, so concurrent
// config updates never change behavior mid-request.
type Router struct {
	generator  llm.Generator
	retriever  Retriever
	counterFor func(model string) (prompt.CountFunc, error)
}

// New creates a router over the given generator and retriever.
func New(g llm.Generator, r Retriever) *Router {
	return &Router{
		generator:  g,
		retriever:  r,
		counterFor: prompt.CounterForModel,
	}
}

// Letters and digits are matched as Unicode classes, not \w, so accented
// food terms survive sanitization.
var disallowedChars = regexp.MustCompile(`[^\p{L}\p{N}_\s.,?!:;()\[\]{}'"-]`)

// Sanitize normalizes a query before it is used for search: the ampersand
// becomes its word form, characters outside the allowlist become spaces,
// and whitespace runs collapse to single spaces.
func Sanitize(query string) string {
	sanitized := strings.ReplaceAll(query, "&", "and")
	sanitized = disallowedChars.ReplaceAllString(sanitized, " ")
	sanitized = strings.Join(strings.Fields(sanitized), " ")
	if sanitized != query {
		log.Printf("Query sanitized: %q -> %q", query, sanitized)
	}
	return sanitized
}

// Route runs the full state machine for one query.
func (r *Router) Route(ctx context.Context, cfg config.Config, query string, history []llm.Message) (Outcome, error) {
	intent, err := r.classifyIntent(ctx, cfg, query)
	if err != nil {
		return Outcome{}, err
	}

	switch intent {
	case IntentGreeting:
		return Outcome{Kind: OutcomeShortCircuit, Answer: greetingResponse}, nil
	case IntentOutOfScope:
		return Outcome{Kind: OutcomeShortCircuit, Answer: outOfScopeResponse}, nil
	case IntentFollowUp:
		return r.answerFollowUp(ctx, cfg, query, history)
	}

	return r.answerQuery(ctx, cfg, query, history)
}

// classifyIntent asks for a single-character label. Anything outside the
// known label set is treated as out-of-scope.
func (r *Router) classifyIntent(ctx context.Context, cfg config.Config, query string) (Intent, error) {
	label, err := r.generator.Chat(ctx, llm.ChatRequest{
		System:      cfg.Prompt.IntentClassifier,
		User:        query,
		Temperature: cfg.LLM.ClassifierTemp,
		MaxTokens:   1,
	})
	if err != nil {
		return 0, fmt.Errorf("classify intent: %w", err)
	}

	switch strings.TrimSpace(label) {
	case "0":
		return IntentProceed, nil
	case "1":
		return IntentGreeting, nil
	case "2":
		return IntentOutOfScope, nil
	case "3":
		return IntentFollowUp, nil
	}
	log.Printf("Unrecognized intent label %q, treating as out of scope", label)
	return IntentOutOfScope, nil
}

// classifyCategory rates the meal A through D.
func (r *Router) classifyCategory(ctx context.Context, cfg config.Config, query string) (string, error) {
	label, err := r.generator.Chat(ctx, llm.ChatRequest{
		System:      cfg.Prompt.CategoryClassifier,
		User:        query,
		Temperature: cfg.LLM.ClassifierTemp,
		MaxTokens:   1,
	})
	if err != nil {
		return "", fmt.Errorf("classify category: %w", err)
	}

	label = strings.TrimSpace(label)
	switch label {
	case "A", "B", "C", "D":
		return label, nil
	}
	log.Printf("Unrecognized category label %q, treating as %q", label, "A")
	return "A", nil
}

func (r *Router) answerFollowUp(ctx context.Context, cfg config.Config, query string, history []llm.Message) (Outcome, error) {
	sanitized := Sanitize(query)

	chunks, err := r.retriever.FollowUpSearch(ctx, sanitized, cfg.Search.FollowUpMaxChunks, cfg.Search.FollowUpThreshold)
	if err != nil {
		return Outcome{}, err
	}

	count, err := r.counterFor(cfg.LLM.ChatModel)
	if err != nil {
		return Outcome{}, err
	}

	system, err := prompt.Build(cfg.Prompt.FollowUp, sanitized, chunks, cfg.Budget.TokenLimit, count)
	if err != nil {
		return Outcome{}, err
	}

	answer, err := r.generator.Chat(ctx, llm.ChatRequest{
		System:      system,
		User:        sanitized,
		History:     prompt.TrimHistory(history, cfg.Budget.HistoryTokenBudget, count),
		Temperature: cfg.LLM.ChatTemp,
	})
	if err != nil {
		return Outcome{}, err
	}

	return Outcome{
		Kind:              OutcomeGenerated,
		Answer:            answer,
		CountsTowardLimit: cfg.Usage.CountsForFollowUp(),
	}, nil
}

func (r *Router) answerQuery(ctx context.Context, cfg config.Config, query string, history []llm.Message) (Outcome, error) {
	category, err := r.classifyCategory(ctx, cfg, query)
	if err != nil {
		return Outcome{}, err
	}
	if category == bestCategory {
		return Outcome{
			Kind:              OutcomeShortCircuit,
			Answer:            bestCategoryResponse,
			CountsTowardLimit: cfg.Usage.CountsForBestCategory(),
		}, nil
	}

	sanitized := Sanitize(query)

	chunks, err := r.retriever.Search(ctx, sanitized, cfg.Search.TopK, cfg.Search.SimilarityThreshold)
	if err != nil {
		return Outcome{}, err
	}

	count, err := r.counterFor(cfg.LLM.ChatModel)
	if err != nil {
		return Outcome{}, err
	}

	// The category steers tone but must never surface in the answer.
	base := fmt.Sprintf("You are analyzing a Type %s. NEVER NEVER mention this type to the user.\n\n%s", category, cfg.Prompt.Base)

	system, err := prompt.Build(base, sanitized, chunks, cfg.Budget.TokenLimit, count)
	if err != nil {
		return Outcome{}, err
	}

	answer, err := r.generator.Chat(ctx, llm.ChatRequest{
		System:      system,
		User:        sanitized,
		History:     prompt.TrimHistory(history, cfg.Budget.HistoryTokenBudget, count),
		Temperature: cfg.LLM.ChatTemp,
	})
	if err != nil {
		return Outcome{}, err
	}

	return Outcome{
		Kind:              OutcomeGenerated,
		Answer:            answer,
		CountsTowardLimit: true,
	}, nil
}
