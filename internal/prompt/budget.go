// Package prompt assembles budgeted system prompts from ranked chunks and
// trims chat history to its own token budget.
package prompt

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/sweetbite/mealqa/internal/llm"
	"github.com/sweetbite/mealqa/internal/store"
)

// ErrPromptTooLarge is returned when the base instruction plus the query
// alone exceed the token limit. The caller must not send the request on.
var ErrPromptTooLarge = errors.New("base prompt and query exceed token limit")

// CountFunc counts tokens the way the active generation model does.
type CountFunc func(text string) int

// CounterForModel returns a token counter bound to the model's tokenizer,
// falling back to cl100k_base for models tiktoken does not know.
func CounterForModel(model string) (CountFunc, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("load tokenizer: %w", err)
		}
	}
	return func(text string) int {
		return len(enc.Encode(text, nil, nil))
	}, nil
}

// Build packs ranked chunks under the base instruction without exceeding
// tokenLimit - tokens(query). Chunks are taken in their given order and
// packing stops at the first chunk that would overflow, so rank priority
// wins over packing efficiency.
func Build(base, query string, chunks []store.ScoredChunk, tokenLimit int, count CountFunc) (string, error) {
	available := tokenLimit - count(base) - count(query)
	if available <= 0 {
		return "", fmt.Errorf("%w: limit %d", ErrPromptTooLarge, tokenLimit)
	}

	var b strings.Builder
	b.WriteString(base)
	used := 0
	for _, sc := range chunks {
		// The separator is part of the chunk's cost so the assembled
		// prompt stays within the limit.
		block := "\n\n" + renderBlock(sc.Chunk)
		cost := count(block)
		if used+cost > available {
			break
		}
		used += cost
		b.WriteString(block)
	}
	return b.String(), nil
}

func renderBlock(c store.Chunk) string {
	return fmt.Sprintf("## %s\n%s", c.Title, c.Content)
}

// TrimHistory drops whole turns, oldest first, until the history fits the
// budget. Turns are never truncated internally and surviving turns keep
// their order.
func TrimHistory(history []llm.Message, budget int, count CountFunc) []llm.Message {
	if budget <= 0 {
		return nil
	}

	total := 0
	for _, turn := range history {
		total += count(turn.Content)
	}
	for len(history) > 0 && total > budget {
		total -= count(history[0].Content)
		history = history[1:]
	}
	return history
}
