// Package retrieval provides the knowledge lookup behind the general
// assistant: a small passage corpus searched by keyword overlap, exposed to
// the model as a tool.
package retrieval

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"unicode"

	"github.com/smallnest/medrouter/tool"
)

// Passage is one retrievable unit of knowledge.
type Passage struct {
	ID      string         `json:"id"`
	Title   string         `json:"title"`
	Content string         `json:"content"`
	Tags    []string       `json:"tags,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

// SearchResult pairs a passage with its relevance score in [0, 1].
type SearchResult struct {
	Passage Passage `json:"passage"`
	Score   float64 `json:"score"`
}

// Retriever finds passages relevant to a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]SearchResult, error)
}

const defaultTopK = 3

// StaticRetriever searches an in-memory corpus by keyword overlap. It is the
// default backing for the assistant's knowledge tool; swap in a vector-backed
// Retriever for larger corpora.
type StaticRetriever struct {
	passages []Passage
}

var _ Retriever = (*StaticRetriever)(nil)

// NewStaticRetriever builds a retriever over a fixed corpus.
func NewStaticRetriever(passages []Passage) *StaticRetriever {
	return &StaticRetriever{passages: passages}
}

// Retrieve scores every passage against the query and returns the top k,
// highest score first. Passages with no keyword overlap are dropped.
func (r *StaticRetriever) Retrieve(ctx context.Context, query string, k int) ([]SearchResult, error) {
	if k <= 0 {
		k = defaultTopK
	}

	queryWords := keywords(query)
	if len(queryWords) == 0 {
		return nil, nil
	}

	results := make([]SearchResult, 0, len(r.passages))
	for _, p := range r.passages {
		score := overlapScore(queryWords, p)
		if score > 0 {
			results = append(results, SearchResult{Passage: p, Score: score})
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// overlapScore is the fraction of query keywords found in the passage's
// title, content or tags. Tag hits count double, capped at 1.0.
func overlapScore(queryWords []string, p Passage) float64 {
	haystack := strings.ToLower(p.Title + " " + p.Content)
	tags := make(map[string]bool, len(p.Tags))
	for _, tag := range p.Tags {
		tags[strings.ToLower(tag)] = true
	}

	score := 0.0
	for _, word := range queryWords {
		if tags[word] {
			score += 2
		} else if strings.Contains(haystack, word) {
			score++
		}
	}

	score /= float64(len(queryWords))
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// keywords splits text into lowercase words with stop words removed.
func keywords(text string) []string {
	words := make([]string, 0)
	current := strings.Builder{}

	flush := func() {
		if current.Len() > 0 {
			word := strings.ToLower(current.String())
			if !isCommonWord(word) {
				words = append(words, word)
			}
			current.Reset()
		}
	}

	for _, char := range text {
		if unicode.IsLetter(char) || unicode.IsDigit(char) {
			current.WriteRune(char)
		} else {
			flush()
		}
	}
	flush()

	return words
}

func isCommonWord(word string) bool {
	commonWords := map[string]bool{
		"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
		"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
		"with": true, "by": true, "is": true, "are": true, "was": true, "were": true,
		"be": true, "have": true, "has": true, "had": true, "do": true, "does": true,
		"did": true, "will": true, "would": true, "could": true, "should": true,
		"may": true, "might": true, "can": true, "this": true, "that": true, "these": true,
		"those": true, "i": true, "you": true, "he": true, "she": true, "it": true,
		"we": true, "they": true, "what": true, "where": true, "when": true, "why": true,
		"how": true, "who": true, "which": true, "whose": true, "whom": true,
		"my": true, "me": true, "about": true, "tell": true,
	}
	return commonWords[word]
}

type lookupArgs struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

// KnowledgeTool exposes a retriever to the model as a lookup function.
func KnowledgeTool(retriever Retriever) tool.Tool {
	return tool.Tool{
		Name: "lookup_knowledge",
		Description: "Search the health knowledge base for passages relevant " +
			"to a question. Returns the best matches with relevance scores.",
		Schema: tool.ObjectSchema(map[string]any{
			"query": map[string]any{"type": "string", "description": "What to look up"},
			"limit": map[string]any{"type": "integer", "description": "Maximum passages to return, default 3"},
		}, "query"),
		Call: func(ctx context.Context, arguments string) (string, error) {
			var args lookupArgs
			if err := json.Unmarshal([]byte(arguments), &args); err != nil {
				return "", tool.ValidationError("invalid arguments: %v", err)
			}
			if strings.TrimSpace(args.Query) == "" {
				return "", tool.ValidationError("query is required")
			}

			results, err := retriever.Retrieve(ctx, args.Query, args.Limit)
			if err != nil {
				return "", tool.UpstreamError("knowledge lookup failed: %v", err)
			}

			payload := map[string]any{"results": results}
			if len(results) == 0 {
				payload["results"] = []SearchResult{}
				payload["note"] = "no matching passages"
			}
			data, merr := json.Marshal(payload)
			if merr != nil {
				return "", tool.UpstreamError("failed to encode results: %v", merr)
			}
			return string(data), nil
		},
	}
}
