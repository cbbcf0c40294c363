// Package query turns free-text user input into catalog searches. It
// normalizes the text into FTS5 match syntax and, for CJK input, segments
// the text into words first so the unicode61 tokenizer can match it.
package query

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/go-ego/gse"

	"picfinder/internal/database"
	"picfinder/internal/logging"
	"picfinder/internal/metrics"
)

// Engine executes searches against one catalog store.
type Engine struct {
	store     *database.Store
	segmenter *gse.Segmenter
}

var sharedSegmenter *gse.Segmenter

// loadSegmenter initializes the shared CJK segmenter once. A load failure
// is logged and segmentation is skipped; plain queries still work.
func loadSegmenter() *gse.Segmenter {
	if sharedSegmenter != nil {
		return sharedSegmenter
	}
	seg := &gse.Segmenter{}
	if err := seg.LoadDict(); err != nil {
		logging.Warn("CJK segmenter unavailable: %v", err)
		return nil
	}
	sharedSegmenter = seg
	return seg
}

// NewEngine creates an engine over an open store.
func NewEngine(store *database.Store) *Engine {
	return &Engine{store: store, segmenter: loadSegmenter()}
}

// Search runs one free-text query and returns matches best first. An empty
// or whitespace-only query returns no results without touching the store.
func (e *Engine) Search(ctx context.Context, text string) ([]database.SearchResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}

	start := time.Now()
	results, err := e.store.Search(ctx, e.rewrite(text))
	metrics.SearchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SearchQueriesTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.SearchQueriesTotal.WithLabelValues("ok").Inc()

	logging.Debug("Search %q matched %d pictures in %v", text, len(results), time.Since(start))
	return results, nil
}

// rewrite converts free text into an FTS5 match expression. Each token is
// quoted so user input cannot inject match operators, and tokens are
// implicitly ANDed.
func (e *Engine) rewrite(text string) string {
	tokens := e.tokenize(text)
	quoted := make([]string, len(tokens))
	for i, tok := range tokens {
		quoted[i] = `"` + strings.ReplaceAll(tok, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " ")
}

// tokenize splits the query into match tokens. CJK runs are segmented into
// dictionary words; everything else splits on whitespace. If the segmenter
// is unavailable the raw fields are used as-is.
func (e *Engine) tokenize(text string) []string {
	if e.segmenter == nil || !containsCJK(text) {
		return strings.Fields(text)
	}

	var tokens []string
	for _, field := range strings.Fields(text) {
		if !containsCJK(field) {
			tokens = append(tokens, field)
			continue
		}
		for _, word := range e.segmenter.CutSearch(field, true) {
			word = strings.TrimSpace(word)
			if word != "" {
				tokens = append(tokens, word)
			}
		}
	}
	return tokens
}

func containsCJK(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hiragana, r) ||
			unicode.Is(unicode.Katakana, r) || unicode.Is(unicode.Hangul, r) {
			return true
		}
	}
	return false
}
