package dialogue

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/hupe1980/vecsearch"
	"github.com/hupe1980/vecsearch/batch"
)

var sentenceRe = regexp.MustCompile(`[^.!?]+[.!?]*`)

// SplitSentences splits text on sentence punctuation. Empty pieces are dropped.
func SplitSentences(text string) []string {
	var out []string
	for _, s := range sentenceRe.FindAllString(text, -1) {
		s = strings.TrimSpace(s)
		if s != "" && strings.ContainsFunc(s, isWordRune) {
			out = append(out, s)
		}
	}
	return out
}

func isWordRune(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r > 127
}

type sentence struct {
	text string
	line int // index into Index.lines
}

// Hit is a search result.
type Hit struct {
	Sentence string
	Line     Line
	Distance float32
}

// Index stores every sentence of added speeches in a key-addressed store.
// Keys are sentence numbers in insertion order. Index is safe for
// concurrent use; adds are serialized and block searches while they run.
//
// With an exact keyed store, repeated sentences share one entry that points
// at the most recent speech.
type Index struct {
	store vecsearch.KeySearcher

	mu        sync.RWMutex
	lines     []Line
	sentences []sentence
}

// NewIndex creates an Index on top of an empty store.
func NewIndex(store vecsearch.KeySearcher) *Index {
	return &Index{store: store}
}

// Add splits a speech into sentences and stores them.
func (ix *Index) Add(ctx context.Context, actor, act, text string) error {
	return ix.addLines(ctx, []Line{{Actor: actor, Act: act, Text: text}}, batch.DefaultBatchSize)
}

// AddPlay stores every speech of play whose act passes keep, encoding
// batchSize sentences per provider call. A nil keep keeps every act.
func (ix *Index) AddPlay(ctx context.Context, play *Play, batchSize int, keep ...func(act string) bool) error {
	var lines []Line
	for _, a := range play.Acts {
		if len(keep) > 0 && keep[0] != nil && !keep[0](a.Name) {
			continue
		}
		lines = append(lines, a.Lines...)
	}
	return ix.addLines(ctx, lines, batchSize)
}

func (ix *Index) addLines(ctx context.Context, lines []Line, batchSize int) error {
	// Key allocation and the store insert happen under one lock so keys stay
	// dense and match ix.sentences.
	ix.mu.Lock()
	defer ix.mu.Unlock()

	var (
		keys    []int
		texts   []string
		pending []sentence
	)

	for i, l := range lines {
		for _, s := range SplitSentences(l.Text) {
			keys = append(keys, len(ix.sentences)+len(pending))
			texts = append(texts, s)
			pending = append(pending, sentence{text: s, line: len(ix.lines) + i})
		}
	}

	if len(texts) == 0 {
		ix.lines = append(ix.lines, lines...)
		return nil
	}

	vecs, err := ix.store.AddBatch(ctx, keys, texts, batchSize)

	// Committed sentences stay searchable even if a later chunk failed.
	committed := pending[:len(vecs)]
	ix.sentences = append(ix.sentences, committed...)
	ix.lines = append(ix.lines, lines...)

	if err != nil {
		return fmt.Errorf("dialogue: add: %w", err)
	}
	return nil
}

// Search returns the k sentences closest to query.
func (ix *Index) Search(ctx context.Context, query string, k int) ([]Hit, error) {
	results, err := ix.store.SearchKeyText(ctx, query, k)
	if err != nil {
		return nil, err
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		if r.Key < 0 || r.Key >= len(ix.sentences) {
			return nil, fmt.Errorf("%w: unknown sentence %d", vecsearch.ErrKeyConsistency, r.Key)
		}
		s := ix.sentences[r.Key]
		hits = append(hits, Hit{Sentence: s.text, Line: ix.lines[s.line], Distance: r.Distance})
	}

	return hits, nil
}

// Sentences returns the stored sentences spoken by actor in act.
// An empty actor or act matches all.
func (ix *Index) Sentences(actor, act string) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var out []string
	for _, s := range ix.sentences {
		l := ix.lines[s.line]
		if (actor == "" || l.Actor == actor) && (act == "" || l.Act == act) {
			out = append(out, s.text)
		}
	}
	return out
}

// NumPhrases returns the number of speeches added.
func (ix *Index) NumPhrases() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.lines)
}

// NumSentences returns the number of sentences stored.
func (ix *Index) NumSentences() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.sentences)
}
