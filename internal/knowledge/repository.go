package knowledge

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/autoventas/sales-ai-platform/pkg/logging"
)

// Fragment is a titled section of the knowledge base.
type Fragment struct {
	Title   string
	Content string
	Score   float64
}

// Repository holds the knowledge base in memory and supports lexical retrieval.
// Scoring is token overlap between the query and each fragment, weighted
// toward precision so short focused questions beat long rambling ones.
type Repository struct {
	logger *logging.Logger

	mu        sync.RWMutex
	fragments []indexedFragment
}

type indexedFragment struct {
	title   string
	content string
	tokens  map[string]struct{}
}

// NewRepository loads and indexes the markdown file at path.
func NewRepository(path string, logger *logging.Logger) (*Repository, error) {
	if logger == nil {
		logger = logging.Default()
	}
	r := &Repository{logger: logger}
	if err := r.LoadFile(path); err != nil {
		return nil, err
	}
	return r, nil
}

// NewRepositoryFromContent indexes markdown passed directly, for tests and
// embedded defaults.
func NewRepositoryFromContent(content string, logger *logging.Logger) *Repository {
	if logger == nil {
		logger = logging.Default()
	}
	r := &Repository{logger: logger}
	r.replace(splitSections(content))
	return r
}

// LoadFile reindexes the repository from the markdown file at path.
func (r *Repository) LoadFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("knowledge: read %s: %w", path, err)
	}
	sections := splitSections(string(raw))
	if len(sections) == 0 {
		return fmt.Errorf("knowledge: no sections found in %s", path)
	}
	r.replace(sections)
	r.logger.Info("knowledge base loaded", "path", path, "fragments", len(sections))
	return nil
}

func (r *Repository) replace(sections []indexedFragment) {
	r.mu.Lock()
	r.fragments = sections
	r.mu.Unlock()
}

// Size returns the number of indexed fragments.
func (r *Repository) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.fragments)
}

// Search returns up to topK fragments scored against the query, best first.
// Fragments that share no tokens with the query are omitted.
func (r *Repository) Search(query string, topK int) []Fragment {
	if topK <= 0 {
		topK = 3
	}
	queryTokens := tokenSet(query)
	if len(queryTokens) == 0 {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	results := make([]Fragment, 0, len(r.fragments))
	for _, f := range r.fragments {
		score := overlapScore(queryTokens, f.tokens)
		if score <= 0 {
			continue
		}
		results = append(results, Fragment{Title: f.title, Content: f.content, Score: score})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results
}

// overlapScore weights precision over recall: 0.6 * |Q∩F|/|Q| + 0.4 * |Q∩F|/|F|.
func overlapScore(query map[string]struct{}, fragment map[string]struct{}) float64 {
	if len(query) == 0 || len(fragment) == 0 {
		return 0
	}
	shared := 0
	for tok := range query {
		if _, ok := fragment[tok]; ok {
			shared++
		}
	}
	if shared == 0 {
		return 0
	}
	precision := float64(shared) / float64(len(query))
	recall := float64(shared) / float64(len(fragment))
	return 0.6*precision + 0.4*recall
}

// splitSections splits markdown into fragments on heading lines. Text before
// the first heading becomes its own untitled fragment.
func splitSections(content string) []indexedFragment {
	var out []indexedFragment
	var title string
	var body strings.Builder

	flush := func() {
		text := strings.TrimSpace(body.String())
		if text == "" {
			return
		}
		out = append(out, indexedFragment{
			title:   title,
			content: text,
			tokens:  tokenSet(title + " " + text),
		})
	}

	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			flush()
			body.Reset()
			title = strings.TrimSpace(strings.TrimLeft(trimmed, "# "))
			continue
		}
		body.WriteString(line)
		body.WriteString("\n")
	}
	flush()
	return out
}

var spanishStopwords = map[string]struct{}{
	"el": {}, "la": {}, "los": {}, "las": {}, "un": {}, "una": {}, "unos": {},
	"de": {}, "del": {}, "en": {}, "y": {}, "o": {}, "a": {}, "que": {},
	"es": {}, "se": {}, "con": {}, "por": {}, "para": {}, "mi": {}, "su": {},
	"lo": {}, "al": {}, "como": {}, "mas": {}, "pero": {}, "si": {}, "no": {},
	"me": {}, "te": {}, "le": {}, "hay": {}, "son": {}, "the": {}, "is": {},
	"of": {}, "and": {}, "to": {}, "in": {},
}

func tokenSet(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, tok := range strings.FieldsFunc(normalize(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len(tok) < 2 {
			continue
		}
		if _, stop := spanishStopwords[tok]; stop {
			continue
		}
		out[tok] = struct{}{}
	}
	return out
}

// normalize lowercases and strips the accents common in Spanish so that
// "garantía" and "garantia" index identically.
func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch r {
		case 'á', 'à', 'ä', 'â':
			b.WriteRune('a')
		case 'é', 'è', 'ë', 'ê':
			b.WriteRune('e')
		case 'í', 'ì', 'ï', 'î':
			b.WriteRune('i')
		case 'ó', 'ò', 'ö', 'ô':
			b.WriteRune('o')
		case 'ú', 'ù', 'ü', 'û':
			b.WriteRune('u')
		case 'ñ':
			b.WriteRune('n')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
