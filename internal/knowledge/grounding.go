package knowledge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/autoventas/sales-ai-platform/internal/llm"
	"github.com/autoventas/sales-ai-platform/pkg/logging"
)

const answerSystemPrompt = "Eres un asesor comercial de autos seminuevos. " +
	"Responde en español, en un tono cercano y profesional. " +
	"Usa UNICAMENTE la informacion proporcionada en el contexto. " +
	"Si el contexto no contiene la respuesta, dilo con honestidad y no inventes datos."

// Answer is the outcome of grounding a free-form question against the
// knowledge base.
type Answer struct {
	Text     string
	Grounded bool
	TopScore float64
}

// Grounder answers questions from the knowledge base only. Questions whose
// best fragment scores below the threshold are declared out of scope rather
// than guessed at. When an LLM client is configured the top fragments are
// rephrased through it; otherwise, and whenever the LLM call fails, the
// fragments are returned verbatim.
type Grounder struct {
	repo      *Repository
	client    llm.Client
	threshold float64
	topK      int
	timeout   time.Duration
	logger    *logging.Logger
}

// NewGrounder builds a Grounder. client may be nil to disable generation.
// timeout bounds each generation call; a hung provider falls back to the
// verbatim fragments instead of stalling the turn.
func NewGrounder(repo *Repository, client llm.Client, threshold float64, topK int, timeout time.Duration, logger *logging.Logger) *Grounder {
	if repo == nil {
		panic("knowledge: repository cannot be nil")
	}
	if threshold <= 0 {
		threshold = 0.1
	}
	if topK <= 0 {
		topK = 5
	}
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Grounder{repo: repo, client: client, threshold: threshold, topK: topK, timeout: timeout, logger: logger}
}

// Ground answers the question from indexed fragments. Grounded is false when
// the best fragment scores below the threshold; Text then carries no answer.
func (g *Grounder) Ground(ctx context.Context, question string) Answer {
	fragments := g.repo.Search(question, g.topK)
	if len(fragments) == 0 || fragments[0].Score < g.threshold {
		top := 0.0
		if len(fragments) > 0 {
			top = fragments[0].Score
		}
		return Answer{Grounded: false, TopScore: top}
	}

	answer := Answer{Grounded: true, TopScore: fragments[0].Score}
	if g.client != nil {
		if text, err := g.generate(ctx, question, fragments); err == nil {
			answer.Text = text
			return answer
		} else {
			g.logger.Warn("grounded generation failed, using fragments directly", "error", err)
		}
	}
	answer.Text = renderFragments(fragments)
	return answer
}

func (g *Grounder) generate(ctx context.Context, question string, fragments []Fragment) (string, error) {
	var b strings.Builder
	b.WriteString("Contexto:\n")
	for _, f := range fragments {
		if f.Title != "" {
			fmt.Fprintf(&b, "## %s\n", f.Title)
		}
		b.WriteString(f.Content)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Pregunta del cliente: %s", question)

	genCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	text, err := g.client.Generate(genCtx, answerSystemPrompt, b.String())
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("knowledge: empty generation")
	}
	return text, nil
}

// renderFragments is the deterministic fallback reply: the top fragments
// joined under their titles.
func renderFragments(fragments []Fragment) string {
	limit := 2
	if len(fragments) < limit {
		limit = len(fragments)
	}
	parts := make([]string, 0, limit)
	for _, f := range fragments[:limit] {
		if f.Title != "" {
			parts = append(parts, f.Title+": "+f.Content)
		} else {
			parts = append(parts, f.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}
