package answer

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/kailas-cloud/shopsearch/internal/domain/conversation"
	"github.com/kailas-cloud/shopsearch/internal/domain/evidence"
	"github.com/kailas-cloud/shopsearch/internal/domain/intent"
	"github.com/kailas-cloud/shopsearch/internal/domain/product"
)

// NoDataInstruction tells the model to admit the absence of grounding data.
const NoDataInstruction = "No matching data was found for this question. " +
	"Tell the shopper plainly that you could not find matching information and do not invent products, reviews or policies."

const baseSystem = "You are a helpful shopping assistant for an online store. " +
	"Answer only from the context provided. If the context does not answer the question, say so. Be concise."

var intentSystem = map[intent.Intent]string{
	intent.Product:   "Summarize the products in the context that match the request and present the options clearly.",
	intent.Review:    "Summarize what customers say in the reviews in the context, including overall sentiment and recurring points.",
	intent.Policy:    "Answer using the store policies in the context and mention relevant conditions and timeframes.",
	intent.Ambiguous: "The request is unclear. Answer briefly and ask what the shopper is looking for.",
}

// Input is what the composer grounds an answer on.
type Input struct {
	Intent   intent.Intent
	Question string
	Direct   *product.Product
	Evidence []evidence.Item
	History  []conversation.Turn
}

// Prompt is a rendered chat prompt.
type Prompt struct {
	System string
	User   string
}

// Len returns the prompt size in runes.
func (p Prompt) Len() int {
	return utf8.RuneCountInString(p.System) + utf8.RuneCountInString(p.User)
}

// BuildPrompt renders a deterministic prompt no longer than MaxPromptChars.
// Oldest history goes first when over budget, then the lowest-ranked evidence.
func (c *Composer) BuildPrompt(in Input) Prompt {
	system := baseSystem
	if s, ok := intentSystem[in.Intent]; ok {
		system += " " + s
	}

	question := truncate(strings.TrimSpace(in.Question), c.opts.SnippetChars*2)
	evidenceLines := c.evidenceLines(in.Evidence)
	history := conversation.Last(in.History, c.opts.HistoryTurns)
	direct := directBlock(in.Direct)

	budget := c.opts.MaxPromptChars - utf8.RuneCountInString(system)
	user := renderUser(direct, evidenceLines, history, question)
	for utf8.RuneCountInString(user) > budget {
		switch {
		case len(history) > 0:
			history = history[1:]
		case len(evidenceLines) > 0:
			evidenceLines = evidenceLines[:len(evidenceLines)-1]
		default:
			user = truncate(user, max(budget, 0))
			return Prompt{System: system, User: user}
		}
		user = renderUser(direct, evidenceLines, history, question)
	}

	return Prompt{System: system, User: user}
}

func renderUser(direct string, evidenceLines []string, history []conversation.Turn, question string) string {
	var b strings.Builder

	if direct == "" && len(evidenceLines) == 0 {
		b.WriteString(NoDataInstruction)
		b.WriteString("\n\n")
	}
	if direct != "" {
		b.WriteString("Exact product match:\n")
		b.WriteString(direct)
		b.WriteString("\n\n")
	}
	if len(evidenceLines) > 0 {
		b.WriteString("Context:\n")
		for i, l := range evidenceLines {
			b.WriteString("[")
			b.WriteString(strconv.Itoa(i + 1))
			b.WriteString("] ")
			b.WriteString(l)
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}
	if len(history) > 0 {
		b.WriteString("Conversation so far:\n")
		b.WriteString(conversation.Transcript(history))
		b.WriteByte('\n')
	}
	b.WriteString("Question: ")
	b.WriteString(question)
	return b.String()
}

func (c *Composer) evidenceLines(items []evidence.Item) []string {
	n := min(len(items), c.opts.MaxEvidence)
	lines := make([]string, 0, n)
	for _, it := range items[:n] {
		lines = append(lines, truncate(snippet(it), c.opts.SnippetChars))
	}
	return lines
}

func snippet(it evidence.Item) string {
	text := firstNonEmpty(it.Field("content"), it.Field("chunk_text"), it.Field("text"), it.Field("description"))
	switch it.Collection() {
	case evidence.Products:
		return fmt.Sprintf("Product %s (%s, brand %s, price %s): %s",
			orNA(it.Field("name")), it.SourceID(), orNA(it.Field("brand")), orNA(it.Field("price")), text)
	case evidence.Reviews:
		return fmt.Sprintf("Review of %s, rating %s: %s",
			orNA(it.Field("product_id")), orNA(it.Field("rating")), text)
	default:
		title := firstNonEmpty(it.Field("title"), it.Field("section"), it.Field("policy_type"))
		return fmt.Sprintf("Policy %s: %s", orNA(title), text)
	}
}

func directBlock(p *product.Product) string {
	if p == nil {
		return ""
	}
	stock := "out of stock"
	if p.InStock() {
		stock = fmt.Sprintf("%d in stock", p.Stock)
	}
	return fmt.Sprintf("%s (%s), brand %s, category %s, price %.2f, rating %.1f, %s. %s",
		p.Name, p.ID, orNA(p.Brand), orNA(p.Category), p.Price, p.Rating, stock, p.Description)
}

func truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	r := []rune(s)
	if limit <= 3 {
		return string(r[:limit])
	}
	return string(r[:limit-3]) + "..."
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func orNA(s string) string {
	if s == "" {
		return "n/a"
	}
	return s
}
