package prompt

import (
	"strings"

	"research-assistant-be/pkg/llm"
	"research-assistant-be/pkg/store"
)

const (
	groundedInstruction = "You are a helpful assistant. Use ONLY the context to answer the user's question. " +
		"If the answer is not in context, say you don't know."

	extractionInstruction = "You are a research assistant reading an academic document. " +
		"Answer the question using ONLY the document below. Reply with the answer itself, without preamble. " +
		"If the document does not contain the answer, reply exactly: " + NotFound
)

// NotFound is the value recorded for a field the document does not contain.
const NotFound = "Not found"

// GroundedBuilder builds the answer prompt from retrieved chunks and prior turns.
type GroundedBuilder struct {
	query   string
	history []llm.Message
	chunks  []store.ScoredChunk
}

func NewGroundedBuilder(query string, history []llm.Message, chunks []store.ScoredChunk) *GroundedBuilder {
	return &GroundedBuilder{
		query:   query,
		history: history,
		chunks:  chunks,
	}
}

// Context joins chunk texts with blank lines, best match first.
func (b *GroundedBuilder) Context() string {
	texts := make([]string, 0, len(b.chunks))
	for _, c := range b.chunks {
		texts = append(texts, c.Chunk.Text)
	}
	return strings.Join(texts, "\n\n")
}

// HistoryString renders prior turns one per line as "User: ..." / "Assistant: ...".
func (b *GroundedBuilder) HistoryString() string {
	var sb strings.Builder
	for _, m := range b.history {
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		switch llm.NormalizeRole(m.Role) {
		case llm.RoleAssistant:
			sb.WriteString("Assistant: ")
		case llm.RoleSystem:
			continue
		default:
			sb.WriteString("User: ")
		}
		sb.WriteString(content)
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (b *GroundedBuilder) Build() string {
	var prompt strings.Builder

	prompt.WriteString(groundedInstruction)
	prompt.WriteString("\n\n")

	if history := b.HistoryString(); history != "" {
		prompt.WriteString("CONVERSATION HISTORY:\n")
		prompt.WriteString(history)
		prompt.WriteString("\n\n")
	}

	prompt.WriteString("CONTEXT:\n")
	prompt.WriteString(b.Context())
	prompt.WriteString("\n\n")

	prompt.WriteString("Question: ")
	prompt.WriteString(b.query)
	prompt.WriteString("\nAnswer:")

	return prompt.String()
}

// ExtractionBuilder builds one field question against a whole document.
type ExtractionBuilder struct {
	documentText string
	question     string
	maxChars     int
}

// NewExtractionBuilder caps the embedded document at maxChars runes; 0 disables the cap.
func NewExtractionBuilder(documentText, question string, maxChars int) *ExtractionBuilder {
	return &ExtractionBuilder{
		documentText: documentText,
		question:     question,
		maxChars:     maxChars,
	}
}

func (b *ExtractionBuilder) document() string {
	if b.maxChars <= 0 {
		return b.documentText
	}
	runes := []rune(b.documentText)
	if len(runes) <= b.maxChars {
		return b.documentText
	}
	return string(runes[:b.maxChars])
}

func (b *ExtractionBuilder) Build() string {
	var prompt strings.Builder

	prompt.WriteString(extractionInstruction)
	prompt.WriteString("\n\n")

	prompt.WriteString("DOCUMENT:\n")
	prompt.WriteString(b.document())
	prompt.WriteString("\n\n")

	prompt.WriteString("Question: ")
	prompt.WriteString(b.question)
	prompt.WriteString("\nAnswer:")

	return prompt.String()
}
