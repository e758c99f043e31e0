package usecase

import (
	"fmt"
	"strings"

	"agentic-rag/internal/domain"
)

// PromptBuilder renders the synthesis prompt from the query and the
// assembled context.
type PromptBuilder interface {
	Build(query string, block *domain.ContextBlock) (string, error)
}

// XMLPromptBuilder creates structured prompts that separate instructions,
// output format, context, and query. Context entries are addressed by their
// 1-based citation index.
type XMLPromptBuilder struct {
	additionalInstructions []string
}

// NewXMLPromptBuilder creates a prompt builder with optional extra
// instructions appended.
func NewXMLPromptBuilder(additionalInstructions ...string) PromptBuilder {
	return &XMLPromptBuilder{additionalInstructions: additionalInstructions}
}

func (b *XMLPromptBuilder) Build(query string, block *domain.ContextBlock) (string, error) {
	if block == nil || len(block.Entries) == 0 {
		return "", fmt.Errorf("context block is empty")
	}

	instructions := []string{
		"You are an assistant that answers questions based ONLY on the provided <context>.",
		"1. Read the <context> documents carefully. Each has a numeric index.",
		"2. Answer the <query> using strictly facts from the <context>.",
		"3. Cite sources by appending [index] after the sentences they support, e.g. [1].",
		"4. The \"citations\" array must list every index used in the answer, in order of first use.",
		"5. Do not cite an index that does not appear in the <context>.",
		"6. Do not use external knowledge or invent facts.",
		"7. Set \"fallback\": true ONLY if the context contains nothing relevant; explain in \"reason\".",
		"8. Follow the JSON format below EXACTLY. Output nothing outside the JSON object.",
	}
	instructions = append(instructions, b.additionalInstructions...)

	var sb strings.Builder
	sb.WriteString("<instructions>\n")
	for _, inst := range instructions {
		sb.WriteString("  <line>")
		sb.WriteString(escape(inst))
		sb.WriteString("</line>\n")
	}
	sb.WriteString("</instructions>\n\n")

	sb.WriteString("<format>\n")
	sb.WriteString("JSON: {\n")
	sb.WriteString("  \"answer\": \"Answer text with citation markers... [1]\",\n")
	sb.WriteString("  \"citations\": [1, 2],\n")
	sb.WriteString("  \"fallback\": false,\n")
	sb.WriteString("  \"reason\": \"\"\n")
	sb.WriteString("}\n")
	sb.WriteString("</format>\n\n")

	sb.WriteString("<context>\n")
	for _, entry := range block.Entries {
		sb.WriteString(fmt.Sprintf("  <document index=\"%d\">\n", entry.Index))
		if title := entry.Candidate.Chunk.Title; title != "" {
			sb.WriteString("    <title>")
			sb.WriteString(escape(title))
			sb.WriteString("</title>\n")
		}
		if uri := entry.Candidate.Chunk.SourceURI; uri != "" {
			sb.WriteString("    <source>")
			sb.WriteString(escape(uri))
			sb.WriteString("</source>\n")
		}
		sb.WriteString("    <text>")
		sb.WriteString(escape(entry.Text))
		sb.WriteString("</text>\n")
		sb.WriteString("  </document>\n")
	}
	sb.WriteString("</context>\n\n")

	sb.WriteString("<query>\n")
	sb.WriteString(escape(query))
	sb.WriteString("\n</query>\n")

	return sb.String(), nil
}

func escape(value string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		"\"", "&quot;",
		"'", "&#39;",
	)
	return replacer.Replace(strings.TrimSpace(value))
}
