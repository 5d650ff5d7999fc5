package usecase

import (
	"fmt"
	"strings"
	"time"

	"asset-orchestrator/internal/domain"
)

// PromptInput contains the pieces that feed into the prompt builder.
type PromptInput struct {
	Query         string
	PromptVersion string
	Candidates    []Candidate
}

// PromptBuilder builds the chat messages sent to the generative model.
type PromptBuilder interface {
	Build(input PromptInput) ([]domain.Message, error)
}

// XMLPromptBuilder creates structured prompts that separate candidates,
// instructions, query, and output format.
type XMLPromptBuilder struct {
	additionalInstructions []string
}

// NewXMLPromptBuilder creates a prompt builder with optional extra instructions appended.
func NewXMLPromptBuilder(additionalInstructions ...string) PromptBuilder {
	return &XMLPromptBuilder{
		additionalInstructions: additionalInstructions,
	}
}

// Build renders the messages for the chat API.
func (b *XMLPromptBuilder) Build(input PromptInput) ([]domain.Message, error) {
	if input.PromptVersion == "" {
		return nil, fmt.Errorf("prompt version is required")
	}

	var sysSb strings.Builder
	sysSb.WriteString("<instructions>\n")

	selectedInstructions := []string{
		"You are an assistant that selects images for a user from the provided <candidates> ONLY.",
		"1. Read the <query> and pick the candidates that best satisfy it.",
		"2. Prefer candidates with a higher combined_score.",
		"3. When the query signals recency intent (words like \"latest\", \"new\", \"recent\"), prioritize candidates with a more recent acquired_at.",
		"4. If no candidate is suitable, return an empty \"items\" array and an apologetic \"message\" explaining that nothing matched.",
		"5. Your \"message\" must briefly describe what you selected and why, in one or two sentences.",
		"6. Use ONLY asset_id values that appear in <candidates>. Never invent identifiers, URLs, or metadata.",
		"7. Follow the JSON format specified below EXACTLY.",
	}

	for _, inst := range append(selectedInstructions, b.additionalInstructions...) {
		sysSb.WriteString("  <line>")
		sysSb.WriteString(escape(inst))
		sysSb.WriteString("</line>\n")
	}
	sysSb.WriteString("</instructions>\n\n")

	sysSb.WriteString("<format>\n")
	sysSb.WriteString("JSON: {\n")
	sysSb.WriteString("  \"message\": \"one or two sentences for the user\",\n")
	sysSb.WriteString("  \"items\": [{\"asset_id\":\"...\", \"reason\":\"optional reason\"}]\n")
	sysSb.WriteString("}\n")
	sysSb.WriteString("</format>\n")

	var userSb strings.Builder
	userSb.WriteString(fmt.Sprintf("<candidates version=%q>\n", escape(input.PromptVersion)))
	for _, cand := range input.Candidates {
		userSb.WriteString("  <candidate>\n")
		userSb.WriteString("    <asset_id>")
		userSb.WriteString(escape(cand.AssetID.String()))
		userSb.WriteString("</asset_id>\n")
		userSb.WriteString("    <description>")
		userSb.WriteString(escape(cand.Description))
		userSb.WriteString("</description>\n")
		for key, value := range cand.Metadata {
			userSb.WriteString("    <meta name=\"")
			userSb.WriteString(escape(key))
			userSb.WriteString("\">")
			userSb.WriteString(escape(value))
			userSb.WriteString("</meta>\n")
		}
		userSb.WriteString("    <acquired_at>")
		userSb.WriteString(cand.AcquiredAt.Format(time.RFC3339))
		userSb.WriteString("</acquired_at>\n")
		userSb.WriteString("    <combined_score>")
		userSb.WriteString(fmt.Sprintf("%.6f", cand.Combined))
		userSb.WriteString("</combined_score>\n")
		userSb.WriteString("  </candidate>\n")
	}
	userSb.WriteString("</candidates>\n\n")

	userSb.WriteString("<query>\n")
	userSb.WriteString(escape(input.Query))
	userSb.WriteString("\n</query>\n")

	return []domain.Message{
		{Role: "system", Content: sysSb.String()},
		{Role: "user", Content: userSb.String()},
	}, nil
}

func escape(value string) string {
	s := strings.TrimSpace(value)
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		"\"", "&quot;",
		"'", "&#39;",
	)
	return replacer.Replace(s)
}
