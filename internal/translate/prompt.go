package translate

import (
	"fmt"
	"strings"
)

// PromptInput collects everything a single utterance's prompt is built from.
type PromptInput struct {
	SourceText     string
	BudgetMs       int
	MaxChars       int
	EpisodeContext string
	GlossaryLines  []string
	DomainHint     string
	// Attempt is zero-based; later attempts ask for compression.
	Attempt int
}

// SystemPrompt returns the fixed translation instructions plus the
// per-utterance glossary fragment.
func SystemPrompt(in PromptInput) string {
	var b strings.Builder
	b.WriteString("You are a professional subtitle translator for short-form drama.\n")
	b.WriteString("\n")
	b.WriteString("Rules:\n")
	b.WriteString("1) Translate naturally. Do not translate word by word.\n")
	b.WriteString("2) Render personal names in pinyin or surname form; never invent Western names.\n")
	b.WriteString("3) Output must be clean subtitle text with no notes or explanations.\n")
	if len(in.GlossaryLines) > 0 {
		b.WriteString("\nGlossary (MUST follow exactly where these phrases appear):\n")
		for _, line := range in.GlossaryLines {
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// UserPrompt returns the per-utterance request, including context, the
// optional domain hint, and the length constraint derived from the budget.
func UserPrompt(in PromptInput) string {
	var b strings.Builder
	if in.EpisodeContext != "" {
		b.WriteString("Episode dialogue context:\n")
		b.WriteString(in.EpisodeContext)
		b.WriteString("\n\n")
	}
	if in.DomainHint != "" {
		b.WriteString("Context: ")
		b.WriteString(in.DomainHint)
		b.WriteString("\n\n")
	}

	budgetSec := float64(in.BudgetMs) / 1000.0
	switch {
	case in.Attempt <= 0:
		fmt.Fprintf(&b, "Constraints:\n")
		fmt.Fprintf(&b, "- This subtitle will be displayed for %.2f seconds.\n", budgetSec)
		fmt.Fprintf(&b, "- Maximum allowed length: approximately %d characters.\n", in.MaxChars)
		b.WriteString("- The translation must be natural, concise, and readable.\n\n")
		b.WriteString("Translate ONLY this utterance into natural English for subtitles:\n")
	case in.Attempt == 1:
		fmt.Fprintf(&b, "Shorten your translation of the following subtitle to fit within %.2f seconds (approximately %d characters) while keeping the core meaning.\n\n", budgetSec, in.MaxChars)
		b.WriteString("Subtitle:\n")
	default:
		fmt.Fprintf(&b, "Make the translation of the following subtitle much shorter, to fit within %.2f seconds (approximately %d characters). You may omit filler words and repetitions, but keep the core meaning.\n\n", budgetSec, in.MaxChars)
		b.WriteString("Subtitle:\n")
	}
	fmt.Fprintf(&b, "%q\n", in.SourceText)
	b.WriteString("\nOutput ONLY the English subtitle text.")
	return b.String()
}

// ContainsAny reports whether text contains any of the trigger tokens.
// Domain hints are injected only for utterances that trip a trigger.
func ContainsAny(text string, triggers []string) bool {
	for _, trigger := range triggers {
		if trigger == "" {
			continue
		}
		if strings.Contains(text, trigger) {
			return true
		}
	}
	return false
}
