package translate

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"redub/internal/logging"
	"redub/internal/subtitle"
)

// Speech-rate tiers pick the compression factor for the character budget.
// Fast source speech leaves no slack; slow speech leaves some.
const (
	rateFastThreshold   = 5.5
	rateNormalThreshold = 4.0

	kFast   = 1.0
	kNormal = 1.15
	kSlow   = 1.2
)

// Options configures a Translator.
type Options struct {
	TargetLanguage string
	TargetCPS      float64
	MaxRetries     int
	DomainHint     string
	DomainTriggers []string
	// EpisodeContext is the full-episode source text used for context, or
	// empty to translate without it.
	EpisodeContext string
}

// Result is one utterance's translation with its fit statistics.
type Result struct {
	UttID    string `json:"utt_id"`
	Source   string `json:"source"`
	Target   string `json:"target"`
	BudgetMs int    `json:"budget_ms"`
	EstMs    int    `json:"est_ms"`
	Attempts int    `json:"attempts"`
}

// Translator translates utterance by utterance against a Completer,
// retrying with compression prompts when the estimated spoken duration
// exceeds the utterance's time budget.
type Translator struct {
	completer Completer
	glossary  *Glossary
	opts      Options
	logger    *slog.Logger
}

// New builds a Translator.
func New(completer Completer, glossary *Glossary, opts Options, logger *slog.Logger) *Translator {
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 3
	}
	if opts.TargetCPS <= 0 {
		opts.TargetCPS = 14.0
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Translator{completer: completer, glossary: glossary, opts: opts, logger: logger}
}

// TranslateUtterance translates one subtitle-model utterance. The final
// attempt's text is returned even when it still exceeds the budget;
// synthesis will compress and the mixer truncates as a last resort.
func (t *Translator) TranslateUtterance(ctx context.Context, u subtitle.Utterance) (Result, error) {
	budgetMs := u.EndMs - u.StartMs
	maxChars := t.maxChars(budgetMs, u.Speaker.SpeechRate)

	in := PromptInput{
		SourceText:     u.Text,
		BudgetMs:       budgetMs,
		MaxChars:       maxChars,
		EpisodeContext: t.opts.EpisodeContext,
		GlossaryLines:  t.glossary.Match(u.Text),
	}
	if ContainsAny(u.Text, t.opts.DomainTriggers) {
		in.DomainHint = t.opts.DomainHint
	}

	var target string
	var err error
	attempts := 0
	for attempt := 0; attempt < t.opts.MaxRetries; attempt++ {
		in.Attempt = attempt
		attempts = attempt + 1

		target, err = t.completer.Complete(ctx, SystemPrompt(in), UserPrompt(in))
		if err != nil {
			return Result{}, err
		}
		estMs := EstimateDurationMs(target, t.opts.TargetCPS)
		if estMs <= budgetMs {
			return Result{
				UttID: u.UttID, Source: u.Text, Target: target,
				BudgetMs: budgetMs, EstMs: estMs, Attempts: attempts,
			}, nil
		}
		t.logger.Warn("translation over budget",
			logging.String("utt_id", u.UttID),
			logging.Int("est_ms", estMs),
			logging.Int("budget_ms", budgetMs),
			logging.Int("attempt", attempts))
	}

	return Result{
		UttID: u.UttID, Source: u.Text, Target: target,
		BudgetMs: budgetMs, EstMs: EstimateDurationMs(target, t.opts.TargetCPS), Attempts: attempts,
	}, nil
}

// maxChars converts the time budget into a character allowance, shrunk for
// slower source speech.
func (t *Translator) maxChars(budgetMs int, speechRate float64) int {
	k := kSlow
	switch {
	case speechRate >= rateFastThreshold:
		k = kFast
	case speechRate >= rateNormalThreshold:
		k = kNormal
	}
	chars := int(float64(budgetMs) / 1000.0 * t.opts.TargetCPS / k)
	if chars < 1 {
		chars = 1
	}
	return chars
}

var nonSpoken = regexp.MustCompile(`[^a-zA-Z0-9]`)

// EstimateDurationMs estimates how long text takes to speak at the given
// characters-per-second rate. Only letters and digits count.
func EstimateDurationMs(text string, cps float64) int {
	spoken := nonSpoken.ReplaceAllString(text, "")
	if spoken == "" {
		return 0
	}
	if cps <= 0 {
		cps = 14.0
	}
	return int(float64(len(spoken)) / cps * 1000.0)
}

// TruncateContext bounds the episode context so prompts stay within a
// sane token budget.
func TruncateContext(context string, maxChars int) string {
	if maxChars <= 0 {
		return context
	}
	runes := []rune(strings.TrimSpace(context))
	if len(runes) <= maxChars {
		return string(runes)
	}
	return string(runes[:maxChars]) + "..."
}
