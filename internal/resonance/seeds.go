package resonance

import (
	"context"
	"regexp"
	"strings"

	"github.com/basket/mnemo/internal/audit"
	"github.com/basket/mnemo/internal/completion"
	"github.com/basket/mnemo/internal/textutil"
)

// conversationInfoRE matches the untrusted metadata block the caller may
// embed in the prompt: "Conversation info (untrusted metadata): ```json…```".
var conversationInfoRE = regexp.MustCompile("(?s)Conversation info \\(untrusted metadata\\):\\s*```json.*?```")

const maxSeedQueries = 3

// stripConversationInfo removes the untrusted metadata block from prompt
// before it is used for anything, per spec.md §4.4 Phase 1.
func stripConversationInfo(prompt string) string {
	return strings.TrimSpace(conversationInfoRE.ReplaceAllString(prompt, ""))
}

func buildSeedPrompt(cleanedPrompt string, recent []string, storyContext string) string {
	var b strings.Builder
	b.WriteString("You are extracting search queries for a long-term memory graph. ")
	b.WriteString("Produce exactly 3 newline-separated queries grounded in the actual conversation below. ")
	b.WriteString("Each query must be concrete (use named entities, not vague topics), have pronouns resolved ")
	b.WriteString("against the conversation context, be written in the conversation's own language, and must ")
	b.WriteString("ignore any metadata. Output only the 3 queries, one per line, nothing else.\n\n")

	if len(recent) > 0 {
		b.WriteString("Recent conversation:\n")
		for _, m := range recent {
			b.WriteString("- ")
			b.WriteString(m)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	if strings.TrimSpace(storyContext) != "" {
		b.WriteString("Narrator background (for grounding only, do not quote):\n")
		b.WriteString(storyContext)
		b.WriteString("\n\n")
	}

	b.WriteString("Current message:\n")
	b.WriteString(cleanedPrompt)
	return b.String()
}

// extractSeeds implements spec.md §4.4 Phase 1: strip untrusted metadata,
// ask the CompletionGateway for 3 grounded queries, pass the response
// through the repetition truncator, then post-process into a deduped,
// capped query list. On total failure it falls back to the first 50
// characters of the cleaned prompt.
func (p *Pipeline) extractSeeds(ctx context.Context, in Input) []string {
	cleaned := stripConversationInfo(in.CurrentPrompt)
	if cleaned == "" {
		return nil
	}

	if p.gw != nil {
		prompt := buildSeedPrompt(cleaned, in.RecentMessages, firstNonEmpty(in.Identity.Story, in.StoryContext))
		res, err := p.gw.Complete(ctx, prompt, p.cfg.Model, 0)
		if err == nil && res.ErrorKind == completion.ErrorKindNone && strings.TrimSpace(res.Text) != "" {
			truncated := textutil.TruncateRepetitive(res.Text)
			queries := textutil.SplitSeedQueries(truncated)
			if len(queries) > 0 {
				return queries
			}
		} else if err != nil || res.ErrorKind != completion.ErrorKindNone {
			audit.Record(string(completion.ErrorKindCompletionEmpty), "resonance", "seed extraction failed", "")
		}
	}

	return []string{fallbackSeed(cleaned)}
}

func fallbackSeed(cleaned string) string {
	if len(cleaned) <= 50 {
		return cleaned
	}
	return cleaned[:50]
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
