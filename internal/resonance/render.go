package resonance

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/basket/mnemo/internal/audit"
	"github.com/basket/mnemo/internal/completion"
	"github.com/basket/mnemo/internal/reltime"
)

// labeledBullet is one memory annotated with its relative-time prefix,
// ready for either the rewrite prompt or the raw-bullet fallback.
type labeledBullet struct {
	Label   string
	Content string
}

// renarrate implements spec.md §4.4 Phases 4-5 for every surviving group
// in parallel: label each memory with its relative time, build the
// anti-hallucination rewrite prompt, and fall back to the raw grouped
// bullets with a programmatic transition line if the call fails, is
// disabled, or returns empty/unusable output.
func (p *Pipeline) renarrate(ctx context.Context, groups []Group, in Input) []string {
	budget := p.cfg.Budget
	blocks := make([]string, len(groups))

	var wg sync.WaitGroup
	for i, g := range groups {
		rewriteAllowed := p.cfg.RewriteEnabled && p.gw != nil && (budget <= 0 || i < budget)
		wg.Add(1)
		go func(i int, g Group, rewriteAllowed bool) {
			defer wg.Done()
			blocks[i] = p.renderGroup(ctx, g, in, rewriteAllowed)
		}(i, g, rewriteAllowed)
	}
	wg.Wait()

	out := make([]string, 0, len(blocks))
	for _, b := range blocks {
		if strings.TrimSpace(b) != "" {
			out = append(out, b)
		}
	}
	return out
}

func (p *Pipeline) renderGroup(ctx context.Context, g Group, in Input, rewriteAllowed bool) string {
	bullets := make([]labeledBullet, 0, len(g.Results))
	for _, r := range g.Results {
		ts, ok := effectiveTimestamp(r)
		var label string
		if ok {
			label = reltime.Label(ts, in.Now)
		} else {
			label = "at some point"
		}
		bullets = append(bullets, labeledBullet{Label: label, Content: r.Content})
	}
	if len(bullets) == 0 {
		return ""
	}

	header := fmt.Sprintf(`--- PENSAR EN "%s" ME RECUERDA QUE ---`, g.Query)

	if !rewriteAllowed {
		return rawGroupBlock(header, bullets)
	}

	prompt := buildRewritePrompt(header, bullets, in)
	res, err := p.gw.Complete(ctx, prompt, p.cfg.Model, 0)
	if err != nil || res.ErrorKind != completion.ErrorKindNone || strings.TrimSpace(res.Text) == "" {
		audit.Record(string(completion.ErrorKindCompletionEmpty), "resonance", "rewrite fallback to raw bullets", "")
		return rawGroupBlock(header, bullets)
	}

	filtered := filterRewriteLines(res.Text)
	if strings.TrimSpace(filtered) == "" {
		return rawGroupBlock(header, bullets)
	}
	return header + "\n" + filtered
}

// buildRewritePrompt builds the Phase 5 prompt: the group header, the
// chronologically-sorted labeled bullets, the identity bundle, the
// current user message (for language detection), and the
// anti-hallucination rules.
func buildRewritePrompt(header string, bullets []labeledBullet, in Input) string {
	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n\n")
	for _, lb := range bullets {
		fmt.Fprintf(&b, "- (%s) %s\n", lb.Label, lb.Content)
	}
	b.WriteString("\n")

	if strings.TrimSpace(in.Identity.Soul) != "" {
		b.WriteString("--- SOUL ---\n")
		b.WriteString(in.Identity.Soul)
		b.WriteString("\n--- END SOUL ---\n\n")
	}
	if strings.TrimSpace(in.Identity.Story) != "" {
		b.WriteString("--- STORY ---\n")
		b.WriteString(in.Identity.Story)
		b.WriteString("\n--- END STORY ---\n\n")
	}

	b.WriteString("Current message (use only to detect the conversation's language):\n")
	b.WriteString(in.CurrentPrompt)
	b.WriteString("\n\n")

	b.WriteString("Rewrite the bullets above as first-person flashbacks in the narrator's own voice. ")
	b.WriteString("Rules: do not invent anything; add no sensory detail not present in the source; ")
	b.WriteString("only rephrase style and point of view; keep every fact. ")
	b.WriteString("Output one bulleted line per flashback, starting with '-'.")
	return b.String()
}

// filterRewriteLines keeps only lines that begin with a list marker or
// mention "reminds me"/"recuerda que", per spec.md §4.4 Phase 5's output
// filter.
func filterRewriteLines(text string) string {
	lines := strings.Split(text, "\n")
	var kept []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		lower := strings.ToLower(trimmed)
		if strings.HasPrefix(trimmed, "-") || strings.HasPrefix(trimmed, "*") ||
			strings.HasPrefix(trimmed, "•") || strings.HasPrefix(trimmed, "---") ||
			strings.Contains(lower, "reminds me") || strings.Contains(lower, "recuerda que") {
			kept = append(kept, trimmed)
		}
	}
	return strings.Join(kept, "\n")
}

// rawGroupBlock renders the fallback bullet list with a programmatic
// transition line, used whenever Phase 5's rewrite call fails, is
// disabled, or returns unusable output.
func rawGroupBlock(header string, bullets []labeledBullet) string {
	var b strings.Builder
	b.WriteString(header)
	b.WriteString("\n")
	for _, lb := range bullets {
		fmt.Fprintf(&b, "- (%s) %s\n", lb.Label, lb.Content)
	}
	return strings.TrimRight(b.String(), "\n")
}
