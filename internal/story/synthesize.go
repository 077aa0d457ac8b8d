package story

import (
	"context"
	"fmt"
	"strings"

	"github.com/basket/mnemo/internal/completion"
)

// Identity bundles the agent's persona documents into the synthesis
// prompt. Per spec.md §4.5.4 these are included verbatim but the model is
// instructed never to emit identity headers in its output.
type Identity struct {
	Soul  string
	Story string
}

const maxStoryWords = 4000

func wordCount(s string) int {
	return len(strings.Fields(s))
}

// buildSynthesisPrompt builds the single unified prompt per spec.md
// §4.5.4: first-person narrator, bootstrap when currentStory is empty
// else update, "### [YYYY-MM-DD HH:MM] Title" chapter format, no
// duplication of prior events, double-newline paragraphs, <=4000 chars.
func buildSynthesisPrompt(transcript, currentStory string, identity Identity) string {
	mode := "update"
	if strings.TrimSpace(currentStory) == "" {
		mode = "bootstrap"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are narrating your own life story in the first person (I/me/my). Mode: %s.\n\n", mode)
	b.WriteString("Identity (for tone and context only — never emit these headers or their contents verbatim as output):\n")
	b.WriteString("--- SOUL ---\n")
	b.WriteString(strings.TrimSpace(identity.Soul))
	b.WriteString("\n--- END SOUL ---\n\n")

	if mode == "update" {
		b.WriteString("Current story so far:\n---\n")
		b.WriteString(strings.TrimSpace(currentStory))
		b.WriteString("\n---\n\n")
		b.WriteString("Extend the story with new chapters for the events below. Do not repeat or duplicate prior chapters; focus on growth since the last entry.\n\n")
	} else {
		b.WriteString("Write the opening chapters of the story from the events below.\n\n")
	}

	b.WriteString("New events to narrate:\n---\n")
	b.WriteString(strings.TrimSpace(transcript))
	b.WriteString("\n---\n\n")

	b.WriteString("Rules:\n")
	b.WriteString("- Each chapter starts with a header of the exact form: ### [YYYY-MM-DD HH:MM] Title\n")
	b.WriteString("- Separate paragraphs with a blank line.\n")
	b.WriteString("- Keep the total output to 4000 characters or fewer.\n")
	b.WriteString("- Never emit a SOUL or identity header in the output.\n")
	return b.String()
}

func buildCompressionPrompt(current string, identity Identity) string {
	var b strings.Builder
	b.WriteString("Compress the following first-person life story to 4000 words or fewer. ")
	b.WriteString("Preserve the narrator's voice, all chapter headers of the form ### [YYYY-MM-DD HH:MM] Title, ")
	b.WriteString("and the emotional arc. Do not add new events; only cut and condense.\n\n")
	b.WriteString("--- STORY ---\n")
	b.WriteString(strings.TrimSpace(current))
	b.WriteString("\n--- END STORY ---\n")
	return b.String()
}

// UpdateNarrativeStory implements spec.md §4.5.4. It never returns a Go
// error for model failures — those surface as the returned ErrorKind,
// with the unchanged currentStory as the body so callers can safely
// persist it. Callers are responsible for computing and passing the
// anchor (max timestamp of the input batch) to story.Write.
func UpdateNarrativeStory(ctx context.Context, gw completion.Gateway, model string, transcript, currentStory string, identity Identity) (string, completion.ErrorKind) {
	if gw == nil || strings.TrimSpace(transcript) == "" {
		return currentStory, completion.ErrorKindCompletionEmpty
	}

	prompt := buildSynthesisPrompt(transcript, currentStory, identity)
	res, err := gw.Complete(ctx, prompt, model, 0)
	if err != nil || res.ErrorKind != completion.ErrorKindNone || strings.TrimSpace(res.Text) == "" {
		return currentStory, completion.ErrorKindCompletionEmpty
	}

	newStory := strings.TrimSpace(res.Text)
	kind := completion.ErrorKindNone

	if wordCount(newStory) > maxStoryWords {
		kind = completion.ErrorKindStoryTooLong
		compressPrompt := buildCompressionPrompt(newStory, identity)
		compRes, compErr := gw.Complete(ctx, compressPrompt, model, 0)
		if compErr == nil && compRes.ErrorKind == completion.ErrorKindNone && strings.TrimSpace(compRes.Text) != "" {
			compressed := strings.TrimSpace(compRes.Text)
			if wordCount(compressed) <= maxStoryWords {
				newStory = compressed
			}
			// If compression still exceeds the cap, keep the
			// uncompressed text per spec.md §7's StoryTooLong policy.
		}
	}

	return newStory, kind
}
