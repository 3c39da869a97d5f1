package learning

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/stillpoint/parley/pkg/agent"
	"github.com/stillpoint/parley/pkg/formatting"
)

const extractionSystemPrompt = `You analyze resolved customer support conversations
to extract reusable knowledge. Respond with a single JSON object:
{
  "dialogueQuality": <0..1, how clean and complete the resolution was>,
  "proposals": [
    {
      "type": "kb_article" | "instruction_update",
      "title": "<short title>",
      "summary": "<one-sentence summary>",
      "proposedContent": "<full article or instruction text>",
      "confidence": <0..1>
    }
  ]
}
Propose only knowledge that generalizes beyond this one customer. If the
conversation teaches nothing reusable, return an empty proposals array.
Do not restate anything already covered by the existing documents listed.`

// extractionResult is the expected shape of the extraction completion.
type extractionResult struct {
	DialogueQuality float64               `json:"dialogueQuality"`
	Proposals       []extractionCandidate `json:"proposals"`
}

type extractionCandidate struct {
	Type            string  `json:"type"`
	Title           string  `json:"title"`
	Summary         string  `json:"summary"`
	ProposedContent string  `json:"proposedContent"`
	Confidence      float64 `json:"confidence"`
}

// extract runs the single extraction call over a sanitized transcript.
// Any generation or parse failure yields a neutral zero-quality result, never
// an error: an unreadable completion means "nothing usable to extract".
func extract(
	ctx context.Context,
	generator agent.Generator,
	transcript string,
	existingTitles []string,
	logger *slog.Logger,
) extractionResult {
	raw, err := generator.Generate(ctx, extractionSystemPrompt, extractionPrompt(transcript, existingTitles))
	if err != nil {
		logger.Warn("knowledge extraction call failed", "error", err)
		return extractionResult{}
	}

	result, err := formatting.Parse[extractionResult](raw)
	if err != nil {
		logger.Warn("knowledge extraction output unparseable")
		return extractionResult{}
	}

	return validateExtraction(result, logger)
}

// validateExtraction clamps scores and drops malformed candidates so no
// downstream decision trusts an unchecked field.
func validateExtraction(result extractionResult, logger *slog.Logger) extractionResult {
	result.DialogueQuality = clamp01(result.DialogueQuality)

	kept := result.Proposals[:0]
	for _, p := range result.Proposals {
		if _, ok := ParseProposalType(p.Type); !ok {
			logger.Warn("dropping proposal with unknown type", "type", p.Type)
			continue
		}
		if strings.TrimSpace(p.Title) == "" || strings.TrimSpace(p.ProposedContent) == "" {
			logger.Warn("dropping proposal with empty title or content")
			continue
		}
		p.Confidence = clamp01(p.Confidence)
		kept = append(kept, p)
	}
	result.Proposals = kept

	return result
}

func extractionPrompt(transcript string, existingTitles []string) string {
	var b strings.Builder

	if len(existingTitles) > 0 {
		b.WriteString("Existing knowledge documents on this topic:\n")
		for _, title := range existingTitles {
			fmt.Fprintf(&b, "- %s\n", title)
		}
		b.WriteString("\n")
	}

	b.WriteString("Conversation transcript (PII redacted):\n")
	b.WriteString(transcript)

	return b.String()
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
