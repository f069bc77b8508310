package truth

import (
	"strings"
)

// systemPrompt sets the analyst persona. The response contract travels in
// the user prompt next to the input it applies to.
const systemPrompt = `You are a senior cultural strategist. Transform messy inputs (posts, screenshots, threads) into a clean, evidence-backed truth analysis. No fluff. No generic advice. Every claim must be tied to receipts. Use direct quotes sparingly and always include source and timestamp when available. Return strictly valid JSON following the provided schema.`

const (
	inputBeginMarker = "----- BEGIN INPUT -----"
	inputEndMarker   = "----- END INPUT -----"
)

// resultSchema is the literal response skeleton embedded in every user
// prompt. Keys mirror Result exactly.
const resultSchema = `{
  "headline": "max 80-char framing of what is really going on",
  "summary": "2-4 sentences summarizing the content itself",
  "truth_chain": {
    "fact": "what verifiably happened (numbers, names, events from the content)",
    "observation": "the pattern visible across the content",
    "insight": "why this pattern exists",
    "human_truth": "the underlying human motivation or tension it reveals",
    "cultural_moment": "the larger cultural shift this is part of"
  },
  "cohorts": ["audience segments this matters to"],
  "strategic_moves": ["2-4 concrete actions a brand or team could take"],
  "receipts": [
    {"quote": "", "url": "", "source": "", "timestamp": ""}
  ],
  "confidence": 0.0,
  "why_this_surfaced": "one sentence on why this content deserves attention now"
}`

// BuildUserPrompt assembles the user message from the optional title, the
// merged input fenced by explicit markers, source hints, and the expected
// JSON shape.
func BuildUserPrompt(title, merged string, sources []string) string {
	blocks := []string{}

	if t := strings.TrimSpace(title); t != "" {
		blocks = append(blocks, "Title: "+t)
	}

	blocks = append(blocks,
		"Inputs below (may contain multiple posts, screenshots, or links stitched together with separators):",
		inputBeginMarker,
		merged,
		inputEndMarker,
	)

	if hints := joinSourceHints(sources); hints != "" {
		blocks = append(blocks, "Sources: "+hints)
	}

	blocks = append(blocks, "Return JSON only with the exact keys:", resultSchema)

	return strings.Join(blocks, "\n\n")
}

func joinSourceHints(sources []string) string {
	kept := []string{}

	for _, s := range sources {
		if s = strings.TrimSpace(s); s != "" {
			kept = append(kept, s)
		}
	}

	return strings.Join(kept, ", ")
}
