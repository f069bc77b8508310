package truth

import (
	"context"
	"fmt"
	"strings"
)

// heuristicAnalyzer produces a deterministic, clearly labeled stand-in
// analysis when no model provider is configured. Local development and tests
// run against it without network access.
type heuristicAnalyzer struct{}

// NewHeuristicAnalyzer returns the no-provider fallback analyzer.
func NewHeuristicAnalyzer() Analyzer {
	return heuristicAnalyzer{}
}

const heuristicConfidence = 0.55

func (heuristicAnalyzer) Analyze(_ context.Context, title, merged string, _ []string) (string, error) {
	words := len(strings.Fields(merged))

	headline := strings.TrimSpace(title)
	if headline == "" {
		headline = "Untitled analysis"
	}

	result := &Result{
		Headline: headline,
		Summary:  fmt.Sprintf("Heuristic analysis of %d words of content. No model provider is configured.", words),
		Chain: Chain{
			Fact:           fmt.Sprintf("The input contains %d words across the provided sources.", words),
			Observation:    "Content was captured and queued for analysis without model assistance.",
			Insight:        "A configured model provider is required for a substantive reading.",
			HumanTruth:     "Teams still want a record of what they noticed, even before analysis runs.",
			CulturalMoment: "Raw capture first, interpretation later.",
		},
		Confidence:      heuristicConfidence,
		WhyThisSurfaced: "Recorded by the heuristic fallback; re-run with a model provider for real analysis.",
	}

	snippet := truncateRunes(merged, 200)
	if strings.TrimSpace(snippet) != "" {
		result.Receipts = []Receipt{{Quote: snippet, Source: "input"}}
	}

	return string(result.Payload()), nil
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}

	return string(runes[:max])
}
