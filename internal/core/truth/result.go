// Package truth implements the analysis pipeline: input merging, LLM
// analysis, result parsing, and triage scoring.
package truth

import (
	"encoding/json"
	"strings"
)

// Receipt is a single piece of supporting evidence cited by the analysis.
type Receipt struct {
	Quote     string `json:"quote"`
	URL       string `json:"url,omitempty"`
	Source    string `json:"source,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Chain is the layered truth analysis, from observable fact down to the
// cultural moment it rides on.
type Chain struct {
	Fact           string `json:"fact"`
	Observation    string `json:"observation"`
	Insight        string `json:"insight"`
	HumanTruth     string `json:"human_truth"`
	CulturalMoment string `json:"cultural_moment"`
}

// Result is a parsed analysis response.
type Result struct {
	Headline        string    `json:"headline"`
	Summary         string    `json:"summary"`
	Chain           Chain     `json:"truth_chain"`
	Cohorts         []string  `json:"cohorts,omitempty"`
	StrategicMoves  []string  `json:"strategic_moves,omitempty"`
	Confidence      float64   `json:"confidence"`
	Receipts        []Receipt `json:"receipts,omitempty"`
	WhyThisSurfaced string    `json:"why_this_surfaced,omitempty"`
}

// rawResult accepts the field aliases models actually produce: title for
// headline, evidence for receipts, and the chain either nested or flattened
// onto the top level.
type rawResult struct {
	Headline string `json:"headline"`
	Title    string `json:"title"`
	Summary  string `json:"summary"`

	TruthChain *Chain `json:"truth_chain"`
	ChainAlias *Chain `json:"chain"`

	Fact           string `json:"fact"`
	Observation    string `json:"observation"`
	Insight        string `json:"insight"`
	HumanTruth     string `json:"human_truth"`
	CulturalMoment string `json:"cultural_moment"`

	Cohorts         []string  `json:"cohorts"`
	StrategicMoves  []string  `json:"strategic_moves"`
	Confidence      float64   `json:"confidence"`
	Receipts        []Receipt `json:"receipts"`
	Evidence        []Receipt `json:"evidence"`
	WhyThisSurfaced string    `json:"why_this_surfaced"`
	WhySurfaced     string    `json:"why_surfaced"`
}

// Parse extracts and decodes an analysis result from raw model output.
// Returns (nil, raw) when the output contains no parseable JSON object,
// so the caller can persist the degraded payload.
func Parse(content string) (*Result, string) {
	raw := extractJSON(content)

	var r rawResult
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, content
	}

	result := &Result{
		Headline:        firstNonEmpty(r.Headline, r.Title),
		Summary:         r.Summary,
		Cohorts:         r.Cohorts,
		StrategicMoves:  r.StrategicMoves,
		Confidence:      r.Confidence,
		WhyThisSurfaced: firstNonEmpty(r.WhyThisSurfaced, r.WhySurfaced),
	}

	switch {
	case r.TruthChain != nil:
		result.Chain = *r.TruthChain
	case r.ChainAlias != nil:
		result.Chain = *r.ChainAlias
	default:
		result.Chain = Chain{
			Fact:           r.Fact,
			Observation:    r.Observation,
			Insight:        r.Insight,
			HumanTruth:     r.HumanTruth,
			CulturalMoment: r.CulturalMoment,
		}
	}

	if len(r.Receipts) > 0 {
		result.Receipts = r.Receipts
	} else {
		result.Receipts = r.Evidence
	}

	return result, ""
}

// Payload serializes the result for persistence.
func (r *Result) Payload() []byte {
	b, err := json.Marshal(r)
	if err != nil {
		return []byte("{}")
	}

	return b
}

// ReceiptsJSON serializes only the receipts, as a JSON array.
func (r *Result) ReceiptsJSON() []byte {
	if len(r.Receipts) == 0 {
		return []byte("[]")
	}

	b, err := json.Marshal(r.Receipts)
	if err != nil {
		return []byte("[]")
	}

	return b
}

// DegradedPayload wraps unparseable model output so it is still inspectable
// from the stored check.
func DegradedPayload(raw string) []byte {
	b, err := json.Marshal(map[string]string{
		"error": "LLM returned non-JSON",
		"raw":   raw,
	})
	if err != nil {
		return []byte(`{"error":"LLM returned non-JSON"}`)
	}

	return b
}

// extractJSON pulls the first JSON object or array out of model output that
// may be wrapped in prose or code fences.
func extractJSON(content string) string {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")

	if start >= 0 && end > start {
		return content[start : end+1]
	}

	start = strings.Index(content, "[")
	end = strings.LastIndex(content, "]")

	if start >= 0 && end > start {
		return content[start : end+1]
	}

	return content
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}

	return ""
}
