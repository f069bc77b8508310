package truth

import (
	"math"
	"strings"
)

const (
	LabelNone        = "none"
	LabelNeedsReview = "needs_review"
	LabelInReview    = "in_review"
	LabelResolved    = "resolved"

	ReasonMissingSections = "missing_sections"
	ReasonHedging         = "hedging_language"
	ReasonLowConfidence   = "low_confidence"
)

// Triage is the scored verdict attached to a completed analysis.
// ModelConfidence is the scorer's own confidence in the analysis quality,
// independent of whatever confidence the model self-reported.
type Triage struct {
	Label           string
	ModelConfidence float64
	Reasons         []string
}

// Chain section weights, summing to 0.90 base. Human truth carries the most
// signal: a filled-in human truth is what separates an insight from a
// restatement.
const (
	weightFact           = 0.15
	weightObservation    = 0.15
	weightInsight        = 0.20
	weightHumanTruth     = 0.25
	weightCulturalMoment = 0.15
)

const (
	evidenceBonusStrong = 0.15
	evidenceBonusWeak   = 0.08
	hedgingPenalty      = 0.10

	shortSectionChars    = 10
	thinSectionChars     = 30
	richSectionChars     = 200
	criticalSectionChars = 20

	lowConfidenceThreshold = 0.60
)

// hedgingPhrases mark non-committal analysis, checked case-insensitively
// across all five chain sections. One penalty applies no matter how many
// phrases appear.
var hedgingPhrases = []string{
	"might be",
	"could be",
	"possibly",
	"as an ai",
	"cannot",
	"it seems",
	"appears to",
	"likely",
	"may be",
	"perhaps",
	"i think",
	"i believe",
	"uncertain",
	"unclear",
}

// Score computes the triage confidence, label, and reasons for a parsed
// result. Each chain section contributes its weight scaled by how developed
// the section text is, receipts add an evidence bonus, and hedging language
// costs a flat penalty. Pure function; persistence and review transitions
// happen elsewhere.
func Score(result *Result) Triage {
	chain := result.Chain

	score := weightFact*lengthMultiplier(chain.Fact) +
		weightObservation*lengthMultiplier(chain.Observation) +
		weightInsight*lengthMultiplier(chain.Insight) +
		weightHumanTruth*lengthMultiplier(chain.HumanTruth) +
		weightCulturalMoment*lengthMultiplier(chain.CulturalMoment)

	switch {
	case len(result.Receipts) >= 2:
		score += evidenceBonusStrong
	case len(result.Receipts) == 1:
		score += evidenceBonusWeak
	}

	reasons := []string{}

	if hasHedging(chain) {
		score -= hedgingPenalty

		reasons = append(reasons, ReasonHedging)
	}

	if countThinCriticalSections(chain) >= 2 {
		reasons = append(reasons, ReasonMissingSections)
	}

	score = math.Round(clamp01(score)*100) / 100

	if score < lowConfidenceThreshold {
		reasons = append(reasons, ReasonLowConfidence)
	}

	label := LabelNone
	if score < lowConfidenceThreshold || len(reasons) > 0 {
		label = LabelNeedsReview
	}

	return Triage{Label: label, ModelConfidence: score, Reasons: reasons}
}

func lengthMultiplier(s string) float64 {
	n := len(strings.TrimSpace(s))

	switch {
	case n < shortSectionChars:
		return 0
	case n < thinSectionChars:
		return 0.5
	case n > richSectionChars:
		return 1.2
	default:
		return 1.0
	}
}

// countThinCriticalSections counts how many of the four critical chain
// sections are effectively empty. Cultural moment is not critical.
func countThinCriticalSections(chain Chain) int {
	thin := 0

	for _, s := range []string{chain.Fact, chain.Observation, chain.Insight, chain.HumanTruth} {
		if len(strings.TrimSpace(s)) < criticalSectionChars {
			thin++
		}
	}

	return thin
}

func hasHedging(chain Chain) bool {
	combined := strings.ToLower(strings.Join([]string{
		chain.Fact, chain.Observation, chain.Insight, chain.HumanTruth, chain.CulturalMoment,
	}, " "))

	for _, phrase := range hedgingPhrases {
		if strings.Contains(combined, phrase) {
			return true
		}
	}

	return false
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}

	if f > 1 {
		return 1
	}

	return f
}
