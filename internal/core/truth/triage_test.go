package truth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func prose(n int) string {
	base := "the rollout numbers kept climbing while support volume stayed flat across every cohort we tracked "
	s := strings.Repeat(base, n/len(base)+1)

	return s[:n]
}

func fullResult() *Result {
	return &Result{
		Chain: Chain{
			Fact:           prose(120),
			Observation:    prose(120),
			Insight:        prose(120),
			HumanTruth:     prose(120),
			CulturalMoment: prose(120),
		},
		Receipts: []Receipt{
			{Quote: "first quote"},
			{Quote: "second quote"},
		},
	}
}

func TestScoreEmptyResult(t *testing.T) {
	triage := Score(&Result{})

	assert.Equal(t, 0.0, triage.ModelConfidence)
	assert.Equal(t, LabelNeedsReview, triage.Label)
	assert.Contains(t, triage.Reasons, ReasonMissingSections)
	assert.Contains(t, triage.Reasons, ReasonLowConfidence)
}

func TestScoreRichResult(t *testing.T) {
	result := &Result{
		Chain: Chain{
			Fact:           prose(300),
			Observation:    prose(300),
			Insight:        prose(300),
			HumanTruth:     prose(300),
			CulturalMoment: prose(300),
		},
		Receipts: []Receipt{{Quote: "a"}, {Quote: "b"}, {Quote: "c"}},
	}

	triage := Score(result)

	assert.Equal(t, 1.0, triage.ModelConfidence)
	assert.Equal(t, LabelNone, triage.Label)
	assert.Empty(t, triage.Reasons)
}

func TestScoreMidLengthFields(t *testing.T) {
	triage := Score(fullResult())

	// 0.90 base at full weight plus 0.15 evidence bonus.
	assert.InDelta(t, 1.0, triage.ModelConfidence, 0.06)
	assert.Equal(t, LabelNone, triage.Label)
}

func TestScoreShortFieldContributesNothing(t *testing.T) {
	base := fullResult()
	withShortFact := fullResult()
	withShortFact.Chain.Fact = "too short" // 9 chars, below the floor

	withEmptyFact := fullResult()
	withEmptyFact.Chain.Fact = ""

	assert.Equal(t, Score(withEmptyFact).ModelConfidence, Score(withShortFact).ModelConfidence)
	assert.Less(t, Score(withShortFact).ModelConfidence, Score(base).ModelConfidence)
}

func TestScoreHedgingPenalty(t *testing.T) {
	clean := fullResult()
	hedged := fullResult()
	hedged.Chain.Insight = prose(100) + " it seems the pattern might be noise"

	cleanTriage := Score(clean)
	hedgedTriage := Score(hedged)

	assert.LessOrEqual(t, hedgedTriage.ModelConfidence, cleanTriage.ModelConfidence)
	assert.Contains(t, hedgedTriage.Reasons, ReasonHedging)
	assert.Equal(t, LabelNeedsReview, hedgedTriage.Label)
}

func TestScoreHedgingPhraseCoverage(t *testing.T) {
	for _, phrase := range []string{"likely", "i think", "i believe", "uncertain"} {
		t.Run(phrase, func(t *testing.T) {
			hedged := fullResult()
			hedged.Chain.Observation = prose(100) + " " + phrase + " a temporary effect"

			assert.Contains(t, Score(hedged).Reasons, ReasonHedging)
		})
	}
}

func TestScoreHedgingIsCaseInsensitive(t *testing.T) {
	hedged := fullResult()
	hedged.Chain.Fact = prose(100) + " UNCLEAR what drove the spike"

	assert.Contains(t, Score(hedged).Reasons, ReasonHedging)
}

func TestScoreMissingSections(t *testing.T) {
	result := fullResult()
	result.Chain.Fact = "thin"
	result.Chain.Observation = "also thin"

	triage := Score(result)

	assert.Contains(t, triage.Reasons, ReasonMissingSections)
	assert.Equal(t, LabelNeedsReview, triage.Label)
}

func TestScoreMissingCulturalMomentAloneIsNotCritical(t *testing.T) {
	result := fullResult()
	result.Chain.CulturalMoment = ""

	assert.NotContains(t, Score(result).Reasons, ReasonMissingSections)
}

func TestScoreSingleEvidenceSmallerBonus(t *testing.T) {
	two := fullResult()

	one := fullResult()
	one.Receipts = one.Receipts[:1]

	none := fullResult()
	none.Receipts = nil

	assert.Less(t, Score(none).ModelConfidence, Score(one).ModelConfidence)
	assert.Less(t, Score(one).ModelConfidence, Score(two).ModelConfidence)
}

func TestScoreRoundedToTwoDecimals(t *testing.T) {
	triage := Score(fullResult())

	rounded := float64(int(triage.ModelConfidence*100+0.5)) / 100
	assert.Equal(t, rounded, triage.ModelConfidence)
}
