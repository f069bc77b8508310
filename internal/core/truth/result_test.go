package truth

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCanonicalShape(t *testing.T) {
	content := `{
		"headline": "Quiet launch, loud numbers",
		"summary": "The feature shipped without announcement and usage tripled.",
		"truth_chain": {
			"fact": "Usage tripled in one week",
			"observation": "Nobody announced it",
			"insight": "Discovery happened peer to peer",
			"human_truth": "People trust recommendations over marketing",
			"cultural_moment": "Organic growth as status symbol"
		},
		"cohorts": ["early adopters"],
		"strategic_moves": ["lean into word of mouth"],
		"confidence": 0.82,
		"receipts": [{"quote": "usage tripled", "source": "dashboard"}],
		"why_this_surfaced": "Rare counterexample to launch playbooks."
	}`

	result, raw := Parse(content)
	require.NotNil(t, result)
	assert.Empty(t, raw)
	assert.Equal(t, "Quiet launch, loud numbers", result.Headline)
	assert.Equal(t, "Usage tripled in one week", result.Chain.Fact)
	assert.Equal(t, 0.82, result.Confidence)
	require.Len(t, result.Receipts, 1)
	assert.Equal(t, "usage tripled", result.Receipts[0].Quote)
}

func TestParseAliases(t *testing.T) {
	content := `{
		"title": "Aliased title",
		"summary": "s",
		"chain": {"fact": "f", "observation": "o", "insight": "i", "human_truth": "h", "cultural_moment": "c"},
		"evidence": [{"quote": "q1"}, {"quote": "q2"}],
		"why_surfaced": "because"
	}`

	result, _ := Parse(content)
	require.NotNil(t, result)
	assert.Equal(t, "Aliased title", result.Headline)
	assert.Equal(t, "f", result.Chain.Fact)
	assert.Len(t, result.Receipts, 2)
	assert.Equal(t, "because", result.WhyThisSurfaced)
}

func TestParseFlatChain(t *testing.T) {
	content := `{
		"headline": "h",
		"fact": "flat fact",
		"observation": "flat observation",
		"insight": "flat insight",
		"human_truth": "flat human truth",
		"cultural_moment": "flat cultural moment"
	}`

	result, _ := Parse(content)
	require.NotNil(t, result)
	assert.Equal(t, "flat fact", result.Chain.Fact)
	assert.Equal(t, "flat cultural moment", result.Chain.CulturalMoment)
}

func TestParseJSONWrappedInProse(t *testing.T) {
	content := "Here is the analysis you asked for:\n```json\n{\"headline\": \"wrapped\"}\n```\nHope that helps!"

	result, _ := Parse(content)
	require.NotNil(t, result)
	assert.Equal(t, "wrapped", result.Headline)
}

func TestParseNonJSON(t *testing.T) {
	result, raw := Parse("I'm sorry, I can't produce JSON for that.")
	assert.Nil(t, result)
	assert.Equal(t, "I'm sorry, I can't produce JSON for that.", raw)
}

func TestDegradedPayload(t *testing.T) {
	var payload map[string]string

	require.NoError(t, json.Unmarshal(DegradedPayload("raw output"), &payload))
	assert.Equal(t, "LLM returned non-JSON", payload["error"])
	assert.Equal(t, "raw output", payload["raw"])
}

func TestResultPayloadRoundTrip(t *testing.T) {
	result := &Result{
		Headline:   "h",
		Chain:      Chain{Fact: "f"},
		Confidence: 0.5,
		Receipts:   []Receipt{{Quote: "q"}},
	}

	parsed, raw := Parse(string(result.Payload()))
	require.NotNil(t, parsed)
	assert.Empty(t, raw)
	assert.Equal(t, result.Headline, parsed.Headline)
	assert.Equal(t, result.Chain.Fact, parsed.Chain.Fact)
}
