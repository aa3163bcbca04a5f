package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ComUnity/signup-risk-gate/internal/models"
)

func verdictWith(outcome string, scores map[string]float64) *models.Verdict {
	return &models.Verdict{
		RuleResults: []models.RuleResult{
			{RuleID: "signup_rule", Outcomes: []string{outcome, "review"}},
			{RuleID: "ignored", Outcomes: []string{"high_risk"}},
		},
		ModelScores: []models.ModelScore{
			{ModelID: "signup_model", Scores: scores},
			{ModelID: "ignored", Scores: map[string]float64{"other": 1}},
		},
	}
}

func TestVerdictInterpreter(t *testing.T) {
	vi := NewVerdictInterpreter("", "")

	t.Run("high_risk blocks", func(t *testing.T) {
		d, err := vi.Interpret(verdictWith("high_risk", map[string]float64{"signup_model_insightscore": 942}))
		require.NoError(t, err)
		assert.Equal(t, models.Decision{
			Outcome:   models.OutcomeBlock,
			Blocked:   true,
			Score:     942,
			ScoreName: "signup_model_insightscore",
			RuleID:    "signup_rule",
		}, d)
	})

	t.Run("any other label allows", func(t *testing.T) {
		for _, label := range []string{"low_risk", "review", "HIGH_RISK", ""} {
			d, err := vi.Interpret(verdictWith(label, map[string]float64{"s": 12}))
			require.NoError(t, err)
			assert.False(t, d.Blocked, label)
			assert.Equal(t, models.OutcomeAllow, d.Outcome)
		}
	})

	t.Run("only the first rule result counts", func(t *testing.T) {
		v := verdictWith("low_risk", map[string]float64{"s": 1})
		d, err := vi.Interpret(v)
		require.NoError(t, err)
		assert.False(t, d.Blocked)
	})

	t.Run("unnamed score selection is deterministic", func(t *testing.T) {
		scores := map[string]float64{"zeta": 3, "alpha": 7, "mid": 5}
		for i := 0; i < 20; i++ {
			d, err := vi.Interpret(verdictWith("low_risk", scores))
			require.NoError(t, err)
			require.Equal(t, "alpha", d.ScoreName)
			require.Equal(t, 7.0, d.Score)
		}
	})

	t.Run("named score selection", func(t *testing.T) {
		named := NewVerdictInterpreter("high_risk", "zeta")
		d, err := named.Interpret(verdictWith("low_risk", map[string]float64{"zeta": 3, "alpha": 7}))
		require.NoError(t, err)
		assert.Equal(t, 3.0, d.Score)
	})

	t.Run("custom block outcome", func(t *testing.T) {
		strict := NewVerdictInterpreter("review", "")
		d, err := strict.Interpret(verdictWith("review", map[string]float64{"s": 40}))
		require.NoError(t, err)
		assert.True(t, d.Blocked)
	})
}

func TestVerdictInterpreterMalformed(t *testing.T) {
	vi := NewVerdictInterpreter("", "")
	scores := []models.ModelScore{{ModelID: "m", Scores: map[string]float64{"s": 1}}}
	rules := []models.RuleResult{{RuleID: "r", Outcomes: []string{"high_risk"}}}

	cases := map[string]*models.Verdict{
		"nil verdict":       nil,
		"no rule results":   {ModelScores: scores},
		"rule w/o outcomes": {RuleResults: []models.RuleResult{{RuleID: "r"}}, ModelScores: scores},
		"no model scores":   {RuleResults: rules},
		"empty score map":   {RuleResults: rules, ModelScores: []models.ModelScore{{ModelID: "m"}}},
	}
	for name, v := range cases {
		t.Run(name, func(t *testing.T) {
			d, err := vi.Interpret(v)
			require.ErrorIs(t, err, ErrMalformedVerdict)
			assert.False(t, d.Blocked)
			assert.NotErrorIs(t, err, ErrFraudDetected)
		})
	}

	t.Run("configured score name missing", func(t *testing.T) {
		named := NewVerdictInterpreter("", "insightscore")
		_, err := named.Interpret(&models.Verdict{RuleResults: rules, ModelScores: scores})
		assert.ErrorIs(t, err, ErrMalformedVerdict)
	})
}
