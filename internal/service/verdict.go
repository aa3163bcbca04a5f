package service

import (
	"sort"

	"github.com/ComUnity/signup-risk-gate/internal/models"
)

const DefaultBlockOutcome = "high_risk"

// VerdictInterpreter reduces a verdict to a block decision and a score.
//
// Only the first rule result and the first model score entry are consulted.
// Within that entry the score is taken by name when ScoreName is set, or
// from the lexicographically smallest score name otherwise, since the score
// map carries no order of its own.
type VerdictInterpreter struct {
	BlockOutcome string
	ScoreName    string
}

func NewVerdictInterpreter(blockOutcome, scoreName string) *VerdictInterpreter {
	if blockOutcome == "" {
		blockOutcome = DefaultBlockOutcome
	}
	return &VerdictInterpreter{BlockOutcome: blockOutcome, ScoreName: scoreName}
}

func (vi *VerdictInterpreter) Interpret(v *models.Verdict) (models.Decision, error) {
	if v == nil {
		return models.Decision{}, malformed("nil verdict")
	}
	if len(v.RuleResults) == 0 {
		return models.Decision{}, malformed("no rule results")
	}
	rule := v.RuleResults[0]
	if len(rule.Outcomes) == 0 {
		return models.Decision{}, malformed("rule %q has no outcomes", rule.RuleID)
	}
	if len(v.ModelScores) == 0 {
		return models.Decision{}, malformed("no model scores")
	}

	name, score, err := vi.pickScore(v.ModelScores[0])
	if err != nil {
		return models.Decision{}, err
	}

	blocked := rule.Outcomes[0] == vi.BlockOutcome
	outcome := models.OutcomeAllow
	if blocked {
		outcome = models.OutcomeBlock
	}
	return models.Decision{
		Outcome:   outcome,
		Blocked:   blocked,
		Score:     score,
		ScoreName: name,
		RuleID:    rule.RuleID,
	}, nil
}

func (vi *VerdictInterpreter) pickScore(ms models.ModelScore) (string, float64, error) {
	if len(ms.Scores) == 0 {
		return "", 0, malformed("model %q has no scores", ms.ModelID)
	}
	if vi.ScoreName != "" {
		s, ok := ms.Scores[vi.ScoreName]
		if !ok {
			return "", 0, malformed("model %q has no score named %q", ms.ModelID, vi.ScoreName)
		}
		return vi.ScoreName, s, nil
	}
	names := make([]string, 0, len(ms.Scores))
	for n := range ms.Scores {
		names = append(names, n)
	}
	sort.Strings(names)
	return names[0], ms.Scores[names[0]], nil
}
