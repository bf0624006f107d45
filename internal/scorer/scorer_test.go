package scorer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claudette-ai/claudette/internal/model"
)

func baseProfile() model.CapabilityProfile {
	return model.CapabilityProfile{
		TaskScores: map[model.TaskType]float64{
			model.TaskCode:    0.8,
			model.TaskGeneral: 0.7,
		},
		CostPer1K:   0.001,
		AvgLatency:  1.0,
		Languages:   []string{"en"},
		Quality:     0.8,
		Reliability: 0.9,
	}
}

func TestCostIncreaseStrictlyDecreasesScore(t *testing.T) {
	analysis := model.Analysis{TaskType: model.TaskGeneral, Language: "en", EstimatedTokens: 500, Urgency: model.UrgencyMedium, QualityPriority: 0.5}

	cheap := Candidate{Name: "b", Profile: baseProfile()}
	expensive := Candidate{Name: "b", Profile: baseProfile()}
	expensive.Profile.CostPer1K = 1.0

	cheapScore := Score(cheap, analysis)
	expensiveScore := Score(expensive, analysis)

	assert.Greater(t, cheapScore, expensiveScore, "increasing cost_per_1k_tokens must strictly decrease the score")
}

func TestIdempotentSelectionOnEqualScores(t *testing.T) {
	analysis := model.Analysis{TaskType: model.TaskGeneral, Language: "en", EstimatedTokens: 500, Urgency: model.UrgencyMedium, QualityPriority: 0.5}
	candidates := []Candidate{
		{Name: "zeta", Profile: baseProfile()},
		{Name: "alpha", Profile: baseProfile()},
	}

	r1 := Rank(candidates, analysis)
	r2 := Rank(candidates, analysis)

	require.Equal(t, len(r1), len(r2))
	assert.Equal(t, r1[0].Candidate.Name, r2[0].Candidate.Name)
	// Equal score, equal reliability, equal cost: alphabetical tie-break picks "alpha".
	assert.Equal(t, "alpha", r1[0].Candidate.Name)
}

func TestRankWithBiasKeepsScoresInRange(t *testing.T) {
	analysis := model.Analysis{TaskType: model.TaskGeneral, Language: "en", EstimatedTokens: 500, Urgency: model.UrgencyMedium, QualityPriority: 0.5}
	candidates := []Candidate{
		{Name: "a", Profile: baseProfile(), Metrics: model.RollingMetrics{AvgLatencyMS: 800, SuccessRate: 0.95, QualityScore: 0.8}},
		{Name: "b", Profile: baseProfile(), Metrics: model.RollingMetrics{AvgLatencyMS: 6000, SuccessRate: 0.4, QualityScore: 0.5}},
	}

	ranked := RankWithBias(candidates, analysis, RouterBias{Cost: 0.4, Latency: 0.4, Availability: 0.2})
	for _, s := range ranked {
		assert.GreaterOrEqual(t, s.Score, 0.0)
		assert.LessOrEqual(t, s.Score, 1.0)
	}
	assert.Equal(t, "a", ranked[0].Candidate.Name, "faster, more reliable backend should rank first under latency/availability bias")
}

func TestRankWithZeroBiasMatchesRank(t *testing.T) {
	analysis := model.Analysis{TaskType: model.TaskGeneral, Language: "en", EstimatedTokens: 500, Urgency: model.UrgencyMedium, QualityPriority: 0.5}
	candidates := []Candidate{
		{Name: "a", Profile: baseProfile()},
		{Name: "b", Profile: baseProfile()},
	}

	plain := Rank(candidates, analysis)
	biased := RankWithBias(candidates, analysis, RouterBias{})
	require.Equal(t, len(plain), len(biased))
	for i := range plain {
		assert.Equal(t, plain[i].Candidate.Name, biased[i].Candidate.Name)
		assert.Equal(t, plain[i].Score, biased[i].Score)
	}
}

func TestTaskAwareSelectionPrefersChineseSpecialist(t *testing.T) {
	openAILike := Candidate{
		Name: "OpenAI-like",
		Profile: model.CapabilityProfile{
			TaskScores:  map[model.TaskType]float64{model.TaskCode: 0.90},
			CostPer1K:   0.002,
			Languages:   []string{"en"},
			Quality:     0.85,
			Reliability: 0.95,
		},
	}
	qwenLike := Candidate{
		Name: "Qwen-like",
		Profile: model.CapabilityProfile{
			TaskScores:  map[model.TaskType]float64{model.TaskCode: 0.92},
			CostPer1K:   0.0015,
			Languages:   []string{"zh", "en"},
			Quality:     0.85,
			Reliability: 0.93,
		},
	}

	req := model.Request{Prompt: "写一个 Python 函数反转字符串"}
	analysis := Analyze(req)
	require.Equal(t, model.TaskCode, analysis.TaskType)
	require.Equal(t, "zh", analysis.Language)

	ranked := Rank([]Candidate{openAILike, qwenLike}, analysis)
	assert.Equal(t, "Qwen-like", ranked[0].Candidate.Name)
}
