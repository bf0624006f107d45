package scorer

import (
	"sort"

	"github.com/claudette-ai/claudette/internal/model"
)

// Fixed weight factors for the five scoring dimensions. These sum to 1.0;
// only the router's configured cost/latency/availability weights shape
// candidate ordering beyond this table, via RankWithBias.
const (
	weightTaskCapability  = 0.40
	weightLanguageSupport = 0.20
	weightPerformance     = 0.20
	weightCostEfficiency  = 0.10
	weightQualityPriority = 0.10
)

// Candidate is everything the scorer needs about one backend: its static
// capability profile and its current rolling metrics.
type Candidate struct {
	Name       string
	Profile    model.CapabilityProfile
	Metrics    model.RollingMetrics
}

// Score computes the weighted score in [0,1] for one candidate against a
// task analysis. Higher is better.
func Score(c Candidate, analysis model.Analysis) float64 {
	taskCapability := c.Profile.TaskScore(analysis.TaskType)
	language := languageScore(c.Profile, analysis.Language)
	performance := performanceScore(c.Metrics, c.Profile, analysis.Urgency)
	estimatedCost := c.Profile.CostPer1K * float64(analysis.EstimatedTokens) / 1000
	cost := costEfficiencyScore(estimatedCost)
	quality := c.Profile.Quality * analysis.QualityPriority

	return weightTaskCapability*taskCapability +
		weightLanguageSupport*language +
		weightPerformance*performance +
		weightCostEfficiency*cost +
		weightQualityPriority*quality
}

// languageScore: 1.0 for an explicit specialization match, 0.9 for a listed
// (non-specialized) language, 0.8 for the English fallback, else 0.6. A
// profile's specialization is the first entry of its Languages list.
func languageScore(p model.CapabilityProfile, lang string) float64 {
	if len(p.Languages) > 0 && p.Languages[0] == lang {
		return 1.0
	}
	if p.SupportsLanguage(lang) {
		return 0.9
	}
	if lang == "en" {
		return 0.8
	}
	return 0.6
}

// performanceScore derives a [0,1] figure from rolling latency relative to
// the profile baseline, with urgency tightening the bar: higher urgency
// penalizes slow backends harder.
func performanceScore(m model.RollingMetrics, p model.CapabilityProfile, urgency model.Urgency) float64 {
	latency := m.AvgLatencyMS
	if latency <= 0 {
		latency = p.AvgLatency * 1000
	}

	var budgetMS float64
	switch urgency {
	case model.UrgencyHigh:
		budgetMS = 3000
	case model.UrgencyMedium:
		budgetMS = 8000
	default:
		budgetMS = 20000
	}

	score := 1.0 - (latency / (latency + budgetMS))
	score = score * (0.5 + 0.5*m.SuccessRate)
	return model.Clamp01(score)
}

// costEfficiencyScore is an inverse step function of estimated cost: near
// zero cost scores high, tapering toward 0 for expensive requests.
func costEfficiencyScore(costEUR float64) float64 {
	switch {
	case costEUR <= 0.001:
		return 1.0
	case costEUR <= 0.01:
		return 0.8
	case costEUR <= 0.05:
		return 0.6
	case costEUR <= 0.2:
		return 0.4
	case costEUR <= 1.0:
		return 0.2
	default:
		return 0.05
	}
}

// Scored pairs a candidate with its computed score, for ranking.
type Scored struct {
	Candidate Candidate
	Score     float64
}

// RouterBias carries the router-level cost/latency/availability weights
// from the configuration object's router.* block. A zero bias ranks by the
// five-factor score alone.
type RouterBias struct {
	Cost         float64
	Latency      float64
	Availability float64
}

// biasedScore layers the operator-configured router weights on top of the
// fixed five-factor score, renormalized so the result stays in [0,1]:
// (base + sum(w*factor)) / (1 + sum(w)). Availability draws on the rolling
// success rate, which the fixed table only touches indirectly through
// performance.
func biasedScore(c Candidate, analysis model.Analysis, bias RouterBias) float64 {
	base := Score(c, analysis)
	total := bias.Cost + bias.Latency + bias.Availability
	if total <= 0 {
		return base
	}
	estimatedCost := c.Profile.CostPer1K * float64(analysis.EstimatedTokens) / 1000
	weighted := base +
		bias.Cost*costEfficiencyScore(estimatedCost) +
		bias.Latency*performanceScore(c.Metrics, c.Profile, analysis.Urgency) +
		bias.Availability*c.Metrics.SuccessRate
	return weighted / (1 + total)
}

// Rank scores every candidate and sorts descending. Ties break by higher
// reliability, then lower cost, then name ascending, so the same request
// against the same state always picks the same backend.
func Rank(candidates []Candidate, analysis model.Analysis) []Scored {
	return RankWithBias(candidates, analysis, RouterBias{})
}

// RankWithBias is Rank with the router's configured weight blend applied,
// keeping the same deterministic tie-break order.
func RankWithBias(candidates []Candidate, analysis model.Analysis, bias RouterBias) []Scored {
	scored := make([]Scored, len(candidates))
	for i, c := range candidates {
		scored[i] = Scored{Candidate: c, Score: biasedScore(c, analysis, bias)}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		ri, rj := scored[i].Candidate.Profile.Reliability, scored[j].Candidate.Profile.Reliability
		if ri != rj {
			return ri > rj
		}
		ci, cj := scored[i].Candidate.Profile.CostPer1K, scored[j].Candidate.Profile.CostPer1K
		if ci != cj {
			return ci < cj
		}
		return scored[i].Candidate.Name < scored[j].Candidate.Name
	})
	return scored
}
