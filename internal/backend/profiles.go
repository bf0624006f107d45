package backend

import "github.com/claudette-ai/claudette/internal/model"

// DefaultProfile returns the static capability profile shipped for a known
// backend kind: one score per task type, cost per 1k tokens, an average
// latency baseline, a language list, and quality/reliability baselines.
// These are starting points only; the rolling metrics alongside a profile
// are what actually move at runtime, and CapabilityProfile itself is never
// mutated by request handling.
//
// Qwen scores higher on code (0.92) than OpenAI (0.90) and additionally
// specializes in zh, so a Chinese-language code prompt routes to Qwen over
// OpenAI despite OpenAI's higher English-reasoning baseline.
func DefaultProfile(kind string) model.CapabilityProfile {
	switch kind {
	case "openai":
		return model.CapabilityProfile{
			TaskScores: map[model.TaskType]float64{
				model.TaskReasoning:    0.85,
				model.TaskCode:         0.90,
				model.TaskMath:         0.80,
				model.TaskCreative:     0.85,
				model.TaskAnalysis:     0.85,
				model.TaskMultilingual: 0.75,
				model.TaskGeneral:      0.85,
			},
			CostPer1K:   0.002,
			AvgLatency:  1.2,
			Languages:   []string{"en"},
			Quality:     0.85,
			Reliability: 0.95,
		}
	case "anthropic":
		return model.CapabilityProfile{
			TaskScores: map[model.TaskType]float64{
				model.TaskReasoning:    0.95,
				model.TaskCode:         0.88,
				model.TaskMath:         0.82,
				model.TaskCreative:     0.90,
				model.TaskAnalysis:     0.92,
				model.TaskMultilingual: 0.80,
				model.TaskGeneral:      0.88,
			},
			CostPer1K:   0.003,
			AvgLatency:  1.5,
			Languages:   []string{"en"},
			Quality:     0.92,
			Reliability: 0.95,
		}
	case "qwen":
		return model.CapabilityProfile{
			TaskScores: map[model.TaskType]float64{
				model.TaskReasoning:    0.80,
				model.TaskCode:         0.92,
				model.TaskMath:         0.85,
				model.TaskCreative:     0.75,
				model.TaskAnalysis:     0.78,
				model.TaskMultilingual: 0.90,
				model.TaskGeneral:      0.80,
			},
			CostPer1K:   0.0005,
			AvgLatency:  0.9,
			Languages:   []string{"zh", "en"},
			Quality:     0.80,
			Reliability: 0.90,
		}
	case "ollama":
		return model.CapabilityProfile{
			TaskScores: map[model.TaskType]float64{
				model.TaskReasoning:    0.60,
				model.TaskCode:         0.65,
				model.TaskMath:         0.60,
				model.TaskCreative:     0.65,
				model.TaskAnalysis:     0.60,
				model.TaskMultilingual: 0.50,
				model.TaskGeneral:      0.60,
			},
			CostPer1K:   0,
			AvgLatency:  2.5,
			Languages:   []string{"en"},
			Quality:     0.60,
			Reliability: 0.85,
		}
	default:
		return model.CapabilityProfile{
			TaskScores:  map[model.TaskType]float64{model.TaskGeneral: 0.5},
			AvgLatency:  1.5,
			Languages:   []string{"en"},
			Quality:     0.5,
			Reliability: 0.8,
		}
	}
}
