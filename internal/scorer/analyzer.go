// Package scorer classifies prompts into a model.Analysis and scores
// candidate backends against that analysis.
package scorer

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/claudette-ai/claudette/internal/model"
)

// keyword lists used by the heuristic classifier. Concrete lists are
// deliberately small and case-insensitive; this is a heuristic, not an NLP
// model.
var (
	codeKeywords = []string{
		"function", "code", "algorithm", "implement", "debug", "refactor", "compile", "class", "variable", "def ", "func ", "import ",
		"python", "javascript", "typescript", "golang", "rust", "java ",
		"函数", "代码", "算法", "编程", "程序",
	}
	mathKeywords = []string{"equation", "calculate", "integral", "derivative", "theorem", "proof", "solve for", "matrix"}
	reasoningKeywords = []string{"why", "explain", "reason", "logic", "because", "therefore", "infer"}
	creativeKeywords  = []string{"story", "poem", "write a", "imagine", "creative", "fiction"}
	analysisKeywords  = []string{"analyze", "compare", "evaluate", "assess", "summary", "summarize"}

	algorithmRe = regexp.MustCompile(`(?i)\balgorithm\b`)
)

// Analyze classifies a request into task type, complexity, language,
// estimated tokens, urgency, and quality priority.
func Analyze(req model.Request) model.Analysis {
	prompt := req.Prompt
	lower := strings.ToLower(prompt)

	taskType := classifyTask(lower)
	complexity := computeComplexity(prompt, lower, len(req.FileContents), taskType)
	lang := detectLanguage(prompt)
	estimatedTokens := estimateTokens(prompt, req.FileContents)
	urgency := classifyUrgency(req.Options.TimeoutMS)

	return model.Analysis{
		TaskType:        taskType,
		Complexity:      complexity,
		Language:        lang,
		EstimatedTokens: estimatedTokens,
		Urgency:         urgency,
		QualityPriority: model.Clamp01(complexity + 0.3),
	}
}

func classifyTask(lower string) model.TaskType {
	switch {
	case containsAny(lower, codeKeywords):
		return model.TaskCode
	case containsAny(lower, mathKeywords):
		return model.TaskMath
	case containsAny(lower, creativeKeywords):
		return model.TaskCreative
	case containsAny(lower, analysisKeywords):
		return model.TaskAnalysis
	case containsAny(lower, reasoningKeywords):
		return model.TaskReasoning
	default:
		return model.TaskGeneral
	}
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

// computeComplexity is additive: base 0.3; +0.2 if len>1000, +0.2 if
// len>2000; +0.1 per attached file up to +0.3; +0.2 for
// reasoning/analysis; +0.2 for code with "algorithm". Clamped to 1.0.
func computeComplexity(prompt, lower string, fileCount int, taskType model.TaskType) float64 {
	c := 0.3
	n := len(prompt)
	if n > 1000 {
		c += 0.2
	}
	if n > 2000 {
		c += 0.2
	}

	fileBonus := 0.1 * float64(fileCount)
	if fileBonus > 0.3 {
		fileBonus = 0.3
	}
	c += fileBonus

	if taskType == model.TaskReasoning || taskType == model.TaskAnalysis {
		c += 0.2
	}
	if taskType == model.TaskCode && algorithmRe.MatchString(lower) {
		c += 0.2
	}

	return model.Clamp01(c)
}

// detectLanguage sniffs Unicode ranges in the prompt: any Hiragana/Katakana
// rune means "ja", else any Han rune "zh", else more Cyrillic than ASCII
// letters "ru", else any Arabic rune "ar". English is the fallback.
func detectLanguage(prompt string) string {
	var han, hiraKata, cyrillic, arabic, latin int
	for _, r := range prompt {
		switch {
		case unicode.Is(unicode.Han, r):
			han++
		case unicode.Is(unicode.Hiragana, r) || unicode.Is(unicode.Katakana, r):
			hiraKata++
		case unicode.Is(unicode.Cyrillic, r):
			cyrillic++
		case unicode.Is(unicode.Arabic, r):
			arabic++
		case unicode.IsLetter(r) && r <= unicode.MaxASCII:
			latin++
		}
	}

	switch {
	case hiraKata > 0:
		return "ja"
	case han > 0:
		return "zh"
	case cyrillic > latin && cyrillic > 0:
		return "ru"
	case arabic > 0:
		return "ar"
	default:
		return "en"
	}
}

// estimateTokens approximates token count as characters / 4, matching the
// fallback rule backends use when a provider doesn't report exact counts.
func estimateTokens(prompt string, files []model.FileContent) int {
	n := len(prompt)
	for _, f := range files {
		n += len(f.Content)
	}
	return (n + 3) / 4
}

func classifyUrgency(timeoutMS int) model.Urgency {
	switch {
	case timeoutMS > 0 && timeoutMS < 30_000:
		return model.UrgencyHigh
	case timeoutMS > 0 && timeoutMS < 60_000:
		return model.UrgencyMedium
	default:
		return model.UrgencyLow
	}
}
