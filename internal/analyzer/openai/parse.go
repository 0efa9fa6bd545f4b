package openai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/finsight/stocknews/internal/news"
)

type modelResult struct {
	SummaryKO string `json:"summary_ko"`
	SummaryEN string `json:"summary_en"`
	SummaryES string `json:"summary_es"`
	SummaryJA string `json:"summary_ja"`
	Sentiment struct {
		Classification string `json:"classification"`
		Score          *int   `json:"score"`
	} `json:"sentiment"`
}

// parseModelOutput validates the model's JSON answer. A missing summary in
// any language rejects the whole result; an unknown classification is
// coerced to Neutral and an out-of-range score is clamped, neither rejects.
func parseModelOutput(raw string) (news.Analysis, error) {
	cleaned := stripCodeFences(raw)

	var result modelResult
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return news.Analysis{}, fmt.Errorf("%w: invalid JSON: %v", news.ErrAnalysisRejected, err)
	}

	summaries := news.Summaries{
		KO: strings.TrimSpace(result.SummaryKO),
		EN: strings.TrimSpace(result.SummaryEN),
		ES: strings.TrimSpace(result.SummaryES),
		JA: strings.TrimSpace(result.SummaryJA),
	}
	if !summaries.Complete() {
		return news.Analysis{}, fmt.Errorf("%w: missing summary language", news.ErrAnalysisRejected)
	}

	label := news.SentimentLabel(strings.TrimSpace(result.Sentiment.Classification))
	if !label.Valid() {
		label = news.SentimentNeutral
	}

	score := 0
	if result.Sentiment.Score != nil {
		score = news.ClampScore(*result.Sentiment.Score)
	}

	return news.Analysis{
		Summaries: summaries,
		Sentiment: news.Sentiment{Classification: label, Score: score},
	}, nil
}

// stripCodeFences removes a surrounding markdown code block, if present.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
