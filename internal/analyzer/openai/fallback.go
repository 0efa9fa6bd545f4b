package openai

import (
	"strings"
	"unicode"

	"github.com/finsight/stocknews/internal/news"
)

// fallbackSummaryMax caps the heuristic summary length.
const fallbackSummaryMax = 200

var positiveKeywords = wordSet(
	"surge", "surges", "soar", "soars", "rally", "rallies", "jump", "jumps",
	"gain", "gains", "beat", "beats", "record", "growth", "profit",
	"profits", "upgrade", "upgrades", "strong", "bullish", "outperform",
	"exceeds", "boost", "boosts", "breakthrough",
)

var negativeKeywords = wordSet(
	"drop", "drops", "fall", "falls", "plunge", "plunges", "slump",
	"slumps", "decline", "declines", "miss", "misses", "loss", "losses",
	"downgrade", "downgrades", "weak", "bearish", "lawsuit", "recall",
	"recalls", "layoff", "layoffs", "probe", "warning", "cuts",
)

func wordSet(words ...string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[w] = true
	}
	return set
}

// Fallback builds a heuristic analysis when the model is unavailable or its
// output fails validation. The shape matches a model result exactly: all
// four language slots populated, a valid classification, an in-range score.
func Fallback(title, content string) news.Analysis {
	summary := fallbackSummary(title, content)
	return news.Analysis{
		Summaries: news.Summaries{
			KO: summary,
			EN: summary,
			ES: summary,
			JA: summary,
		},
		Sentiment: keywordSentiment(title + " " + content),
		Fallback:  true,
	}
}

func fallbackSummary(title, content string) string {
	firstSentence := title
	if content != "" {
		firstSentence = strings.SplitN(content, ".", 2)[0]
	}
	summary := title + ". " + strings.TrimSpace(firstSentence) + "."
	if runes := []rune(summary); len(runes) > fallbackSummaryMax {
		summary = string(runes[:fallbackSummaryMax-3]) + "..."
	}
	return summary
}

// keywordSentiment scores text by counting positive and negative keyword
// hits; the net count decides the classification.
func keywordSentiment(text string) news.Sentiment {
	lower := strings.ToLower(text)
	words := strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r)
	})

	net := 0
	for _, w := range words {
		switch {
		case positiveKeywords[w]:
			net++
		case negativeKeywords[w]:
			net--
		}
	}

	label := news.SentimentNeutral
	switch {
	case net > 0:
		label = news.SentimentPositive
	case net < 0:
		label = news.SentimentNegative
	}
	return news.Sentiment{
		Classification: label,
		Score:          news.ClampScore(net * 2),
	}
}
