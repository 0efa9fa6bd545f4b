package openai

import (
	"fmt"

	"github.com/finsight/stocknews/internal/news"
)

// promptContentMax keeps the article body within the token budget.
const promptContentMax = 2000

func buildPrompt(article news.RawArticle) string {
	content := article.Content
	if runes := []rune(content); len(runes) > promptContentMax {
		content = string(runes[:promptContentMax]) + "..."
	}

	return fmt.Sprintf(`You are a professional stock market analyst. Analyze the following news article and provide:

1. Summary in Korean (한국어): A natural and fluent summary in Korean (2-3 sentences)
2. Summary in English: A natural and fluent summary in English (2-3 sentences)
3. Summary in Spanish (Español): A natural and fluent summary in Spanish (2-3 sentences)
4. Summary in Japanese (日本語): A natural and fluent summary in Japanese (2-3 sentences)
5. Sentiment Analysis:
   - Classification: Positive / Negative / Neutral
   - Score: -10 to +10 (-10: very negative, 0: neutral, +10: very positive)

News Article:
Title: %s
Content: %s
Stock: %s

Please provide the response in JSON format:
{
  "summary_ko": "...",
  "summary_en": "...",
  "summary_es": "...",
  "summary_ja": "...",
  "sentiment": {
    "classification": "Positive/Negative/Neutral",
    "score": 0
  }
}`, article.Title, content, article.Ticker)
}
