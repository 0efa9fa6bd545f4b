package elastic

// indexMapping is the explicit mapping for the news index. Ticker and id
// fields are keywords for exact filtering; title and content are analyzed
// for full-text search.
const indexMapping = `{
  "mappings": {
    "properties": {
      "news_id":       {"type": "keyword"},
      "ticker_symbol": {"type": "keyword"},
      "company_name":  {"type": "text"},
      "title":         {"type": "text"},
      "url":           {"type": "keyword"},
      "content":       {"type": "text"},
      "published_at":  {"type": "date"},
      "created_at":    {"type": "date"},
      "summary": {
        "properties": {
          "ko": {"type": "text"},
          "en": {"type": "text"},
          "es": {"type": "text"},
          "ja": {"type": "text"}
        }
      },
      "sentiment": {
        "properties": {
          "classification": {"type": "keyword"},
          "score":          {"type": "integer"}
        }
      }
    }
  }
}`
