// Package digest renders and delivers the daily stock news email.
package digest

import (
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/finsight/stocknews/internal/news"
)

const (
	colorPositive = "#34a853"
	colorNegative = "#ea4335"
	colorNeutral  = "#999"
)

var noNewsMessages = map[string]string{
	"ko": "관심 종목에 대한 새로운 뉴스가 없습니다.",
	"en": "There are no new news for your watchlist.",
	"es": "No hay nuevas noticias para su lista de seguimiento.",
	"ja": "ウォッチリストに関する新しいニュースはありません。",
}

// Builder renders digest emails for one recipient at a time.
type Builder struct {
	reportTmpl *template.Template
	noNewsTmpl *template.Template
}

// NewBuilder parses the embedded templates.
func NewBuilder() (*Builder, error) {
	reportTmpl, err := template.New("report").Parse(reportTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse report template: %w", err)
	}
	noNewsTmpl, err := template.New("no_news").Parse(noNewsTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse no-news template: %w", err)
	}
	return &Builder{reportTmpl: reportTmpl, noNewsTmpl: noNewsTmpl}, nil
}

// Email is a rendered digest ready for delivery.
type Email struct {
	Subject  string
	HTML     string
	Articles int
}

type reportItem struct {
	Title   string
	Summary string
	URL     string
	Label   string
	Color   string
	Score   string
}

type tickerGroup struct {
	Ticker string
	Items  []reportItem
}

type reportData struct {
	Date     string
	Total    int
	Positive int
	Negative int
	Neutral  int
	Groups   []tickerGroup
}

// Build renders the digest for a user from the documents in their lookback
// window. Recipients with nothing new still get an email saying so.
func (b *Builder) Build(user news.User, docs []news.Document, now time.Time) (Email, error) {
	date := now.Format("2006-01-02")

	if len(docs) == 0 {
		message, ok := noNewsMessages[user.Language]
		if !ok {
			message = noNewsMessages["en"]
		}
		var buf strings.Builder
		if err := b.noNewsTmpl.Execute(&buf, map[string]string{
			"Date":    date,
			"Message": message,
		}); err != nil {
			return Email{}, fmt.Errorf("render no-news email: %w", err)
		}
		return Email{
			Subject: fmt.Sprintf("[Stock Report] %s - No new articles", date),
			HTML:    buf.String(),
		}, nil
	}

	data := reportData{Date: date, Total: len(docs)}
	byTicker := map[string]int{}

	order := user.Watchlist
	if len(order) == 0 {
		for _, d := range docs {
			if _, seen := byTicker[d.Ticker]; !seen {
				order = append(order, d.Ticker)
			}
			byTicker[d.Ticker] = 0
		}
	}

	grouped := map[string][]reportItem{}
	for _, d := range docs {
		item := reportItem{
			Title:   d.Title,
			Summary: d.Summary.ForLanguage(user.Language),
			URL:     d.URL,
			Score:   fmt.Sprintf("%+d", d.Sentiment.Score),
		}
		switch d.Sentiment.Classification {
		case news.SentimentPositive:
			item.Label, item.Color = "Positive", colorPositive
			data.Positive++
		case news.SentimentNegative:
			item.Label, item.Color = "Negative", colorNegative
			data.Negative++
		default:
			item.Label, item.Color = "Neutral", colorNeutral
			data.Neutral++
		}
		grouped[d.Ticker] = append(grouped[d.Ticker], item)
	}

	for _, ticker := range order {
		items, ok := grouped[ticker]
		if !ok {
			continue
		}
		data.Groups = append(data.Groups, tickerGroup{Ticker: ticker, Items: items})
	}

	var buf strings.Builder
	if err := b.reportTmpl.Execute(&buf, data); err != nil {
		return Email{}, fmt.Errorf("render report email: %w", err)
	}
	return Email{
		Subject:  fmt.Sprintf("[Stock Report] %s - Watchlist analysis", date),
		HTML:     buf.String(),
		Articles: len(docs),
	}, nil
}

const reportTemplate = `<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: Arial, sans-serif; max-width: 800px; margin: 0 auto; padding: 20px;">
	<div style="background: #1a73e8; color: white; padding: 20px; border-radius: 8px 8px 0 0;">
		<h1 style="margin: 0;">Stock Analysis Report</h1>
		<p style="margin: 10px 0 0 0;">{{.Date}}</p>
	</div>
{{range .Groups}}
	<div style="margin: 20px 0; border: 1px solid #ddd; border-radius: 8px; overflow: hidden;">
		<h2 style="background: #f5f5f5; margin: 0; padding: 15px; font-size: 18px;">{{.Ticker}}</h2>
{{range .Items}}
		<div style="padding: 15px; border-bottom: 1px solid #eee;">
			<h3 style="margin: 0 0 10px 0; font-size: 16px;">{{.Title}}</h3>
			<p style="color: #666; margin: 0 0 10px 0;">{{.Summary}}</p>
			<span style="display: inline-block; padding: 5px 10px; border-radius: 4px; color: {{.Color}};">{{.Label}} ({{.Score}})</span>
			<a href="{{.URL}}" style="float: right; color: #1a73e8;">Read more</a>
			<div style="clear: both;"></div>
		</div>
{{end}}
	</div>
{{end}}
	<div style="text-align: center; padding: 20px; color: #666; background: #f5f5f5; border-radius: 0 0 8px 8px;">
		<p style="margin: 0;">Total {{.Total}} | Positive {{.Positive}} | Negative {{.Negative}} | Neutral {{.Neutral}}</p>
	</div>
</body>
</html>
`

const noNewsTemplate = `<!DOCTYPE html>
<html>
<head>
	<meta charset="UTF-8">
	<meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
	<div style="background: #1a73e8; color: white; padding: 20px; border-radius: 8px 8px 0 0; text-align: center;">
		<h1 style="margin: 0;">Stock Analysis Report</h1>
		<p style="margin: 10px 0 0 0;">{{.Date}}</p>
	</div>
	<div style="padding: 40px 20px; text-align: center; background: #f9f9f9;">
		<p style="font-size: 18px; color: #666; margin: 0;">{{.Message}}</p>
	</div>
</body>
</html>
`
