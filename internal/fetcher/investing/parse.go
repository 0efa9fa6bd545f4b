package investing

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/finsight/stocknews/internal/news"
)

const (
	baseURL = "https://www.investing.com"

	// maxArticlesPerPage bounds how many listing entries are read,
	// regardless of the requested limit.
	maxArticlesPerPage = 20
)

// parseArticles extracts headline entries from a rendered listing page.
// now anchors relative dates and stands in for unparseable ones.
func parseArticles(html, ticker string, now time.Time) ([]news.RawArticle, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	var nodes *goquery.Selection
	for _, selector := range articleSelectors {
		sel := doc.Find(selector)
		if sel.Length() > 0 {
			nodes = sel
			break
		}
	}
	if nodes == nil {
		return nil, nil
	}

	articles := make([]news.RawArticle, 0, nodes.Length())
	nodes.EachWithBreak(func(i int, node *goquery.Selection) bool {
		if i >= maxArticlesPerPage {
			return false
		}
		if a, ok := extractArticle(node, ticker, now); ok {
			articles = append(articles, a)
		}
		return true
	})
	return articles, nil
}

func extractArticle(node *goquery.Selection, ticker string, now time.Time) (news.RawArticle, bool) {
	var titleNode *goquery.Selection
	for _, selector := range titleSelectors {
		sel := node.Find(selector)
		if sel.Length() > 0 {
			titleNode = sel.First()
			break
		}
	}
	if titleNode == nil {
		return news.RawArticle{}, false
	}

	title := strings.TrimSpace(titleNode.Text())
	href, _ := titleNode.Attr("href")
	if title == "" || href == "" {
		return news.RawArticle{}, false
	}
	if strings.HasPrefix(href, "/") {
		href = baseURL + href
	}

	publishedAt, _ := ParseArticleDate(extractDateString(node), now)

	return news.RawArticle{
		Ticker:      ticker,
		Title:       title,
		URL:         href,
		PublishedAt: publishedAt,
		Content:     extractDescription(node),
		Source:      "investing.com",
	}, true
}

func extractDateString(node *goquery.Selection) string {
	for _, selector := range dateSelectors {
		sel := node.Find(selector)
		if sel.Length() == 0 {
			continue
		}
		first := sel.First()
		if dt, ok := first.Attr("datetime"); ok && strings.TrimSpace(dt) != "" {
			return dt
		}
		if text := strings.TrimSpace(first.Text()); text != "" {
			return text
		}
	}
	return ""
}

func extractDescription(node *goquery.Selection) string {
	for _, selector := range descriptionSelectors {
		sel := node.Find(selector)
		if sel.Length() == 0 {
			continue
		}
		if text := strings.TrimSpace(sel.First().Text()); text != "" {
			return text
		}
	}
	return ""
}
