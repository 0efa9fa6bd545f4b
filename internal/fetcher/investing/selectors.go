package investing

// Selector chains are tried in order; the first that yields nodes wins.
// Investing.com has shipped several markup generations, so older selectors
// stay in the chain as fallbacks.

var articleSelectors = []string{
	`article[data-test="article-item"]`,
	`article.js-article-item`,
	`article[class*="article"]`,
	`.articleItem`,
	`div[data-test="news-item"]`,
}

var titleSelectors = []string{
	`a[data-test="article-title-link"]`,
	`a.title`,
	`h3 a`,
	`h2 a`,
	`a[href*="/news/"]`,
	`a[href*="/analysis/"]`,
}

var dateSelectors = []string{
	`time[data-test="article-publish-date"]`,
	`time`,
	`span[data-test="article-publish-date"]`,
	`.date`,
	`.articleDetails span`,
	`[datetime]`,
}

var descriptionSelectors = []string{
	`p[data-test="article-description"]`,
	`.articleDescription`,
	`p.description`,
	`p`,
}

var cookieSelectors = []string{
	`button[id*="accept"]`,
	`button[class*="accept"]`,
	`[data-test="consent-accept"]`,
	`#onetrust-accept-btn-handler`,
	`.js-accept-cookies`,
}
