package investing

import (
	"fmt"
	"net/url"
	"strings"
)

// tickerSlugs maps ticker symbols to Investing.com equity page slugs.
// Tickers without an entry fall back to the site search (see newsURL).
var tickerSlugs = map[string]string{
	"TSLA":  "tesla-motors",
	"AAPL":  "apple-computer-inc",
	"GOOGL": "google-inc",
	"GOOG":  "google-inc-c",
	"MSFT":  "microsoft-corp",
	"AMZN":  "amazon-com-inc",
	"META":  "meta-platforms",
	"NVDA":  "nvidia-corp",
	"AMD":   "advanced-micro-device",
	"NFLX":  "netflix-inc",
	"INTC":  "intel-corp",
	"CRM":   "salesforce-com",
	"ORCL":  "oracle-corp",
	"IBM":   "ibm",
	"CSCO":  "cisco-systems-inc",
	"ADBE":  "adobe-sys-inc",
	"PYPL":  "paypal-holdings-inc",
	"SQ":    "square-inc",
	"SHOP":  "shopify-inc",
	"UBER":  "uber-technologies-inc",
	"LYFT":  "lyft-inc",
	"SNAP":  "snap-inc",
	"PINS":  "pinterest",
	"ZM":    "zoom-video-communications-inc",
	"DOCU":  "docusign-inc",
	"ROKU":  "roku-inc",
	"SPOT":  "spotify-technology",
	"ABNB":  "airbnb-inc",
	"COIN":  "coinbase-global-inc",
	"RBLX":  "roblox-corp",
	"PLTR":  "palantir-technologies-inc",
	"SNOW":  "snowflake-inc",
	"DDOG":  "datadog-inc",
	"NET":   "cloudflare-inc",
	"CRWD":  "crowdstrike-holdings-inc",
	"OKTA":  "okta-inc",
	"MDB":   "mongodb-inc",
	"ZS":    "zscaler-inc",
	"JPM":   "jp-morgan-chase",
	"BAC":   "bank-of-america",
	"WFC":   "wells-fargo",
	"GS":    "goldman-sachs-group",
	"MS":    "morgan-stanley",
	"C":     "citigroup",
	"V":     "visa-inc",
	"MA":    "mastercard-inc",
	"DIS":   "disney",
	"WMT":   "wal-mart-stores",
	"TGT":   "target-corp",
	"COST":  "costco-wholesale",
	"HD":    "home-depot",
	"NKE":   "nike",
	"SBUX":  "starbucks-corp",
	"MCD":   "mcdonalds-corp",
	"KO":    "coca-cola-co",
	"PEP":   "pepsico",
	"JNJ":   "johnson-johnson",
	"PFE":   "pfizer-inc",
	"MRK":   "merck-co-inc",
	"ABBV":  "abbvie-inc",
	"UNH":   "unitedhealth-group",
	"CVS":   "cvs-health-corp",
	"BA":    "boeing-co",
	"CAT":   "caterpillar-inc",
	"GE":    "general-electric",
	"MMM":   "3m-co",
	"XOM":   "exxon-mobil",
	"CVX":   "chevron",
	"COP":   "conocophillips",
	"OXY":   "occidental-petroleum",
}

// Slug returns the Investing.com slug for a ticker symbol.
func Slug(ticker string) (string, bool) {
	slug, ok := tickerSlugs[strings.ToUpper(ticker)]
	return slug, ok
}

// newsURL resolves the listing page for a ticker. Mapped tickers get their
// equities news page; unmapped ones degrade to a search-by-symbol URL so a
// missing table entry never aborts the fetch.
func newsURL(ticker string) string {
	if slug, ok := Slug(ticker); ok {
		return fmt.Sprintf("%s/equities/%s-news", baseURL, slug)
	}
	return fmt.Sprintf("%s/search/?q=%s&tab=news", baseURL, url.QueryEscape(ticker))
}
