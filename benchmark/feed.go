package benchmark

import (
	"strconv"
	"time"

	"github.com/gorilla/feeds"
)

// TrendFeed renders a prompt's recent benchmark history as an Atom feed,
// one entry per run, so external dashboards can subscribe to score history
// without polling the API. Grounded on gorilla/feeds' Feed/Item shape; no
// teacher file does this, so it follows the library's own idiomatic usage.
func TrendFeed(promptID, promptName, selfLink string, results []*Result) (string, error) {
	feed := &feeds.Feed{
		Title:       "Benchmark history: " + promptName,
		Link:        &feeds.Link{Href: selfLink},
		Description: "Benchmark run history for prompt " + promptID,
		Created:     time.Now().UTC(),
	}

	for _, r := range results {
		feed.Items = append(feed.Items, &feeds.Item{
			Id:          r.ID,
			Title:       r.SuiteID + " overall " + formatScore(r.Overall),
			Link:        &feeds.Link{Href: selfLink + "#" + r.ID},
			Description: describeResult(r),
			Created:     r.ExecutedAt,
		})
	}

	return feed.ToAtom()
}

func formatScore(f float64) string {
	return strconv.FormatFloat(f, 'f', 3, 64)
}

func describeResult(r *Result) string {
	status := "pass"
	if !r.GatePassed {
		status = "fail"
	}
	if r.IsRegression {
		status = "regression"
	}
	return "suite=" + r.SuiteID + " overall=" + formatScore(r.Overall) + " gate=" + status
}
