package browser

import (
	"net/url"
	"strconv"
	"strings"
)

// regionGeoIDs maps region names and ISO codes to the site's internal
// geography identifiers, used to pin search results to a country. The
// table covers the regions the crawler is commonly pointed at; unknown
// regions search by location string alone.
var regionGeoIDs = map[string]string{
	"united states":  "103644278",
	"usa":            "103644278",
	"us":             "103644278",
	"united kingdom": "101165590",
	"uk":             "101165590",
	"germany":        "101282230",
	"de":             "101282230",
	"france":         "105015875",
	"fr":             "105015875",
	"netherlands":    "102890719",
	"nl":             "102890719",
	"canada":         "101174742",
	"ca":             "101174742",
	"australia":      "101452733",
	"au":             "101452733",
	"india":          "102713980",
	"in":             "102713980",
	"spain":          "105646813",
	"es":             "105646813",
	"italy":          "103350119",
	"it":             "103350119",
	"turkey":         "102105699",
	"tr":             "102105699",
	"poland":         "105072130",
	"pl":             "105072130",
	"sweden":         "105117694",
	"se":             "105117694",
	"switzerland":    "106693272",
	"ch":             "106693272",
	"belgium":        "100565514",
	"be":             "100565514",
	"austria":        "103883259",
	"at":             "103883259",
	"ireland":        "104738515",
	"ie":             "104738515",
	"portugal":       "100364837",
	"pt":             "100364837",
	"denmark":        "104514075",
	"dk":             "104514075",
	"norway":         "103819153",
	"no":             "103819153",
	"finland":        "100456013",
	"fi":             "100456013",
}

// GeoID returns the geography identifier for a region name or ISO code.
// The lookup is case-insensitive.
func GeoID(region string) (string, bool) {
	id, ok := regionGeoIDs[strings.ToLower(strings.TrimSpace(region))]
	return id, ok
}

const (
	searchBaseURL = "https://www.linkedin.com/jobs/search/"
	jobViewURL    = "https://www.linkedin.com/jobs/view/"

	// recentPostingsFilter restricts results to the last 7 days
	// (f_TPR is the site's time-posted-range parameter, in seconds).
	recentPostingsFilter = "r604800"

	// resultsPerPage is the site's fixed search page size.
	resultsPerPage = 25
)

// buildSearchURL constructs a search URL for the keyword and region at
// the given result offset. A region without a known geo ID is passed as a
// location string only.
func buildSearchURL(keyword, region string, start int) string {
	v := url.Values{}
	v.Set("keywords", keyword)
	v.Set("f_TPR", recentPostingsFilter)

	if region != "" {
		v.Set("location", region)
		if geoID, ok := GeoID(region); ok {
			v.Set("geoId", geoID)
		}
	}
	if start > 0 {
		v.Set("start", strconv.Itoa(start))
	}

	return searchBaseURL + "?" + v.Encode()
}

// buildJobURL constructs the canonical detail URL for a job ID.
func buildJobURL(id string) string {
	return jobViewURL + id + "/"
}
