package cdp

import (
	"net/url"
	"sort"
	"strings"

	"github.com/chromedp/cdproto/target"
)

// SortTabsByPriority orders tabs so that those whose domain matches an
// entry in the priority list come first, in priority-list order with ties
// broken by domain name; all other tabs sort after, ordered by domain name.
func SortTabsByPriority(tabs []*target.Info, priority []string) {
	sort.SliceStable(tabs, func(i, j int) bool {
		ri, di := priorityRank(tabs[i].URL, priority)
		rj, dj := priorityRank(tabs[j].URL, priority)
		if ri != rj {
			return ri < rj
		}
		return di < dj
	})
}

// priorityRank returns the sort rank for a tab URL: the priority-list index
// for matching domains, or len(priority) for everything else.
func priorityRank(rawURL string, priority []string) (int, string) {
	domain := domainOf(rawURL)
	for i, p := range priority {
		if domain == p || strings.HasSuffix(domain, "."+p) {
			return i, domain
		}
	}
	return len(priority), domain
}

func domainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
