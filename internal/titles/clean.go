// Package titles shortens raw browser tab titles for display on clients
// with limited space, using per-domain cleaning rules.
package titles

import (
	"net/url"
	"strings"
)

// Rule describes how to clean titles for one domain. A domain matches when
// the tab URL's host equals Domain or ends with "." + Domain.
type Rule struct {
	Domain       string            `yaml:"domain"`
	RemovePrefix string            `yaml:"remove_prefix,omitempty"`
	RemoveSuffix string            `yaml:"remove_suffix,omitempty"`
	ReplaceExact map[string]string `yaml:"replace_exact,omitempty"`
	SplitBy      string            `yaml:"split_by,omitempty"`
}

// Cleaner applies per-domain title cleaning rules. Only the first matching
// domain's rule is applied.
type Cleaner struct {
	rules []Rule
}

// Default returns a cleaner with the built-in rule set.
func Default() *Cleaner {
	return &Cleaner{rules: []Rule{
		{Domain: "youtube.com", RemoveSuffix: " - YouTube"},
		{Domain: "chatgpt.com", RemovePrefix: "ChatGPT - ", ReplaceExact: map[string]string{"ChatGPT": "New Chat"}},
		{Domain: "github.com", SplitBy: "/"},
	}}
}

// New returns a cleaner using the given rules.
func New(rules []Rule) *Cleaner {
	return &Cleaner{rules: rules}
}

// Clean returns the title cleaned by the rule matching the url's domain, or
// the trimmed title unchanged when no rule matches.
func (c *Cleaner) Clean(title, rawURL string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return title
	}

	domain := hostOf(rawURL)
	for _, rule := range c.rules {
		if domain != rule.Domain && !strings.HasSuffix(domain, "."+rule.Domain) {
			continue
		}

		if replaced, ok := rule.ReplaceExact[title]; ok {
			return replaced
		}
		if rule.RemovePrefix != "" && strings.HasPrefix(title, rule.RemovePrefix) {
			title = strings.TrimSpace(title[len(rule.RemovePrefix):])
		}
		if rule.RemoveSuffix != "" && strings.HasSuffix(title, rule.RemoveSuffix) {
			title = strings.TrimSpace(title[:len(title)-len(rule.RemoveSuffix)])
		}
		if rule.SplitBy != "" {
			// Keep only the part after the first separator, e.g. the repo
			// name from "owner/repo".
			if _, after, found := strings.Cut(title, rule.SplitBy); found {
				return strings.TrimSpace(after)
			}
		}
		break
	}

	return title
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
