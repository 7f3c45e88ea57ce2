// Package filter implements the query exclusion rules used by keyword
// auto-discovery.
package filter

import (
	"fmt"
	"regexp"
	"strings"
)

// Kind is the matching strategy of a rule.
type Kind string

// Supported rule kinds.
const (
	KindWord  Kind = "word"
	KindRegex Kind = "regex"
)

const regexPrefix = "re:"

// Rule excludes queries containing a word or matching a pattern. Regex rules
// match only when built by ParseRules.
type Rule struct {
	Kind  Kind
	Value string
	re    *regexp.Regexp
}

// ParseRules parses a comma-separated list. Entries prefixed with "re:"
// are case-insensitive regular expressions; the rest are words.
func ParseRules(raw string) ([]Rule, error) {
	var rules []Rule
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if strings.HasPrefix(part, regexPrefix) {
			pattern := strings.TrimPrefix(part, regexPrefix)
			re, err := compile(pattern)
			if err != nil {
				return nil, err
			}
			rules = append(rules, Rule{Kind: KindRegex, Value: pattern, re: re})
			continue
		}
		rules = append(rules, Rule{Kind: KindWord, Value: strings.ToLower(part)})
	}
	return rules, nil
}

// Excluded reports whether any rule matches the query.
func Excluded(query string, rules []Rule) bool {
	text := strings.ToLower(query)
	for _, r := range rules {
		if r.matches(text) {
			return true
		}
	}
	return false
}

func (r Rule) matches(text string) bool {
	switch r.Kind {
	case KindWord:
		return strings.Contains(text, strings.ToLower(r.Value))
	case KindRegex:
		return r.re != nil && r.re.MatchString(text)
	}
	return false
}

func compile(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid regex %q: %w", pattern, err)
	}
	return re, nil
}
