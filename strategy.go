package offlinecache

import "strings"

// Strategy is the algorithm used to resolve a request to a response.
type Strategy int

const (
	// CacheFirst serves a stored response outright and contacts the network
	// only on a miss. Default, covers same-origin static assets.
	CacheFirst Strategy = iota
	// NetworkFirst prefers live data and uses the cache purely as a
	// fallback. For dynamic endpoints and anything needing freshness.
	NetworkFirst
	// StaleWhileRevalidate serves a stored response immediately and
	// refreshes it in the background. For third-party/CDN resources where
	// slightly outdated content is acceptable.
	StaleWhileRevalidate
)

func (s Strategy) String() string {
	switch s {
	case NetworkFirst:
		return "network-first"
	case StaleWhileRevalidate:
		return "stale-while-revalidate"
	default:
		return "cache-first"
	}
}

// Rule associates a URL substring pattern with a strategy.
type Rule struct {
	Pattern  string
	Strategy Strategy
}

// Rules is an ordered rule list, constant for the worker's lifetime.
type Rules []Rule

// Classify returns the strategy for the given request URL.
// The first matching pattern wins; URLs matching no pattern resolve to
// CacheFirst. Classification is pure: same URL and rule set, same result.
func (rules Rules) Classify(url string) Strategy {
	for _, rule := range rules {
		if strings.Contains(url, rule.Pattern) {
			return rule.Strategy
		}
	}
	return CacheFirst
}

// RulesFor builds the rule table from per-strategy pattern lists.
// Network-first patterns are consulted before stale-while-revalidate ones.
func RulesFor(networkFirst, staleWhileRevalidate []string) Rules {
	rules := make(Rules, 0, len(networkFirst)+len(staleWhileRevalidate))
	for _, pattern := range networkFirst {
		rules = append(rules, Rule{Pattern: pattern, Strategy: NetworkFirst})
	}
	for _, pattern := range staleWhileRevalidate {
		rules = append(rules, Rule{Pattern: pattern, Strategy: StaleWhileRevalidate})
	}
	return rules
}
