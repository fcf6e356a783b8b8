// Package classify scores a free-text feature description for complexity.
//
// Scoring is a fixed keyword table, not language understanding: each
// category carries trigger keywords and a weight, every distinct keyword
// found adds its category's weight, and the sum maps to a tier through
// fixed thresholds. The same text always yields the same Score.
package classify

import (
	"regexp"
	"strings"
)

// Level is the complexity tier.
type Level string

const (
	LevelLow       Level = "LOW"
	LevelLowMedium Level = "LOW_MEDIUM"
	LevelMedium    Level = "MEDIUM"
	LevelHigh      Level = "HIGH"
)

// Tier thresholds on the raw score.
const (
	HighThreshold      = 10
	MediumThreshold    = 5
	LowMediumThreshold = 2
)

// Category is one row of the indicator table.
type Category struct {
	Name     string
	Weight   int
	Keywords []string
}

// Categories is the indicator table. Order is significant: indicators are
// reported in this order.
var Categories = []Category{
	{
		Name:   "real-time",
		Weight: 4,
		Keywords: []string{
			"real-time", "realtime", "streaming", "websocket", "websockets",
			"collaborative", "live update", "live updates", "pub/sub",
		},
	},
	{
		Name:   "third-party integration",
		Weight: 3,
		Keywords: []string{
			"payment", "payments", "stripe", "paypal", "gateway", "oauth",
			"auth", "authentication", "sso", "webhook", "webhooks", "third-party",
		},
	},
	{
		Name:   "security/compliance",
		Weight: 3,
		Keywords: []string{
			"encryption", "encrypted", "gdpr", "hipaa", "pci", "compliance",
			"audit", "soc2",
		},
	},
	{
		Name:   "data complexity",
		Weight: 2,
		Keywords: []string{
			"migration", "etl", "analytics", "reporting", "search",
			"machine learning", "data pipeline", "synchronization", "offline sync",
		},
	},
	{
		Name:   "named stack",
		Weight: 2,
		Keywords: []string{
			"react", "vue", "angular", "django", "rails", "spring", "golang",
			"kubernetes", "postgres", "postgresql", "mongodb", "redis", "kafka",
			"graphql",
		},
	},
	{
		Name:   "scale/distribution",
		Weight: 1,
		Keywords: []string{
			"multi-tenant", "multitenant", "enterprise", "distributed",
			"microservice", "microservices", "scalable", "high availability",
			"sharding",
		},
	},
}

// Recommendations is the static advice per tier.
var Recommendations = map[Level][]string{
	LevelHigh: {
		"run the research step before planning",
		"split the feature into independently deliverable slices",
		"record architecture decisions for every integration",
	},
	LevelMedium: {
		"clarify integration and data requirements before planning",
		"plan tests for every external dependency",
	},
	LevelLowMedium: {
		"clarify the flagged areas before planning",
	},
	LevelLow: {
		"proceed directly to planning",
	},
}

// Score is the classification result.
type Score struct {
	Level           Level    `json:"level"`
	RawScore        int      `json:"raw_score"`
	Indicators      []string `json:"indicators"`
	Keywords        []string `json:"keywords"`
	Recommendations []string `json:"recommendations"`
}

type matcher struct {
	category int
	keyword  string
	re       *regexp.Regexp
}

var matchers = compile(Categories)

func compile(cats []Category) []matcher {
	var out []matcher
	for i, c := range cats {
		for _, k := range c.Keywords {
			out = append(out, matcher{
				category: i,
				keyword:  k,
				re:       regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(k) + `\b`),
			})
		}
	}
	return out
}

// Classify scores description. Matching is case-insensitive and on whole
// words; each keyword counts once no matter how often it occurs.
func Classify(description string) Score {
	s := Score{Indicators: []string{}, Keywords: []string{}}
	hit := make([]bool, len(Categories))

	text := normalizeSpace(description)
	for _, m := range matchers {
		if !m.re.MatchString(text) {
			continue
		}
		s.RawScore += Categories[m.category].Weight
		s.Keywords = append(s.Keywords, m.keyword)
		hit[m.category] = true
	}
	for i, c := range Categories {
		if hit[i] {
			s.Indicators = append(s.Indicators, c.Name)
		}
	}

	s.Level = Band(s.RawScore)
	s.Recommendations = append([]string(nil), Recommendations[s.Level]...)
	return s
}

// Band maps a raw score to its tier.
func Band(raw int) Level {
	switch {
	case raw >= HighThreshold:
		return LevelHigh
	case raw >= MediumThreshold:
		return LevelMedium
	case raw >= LowMediumThreshold:
		return LevelLowMedium
	default:
		return LevelLow
	}
}

// normalizeSpace collapses runs of whitespace so multi-word keywords match
// across line breaks.
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
