package paddock

import (
	"strings"
	"time"
)

// Category groups a question by what it is asking about. The category
// decides how long an answer stays fresh: live data goes stale in
// minutes, historical questions barely age.
type Category string

const (
	CategoryNextRace   Category = "next_race"
	CategoryStandings  Category = "standings"
	CategoryResults    Category = "results"
	CategoryHistorical Category = "historical"
	CategoryGeneral    Category = "general"
)

// rules are tested in order; the first keyword hit wins.
var rules = []struct {
	category Category
	keywords []string
}{
	{CategoryNextRace, []string{"next race", "when is", "upcoming", "schedule", "calendar"}},
	{CategoryStandings, []string{"standings", "championship", "points", "leader", "leading"}},
	{CategoryResults, []string{"results", "winner", "won", "podium", "finished", "last race"}},
	{CategoryHistorical, []string{"history", "historical", "strategy", "ever", "all time", "record", "explain"}},
}

// Classify maps a question to its category by keyword matching over the
// lower-cased text. Deterministic: same question, same category.
func Classify(question string) Category {
	q := strings.ToLower(question)
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(q, kw) {
				return r.category
			}
		}
	}
	return CategoryGeneral
}

// TTL returns how long answers in this category stay fresh.
func (c Category) TTL() time.Duration {
	switch c {
	case CategoryNextRace, CategoryHistorical:
		return 30 * time.Minute
	case CategoryStandings:
		return 10 * time.Minute
	case CategoryResults:
		return 5 * time.Minute
	default:
		return 2 * time.Minute
	}
}
