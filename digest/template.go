package digest

import (
	"fmt"
	"strings"

	"github.com/pitsnap/paddock/f1api"
	"github.com/pitsnap/paddock/pitwall"
)

// renderFacts flattens the pit-wall data into the fact sheet handed to
// the model. Missing legs are simply left out.
func renderFacts(d pitwall.PitWallData) string {
	var b strings.Builder

	if nr := d.NextRace; nr != nil {
		fmt.Fprintf(&b, "Next race: %s at %s, %s on %s (%d days away)\n",
			nr.Name, nr.Circuit, nr.Country, nr.Date.Format("Monday 2 January"), nr.DaysUntil)
	}
	if sc := d.Schedule; sc != nil {
		fmt.Fprintf(&b, "Season %d: round %d of %d\n", sc.Season, sc.CurrentRound, sc.TotalRounds)
	}
	if res := d.LatestResults; res != nil && len(res.Results) > 0 {
		fmt.Fprintf(&b, "Last race: %s\n", res.Race)
		for _, r := range top(res.Results, 3) {
			fmt.Fprintf(&b, "  P%d %s (%s) %s\n", r.Position, r.Driver, r.Team, r.Time)
		}
	}
	if st := d.Standings; st != nil && len(st.Results) > 0 {
		trimmed := f1api.Standings{Results: top(st.Results, 5)}
		fmt.Fprintf(&b, "Standings: %s\n", trimmed.Summary())
	}

	if b.Len() == 0 {
		return "No race data available today."
	}
	return b.String()
}

// fromTemplate renders the digest directly from the data when the model
// cannot. Same shape, no prose flair.
func fromTemplate(d pitwall.PitWallData) Digest {
	out := Digest{Headline: "Your daily F1 briefing"}
	var sentences []string

	if nr := d.NextRace; nr != nil {
		if nr.DaysUntil == 0 {
			out.Headline = fmt.Sprintf("Race day: %s", nr.Name)
		} else {
			out.Headline = fmt.Sprintf("%d days until the %s", nr.DaysUntil, nr.Name)
		}
		sentences = append(sentences, fmt.Sprintf("The %s at %s is up next.", nr.Name, nr.Circuit))
		out.Highlights = append(out.Highlights, fmt.Sprintf("Next up: %s, %s", nr.Name, nr.Location))
	}
	if res := d.LatestResults; res != nil {
		if w, ok := res.Winner(); ok {
			sentences = append(sentences, fmt.Sprintf("%s took the win for %s at the %s.", w.Driver, w.Team, res.Race))
			out.Highlights = append(out.Highlights, fmt.Sprintf("%s won the %s", w.Driver, res.Race))
		}
	}
	if st := d.Standings; st != nil {
		if l, ok := st.Leader(); ok {
			sentences = append(sentences, fmt.Sprintf("%s leads the championship on %.0f points.", l.Driver, l.Points))
			out.Highlights = append(out.Highlights, fmt.Sprintf("%s leads on %.0f points", l.Driver, l.Points))
		}
	}

	if len(sentences) == 0 {
		out.Summary = "No fresh race data was available today. Check back after the next session."
		return out
	}
	out.Summary = strings.Join(sentences, " ")
	return out
}

func top(results []f1api.Result, n int) []f1api.Result {
	if len(results) < n {
		return results
	}
	return results[:n]
}
