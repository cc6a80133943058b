package f1api

import (
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Event is one race weekend on the season schedule.
type Event struct {
	Round      int       `json:"round"`
	Name       string    `json:"name"`
	Location   string    `json:"location"`
	Country    string    `json:"country"`
	Date       time.Time `json:"date"`
	IsUpcoming bool      `json:"is_upcoming"`
	Circuit    string    `json:"circuit"`
	Status     string    `json:"status"`
}

// Race status values reported by the schedule endpoint.
const (
	StatusUpcoming  = "upcoming"
	StatusCurrent   = "current"
	StatusCompleted = "completed"
)

func (e Event) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Name, validation.Required),
		validation.Field(&e.Status, validation.In(StatusUpcoming, StatusCurrent, StatusCompleted)),
	)
}

// Schedule is the full season calendar.
type Schedule struct {
	Season       int     `json:"season"`
	Events       []Event `json:"events"`
	TotalRounds  int     `json:"total_rounds"`
	CurrentRound int     `json:"current_round"`
	LastUpdated  string  `json:"last_updated"`
}

func (s *Schedule) Validate() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.Season, validation.Required),
	)
}

// NextRace describes the next upcoming race weekend.
type NextRace struct {
	Round     int       `json:"round"`
	Name      string    `json:"name"`
	Location  string    `json:"location"`
	Country   string    `json:"country"`
	Date      time.Time `json:"date"`
	DaysUntil int       `json:"days_until"`
	Circuit   string    `json:"circuit"`
}

func (n *NextRace) Validate() error {
	return validation.ValidateStruct(n,
		validation.Field(&n.Name, validation.Required),
		validation.Field(&n.Date, validation.Required),
	)
}

// Result is one classified row. For standings queries the upstream packs
// the gap text into the Time column.
type Result struct {
	Position int     `json:"position"`
	Driver   string  `json:"driver"`
	Team     string  `json:"team"`
	Time     string  `json:"time,omitempty"`
	Points   float64 `json:"points"`
}

// RaceResults is the classification of the most recent completed race.
type RaceResults struct {
	Race    string   `json:"race"`
	Date    string   `json:"date"`
	Results []Result `json:"results"`
}

func (r *RaceResults) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Race, validation.Required),
	)
}

// Winner returns the P1 row.
func (r RaceResults) Winner() (Result, bool) {
	for _, res := range r.Results {
		if res.Position == 1 {
			return res, true
		}
	}
	return Result{}, false
}

// Standings is the championship table, served in the same envelope as
// race results.
type Standings struct {
	Race    string   `json:"race"`
	Date    string   `json:"date"`
	Results []Result `json:"results"`
}

func (s *Standings) Validate() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.Race, validation.Required),
	)
}

// Leader returns the championship leader.
func (s Standings) Leader() (Result, bool) {
	for _, res := range s.Results {
		if res.Position == 1 {
			return res, true
		}
	}
	return Result{}, false
}

// Summary renders the table as one compact line per driver, for feeding
// into an assistant prompt as context.
func (s Standings) Summary() string {
	if len(s.Results) == 0 {
		return ""
	}

	lines := make([]string, 0, len(s.Results))
	for _, r := range s.Results {
		lines = append(lines, fmt.Sprintf("%d. %s (%s) %.0f pts", r.Position, r.Driver, r.Team, r.Points))
	}
	return strings.Join(lines, "; ")
}
