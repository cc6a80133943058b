package cache

import (
	"strings"
	"testing"
)

func TestKeyFor(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		params   map[string]string
		want     string
	}{
		{"bare endpoint", "/f1/schedule", nil, "f1_schedule"},
		{"params sorted", "/f1/results", map[string]string{"year": "2025", "round": "3"}, "f1_results__round=3__year=2025"},
		{"same params different order", "/f1/results", map[string]string{"round": "3", "year": "2025"}, "f1_results__round=3__year=2025"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KeyFor(tt.endpoint, tt.params); got != tt.want {
				t.Errorf("KeyFor(%q, %v) = %q, want %q", tt.endpoint, tt.params, got, tt.want)
			}
		})
	}
}

func TestKeyForBoundsLongKeys(t *testing.T) {
	params := map[string]string{"q": strings.Repeat("x", 400)}

	key := KeyFor("/search", params)
	if len(key) > maxKeyLen {
		t.Errorf("long key not bounded: %d chars", len(key))
	}
	if !strings.HasPrefix(key, "k_") {
		t.Errorf("bounded key should be hashed, got %q", key)
	}

	// Stable across calls.
	if again := KeyFor("/search", params); again != key {
		t.Errorf("bounded key not stable: %q vs %q", key, again)
	}
}

func TestQuestionKey(t *testing.T) {
	history := []string{"u:who won in monza", "a:Verstappen won"}

	base := QuestionKey("Who is leading the championship?", history, 2)

	tests := []struct {
		name     string
		question string
		history  []string
		window   int
		same     bool
	}{
		{"identical input", "Who is leading the championship?", history, 2, true},
		{"case and whitespace normalized", "  who IS   leading the Championship? ", history, 2, true},
		{"different question", "Who won the last race?", history, 2, false},
		{"different recent history", "Who is leading the championship?", []string{"u:hello", "a:hi"}, 2, false},
		{"older turns outside window ignored", "Who is leading the championship?", append([]string{"u:ancient", "a:context"}, history...), 2, true},
		{"window size changes the key", "Who is leading the championship?", history, 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := QuestionKey(tt.question, tt.history, tt.window)
			if (got == base) != tt.same {
				t.Errorf("QuestionKey(%q, %v, %d) = %q, same-as-base = %v, want %v",
					tt.question, tt.history, tt.window, got, got == base, tt.same)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize("  Who   WON\tin Monza?\n"); got != "who won in monza?" {
		t.Errorf("Normalize = %q", got)
	}
}
