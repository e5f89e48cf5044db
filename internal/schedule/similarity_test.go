package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTitleSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a    string
		b    string
		want float64
	}{
		{name: "identical", a: "Team Sync", b: "Team Sync", want: 1},
		{name: "case insensitive", a: "team sync", b: "TEAM SYNC", want: 1},
		{name: "whitespace collapsed", a: "Team   Sync", b: " Team Sync ", want: 1},
		{name: "both empty", a: "", b: "", want: 1},
		{name: "one empty", a: "Team Sync", b: "", want: 0},
		{name: "disjoint", a: "abc", b: "xyz", want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, TitleSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestTitleSimilaritySymmetric(t *testing.T) {
	pairs := [][2]string{
		{"Team Sync", "Team Standup"},
		{"1:1 with Sam", "1:1 with Pat"},
		{"Lunch", "Launch review"},
	}
	for _, p := range pairs {
		assert.Equal(t, TitleSimilarity(p[0], p[1]), TitleSimilarity(p[1], p[0]), p[0])
	}
}

func TestTitleSimilarityRange(t *testing.T) {
	pairs := [][2]string{
		{"Team Sync", "Team Standup"},
		{"a", "ab"},
		{"planning", "Planning session with the whole team"},
	}
	for _, p := range pairs {
		got := TitleSimilarity(p[0], p[1])
		assert.GreaterOrEqual(t, got, 0.0)
		assert.LessOrEqual(t, got, 1.0)
	}
}

func TestTitleSimilarityCloseTitlesScoreHigh(t *testing.T) {
	got := TitleSimilarity("Team Sync", "Team Sync!")
	assert.Greater(t, got, 0.8)

	got = TitleSimilarity("Weekly Planning", "Weekly Planning Meeting")
	assert.Greater(t, got, 0.6)
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a    string
		b    string
		want int
	}{
		{a: "kitten", b: "sitting", want: 3},
		{a: "", b: "abc", want: 3},
		{a: "abc", b: "", want: 3},
		{a: "same", b: "same", want: 0},
		{a: "héllo", b: "hello", want: 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, levenshtein(tt.a, tt.b), "%q vs %q", tt.a, tt.b)
	}
}
