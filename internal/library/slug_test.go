package library

import "testing"

func TestSlugify(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Trip", "trip"},
		{"Day 1", "day-1"},
		{"Trip: Solo", "trip-solo"},
		{"  Boise   River  ", "boise-river"},
		{"Crème Brûlée", "creme-brulee"},
		{"Rock & Roll", "rock-and-roll"},
		{"Jason's Ride", "jasons-ride"},
		{"north/south", "north-south"},
		{"--edge--", "edge"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Slugify(tt.in); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
