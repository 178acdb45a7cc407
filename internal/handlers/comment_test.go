package handlers

import (
	"testing"
	"time"
)

func TestTimeAgo(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		from time.Time
		want string
	}{
		{now.Add(-30 * time.Second), "just now"},
		{now.Add(-5 * time.Minute), "5 minutes ago"},
		{now.Add(-3 * time.Hour), "3 hours ago"},
		{now.Add(-48 * time.Hour), "2 days ago"},
		{now.Add(-65 * 24 * time.Hour), "2 months ago"},
		{now.Add(-800 * 24 * time.Hour), "2 years ago"},
	}

	for _, tc := range cases {
		if got := timeAgo(tc.from, now); got != tc.want {
			t.Fatalf("timeAgo(%v): expected %q, got %q", now.Sub(tc.from), tc.want, got)
		}
	}
}

func TestValidRating(t *testing.T) {
	cases := []struct {
		rating int
		ok     bool
	}{
		{0, true}, // no rating attached
		{1, true},
		{5, true},
		{-1, false},
		{6, false},
	}

	for _, tc := range cases {
		if got := validRating(tc.rating); got != tc.ok {
			t.Fatalf("validRating(%d) = %v, want %v", tc.rating, got, tc.ok)
		}
	}
}
