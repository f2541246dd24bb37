package slug

import (
	"strings"
	"testing"
)

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Daily Needs":       "daily_needs",
		"  freedom_fund ":   "freedom_fund",
		"Emergency -- Fund": "emergency_fund",
		"__charity__":       "charity",
		"Tabungan 2025!":    "tabungan_2025",
		"!!!":               "",
	}
	for in, want := range cases {
		if got := Slugify(in); got != want {
			t.Fatalf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
	if got := Slugify(strings.Repeat("a", 80)); len(got) != MaxLen {
		t.Fatalf("expected truncation to %d, got %d", MaxLen, len(got))
	}
}

func TestIsSlug(t *testing.T) {
	for _, ok := range []string{"savings", "daily_needs", "w2"} {
		if !IsSlug(ok) {
			t.Fatalf("expected %q to be a slug", ok)
		}
	}
	for _, bad := range []string{"", "a", "Savings", "daily needs", strings.Repeat("x", 41)} {
		if IsSlug(bad) {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}
