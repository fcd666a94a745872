package similarity

import "testing"

func TestScore_IdenticalStrings(t *testing.T) {
	cases := []string{"", "a", "hello world", "안녕하세요", "👋 hi"}
	for _, s := range cases {
		if got := Score(s, s); got != 1.0 {
			t.Errorf("Score(%q, %q) = %v, want 1.0", s, s, got)
		}
	}
}

func TestScore_Symmetric(t *testing.T) {
	pairs := [][2]string{
		{"kitten", "sitting"},
		{"안녕", "안녕하세요"},
		{"", "abc"},
		{"short", "a much longer string entirely"},
	}
	for _, p := range pairs {
		ab := Score(p[0], p[1])
		ba := Score(p[1], p[0])
		if ab != ba {
			t.Errorf("Score(%q, %q) = %v but Score(%q, %q) = %v", p[0], p[1], ab, p[1], p[0], ba)
		}
	}
}

func TestScore_BothEmpty(t *testing.T) {
	if got := Score("", ""); got != 1.0 {
		t.Errorf("Score(\"\", \"\") = %v, want 1.0", got)
	}
}

func TestScore_EmptyAgainstNonEmpty(t *testing.T) {
	if got := Score("", "abc"); got != 0.0 {
		t.Errorf("Score(\"\", \"abc\") = %v, want 0.0", got)
	}
}

func TestScore_Bounds(t *testing.T) {
	pairs := [][2]string{
		{"kitten", "sitting"},
		{"abcdef", "zyxwvu"},
		{"밥 먹었어?", "밥 먹었니?"},
	}
	for _, p := range pairs {
		got := Score(p[0], p[1])
		if got < 0.0 || got > 1.0 {
			t.Errorf("Score(%q, %q) = %v, out of [0,1]", p[0], p[1], got)
		}
	}
}

func TestScore_KnownDistances(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		// distance 3 over max length 7
		{"kitten", "sitting", 1.0 - 3.0/7.0},
		// one substitution over 4 runes
		{"abcd", "abxd", 0.75},
		// rune-based: one Hangul substitution over 2 runes
		{"안녕", "안뇽", 0.5},
		// completely different
		{"aaaa", "bbbb", 0.0},
	}
	for _, tt := range tests {
		got := Score(tt.a, tt.b)
		if diff := got - tt.want; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("Score(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
