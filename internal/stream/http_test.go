package stream

import "testing"

func TestParseOffset(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"", 0},
		{"0", 0},
		{"42", 42},
		{"-5", 0},
		{"not-a-number", 0},
		{"3.5", 0},
	}
	for _, c := range cases {
		if got := parseOffset(c.in); got != c.want {
			t.Errorf("parseOffset(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}
