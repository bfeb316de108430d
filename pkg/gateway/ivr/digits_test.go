package ivr

import "testing"

func TestNormalizeDigits(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"1234", "1234"},
		{"one two three four", "1234"},
		{"One Two Three Four", "1234"},
		{"1 2 3 4", "1234"},
		{"1, 2, 3, 4.", "1234"},
		{"zero oh five nine", "0059"},
		{"for five six seven", "4567"},
		{"my pin is one two three four", "1234"},
		{"12 34", "1234"},
		{"", ""},
		{"hello there", ""},
	}
	for _, tc := range cases {
		if got := normalizeDigits(tc.in); got != tc.want {
			t.Errorf("normalizeDigits(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestValidPIN(t *testing.T) {
	cases := map[string]bool{
		"123":     false,
		"1234":    true,
		"12345":   true,
		"123456":  true,
		"1234567": false,
		"":        false,
	}
	for pin, want := range cases {
		if got := validPIN(pin); got != want {
			t.Errorf("validPIN(%q) = %v, want %v", pin, got, want)
		}
	}
}

func TestIsExitPhrase(t *testing.T) {
	phrases := []string{"goodbye", "that's it", "hang up"}
	cases := map[string]bool{
		"goodbye":      true,
		"Goodbye!":     true,
		"  that's it ": true,
		"HANG UP":      true,
		"goodbye for now, I need more help": false,
		"add milk to my list":               false,
	}
	for utterance, want := range cases {
		if got := isExitPhrase(utterance, phrases); got != want {
			t.Errorf("isExitPhrase(%q) = %v, want %v", utterance, got, want)
		}
	}
}
