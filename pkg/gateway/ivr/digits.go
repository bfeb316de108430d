package ivr

import (
	"strings"
	"unicode"
)

var digitWords = map[string]rune{
	"zero": '0', "oh": '0', "o": '0',
	"one": '1', "two": '2', "three": '3', "four": '4', "for": '4',
	"five": '5', "six": '6', "seven": '7', "eight": '8', "ate": '8',
	"nine": '9',
}

// normalizeDigits extracts a digit string from DTMF or speech input.
// Speech recognizers return things like "one two three four" or
// "1 2, 3 4"; both come out as "1234". Non-digit residue is dropped.
func normalizeDigits(raw string) string {
	var out strings.Builder
	for _, field := range strings.FieldsFunc(strings.ToLower(raw), func(r rune) bool {
		return unicode.IsSpace(r) || r == ',' || r == '.' || r == '-'
	}) {
		if d, ok := digitWords[field]; ok {
			out.WriteRune(d)
			continue
		}
		for _, r := range field {
			if r >= '0' && r <= '9' {
				out.WriteRune(r)
			}
		}
	}
	return out.String()
}

// validPIN reports whether digits form an acceptable voice PIN.
func validPIN(digits string) bool {
	return len(digits) >= 4 && len(digits) <= 6
}

// isExitPhrase reports whether the utterance matches one of the
// configured call-ending phrases.
func isExitPhrase(utterance string, phrases []string) bool {
	normalized := strings.ToLower(strings.TrimSpace(utterance))
	normalized = strings.Trim(normalized, ".!?")
	for _, phrase := range phrases {
		if normalized == strings.ToLower(phrase) {
			return true
		}
	}
	return false
}
