package reading

import (
	"regexp"
	"strconv"
)

// numberPattern matches a signed decimal or integer token. Alternation order
// makes "123.5" win over "123".
var numberPattern = regexp.MustCompile(`[-+]?(?:\d*\.\d+|\d+)`)

// Extract returns the first number in text, scanning left to right. Later
// numbers in the utterance are ignored.
func Extract(text string) (float64, bool) {
	token := numberPattern.FindString(text)
	if token == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
