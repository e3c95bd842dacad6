// Package tokens provides a cheap size heuristic for document text.
//
// The estimate is a relative sizing signal only. Chunking thresholds are tuned
// against this exact formula, so changing the weights requires retuning them.
package tokens

// Weights are expressed in quarter units so the sum stays integral until the
// final truncation.
const (
	ideographQuarters = 8 // 2 units
	letterQuarters    = 1 // 0.25 units
)

// Estimate returns the heuristic token count of text. Each CJK unified
// ideograph (U+4E00..U+9FFF) counts 2, each ASCII Latin letter counts 0.25,
// everything else counts 0. The total is truncated to an int.
func Estimate(text string) int {
	quarters := 0
	for _, r := range text {
		switch {
		case r >= 0x4E00 && r <= 0x9FFF:
			quarters += ideographQuarters
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			quarters += letterQuarters
		}
	}
	return quarters / 4
}

// Func is the signature shared by estimators so callers can substitute one in tests.
type Func func(string) int
