// Package scoring computes the lexical maliciousness score the engine uses to
// classify an intercepted request. The score is a deterministic heuristic over
// the host and path of the request; it is not a learned model.
package scoring

import (
	"math"
	"unicode"
	"unicode/utf8"
)

// Labels returned by Label.
const (
	LabelMalicious = "malicious"
	LabelBenign    = "benign"
)

// DefaultThreshold is the score at or above which a request is malicious.
const DefaultThreshold = 0.50

const (
	baseScore      = 0.10
	digitWeight    = 0.03
	digitCap       = 0.40
	specialWeight  = 0.02
	specialCap     = 0.30
	pathLenDivisor = 200.0
	pathLenCap     = 0.20
)

// digitNo lists the "other number" runes that carry a single digit value
// (superscripts, subscripts, circled and parenthesized digits). Together with
// Nd they form the digit class; fractions and Roman numerals are numbers but
// not digits.
var digitNo = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x00b2, Hi: 0x00b3, Stride: 1},
		{Lo: 0x00b9, Hi: 0x00b9, Stride: 1},
		{Lo: 0x1369, Hi: 0x1371, Stride: 1},
		{Lo: 0x19da, Hi: 0x19da, Stride: 1},
		{Lo: 0x2070, Hi: 0x2070, Stride: 1},
		{Lo: 0x2074, Hi: 0x2079, Stride: 1},
		{Lo: 0x2080, Hi: 0x2089, Stride: 1},
		{Lo: 0x2460, Hi: 0x2468, Stride: 1},
		{Lo: 0x2474, Hi: 0x247c, Stride: 1},
		{Lo: 0x2488, Hi: 0x2490, Stride: 1},
		{Lo: 0x24ea, Hi: 0x24ea, Stride: 1},
		{Lo: 0x24f5, Hi: 0x24fd, Stride: 1},
		{Lo: 0x24ff, Hi: 0x24ff, Stride: 1},
		{Lo: 0x2776, Hi: 0x277e, Stride: 1},
		{Lo: 0x2780, Hi: 0x2788, Stride: 1},
		{Lo: 0x278a, Hi: 0x2792, Stride: 1},
	},
	R32: []unicode.Range32{
		{Lo: 0x10a40, Hi: 0x10a43, Stride: 1},
		{Lo: 0x1f100, Hi: 0x1f10a, Stride: 1},
	},
	LatinOffset: 2,
}

// isDigit reports whether r counts toward the digit feature.
func isDigit(r rune) bool {
	return unicode.IsDigit(r) || unicode.Is(digitNo, r)
}

// isSpecial reports whether r counts toward the special-character feature:
// anything that is neither a letter nor a number of any kind.
func isSpecial(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsNumber(r)
}

// Result is the output of a single evaluation.
type Result struct {
	Score     float64 `json:"score"`
	Label     string  `json:"label"`
	Threshold float64 `json:"threshold"`
}

// Score returns the lexical score of host+path in [0, 1].
//
// An empty path is treated as absent and contributes no length bonus.
func Score(host, path string) float64 {
	var digits, specials int
	count := func(s string) {
		for _, r := range s {
			switch {
			case isDigit(r):
				digits++
			case isSpecial(r):
				specials++
			}
		}
	}
	count(host)
	count(path)

	s := baseScore
	s += math.Min(float64(digits)*digitWeight, digitCap)
	s += math.Min(float64(specials)*specialWeight, specialCap)
	if path != "" {
		s += math.Min(float64(utf8.RuneCountInString(path))/pathLenDivisor, pathLenCap)
	}
	return math.Max(0, math.Min(1, s))
}

// Label maps a score to LabelMalicious when score >= threshold.
func Label(score, threshold float64) string {
	if score >= threshold {
		return LabelMalicious
	}
	return LabelBenign
}

// Round4 rounds a score to four decimal places for the wire.
func Round4(score float64) float64 {
	return math.Round(score*1e4) / 1e4
}
