// Package normalize canonicalizes chat text (Arabic in particular) into the
// comparison key used by the reply table and the moderation list.
//
// Pipeline order:
//  1. trim and drop invalid UTF-8
//  2. NFKC, so presentation forms and ligatures fold to base letters
//  3. strip Arabic diacritics and combining marks
//  4. strip tatweel
//  5. fold letter variants according to the Policy
//  6. lowercase and recompose (NFC)
//  7. collapse whitespace runs to single spaces and trim
//
// Normalize is idempotent for both policies. A Normalizer is safe for
// concurrent use.
package normalize

import (
	"fmt"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Policy selects the letter-folding rule set.
type Policy int

const (
	// PolicyExtended folds hamza-bearing alef forms and ta-marbuta, plus
	// alef-maksura and hamza on ya/waw. This is the default.
	PolicyExtended Policy = iota
	// PolicyMinimal folds only hamza-bearing alef forms and ta-marbuta.
	PolicyMinimal
)

func (p Policy) String() string {
	switch p {
	case PolicyMinimal:
		return "minimal"
	case PolicyExtended:
		return "extended"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy accepts "minimal" or "extended" (case-insensitive). An empty
// string selects PolicyExtended.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "extended", "6", "6-fold":
		return PolicyExtended, nil
	case "minimal", "3", "3-fold":
		return PolicyMinimal, nil
	default:
		return PolicyExtended, fmt.Errorf("unknown normalization policy %q", s)
	}
}

const tatweel = 'ـ'

// arabicMarks covers Quranic annotation signs, harakat, and the small
// high/low marks that show up in pasted religious text.
var arabicMarks = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x0610, Hi: 0x061a, Stride: 1},
		{Lo: 0x064b, Hi: 0x065f, Stride: 1},
		{Lo: 0x0670, Hi: 0x0670, Stride: 1},
		{Lo: 0x06d6, Hi: 0x06ed, Stride: 1},
	},
}

var minimalFolds = map[rune]rune{
	'أ': 'ا',
	'إ': 'ا',
	'آ': 'ا',
	'ة': 'ه',
}

var extendedFolds = map[rune]rune{
	'أ': 'ا',
	'إ': 'ا',
	'آ': 'ا',
	'ة': 'ه',
	'ى': 'ي',
	'ئ': 'ي',
	'ؤ': 'و',
}

// Normalizer applies the pipeline for one Policy.
type Normalizer struct {
	policy Policy
	pool   sync.Pool
}

// New returns a Normalizer for the given policy.
func New(policy Policy) *Normalizer {
	folds := extendedFolds
	if policy == PolicyMinimal {
		folds = minimalFolds
	}
	n := &Normalizer{policy: policy}
	n.pool.New = func() any {
		return transform.Chain(
			norm.NFKC,
			runes.Remove(runes.In(arabicMarks)),
			runes.Remove(runes.Predicate(func(r rune) bool { return r == tatweel })),
			runes.Map(func(r rune) rune {
				if to, ok := folds[r]; ok {
					return to
				}
				return r
			}),
			cases.Lower(language.Und),
			norm.NFC,
		)
	}
	return n
}

// Policy reports the folding policy in use.
func (n *Normalizer) Policy() Policy {
	return n.policy
}

// Normalize returns the canonical comparison form of text. Empty input
// yields an empty string.
func (n *Normalizer) Normalize(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	text = strings.ToValidUTF8(text, "")

	tr := n.pool.Get().(transform.Transformer)
	out, _, err := transform.String(tr, text)
	tr.Reset()
	n.pool.Put(tr)
	if err != nil {
		// The chain only fails on malformed input, which ToValidUTF8 has
		// already dropped; fall back to the trimmed text.
		out = text
	}

	return strings.Join(strings.Fields(out), " ")
}

var defaultNormalizer = New(PolicyExtended)

// Normalize uses the extended policy.
func Normalize(text string) string {
	return defaultNormalizer.Normalize(text)
}
