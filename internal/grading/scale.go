// Package grading converts scores into grades, grade points, ranks and class statistics.
//
// Every value is a fixed-point decimal and every rounding step uses banker's rounding to two
// places, so repeated aggregation never drifts the way binary floats do.
package grading

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	appErrors "github.com/ibsadiq/scms-backend-sub000/pkg/errors"
)

const (
	LetterA = "A"
	LetterB = "B"
	LetterC = "C"
	LetterD = "D"
	LetterE = "E"
	LetterF = "F"
)

var (
	hundred = decimal.NewFromInt(100)

	remarks = map[string]string{
		LetterA: "Excellent",
		LetterB: "Very Good",
		LetterC: "Good",
		LetterD: "Fair",
		LetterE: "Pass",
		LetterF: "Fail",
	}
)

// Rule maps an inclusive percentage band to a letter and grade point.
type Rule struct {
	MinGrade    decimal.Decimal
	MaxGrade    decimal.Decimal
	LetterGrade string
	GradePoint  decimal.Decimal
}

// Contains reports whether p lies within [MinGrade, MaxGrade].
func (r Rule) Contains(p decimal.Decimal) bool {
	return p.GreaterThanOrEqual(r.MinGrade) && p.LessThanOrEqual(r.MaxGrade)
}

// Grade is the outcome of a percentage lookup.
type Grade struct {
	Letter string
	Point  decimal.Decimal
	Remark string
	// Matched is false when no rule, or more than one rule, contained the percentage.
	Matched bool
}

// Scale is an ordered, validated set of rules.
type Scale struct {
	rules []Rule
}

// NewScale validates that every rule has min < max. Overlaps and gaps are accepted here;
// lookups on such scales report Matched=false.
func NewScale(rules []Rule) (*Scale, error) {
	sorted := make([]Rule, len(rules))
	copy(sorted, rules)
	for _, r := range sorted {
		if !r.MinGrade.LessThan(r.MaxGrade) {
			return nil, appErrors.Clone(appErrors.ErrInvalidRuleRange,
				fmt.Sprintf("rule %s: min %s must be below max %s", r.LetterGrade, r.MinGrade.String(), r.MaxGrade.String()))
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].MinGrade.GreaterThan(sorted[j].MinGrade)
	})
	return &Scale{rules: sorted}, nil
}

// DefaultScale returns the six-band A–F scale tiling 0–100 at two-decimal resolution.
func DefaultScale() *Scale {
	scale, _ := NewScale(DefaultRules())
	return scale
}

// DefaultRules lists the bands of DefaultScale, highest first.
func DefaultRules() []Rule {
	band := func(min, max, letter, point string) Rule {
		return Rule{
			MinGrade:    decimal.RequireFromString(min),
			MaxGrade:    decimal.RequireFromString(max),
			LetterGrade: letter,
			GradePoint:  decimal.RequireFromString(point),
		}
	}
	return []Rule{
		band("75", "100", LetterA, "4.00"),
		band("70", "74.99", LetterB, "3.50"),
		band("60", "69.99", LetterC, "3.00"),
		band("50", "59.99", LetterD, "2.00"),
		band("40", "49.99", LetterE, "1.00"),
		band("0", "39.99", LetterF, "0.00"),
	}
}

// Rules returns a copy of the rules ordered by descending minimum.
func (s *Scale) Rules() []Rule {
	out := make([]Rule, len(s.rules))
	copy(out, s.rules)
	return out
}

// Overlaps returns pairs of letters whose bands intersect.
func (s *Scale) Overlaps() [][2]string {
	var pairs [][2]string
	for i := 0; i < len(s.rules); i++ {
		for j := i + 1; j < len(s.rules); j++ {
			a, b := s.rules[i], s.rules[j]
			if a.MinGrade.LessThanOrEqual(b.MaxGrade) && b.MinGrade.LessThanOrEqual(a.MaxGrade) {
				pairs = append(pairs, [2]string{a.LetterGrade, b.LetterGrade})
			}
		}
	}
	return pairs
}

// GradeFromPercentage looks up the band containing p. It never fails: with no matching band the
// result is F / 0.00 / "Fail". When bands overlap, the band with the highest minimum is used.
func (s *Scale) GradeFromPercentage(p decimal.Decimal) Grade {
	var (
		hit     *Rule
		matches int
	)
	for i := range s.rules {
		if s.rules[i].Contains(p) {
			if hit == nil {
				hit = &s.rules[i]
			}
			matches++
		}
	}
	if hit == nil {
		return Grade{Letter: LetterF, Point: decimal.Zero.Round(2), Remark: RemarkFor(LetterF)}
	}
	return Grade{
		Letter:  hit.LetterGrade,
		Point:   hit.GradePoint.Round(2),
		Remark:  RemarkFor(hit.LetterGrade),
		Matched: matches == 1,
	}
}

// RemarkFor returns the fixed remark for a letter, or "N/A" for letters outside A–F.
func RemarkFor(letter string) string {
	if remark, ok := remarks[letter]; ok {
		return remark
	}
	return "N/A"
}
