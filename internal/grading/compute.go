package grading

import (
	"sort"

	"github.com/shopspring/decimal"
)

// PassMark is the score at or above which a subject counts as passed.
var PassMark = decimal.NewFromInt(40)

var gpaThresholds = []struct {
	min    decimal.Decimal
	letter string
}{
	{decimal.RequireFromString("3.50"), LetterA},
	{decimal.RequireFromString("3.00"), LetterB},
	{decimal.RequireFromString("2.00"), LetterC},
	{decimal.RequireFromString("1.00"), LetterD},
	{decimal.RequireFromString("0.50"), LetterE},
}

// Round2 rounds half-to-even at two decimal places.
func Round2(v decimal.Decimal) decimal.Decimal {
	return v.RoundBank(2)
}

// GPA is the mean of the grade points, rounded to two places. An empty list yields 0.00.
func GPA(points []decimal.Decimal) decimal.Decimal {
	if len(points) == 0 {
		return Round2(decimal.Zero)
	}
	return Round2(decimal.Sum(decimal.Zero, points...).Div(decimal.NewFromInt(int64(len(points)))))
}

// OverallLetterFromGPA maps a GPA to a term letter using fixed thresholds that do not depend on
// the configured percentage scale.
func OverallLetterFromGPA(gpa decimal.Decimal) string {
	for _, t := range gpaThresholds {
		if gpa.GreaterThanOrEqual(t.min) {
			return t.letter
		}
	}
	return LetterF
}

// RankStudents assigns competition ranks by descending score. Equal scores share a rank and the
// next distinct score takes its position in the ordering: {100, 100, 90} ranks as {1, 1, 3}.
func RankStudents(scores map[string]decimal.Decimal) map[string]int {
	type entry struct {
		id    string
		score decimal.Decimal
	}
	entries := make([]entry, 0, len(scores))
	for id, score := range scores {
		entries = append(entries, entry{id: id, score: score})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].score.GreaterThan(entries[j].score)
	})

	ranks := make(map[string]int, len(entries))
	for i, e := range entries {
		if i > 0 && e.score.Equal(entries[i-1].score) {
			ranks[e.id] = ranks[entries[i-1].id]
			continue
		}
		ranks[e.id] = i + 1
	}
	return ranks
}

// Statistics summarises a set of scores.
type Statistics struct {
	Highest  decimal.Decimal
	Lowest   decimal.Decimal
	Average  decimal.Decimal
	PassRate decimal.Decimal
	Count    int
}

// ClassStatistics computes highest, lowest, average and the share of scores at or above PassMark
// as a percentage. An empty input returns zeros.
func ClassStatistics(scores []decimal.Decimal) Statistics {
	zero := Round2(decimal.Zero)
	if len(scores) == 0 {
		return Statistics{Highest: zero, Lowest: zero, Average: zero, PassRate: zero}
	}
	count := decimal.NewFromInt(int64(len(scores)))
	passed := 0
	for _, s := range scores {
		if s.GreaterThanOrEqual(PassMark) {
			passed++
		}
	}
	return Statistics{
		Highest:  Round2(decimal.Max(scores[0], scores[1:]...)),
		Lowest:   Round2(decimal.Min(scores[0], scores[1:]...)),
		Average:  Round2(decimal.Sum(decimal.Zero, scores...).Div(count)),
		PassRate: Round2(decimal.NewFromInt(int64(passed)).Mul(hundred).Div(count)),
		Count:    len(scores),
	}
}

// CapScore bounds v to [0, limit].
func CapScore(v, limit decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero
	}
	if v.GreaterThan(limit) {
		return limit
	}
	return v
}

// ClampPercentage bounds p to [0, 100].
func ClampPercentage(p decimal.Decimal) decimal.Decimal {
	return CapScore(p, hundred)
}

// Percentage returns part/whole*100 rounded to two places, or 0.00 when whole is zero.
func Percentage(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return Round2(decimal.Zero)
	}
	return Round2(part.Div(whole).Mul(hundred))
}
