package merge

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/prudhvinik1/ledgersync/internal/models"
)

const (
	// amountTolerance is one cent either way.
	amountTolerance models.Money = 1
	// maxDescriptionDistance is the largest edit distance, as a share of
	// the longer description, for two descriptions to count as the same.
	maxDescriptionDistance = 0.15
)

// Duplicate reports whether an incoming remote record looks like the same
// real-world entry as a local record that has not synced yet. Only expenses
// and incomes are compared; other types never match.
func Duplicate(local, remote models.Entity) bool {
	switch l := local.(type) {
	case *models.Expense:
		r, ok := remote.(*models.Expense)
		return ok &&
			sameText(l.Category, r.Category) &&
			closeAmount(l.Amount, r.Amount) &&
			l.Date.SameDay(r.Date) &&
			sameDescription(l.Description, r.Description)
	case *models.Income:
		r, ok := remote.(*models.Income)
		return ok &&
			sameText(l.Source, r.Source) &&
			closeAmount(l.Amount, r.Amount) &&
			l.Date.SameDay(r.Date) &&
			sameDescription(l.Description, r.Description)
	}
	return false
}

func closeAmount(a, b models.Money) bool {
	return (a - b).Abs() <= amountTolerance
}

func sameText(a, b string) bool {
	return normalize(a) == normalize(b)
}

func sameDescription(a, b string) bool {
	a, b = normalize(a), normalize(b)
	if a == b {
		return true
	}
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	return float64(levenshtein.ComputeDistance(a, b))/float64(longest) <= maxDescriptionDistance
}

// normalize lowercases, drops punctuation and collapses whitespace.
func normalize(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, s)
	return strings.Join(strings.Fields(s), " ")
}
