package round

import (
	"github.com/foxseedlab/planning-poker/internal/repository"
	"github.com/shopspring/decimal"
)

// Policy turns a raw tally into a summary. It never changes the tally.
type Policy struct {
	RoundingPlaces int32
	// ExcludeNonNumeric drops marker cards from the mean. When false, a
	// single marker card leaves the mean undefined.
	ExcludeNonNumeric bool
}

func DefaultPolicy() Policy {
	return Policy{RoundingPlaces: 1, ExcludeNonNumeric: true}
}

type Summary struct {
	Mode            repository.EstimationMode `json:"mode"`
	VoteCount       int                       `json:"vote_count"`
	NumericCount    int                       `json:"numeric_count"`
	NonNumericCount int                       `json:"non_numeric_count"`
	// Mean is nil when no numeric vote counts toward it.
	Mean      *decimal.Decimal `json:"mean"`
	Consensus bool             `json:"consensus"`
	// Agreed is the shared card when Consensus is true.
	Agreed string `json:"agreed,omitempty"`
}

// Result is the headline value for the session's mode, or "" when there
// is none.
func (s Summary) Result() string {
	switch s.Mode {
	case repository.EstimationModeUnanimity:
		return s.Agreed
	default:
		if s.Mean == nil {
			return ""
		}
		return s.Mean.String()
	}
}

func (p Policy) Summarize(mode repository.EstimationMode, tally []TallyEntry) Summary {
	s := Summary{Mode: mode, VoteCount: len(tally)}
	sum := decimal.Zero
	for _, e := range tally {
		d, ok := Card(e.Value).Numeric()
		if !ok {
			s.NonNumericCount++
			continue
		}
		s.NumericCount++
		sum = sum.Add(d)
	}

	if s.NumericCount > 0 && (p.ExcludeNonNumeric || s.NonNumericCount == 0) {
		mean := sum.Div(decimal.NewFromInt(int64(s.NumericCount))).Round(p.RoundingPlaces)
		s.Mean = &mean
	}

	if len(tally) > 0 {
		s.Consensus = true
		for _, e := range tally[1:] {
			if !sameCard(e.Value, tally[0].Value) {
				s.Consensus = false
				break
			}
		}
		if s.Consensus {
			s.Agreed = tally[0].Value
		}
	}
	return s
}

// sameCard treats "5" and "5.0" as the same face.
func sameCard(a, b string) bool {
	da, okA := Card(a).Numeric()
	db, okB := Card(b).Numeric()
	if okA && okB {
		return da.Equal(db)
	}
	return a == b
}
