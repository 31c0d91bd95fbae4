package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultFinePerDay is the per-day late fine used when none is configured.
var DefaultFinePerDay = decimal.NewFromInt(5000)

// Date truncates t to its calendar date in UTC.
func Date(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// LateDays returns the whole calendar days between planned and returned,
// never negative.
func LateDays(planned, returned time.Time) int {
	days := int(Date(returned).Sub(Date(planned)).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// Fine returns lateDays * perDay.
func Fine(lateDays int, perDay decimal.Decimal) decimal.Decimal {
	if lateDays <= 0 {
		return decimal.Zero
	}
	return perDay.Mul(decimal.NewFromInt(int64(lateDays)))
}

// Buckets is the condition breakdown of returned units.
type Buckets struct {
	Good    int `json:"units_good"`
	Damaged int `json:"units_damaged"`
	Lost    int `json:"units_lost"`
}

// Total returns the number of units across all buckets
func (b Buckets) Total() int {
	return b.Good + b.Damaged + b.Lost
}

// Validate checks that no bucket is negative and that every borrowed unit
// is accounted for in exactly one bucket.
func (b Buckets) Validate(quantity int) error {
	if b.Good < 0 || b.Damaged < 0 || b.Lost < 0 {
		return fmt.Errorf("%w: unit counts must not be negative (good=%d damaged=%d lost=%d)",
			ErrValidationFailed, b.Good, b.Damaged, b.Lost)
	}
	if b.Total() != quantity {
		return fmt.Errorf("%w: returned units %d do not match loan quantity %d",
			ErrValidationFailed, b.Total(), quantity)
	}
	return nil
}

// Condition derives the legacy summary value. Lost outranks damaged.
func (b Buckets) Condition() Condition {
	switch {
	case b.Lost > 0:
		return ConditionLost
	case b.Damaged > 0:
		return ConditionDamaged
	default:
		return ConditionGood
	}
}

// StockDelta is the effect of these buckets on tool counters. Lost units
// leave circulation and touch no counter.
func (b Buckets) StockDelta() StockDelta {
	return StockDelta{Available: b.Good, UnderRepair: b.Damaged}
}

// StockDelta is a signed change to a tool's available and under-repair counters.
type StockDelta struct {
	Available   int `json:"available_delta"`
	UnderRepair int `json:"under_repair_delta"`
}

// Sub returns d - o
func (d StockDelta) Sub(o StockDelta) StockDelta {
	return StockDelta{Available: d.Available - o.Available, UnderRepair: d.UnderRepair - o.UnderRepair}
}

// IsZero reports whether applying d changes nothing
func (d StockDelta) IsZero() bool {
	return d.Available == 0 && d.UnderRepair == 0
}

// Stock is a snapshot of a tool's counters.
type Stock struct {
	Total       int
	Available   int
	UnderRepair int
}

// Apply returns s after d, or ErrConflict if the result breaks the counter
// invariants: no negative counter and available+underRepair <= total.
func (s Stock) Apply(d StockDelta) (Stock, error) {
	next := Stock{
		Total:       s.Total,
		Available:   s.Available + d.Available,
		UnderRepair: s.UnderRepair + d.UnderRepair,
	}
	if next.Available < 0 || next.UnderRepair < 0 {
		return s, fmt.Errorf("%w: stock counters would go negative (available=%d under_repair=%d)",
			ErrConflict, next.Available, next.UnderRepair)
	}
	if next.Available+next.UnderRepair > next.Total {
		return s, fmt.Errorf("%w: available %d + under repair %d exceed total %d",
			ErrConflict, next.Available, next.UnderRepair, next.Total)
	}
	return next, nil
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
