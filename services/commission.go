// services/commission.go
package services

import "math"

// PayoutModel maps a purchase's base value and a level distance to a monetary
// amount. Implementations are pure; amounts are always whole currency units.
type PayoutModel interface {
	// Levels is how deep the ancestor walk should go under this model.
	Levels() int
	// AmountAt returns the payout for the ancestor at the given level
	// distance (1 = immediate sponsor). Levels outside the model pay zero.
	AmountAt(baseValue float64, level int) float64
}

// PercentageModel pays each level a configured fraction of the purchase value,
// rounded to the nearest whole currency unit.
type PercentageModel struct {
	Table []float64
}

func (m PercentageModel) Levels() int {
	return len(m.Table)
}

func (m PercentageModel) AmountAt(baseValue float64, level int) float64 {
	if level < 1 || level > len(m.Table) {
		return 0
	}
	return math.Round(baseValue * m.Table[level-1])
}

// FixedPoolModel splits a fixed total evenly across a fixed number of levels.
// The per-level share is floor division computed once; the remainder is never
// distributed.
type FixedPoolModel struct {
	Total      float64
	LevelCount int
}

func (m FixedPoolModel) Levels() int {
	return m.LevelCount
}

// Share is the identical amount every resolved level receives.
func (m FixedPoolModel) Share() float64 {
	if m.LevelCount < 1 {
		return 0
	}
	return math.Floor(m.Total / float64(m.LevelCount))
}

func (m FixedPoolModel) AmountAt(baseValue float64, level int) float64 {
	if level < 1 || level > m.LevelCount {
		return 0
	}
	return m.Share()
}

// Unassigned reports the part of the pool left unpaid when only levelsPaid
// ancestors resolved. It is surfaced for reconciliation, never redistributed.
func (m FixedPoolModel) Unassigned(levelsPaid int) float64 {
	if levelsPaid > m.LevelCount {
		levelsPaid = m.LevelCount
	}
	if levelsPaid < 0 {
		levelsPaid = 0
	}
	return m.Total - m.Share()*float64(levelsPaid)
}

// CommissionFor computes the payout for one ancestor level under a model.
func CommissionFor(baseValue float64, level int, model PayoutModel) float64 {
	return model.AmountAt(baseValue, level)
}
