package pipeline

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/shopspring/decimal"
)

// MaxMarkupPercent bounds the markup an admin can set.
const MaxMarkupPercent = 500

// Markup is the price markup percentage shared by all workers. Reads are
// lock-free; Set swaps the value atomically.
type Markup struct {
	v atomic.Pointer[float64]
}

// NewMarkup returns a Markup holding percent.
func NewMarkup(percent float64) *Markup {
	m := &Markup{}
	m.v.Store(&percent)
	return m
}

// Get returns the current percentage.
func (m *Markup) Get() float64 {
	if p := m.v.Load(); p != nil {
		return *p
	}
	return 0
}

// Set validates and installs percent.
func (m *Markup) Set(percent float64) error {
	if err := ValidateMarkup(percent); err != nil {
		return err
	}
	m.v.Store(&percent)
	return nil
}

// ValidateMarkup rejects NaN, negative and implausibly large markups.
func ValidateMarkup(percent float64) error {
	if math.IsNaN(percent) || math.IsInf(percent, 0) || percent < 0 || percent > MaxMarkupPercent {
		return fmt.Errorf("markup must be between 0 and %d, got %v", MaxMarkupPercent, percent)
	}
	return nil
}

// ApplyMarkup returns price raised by percent, rounded to whole units.
func ApplyMarkup(price decimal.Decimal, percent float64) decimal.Decimal {
	factor := decimal.NewFromFloat(percent).Div(decimal.NewFromInt(100)).Add(decimal.NewFromInt(1))
	return price.Mul(factor).Round(0)
}
