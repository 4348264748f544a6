package book

import (
	"github.com/perpfeed/marketfeed/internal/types"
	"github.com/shopspring/decimal"
)

// AggSpec selects how top-of-book levels are aggregated before being
// sent to a client. A zero value (SigFigs == 0) means raw, unaggregated
// levels.
type AggSpec struct {
	SigFigs  int // number of significant figures to keep, 2..5, or 0 for raw
	Mantissa int // one of 1, 2, 5; 0 means "no further mantissa snapping"
}

// Raw is the identity aggregation: levels pass through unchanged.
var Raw = AggSpec{}

// AggregatedLevel is a price level after SigFigs/mantissa rounding, with
// the sizes and counts of every raw level that collapsed into it summed.
type AggregatedLevel struct {
	Px    types.Px
	Sz    types.Sz
	Count int
}

// Aggregate rounds each raw level's price to spec's significant figures
// (rounding bids down and asks up, so aggregation never manufactures
// liquidity at a better price than actually resting) and optionally
// snaps the result, in the same direction, to a multiple of the mantissa
// (1, 2 or 5) times the unit of the last kept digit, merging any levels that collapse onto the same rounded price. Input
// levels must already be ordered best-first; output preserves that order.
func Aggregate(levels []types.Level, side types.Side, spec AggSpec) []AggregatedLevel {
	if spec.SigFigs <= 0 {
		out := make([]AggregatedLevel, len(levels))
		for i, l := range levels {
			out[i] = AggregatedLevel{Px: l.Px, Sz: l.Sz, Count: l.Count}
		}
		return out
	}

	out := make([]AggregatedLevel, 0, len(levels))
	var lastPx types.Px
	haveLast := false
	for _, l := range levels {
		rounded := roundSigFigs(l.Px, side, spec.SigFigs, spec.Mantissa)
		if haveLast && rounded == lastPx {
			out[len(out)-1].Sz += l.Sz
			out[len(out)-1].Count += l.Count
			continue
		}
		out = append(out, AggregatedLevel{Px: rounded, Sz: l.Sz, Count: l.Count})
		lastPx = rounded
		haveLast = true
	}
	return out
}

// roundSigFigs rounds px to k significant figures, rounding bids down
// (toward zero price movement, i.e. never better than the resting price)
// and asks up, then optionally snaps to a multiple of mantissa (1, 2, 5)
// times the unit of the last kept digit, in the same direction. Arithmetic is carried out in
// shopspring/decimal rather than float64 so that decade-edge values
// (e.g. 999.995 at k=5) round the same way every time.
func roundSigFigs(px types.Px, side types.Side, k int, mantissa int) types.Px {
	d := px.Decimal()
	if d.Sign() == 0 {
		return px
	}

	exp := decimalExponent(d)
	// Keep k significant digits: round at decimal place (exp - k + 1).
	place := int32(exp - k + 1)
	scale := decimal.New(1, place) // 10^place

	var rounded decimal.Decimal
	scaledVal := d.Div(scale)
	if side == types.Bid {
		rounded = scaledVal.Floor()
	} else {
		rounded = scaledVal.Ceil()
	}
	result := rounded.Mul(scale)

	if mantissa > 0 {
		result = snapMantissa(result, side, mantissa, place)
	}

	out, err := types.NewPxFromDecimal(result)
	if err != nil {
		return px
	}
	return out
}

// decimalExponent returns e such that 10^e <= |d| < 10^(e+1).
func decimalExponent(d decimal.Decimal) int {
	abs := d.Abs()
	e := 0
	ten := decimal.New(10, 0)
	one := decimal.New(1, 0)
	for abs.GreaterThanOrEqual(ten) {
		abs = abs.Div(ten)
		e++
	}
	for abs.LessThan(one) {
		abs = abs.Mul(ten)
		e--
	}
	return e
}

// snapMantissa snaps result to a multiple of mantissa × 10^place (the
// unit of its last kept significant digit), again rounding down for bids
// and up for asks.
func snapMantissa(result decimal.Decimal, side types.Side, mantissa int, place int32) decimal.Decimal {
	scale := decimal.New(1, place)
	units := result.Div(scale) // an integer-valued decimal, e.g. 37 for 3.7e(place+1)

	m := decimal.New(int64(mantissa), 0)
	quotient := units.Div(m)
	var snapped decimal.Decimal
	if side == types.Bid {
		snapped = quotient.Floor()
	} else {
		snapped = quotient.Ceil()
	}
	return snapped.Mul(m).Mul(scale)
}
