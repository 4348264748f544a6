// Package types defines the primitive value types shared by the book
// engine, the reducer and the fan-out layer: coins, order ids, prices,
// sizes, blocks and the Order/Level records derived from them.
package types

import (
	"fmt"
	"math"

	"github.com/perpfeed/marketfeed/internal/errorsx"
	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidPrice and ErrInvalidSize are re-exported from errorsx so
	// callers constructing Px/Sz values need only import this package.
	ErrInvalidPrice = errorsx.ErrInvalidPrice
	ErrInvalidSize  = errorsx.ErrInvalidSize
)

// Coin identifies an instrument. It is a short opaque string, e.g. "ETH".
type Coin string

// Oid is a 64-bit order identifier, globally unique within a run.
type Oid uint64

// Side is one leg of a book.
type Side uint8

const (
	Bid Side = iota
	Ask
)

func (s Side) String() string {
	if s == Bid {
		return "B"
	}
	return "A"
}

// Block is a monotonic, non-negative sequence number assigned by the node.
type Block uint64

// Ts is a millisecond timestamp.
type Ts uint64

// PxScale and SzScale fix the number of implied decimal places carried by
// Px and Sz. Both are represented internally as scaled int64 ticks rather
// than shopspring/decimal.Decimal values so that they are directly
// comparable and hashable (map keys, price-level ordering) without an
// intermediate normalization step; decimal.Decimal is used only at the
// untrusted boundary (wire parsing/formatting and SigFigs rounding) where
// exact base-10 arithmetic matters and float64 would silently misround at
// exponent-decade edges.
const (
	PxScale = 100_000_000 // 1e8, 8 decimal places
	SzScale = 100_000_000
)

// Px is a price, represented as a fixed-point integer scaled by PxScale.
// Prices must be strictly positive.
type Px int64

// Sz is a size, represented as a fixed-point integer scaled by SzScale.
// Sizes are non-negative; zero means depleted.
type Sz int64

// NewPxFromDecimal converts an arbitrary-precision decimal into a Px,
// rejecting non-positive values and anything that would lose precision
// beyond PxScale.
func NewPxFromDecimal(d decimal.Decimal) (Px, error) {
	if d.Sign() <= 0 {
		return 0, fmt.Errorf("%w: price must be positive, got %s", ErrInvalidPrice, d.String())
	}
	scaled := d.Mul(decimal.New(PxScale, 0))
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, fmt.Errorf("%w: price %s exceeds supported precision", ErrInvalidPrice, d.String())
	}
	i := scaled.IntPart()
	if i > math.MaxInt64 || i < math.MinInt64 {
		return 0, fmt.Errorf("%w: price %s out of range", ErrInvalidPrice, d.String())
	}
	return Px(i), nil
}

// ParsePx parses a decimal string into a Px.
func ParsePx(s string) (Px, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPrice, err)
	}
	return NewPxFromDecimal(d)
}

// Decimal renders the price as a shopspring/decimal.Decimal.
func (p Px) Decimal() decimal.Decimal {
	return decimal.New(int64(p), 0).DivRound(decimal.New(PxScale, 0), 12).Truncate(8)
}

func (p Px) String() string { return p.Decimal().String() }

// NewSzFromDecimal converts an arbitrary-precision decimal into a Sz,
// rejecting negative values.
func NewSzFromDecimal(d decimal.Decimal) (Sz, error) {
	if d.Sign() < 0 {
		return 0, fmt.Errorf("%w: size must not be negative, got %s", ErrInvalidSize, d.String())
	}
	scaled := d.Mul(decimal.New(SzScale, 0))
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, fmt.Errorf("%w: size %s exceeds supported precision", ErrInvalidSize, d.String())
	}
	i := scaled.IntPart()
	if i > math.MaxInt64 {
		return 0, fmt.Errorf("%w: size %s out of range", ErrInvalidSize, d.String())
	}
	return Sz(i), nil
}

// ParseSz parses a decimal string into a Sz.
func ParseSz(s string) (Sz, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidSize, err)
	}
	return NewSzFromDecimal(d)
}

// Decimal renders the size as a shopspring/decimal.Decimal.
func (s Sz) Decimal() decimal.Decimal {
	return decimal.New(int64(s), 0).DivRound(decimal.New(SzScale, 0), 12).Truncate(8)
}

func (s Sz) String() string { return s.Decimal().String() }

// IsZero reports whether the size is depleted.
func (s Sz) IsZero() bool { return s == 0 }

// Order is a single resting or historical order record.
//
// An order is live iff Sz > 0 and it is present in some book; Sz == 0
// implies it is not in any book.
type Order struct {
	Oid  Oid
	Coin Coin
	Side Side
	Px   Px
	Sz   Sz
	Ts   Ts
	// Meta carries client-provided metadata opaque to the engine (e.g. a
	// client order id); it plays no role in book invariants.
	Meta string
}

// Level is an aggregated price level, derived from a book; it is never
// stored primarily.
type Level struct {
	Px    Px
	Sz    Sz
	Count int
}

// Fill is one matched trade between a maker (resting) and taker
// (incoming) order.
type Fill struct {
	Coin      Coin
	Px        Px
	Sz        Sz
	TakerSide Side
	MakerOid  Oid
	TakerOid  Oid
	Ts        Ts
	// Tid is a k-sortable trade identifier assigned by the reducer at
	// derivation time; it has no upstream source.
	Tid string
}
