// Package wire implements the JSON client protocol from spec §6:
// subscribe/unsubscribe requests, the subscriptionResponse ack, and the
// three data frame shapes (l2Book, trades, l4Book). Field validation
// uses go-playground/validator, the teacher's dependency for request
// field constraints.
package wire

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// SubscriptionType is the wire-level discriminant for a subscription.
type SubscriptionType string

const (
	TypeL2Book SubscriptionType = "l2Book"
	TypeTrades SubscriptionType = "trades"
	TypeL4Book SubscriptionType = "l4Book"
)

// SubscriptionRequest mirrors the JSON "subscription" object clients
// send. Pointer fields distinguish "absent" from "zero value": for
// NLevels that matters because 0 is a rejected value, not a synonym for
// "use the default", and for n_sig_figs/mantissa because their validity
// depends on each other.
type SubscriptionRequest struct {
	Type     SubscriptionType `json:"type" validate:"required,oneof=l2Book trades l4Book"`
	Coin     string           `json:"coin" validate:"required"`
	NLevels  *int             `json:"n_levels,omitempty" validate:"omitempty,min=1,max=100"`
	NSigFigs *int             `json:"n_sig_figs,omitempty" validate:"omitempty,min=2,max=5"`
	Mantissa *int             `json:"mantissa,omitempty" validate:"omitempty,oneof=1 2 5"`
}

// Request is the top-level client→server envelope.
type Request struct {
	Method       string               `json:"method" validate:"required,oneof=subscribe unsubscribe"`
	Subscription SubscriptionRequest  `json:"subscription" validate:"required"`
}

// Validate checks the subscription request's field ranges per spec §6:
// n_levels in [1,100] (default 20 applied by the caller, not here),
// n_sig_figs in [2,5] or absent, mantissa in {1,2,5} or absent, and
// mantissa requires n_sig_figs to be present.
func Validate(req Request) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("invalid subscription request: %w", err)
	}
	if req.Subscription.Mantissa != nil && req.Subscription.NSigFigs == nil {
		return fmt.Errorf("invalid subscription request: mantissa requires n_sig_figs")
	}
	return nil
}

// SubscriptionResponse acknowledges a subscribe/unsubscribe with the
// original subscription echoed back.
type SubscriptionResponse struct {
	Channel string               `json:"channel"`
	Data    SubscriptionRequest  `json:"data"`
}

func NewSubscriptionResponse(sub SubscriptionRequest) SubscriptionResponse {
	return SubscriptionResponse{Channel: "subscriptionResponse", Data: sub}
}

// RejectionFrame is sent instead of SubscriptionResponse when validation
// fails; the subscription remains Absent.
type RejectionFrame struct {
	Channel string `json:"channel"`
	Reason  string `json:"reason"`
}

func NewRejection(reason string) RejectionFrame {
	return RejectionFrame{Channel: "subscriptionRejected", Reason: reason}
}

// L2Level is one [bids]/[asks] entry in an l2Book data frame.
type L2Level struct {
	Px string `json:"px"`
	Sz string `json:"sz"`
	N  int    `json:"n"`
}

// L2BookFrame is the l2Book data frame: levels[0] is bids, levels[1] is asks.
type L2BookFrame struct {
	Channel string     `json:"channel"`
	Data    L2BookData `json:"data"`
}

type L2BookData struct {
	Coin   string        `json:"coin"`
	Time   uint64        `json:"time"`
	Levels [2][]L2Level  `json:"levels"`
}

// TradeEntry is one fill in a trades data frame.
type TradeEntry struct {
	Coin string `json:"coin"`
	Side string `json:"side"`
	Px   string `json:"px"`
	Sz   string `json:"sz"`
	Time uint64 `json:"time"`
	Hash string `json:"hash"`
	Tid  string `json:"tid"`
}

// TradesFrame is the trades data frame.
type TradesFrame struct {
	Channel string       `json:"channel"`
	Data    []TradeEntry `json:"data"`
}

// L4EventFrame is one entry in an l4Book frame's events array.
type L4EventFrame struct {
	Kind string `json:"kind"`
	Oid  uint64 `json:"oid"`
	Side string `json:"side,omitempty"`
	Px   string `json:"px,omitempty"`
	Sz   string `json:"sz,omitempty"`
	Ts   uint64 `json:"ts,omitempty"`
}

// L4BookFrame is the l4Book data frame: an initial snapshot (isSnapshot
// true) followed by per-block diffs (isSnapshot false).
type L4BookFrame struct {
	Channel string      `json:"channel"`
	Data    L4BookData  `json:"data"`
}

type L4BookData struct {
	Coin       string         `json:"coin"`
	IsSnapshot bool           `json:"isSnapshot"`
	Time       uint64         `json:"time"`
	Events     []L4EventFrame `json:"events"`
}
