// Package ingest defines the boundary between the core and the external
// node feed: the EventSource interface the Ingestor task drives, and the
// record kinds it yields. Transport, on-disk format and CLI wiring for a
// concrete source live under ingest/source/; this package only describes
// the contract, mirroring the teacher's external.Manager provider shape
// generalized to this domain.
package ingest

import (
	"context"

	"github.com/perpfeed/marketfeed/internal/types"
)

// DiffKind identifies the primitive book mutation a Diff record carries.
type DiffKind uint8

const (
	DiffAdd DiffKind = iota
	DiffRemove
	DiffResize
)

// Diff is one primitive book mutation, authoritative for book state. Ts
// is the node's timestamp for the mutation; Remove/Resize diffs carry it
// too so the L2 snapshot for a touched coin has a meaningful time even
// when the block contains no Add.
type Diff struct {
	Kind DiffKind
	Coin types.Coin
	Oid  types.Oid
	Side types.Side
	Px   types.Px
	Sz   types.Sz
	Ts   types.Ts
}

// StatusKind identifies an order-lifecycle event.
type StatusKind uint8

const (
	StatusOpen StatusKind = iota
	StatusModify
	StatusFilled
	StatusCancelled
	StatusRejected
)

// Status is an order-lifecycle event, used to derive fills and to
// corroborate diffs; it never itself mutates the book.
type Status struct {
	Kind      StatusKind
	Coin      types.Coin
	Oid       types.Oid
	TakerOid  types.Oid
	Side      types.Side
	Px        types.Px
	Sz        types.Sz
	TakerSide types.Side
	Ts        types.Ts
}

// CoinOrders is one coin's full set of live orders as of a snapshot.
type CoinOrders struct {
	Coin   types.Coin
	Orders []types.Order
}

// SnapshotEvent is the authoritative equivalence oracle for a block.
type SnapshotEvent struct {
	Block     types.Block
	PerCoin   []CoinOrders
}

// EventKind discriminates the variants of SourceEvent.
type EventKind uint8

const (
	EventStatus EventKind = iota
	EventDiff
	EventBlockMarker
	EventSnapshot
)

// SourceEvent is the union of record kinds the Event Source yields, per
// spec §6: Status, Diff, BlockMarker(block) and Snapshot(block, orders).
// Fill is carried as a Status of kind StatusFilled rather than a distinct
// wire variant; it requires no pairing with the diff stream.
type SourceEvent struct {
	Kind     EventKind
	Block    types.Block // set for BlockMarker and carried by Status/Diff
	Status   Status
	Diff     Diff
	Snapshot SnapshotEvent
}

// EventSource is the external collaborator the Ingestor drives. A
// reference implementation backed by NATS/watermill lives in
// ingest/source/natssource; tests use an in-memory double.
type EventSource interface {
	// Next blocks until the next event is available or ctx is cancelled.
	Next(ctx context.Context) (SourceEvent, error)
	// FetchSnapshot retrieves the current authoritative snapshot,
	// independent of the Next stream; the Snapshot task calls this on a
	// fixed cadence.
	FetchSnapshot(ctx context.Context) (SnapshotEvent, error)
}
