// Package batcher buffers status and diff records by block number and
// releases a block to the Reducer only once both streams have delimited
// it, per spec §4.2. The accumulate-then-apply shape is grounded on the
// teacher pack's gocryptotrader orderbook buffer
// (exchange/websocket/buffer processBufferUpdate): gather everything for
// a unit of work, then apply it in one pass — except here the flush
// trigger is block completion, not buffer occupancy.
package batcher

import (
	"github.com/perpfeed/marketfeed/internal/errorsx"
	"github.com/perpfeed/marketfeed/internal/ingest"
	"github.com/perpfeed/marketfeed/internal/types"
)

type blockBuf struct {
	statuses []ingest.Status
	diffs    []ingest.Diff
	statusDone bool
	diffDone   bool
}

// Batch is one fully-paired block, ready for the Reducer.
type Batch struct {
	Block    types.Block
	Statuses []ingest.Status
	Diffs    []ingest.Diff
}

// Config bounds the batcher's memory footprint in blocks.
type Config struct {
	Capacity int // max number of not-yet-committed blocks buffered, by block count
}

func DefaultConfig() Config {
	return Config{Capacity: 64}
}

// Batcher pairs status and diff records by block and releases them to
// the Reducer strictly in ascending block order.
type Batcher struct {
	cfg                Config
	lastCommittedBlock types.Block
	blocks             map[types.Block]*blockBuf
}

// New returns a Batcher whose first expected block is seedBlock+1, per
// spec §4.2 ("initially the block of the seed snapshot + 1").
func New(cfg Config, seedBlock types.Block) *Batcher {
	return &Batcher{
		cfg:                cfg,
		lastCommittedBlock: seedBlock,
		blocks:             make(map[types.Block]*blockBuf),
	}
}

func (b *Batcher) bufFor(block types.Block) *blockBuf {
	buf, ok := b.blocks[block]
	if !ok {
		buf = &blockBuf{}
		b.blocks[block] = buf
	}
	return buf
}

// IngestStatus appends record to block's status buffer. Fails with
// StaleBlock if block <= last committed.
func (b *Batcher) IngestStatus(block types.Block, record ingest.Status) error {
	if block <= b.lastCommittedBlock {
		return errorsx.Newf(errorsx.CodeStaleBlock, "status for block %d, last committed %d", block, b.lastCommittedBlock)
	}
	if err := b.checkCapacity(block); err != nil {
		return err
	}
	b.bufFor(block).statuses = append(b.bufFor(block).statuses, record)
	return nil
}

// IngestDiff appends record to block's diff buffer. Fails with
// StaleBlock if block <= last committed.
func (b *Batcher) IngestDiff(block types.Block, record ingest.Diff) error {
	if block <= b.lastCommittedBlock {
		return errorsx.Newf(errorsx.CodeStaleBlock, "diff for block %d, last committed %d", block, b.lastCommittedBlock)
	}
	if err := b.checkCapacity(block); err != nil {
		return err
	}
	b.bufFor(block).diffs = append(b.bufFor(block).diffs, record)
	return nil
}

// MarkStatusDone signals that the status stream's end-of-block marker
// for block has arrived.
func (b *Batcher) MarkStatusDone(block types.Block) error {
	if block <= b.lastCommittedBlock {
		return errorsx.Newf(errorsx.CodeStaleBlock, "status marker for block %d, last committed %d", block, b.lastCommittedBlock)
	}
	b.bufFor(block).statusDone = true
	return nil
}

// MarkDiffDone signals that the diff stream's end-of-block marker for
// block has arrived.
func (b *Batcher) MarkDiffDone(block types.Block) error {
	if block <= b.lastCommittedBlock {
		return errorsx.Newf(errorsx.CodeStaleBlock, "diff marker for block %d, last committed %d", block, b.lastCommittedBlock)
	}
	b.bufFor(block).diffDone = true
	return nil
}

// checkCapacity fails with BacklogOverflow when block would be a new
// buffered block beyond Capacity; records for an already-buffered block
// always fit.
func (b *Batcher) checkCapacity(block types.Block) error {
	if _, ok := b.blocks[block]; ok {
		return nil
	}
	if len(b.blocks) >= b.cfg.Capacity {
		return errorsx.Newf(errorsx.CodeBacklogOverflow, "backlog exceeds %d blocks", b.cfg.Capacity)
	}
	return nil
}

// TryPop returns the next block B = lastCommittedBlock+1 if both its
// status and diff streams have been fully delimited, advancing
// lastCommittedBlock and discarding the buffer. Returns ok=false if B is
// not yet complete; the pipeline simply waits for more records.
func (b *Batcher) TryPop() (batch Batch, ok bool) {
	next := b.lastCommittedBlock + 1
	buf, present := b.blocks[next]
	if !present || !buf.statusDone || !buf.diffDone {
		return Batch{}, false
	}
	delete(b.blocks, next)
	b.lastCommittedBlock = next
	return Batch{Block: next, Statuses: buf.statuses, Diffs: buf.diffs}, true
}

// LastCommittedBlock returns the high-water mark.
func (b *Batcher) LastCommittedBlock() types.Block { return b.lastCommittedBlock }
