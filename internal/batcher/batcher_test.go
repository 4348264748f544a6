package batcher

import (
	"testing"

	"github.com/perpfeed/marketfeed/internal/errorsx"
	"github.com/perpfeed/marketfeed/internal/ingest"
	"github.com/perpfeed/marketfeed/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryPopWaitsForBothStreams(t *testing.T) {
	b := New(DefaultConfig(), 0)
	require.NoError(t, b.IngestDiff(1, ingest.Diff{Kind: ingest.DiffAdd}))
	require.NoError(t, b.MarkDiffDone(1))

	_, ok := b.TryPop()
	assert.False(t, ok, "status stream not yet done")

	require.NoError(t, b.MarkStatusDone(1))
	batch, ok := b.TryPop()
	require.True(t, ok)
	assert.Equal(t, types.Block(1), batch.Block)
	assert.Equal(t, types.Block(1), b.LastCommittedBlock())
}

func TestTryPopRespectsAscendingOrder(t *testing.T) {
	b := New(DefaultConfig(), 0)
	require.NoError(t, b.MarkDiffDone(2))
	require.NoError(t, b.MarkStatusDone(2))

	_, ok := b.TryPop()
	assert.False(t, ok, "block 1 has not arrived yet, block 2 cannot be released early")
}

func TestIngestStaleBlockRejected(t *testing.T) {
	b := New(DefaultConfig(), 5)
	err := b.IngestDiff(5, ingest.Diff{})
	require.Error(t, err)
	code, _ := errorsx.CodeOf(err)
	assert.Equal(t, errorsx.CodeStaleBlock, code)

	err = b.IngestStatus(3, ingest.Status{})
	code, _ = errorsx.CodeOf(err)
	assert.Equal(t, errorsx.CodeStaleBlock, code)
}

func TestBacklogOverflowIsFatal(t *testing.T) {
	cfg := Config{Capacity: 3}
	b := New(cfg, 0)
	require.NoError(t, b.IngestDiff(1, ingest.Diff{}))
	require.NoError(t, b.IngestDiff(2, ingest.Diff{}))
	require.NoError(t, b.IngestDiff(3, ingest.Diff{}))
	err := b.IngestDiff(4, ingest.Diff{})
	require.Error(t, err)
	code, _ := errorsx.CodeOf(err)
	assert.Equal(t, errorsx.CodeBacklogOverflow, code)
}

func TestPoppedBlockIsRemovedFromBuffers(t *testing.T) {
	b := New(DefaultConfig(), 0)
	require.NoError(t, b.MarkDiffDone(1))
	require.NoError(t, b.MarkStatusDone(1))
	_, ok := b.TryPop()
	require.True(t, ok)

	_, ok = b.TryPop()
	assert.False(t, ok, "block 1 already committed, next expected is 2")
}
