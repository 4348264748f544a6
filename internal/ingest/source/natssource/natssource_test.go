package natssource

import (
	"testing"

	"github.com/perpfeed/marketfeed/internal/ingest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeBlockMarker(t *testing.T) {
	ev, err := decode([]byte(`{"kind":"block_marker","block":7}`))
	require.NoError(t, err)
	assert.Equal(t, ingest.EventBlockMarker, ev.Kind)
	assert.EqualValues(t, 7, ev.Block)
}

func TestDecodeDiff(t *testing.T) {
	ev, err := decode([]byte(`{"kind":"diff","block":3,"diff":{"Kind":0,"Coin":"ETH","Oid":1,"Side":0,"Px":10000000000,"Sz":100000000}}`))
	require.NoError(t, err)
	assert.Equal(t, ingest.EventDiff, ev.Kind)
	assert.EqualValues(t, "ETH", ev.Diff.Coin)
}

func TestDecodeUnknownKindIsAnError(t *testing.T) {
	_, err := decode([]byte(`{"kind":"bogus"}`))
	assert.Error(t, err)
}

func TestDecodeMalformedJSONIsAnError(t *testing.T) {
	_, err := decode([]byte(`not json`))
	assert.Error(t, err)
}
