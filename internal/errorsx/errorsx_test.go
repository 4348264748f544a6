package errorsx

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPolicyFor(t *testing.T) {
	assert.Equal(t, PolicyFatalRun, PolicyFor(CodeDuplicateOid))
	assert.Equal(t, PolicyFatalRun, PolicyFor(CodeSnapshotDivergence))
	assert.Equal(t, PolicyFatalClient, PolicyFor(CodeClientLagged))
	assert.Equal(t, PolicyRetry, PolicyFor(CodeSourceTransient))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 2, ExitCode(CodeSnapshotDivergence))
	assert.Equal(t, 1, ExitCode(CodeHeartbeatExpired))
	assert.Equal(t, 2, ExitCode(CodeDuplicateOid))
}

func TestWrapPreservesCode(t *testing.T) {
	base := fmt.Errorf("boom")
	wrapped := Wrap(base, CodeUnknownOid, "oid 5 missing")
	code, ok := CodeOf(wrapped)
	assert.True(t, ok)
	assert.Equal(t, CodeUnknownOid, code)
	assert.ErrorIs(t, wrapped, base)
}

func TestIsMatchesByCode(t *testing.T) {
	a := New(CodeDuplicateOid, "first")
	b := New(CodeDuplicateOid, "second")
	c := New(CodeUnknownOid, "third")
	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(New(CodeBacklogOverflow, "")))
	assert.False(t, IsFatal(New(CodeClientLagged, "")))
	assert.False(t, IsFatal(fmt.Errorf("plain")))
}

func TestWithCoinAndCause(t *testing.T) {
	cause := fmt.Errorf("underlying")
	e := New(CodeSnapshotDivergence, "mismatch").WithCoin("ETH").WithCause(cause)
	assert.Contains(t, e.Error(), "ETH")
	assert.Contains(t, e.Error(), "underlying")
	assert.ErrorIs(t, e, cause)
}
