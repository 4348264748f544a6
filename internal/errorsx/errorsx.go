// Package errorsx implements the error taxonomy from the core's error
// handling design: a small set of sentinel codes, each carrying a fixed
// policy (fatal to the run, fatal to one client, or retryable), modeled
// on the teacher repository's pkg/errors package but re-scoped to the
// codes this spec actually names.
package errorsx

import (
	"errors"
	"fmt"
)

// Code identifies one of the taxonomy's error kinds.
type Code string

const (
	// Book Engine errors (fatal: called by the Reducer, a must-apply
	// violation means the stream has diverged from the authoritative log).
	CodeDuplicateOid Code = "DUPLICATE_OID"
	CodeUnknownOid   Code = "UNKNOWN_OID"
	CodeInvalidPrice Code = "INVALID_PRICE"
	CodeInvalidSize  Code = "INVALID_SIZE"

	// Batcher errors (fatal).
	CodeStaleBlock      Code = "STALE_BLOCK"
	CodeBacklogOverflow Code = "BACKLOG_OVERFLOW"

	// Reducer cross-check (fatal, exit 2).
	CodeSnapshotDivergence Code = "SNAPSHOT_DIVERGENCE"

	// Ingestor (fatal, exit 1).
	CodeHeartbeatExpired Code = "HEARTBEAT_EXPIRED"

	// Fan-out errors.
	CodeSubscriptionInvalid Code = "SUBSCRIPTION_INVALID" // reject subscription, keep client
	CodeClientLagged        Code = "CLIENT_LAGGED"        // drop client only
	CodeClientWriteError    Code = "CLIENT_WRITE_ERROR"   // drop client only

	// Snapshot task (retried on next tick, not fatal by itself).
	CodeSourceTransient Code = "SOURCE_TRANSIENT"

	// Event Source parse failures (never fatal by itself).
	CodeParseError Code = "PARSE_ERROR"
)

// Policy describes how a code should be propagated.
type Policy uint8

const (
	// PolicyFatalRun means the error must bubble to the ingestor, which
	// initiates core shutdown.
	PolicyFatalRun Policy = iota
	// PolicyFatalClient means only the one client/subscription is dropped
	// or rejected; the core keeps running.
	PolicyFatalClient
	// PolicyRetry means the failing operation is simply retried on its
	// next natural tick.
	PolicyRetry
)

var policies = map[Code]Policy{
	CodeDuplicateOid:        PolicyFatalRun,
	CodeUnknownOid:          PolicyFatalRun,
	CodeInvalidPrice:        PolicyFatalRun,
	CodeInvalidSize:         PolicyFatalRun,
	CodeStaleBlock:          PolicyFatalRun,
	CodeBacklogOverflow:     PolicyFatalRun,
	CodeSnapshotDivergence:  PolicyFatalRun,
	CodeHeartbeatExpired:    PolicyFatalRun,
	CodeSubscriptionInvalid: PolicyFatalClient,
	CodeClientLagged:        PolicyFatalClient,
	CodeClientWriteError:    PolicyFatalClient,
	CodeSourceTransient:     PolicyRetry,
	CodeParseError:          PolicyRetry,
}

// PolicyFor returns the propagation policy for a code, defaulting to
// PolicyFatalRun for unrecognized codes (fail closed).
func PolicyFor(code Code) Policy {
	if p, ok := policies[code]; ok {
		return p
	}
	return PolicyFatalRun
}

// ExitCode maps a fatal Code to the process exit code from spec §6.
func ExitCode(code Code) int {
	switch code {
	case CodeSnapshotDivergence:
		return 2
	case CodeHeartbeatExpired:
		return 1
	case CodeDuplicateOid, CodeUnknownOid, CodeInvalidPrice, CodeInvalidSize,
		CodeStaleBlock, CodeBacklogOverflow:
		return 2
	default:
		return 1
	}
}

// Error is a structured taxonomy error.
type Error struct {
	Code    Code
	Message string
	Coin    string // optional, for routing/log correlation
	Cause   error
}

func (e *Error) Error() string {
	if e.Coin != "" {
		if e.Cause != nil {
			return fmt.Sprintf("[%s] coin=%s: %s: %v", e.Code, e.Coin, e.Message, e.Cause)
		}
		return fmt.Sprintf("[%s] coin=%s: %s", e.Code, e.Coin, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports equality on Code, so `errors.Is(err, errorsx.New(CodeUnknownOid, ""))` works.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Code == e.Code
	}
	return false
}

// New creates an *Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an *Error with a formatted message.
func Newf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithCoin attaches a coin for log correlation.
func (e *Error) WithCoin(coin string) *Error {
	e2 := *e
	e2.Coin = coin
	return &e2
}

// WithCause wraps an underlying error.
func (e *Error) WithCause(cause error) *Error {
	e2 := *e
	e2.Cause = cause
	return &e2
}

// Wrap wraps err with a taxonomy code and message, preserving err as the
// unwrap chain's cause.
func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Cause: err}
}

// CodeOf extracts the taxonomy code from err, if any.
func CodeOf(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}

// IsFatal reports whether err carries a run-fatal taxonomy code.
func IsFatal(err error) bool {
	code, ok := CodeOf(err)
	if !ok {
		return false
	}
	return PolicyFor(code) == PolicyFatalRun
}

// Sentinel errors for use with errors.Is against package-level checks
// that do not need full *Error context (e.g. book engine callers that
// only care "was this a duplicate").
var (
	ErrDuplicateOid = New(CodeDuplicateOid, "order id already live")
	ErrUnknownOid   = New(CodeUnknownOid, "order id not found")
	ErrInvalidPrice = New(CodeInvalidPrice, "invalid price")
	ErrInvalidSize  = New(CodeInvalidSize, "invalid size")
)
