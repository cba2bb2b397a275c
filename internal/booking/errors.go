package booking

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	// KindSlotUnavailable: blacked out, outside working hours, already booked,
	// or in the past. Recoverable by re-querying slots.
	KindSlotUnavailable ErrorKind = "SlotUnavailable"
	// KindMonthlyLimitReached: free-tier quota exhausted. Remediation is an
	// upgrade, not a retry.
	KindMonthlyLimitReached ErrorKind = "MonthlyLimitReached"
	// KindStorageUnavailable: transient read/write failure. The only kind for
	// which the caller may retry the whole admission once.
	KindStorageUnavailable ErrorKind = "StorageUnavailable"
	// KindInvalidRequest: missing required fields or malformed date/time.
	KindInvalidRequest ErrorKind = "InvalidRequest"
)

// Error is the typed rejection returned by every failing admission path.
type Error struct {
	Kind    ErrorKind
	Message string
	Limit   int // set for KindMonthlyLimitReached
	Current int // set for KindMonthlyLimitReached
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

func slotUnavailable(msg string) *Error {
	return &Error{Kind: KindSlotUnavailable, Message: msg}
}

func invalidRequest(msg string) *Error {
	return &Error{Kind: KindInvalidRequest, Message: msg}
}

func storageUnavailable(cause error) *Error {
	return &Error{Kind: KindStorageUnavailable, Message: "storage unavailable", cause: cause}
}

// KindOf extracts the error kind from an admission error, or "" if err is not
// an admission rejection.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
