package core

import (
	"errors"
	"fmt"
	"net"
)

var (
	// ErrDuplicateTransaction is returned by a repository when the id is already stored
	ErrDuplicateTransaction = errors.New("transaction already exists")
	// ErrTransactionNotFound is returned when no transaction has the requested id
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrNotConnected is returned when an operation needs an authenticated session
	ErrNotConnected = errors.New("mail store is not connected")
	// ErrMailboxNotSelected is returned by Search and Fetch before SelectMailbox
	ErrMailboxNotSelected = errors.New("no mailbox selected")
	// ErrUnknownSender is returned when no bank parser is registered for a sender
	ErrUnknownSender = errors.New("no parser registered for sender")
	// ErrDateRangeUnspecified is returned when neither bounds nor days-ago are given
	ErrDateRangeUnspecified = errors.New("either start and end dates or days ago must be provided")
	// ErrDateRangeInverted is returned when start falls after end
	ErrDateRangeInverted = errors.New("start date is after end date")
)

// SearchFailedError carries the server status of a rejected search
type SearchFailedError struct {
	Status string
	Info   string
}

func (e *SearchFailedError) Error() string {
	if e.Info == "" {
		return fmt.Sprintf("search failed with status %s", e.Status)
	}
	return fmt.Sprintf("search failed with status %s: %s", e.Status, e.Info)
}

// ConnectionError wraps dial, TLS and authentication failures. It is fatal to
// the current run and safe to retry on the next tick.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("mail store %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the failure was a network deadline
func (e *ConnectionError) Timeout() bool {
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// Temporary is always true: connection failures are retried by the caller
func (e *ConnectionError) Temporary() bool {
	return true
}
