package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"syscall"
)

// statusError marks a non-2xx HTTP status so classify can split
// server errors from protocol errors.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}

// protocolError marks malformed or unexpected payloads.
type protocolError struct {
	msg string
}

func (e *protocolError) Error() string {
	return e.msg
}

// serverError marks an error frame or body the server sent deliberately.
type serverError struct {
	msg string
}

func (e *serverError) Error() string {
	return e.msg
}

// classify maps a transport-level error onto the failure taxonomy.
// Deadline expiry wins over everything else: a session that ran out of
// time is a timeout no matter which syscall surfaced it.
func classify(ctx context.Context, err error) ErrorKind {
	if ctx.Err() == context.DeadlineExceeded {
		return ErrTimeout
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return ErrTimeout
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ErrTimeout
	}

	var se *serverError
	if errors.As(err, &se) {
		return ErrServer
	}
	var st *statusError
	if errors.As(err, &st) {
		if st.code >= 500 {
			return ErrServer
		}
		return ErrProtocol
	}
	var pe *protocolError
	if errors.As(err, &pe) {
		return ErrProtocol
	}

	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return ErrConnect
	}
	var oe *net.OpError
	if errors.As(err, &oe) {
		return ErrConnect
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return ErrConnect
	}
	var de *net.DNSError
	if errors.As(err, &de) {
		return ErrConnect
	}

	return ErrProtocol
}
