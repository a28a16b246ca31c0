package kamis

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a fetch produced no usable response.
type ErrorKind string

const (
	KindConnection ErrorKind = "connection-error"
	KindTimeout    ErrorKind = "timeout"
	KindServer     ErrorKind = "server-error"
	KindClient     ErrorKind = "client-error"
	KindParse      ErrorKind = "parse-error"
	KindProvider   ErrorKind = "provider-error"
)

var (
	ErrConnection = errors.New("connection error")
	ErrTimeout    = errors.New("request timed out")
	ErrServer     = errors.New("server error")
	ErrClient     = errors.New("client error")
	ErrParse      = errors.New("unparseable response")
	ErrProvider   = errors.New("provider reported an error")

	// ErrDiscoveryFailed aborts a collection run: without the product list there is nothing to fan out.
	ErrDiscoveryFailed = errors.New("product discovery failed")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindConnection:
		return ErrConnection
	case KindTimeout:
		return ErrTimeout
	case KindServer:
		return ErrServer
	case KindClient:
		return ErrClient
	case KindParse:
		return ErrParse
	case KindProvider:
		return ErrProvider
	}
	return nil
}

// FetchError is returned by the client and the normalizer.
type FetchError struct {
	Kind       ErrorKind
	StatusCode int // 0 when no HTTP response was received
	Attempts   int
	Err        error
}

func (e *FetchError) Error() string {
	msg := string(e.Kind)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.StatusCode)
	}
	if e.Attempts > 1 {
		msg = fmt.Sprintf("%s after %d attempts", msg, e.Attempts)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is lets callers match a kind with errors.Is(err, kamis.ErrServer).
func (e *FetchError) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && s == target
}

// Retryable reports whether another attempt may succeed.
func (e *FetchError) Retryable() bool {
	switch e.Kind {
	case KindConnection, KindTimeout, KindServer:
		return true
	}
	return false
}
