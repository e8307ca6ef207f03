package client

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failed call the way the settings screens report it
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindForbidden
	KindInvalidPayload
	KindServer
	KindNetwork
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindInvalidPayload:
		return "invalid_payload"
	case KindServer:
		return "server_error"
	case KindNetwork:
		return "network_error"
	}
	return "unknown"
}

// Error is returned by every Client method that fails
type Error struct {
	Kind    Kind
	Status  int    // HTTP status, 0 when no response arrived
	Message string // server supplied message, may be empty
	Err     error  // transport error for KindNetwork
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s (%d)", e.Kind, e.Status)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the Kind from err, KindUnknown for foreign errors
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnknown
}

// MessageOf returns the server message carried by err, if any
func MessageOf(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return ""
}

func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindForbidden
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return KindInvalidPayload
	case status >= 500:
		return KindServer
	}
	return KindUnknown
}
