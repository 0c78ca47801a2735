package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"syscall"

	"github.com/nhle/tempvortex/internal/model"
)

// Kind classifies a provider failure by the operation that failed.
type Kind int

const (
	KindAccountCreation Kind = iota + 1
	KindSync
	KindContentFetch
	KindDelete
	KindDownload
)

func (k Kind) String() string {
	switch k {
	case KindAccountCreation:
		return "account creation"
	case KindSync:
		return "sync"
	case KindContentFetch:
		return "content fetch"
	case KindDelete:
		return "delete"
	case KindDownload:
		return "download"
	default:
		return "unknown"
	}
}

// Error is returned by every Provider operation that fails.
type Error struct {
	Kind     Kind
	Provider model.ProviderID

	// Detail is the provider-supplied explanation, when one was given
	// (e.g. "This value is already used.").
	Detail string

	// Network is set when the failure happened below HTTP: DNS,
	// refused connections, timeouts, relay or cross-origin rejections.
	Network bool

	// Auth is set when the provider rejected the account credential.
	Auth bool

	Err error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s failed", e.Provider, e.Kind)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err as a provider failure of the given kind, detecting
// network-class causes.
func NewError(kind Kind, id model.ProviderID, err error) *Error {
	pe := &Error{Kind: kind, Provider: id, Err: err}
	var inner *Error
	if errors.As(err, &inner) {
		pe.Detail = inner.Detail
		pe.Network = inner.Network
		pe.Auth = inner.Auth
		pe.Err = inner.Err
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		if pe.Detail == "" {
			pe.Detail = statusErr.Detail
		}
		pe.Auth = pe.Auth || statusErr.StatusCode == 401
	}
	pe.Network = pe.Network || isNetwork(err)
	return pe
}

// Errorf builds a provider failure with a detail message and no cause.
func Errorf(kind Kind, id model.ProviderID, format string, args ...any) *Error {
	return &Error{Kind: kind, Provider: id, Detail: fmt.Sprintf(format, args...)}
}

// StatusError reports a non-2xx HTTP response from a provider.
type StatusError struct {
	StatusCode int
	Method     string
	Path       string
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("unexpected status %d on %s %s: %s", e.StatusCode, e.Method, e.Path, e.Detail)
	}
	return fmt.Sprintf("unexpected status %d on %s %s", e.StatusCode, e.Method, e.Path)
}

// IsKind reports whether err (or any error in its chain) is a provider
// Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Kind == kind
}

// IsNetworkError reports whether err was caused by connectivity or
// transport policy rather than a provider-side rejection.
func IsNetworkError(err error) bool {
	var pe *Error
	if errors.As(err, &pe) && pe.Network {
		return true
	}
	return isNetwork(err)
}

// IsAuthError reports whether the provider rejected the credential.
func IsAuthError(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Auth
}

func isNetwork(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
