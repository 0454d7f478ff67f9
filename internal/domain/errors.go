package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure.
type Kind string

const (
	KindSourceUnavailable      Kind = "source_unavailable"
	KindSourceDataInvalid      Kind = "source_data_invalid"
	KindAffiliationUnavailable Kind = "affiliation_unavailable"
	KindAffiliationRejected    Kind = "affiliation_rejected"
	KindStorageUnavailable     Kind = "storage_unavailable"
	KindForwardingFailed       Kind = "forwarding_failed"
)

// Sentinels for errors.Is. An *Error matches the sentinel of its Kind.
var (
	ErrSourceUnavailable      = &Error{Kind: KindSourceUnavailable}
	ErrSourceDataInvalid      = &Error{Kind: KindSourceDataInvalid}
	ErrAffiliationUnavailable = &Error{Kind: KindAffiliationUnavailable}
	ErrAffiliationRejected    = &Error{Kind: KindAffiliationRejected}
	ErrStorageUnavailable     = &Error{Kind: KindStorageUnavailable}
	ErrForwardingFailed       = &Error{Kind: KindForwardingFailed}
)

// Error carries a Kind, the operation that failed (usually a source or
// component name) and the underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

func SourceUnavailable(op string, err error) error {
	return &Error{Kind: KindSourceUnavailable, Op: op, Err: err}
}

func SourceDataInvalid(op string, err error) error {
	return &Error{Kind: KindSourceDataInvalid, Op: op, Err: err}
}

func AffiliationUnavailable(op string, err error) error {
	return &Error{Kind: KindAffiliationUnavailable, Op: op, Err: err}
}

func AffiliationRejected(op string, err error) error {
	return &Error{Kind: KindAffiliationRejected, Op: op, Err: err}
}

func StorageUnavailable(op string, err error) error {
	return &Error{Kind: KindStorageUnavailable, Op: op, Err: err}
}

func ForwardingFailed(op string, err error) error {
	return &Error{Kind: KindForwardingFailed, Op: op, Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
