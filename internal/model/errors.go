package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures surfaced by the sync, resolver and series layers.
type ErrorKind string

const (
	// KindRemoteList: the remote file list could not be retrieved.
	KindRemoteList ErrorKind = "remote_list"
	// KindFetch: a single archive failed to download.
	KindFetch ErrorKind = "fetch"
	// KindParse: a cached archive is corrupt or uses an unknown layout.
	KindParse ErrorKind = "parse"
	// KindNoData: the cache holds no report archives.
	KindNoData ErrorKind = "no_data"
	// KindDateNotFound: the requested report period is not cached.
	KindDateNotFound ErrorKind = "date_not_found"
	// KindAllEmpty: every candidate archive was empty for the query.
	KindAllEmpty ErrorKind = "all_empty"
	// KindSymbolNotFound: the provider returned no bars for a symbol.
	KindSymbolNotFound ErrorKind = "symbol_not_found"
	// KindInvalidArgument: a caller supplied a malformed parameter.
	KindInvalidArgument ErrorKind = "invalid_argument"
	// KindProvider: the data provider failed for a reason other than the above.
	KindProvider ErrorKind = "provider"
)

// Error is a classified error carrying an optional cause.
type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Errorf builds an Error of the given kind with a formatted message.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error of the given kind around cause.
func Wrap(kind ErrorKind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// KindOf returns the kind of the first Error in err's chain, or "".
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err's chain contains an Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
