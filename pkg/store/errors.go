package store

import "errors"

var (
	// ErrInvalidContactID is returned for a null/empty contact id; the check
	// surfaces caller bugs early instead of answering false.
	ErrInvalidContactID = errors.New("invalid contact id")
	// ErrDiscussionNotFound is returned when a message targets a discussion
	// with no stored response; this is a caller ordering bug, not a
	// recoverable runtime condition.
	ErrDiscussionNotFound = errors.New("discussion not found")
)
