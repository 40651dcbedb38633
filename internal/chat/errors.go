package chat

import "errors"

var (
	// ErrAuthentication means the caller identity is missing or invalid.
	ErrAuthentication = errors.New("invalid authorization")
	// ErrEmptyMessage means the request carried no message text.
	ErrEmptyMessage = errors.New("message is required")
	// ErrContextUnavailable means history or expenses could not be read.
	ErrContextUnavailable = errors.New("conversation context unavailable")
	// ErrPersistenceWrite wraps a failed insert. It never reaches the caller
	// of HandleMessage as an error, only inside WriteResult.
	ErrPersistenceWrite = errors.New("persistence write failed")
)
