package ledger

import "errors"

// Precondition errors. They are detected before any write and never retried.
var (
	ErrAlreadyRegistered  = errors.New("user already registered")
	ErrNotRegistered      = errors.New("user not registered")
	ErrUserBlocked        = errors.New("user is blocked")
	ErrInvalidScore       = errors.New("vulgarity score must be within [0,100]")
	ErrInvalidContentHash = errors.New("content hash is required")
	ErrNotFound           = errors.New("not found")
	ErrNotBlocked         = errors.New("user is not blocked")
	ErrNoPendingRequest   = errors.New("no pending unblock request")
	ErrNotOwner           = errors.New("caller is not the owner")

	ErrInvalidTokenLink = errors.New("token link address is invalid")
	ErrMetaMismatch     = errors.New("ledger was initialized with a different owner or token")
)

// errUnreachableBlockedAuthor aborts a post whose author is already blocked.
// CreatePost rejects blocked authors first, so this only fires on a bug.
var errUnreachableBlockedAuthor = errors.New("ledger: moderation reached for a blocked author")

// Code returns a stable machine-readable name for err.
func Code(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrAlreadyRegistered):
		return "already_registered"
	case errors.Is(err, ErrNotRegistered):
		return "not_registered"
	case errors.Is(err, ErrUserBlocked):
		return "user_blocked"
	case errors.Is(err, ErrInvalidScore):
		return "invalid_score"
	case errors.Is(err, ErrInvalidContentHash):
		return "invalid_content_hash"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrNotBlocked):
		return "not_blocked"
	case errors.Is(err, ErrNoPendingRequest):
		return "no_pending_request"
	case errors.Is(err, ErrNotOwner):
		return "not_owner"
	default:
		return "internal"
	}
}
