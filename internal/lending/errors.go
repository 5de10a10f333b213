package lending

import "fmt"

// Kind groups errors by how a caller should react to them.
type Kind string

// Error kinds.
const (
	KindValidation      Kind = "validation"
	KindNotFound        Kind = "not_found"
	KindUnauthenticated Kind = "unauthenticated"
	KindAuthorization   Kind = "authorization"
	KindConflict        Kind = "conflict"
	KindDependency      Kind = "dependency"
)

// Error is a domain error with a stable machine-readable code and a message
// safe to show to users.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same code, so errors.Is works against the
// sentinels below even after wrapping or rewording.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// with returns a copy of e that wraps cause.
func (e *Error) with(cause error) *Error {
	c := *e
	c.Err = cause
	return &c
}

func invalid(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Code: ErrValidation.Code, Message: fmt.Sprintf(format, args...)}
}

var (
	ErrValidation = &Error{KindValidation, "VALIDATION", "invalid input", nil}

	ErrItemNotFound       = &Error{KindNotFound, "ITEM_NOT_FOUND", "item not found", nil}
	ErrRequestNotFound    = &Error{KindNotFound, "REQUEST_NOT_FOUND", "borrow request not found", nil}
	ErrDisputeNotFound    = &Error{KindNotFound, "DISPUTE_NOT_FOUND", "dispute not found", nil}
	ErrUserNotFound       = &Error{KindNotFound, "USER_NOT_FOUND", "user not found", nil}
	ErrCollectionNotFound = &Error{KindNotFound, "COLLECTION_NOT_FOUND", "collection not found", nil}

	ErrInvalidResponseToken = &Error{KindAuthorization, "INVALID_RESPONSE_TOKEN", "this response link is not valid", nil}
	ErrNotItemOwner         = &Error{KindAuthorization, "NOT_ITEM_OWNER", "only the owner can change this item", nil}
	ErrNotLender            = &Error{KindAuthorization, "NOT_LENDER", "only the lender can do this", nil}
	ErrNotParticipant       = &Error{KindAuthorization, "NOT_PARTICIPANT", "you are not part of this request", nil}
	ErrNotAdmin             = &Error{KindAuthorization, "NOT_ADMIN", "admin role required", nil}
	ErrInvalidCredentials   = &Error{KindUnauthenticated, "INVALID_CREDENTIALS", "invalid credentials", nil}

	ErrItemUnavailable     = &Error{KindConflict, "ITEM_UNAVAILABLE", "this item is currently unavailable", nil}
	ErrItemAlreadyActive   = &Error{KindConflict, "ITEM_ALREADY_ACTIVE", "this item is already active", nil}
	ErrSelfBorrow          = &Error{KindConflict, "SELF_BORROW", "you cannot borrow your own item", nil}
	ErrConcurrentApproval  = &Error{KindConflict, "CONCURRENT_APPROVAL", "this request could no longer be approved: the item was already promised to someone else", nil}
	ErrAlreadyResponded    = &Error{KindConflict, "ALREADY_RESPONDED", "this request has already been responded to", nil}
	ErrResponseLinkExpired = &Error{KindConflict, "RESPONSE_LINK_EXPIRED", "this response link has expired", nil}
	ErrAlreadyResolved     = &Error{KindConflict, "ALREADY_RESOLVED", "this dispute has already been resolved", nil}
	ErrInvalidState        = &Error{KindConflict, "INVALID_STATE", "this request is not in a state that allows that", nil}
	ErrDisputeExists       = &Error{KindConflict, "DISPUTE_EXISTS", "this request already has an open dispute", nil}
	ErrMissingContactInfo  = &Error{KindConflict, "MISSING_CONTACT_INFO", "both parties need an e-mail address or phone number on file", nil}
	ErrBorrowerSuspended   = &Error{KindConflict, "BORROWER_SUSPENDED", "your account is suspended", nil}
	ErrInsufficientTrust   = &Error{KindConflict, "INSUFFICIENT_TRUST", "your trust score is too low to borrow", nil}
	ErrUsernameTaken       = &Error{KindConflict, "USERNAME_TAKEN", "username already taken", nil}

	ErrMediaStorage = &Error{KindDependency, "MEDIA_STORAGE", "the attachment could not be stored", nil}
)
