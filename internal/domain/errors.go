package domain

import "errors"

var (
	ErrNodeNotFound        = errors.New("node not found")
	ErrEdgeNotFound        = errors.New("edge not found")
	ErrIdentityNotFound    = errors.New("identity not found")
	ErrDanglingReference   = errors.New("edge endpoint is missing or retracted")
	ErrSignatureIncomplete = errors.New("signature has too few distinguishing attributes")
	ErrAlreadyVoted        = errors.New("identity already voted on this edge")
	ErrTimeout             = errors.New("store operation timed out")
	ErrRateLimitExceeded   = errors.New("rate limit exceeded for trust tier")
	ErrArchiveNotFound     = errors.New("archived content not found")
	ErrNotCreator          = errors.New("only the creating identity may retract")
)

// Validation errors.
var (
	ErrInvalidKind     = errors.New("invalid node kind")
	ErrInvalidRelation = errors.New("invalid edge relation")
	ErrInvalidWeight   = errors.New("weight must be within [0, 1]")
	ErrInvalidPayload  = errors.New("invalid node payload")
	ErrKindImmutable   = errors.New("node kind cannot change")
	ErrSelfLoop        = errors.New("edge source and target must differ")
	ErrTitleRequired   = errors.New("title is required")
	ErrQueryEmpty      = errors.New("search query is empty")
	ErrNotAClaim       = errors.New("node is not a claim")
	ErrRetracted       = errors.New("entity is retracted")
)

// IsValidation reports whether err is a caller input error.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrInvalidKind, ErrInvalidRelation, ErrInvalidWeight, ErrInvalidPayload,
		ErrKindImmutable, ErrSelfLoop, ErrTitleRequired, ErrQueryEmpty, ErrNotAClaim,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
