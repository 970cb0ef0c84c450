package chunk

import "fmt"

// ErrorCode classifies the reasons a link record or chunk entry is refused.
// The same codes are produced by admission (before a record is created) and by
// validation (when re-deriving the decision for a record received from the
// network), so both sides of the protocol speak the same taxonomy.
type ErrorCode uint32

const (
	// FutureChunk - the window starts beyond the accepted clock skew.
	FutureChunk ErrorCode = iota
	// ChunkWindowMismatch - a stored chunk's window is not derivable from its
	// index. Data corruption or foreign network constants; fail closed.
	ChunkWindowMismatch
	// DirectLimitExceeded - a direct record past DirectChunkLinkLimit.
	DirectLimitExceeded
	// SpamLimitExceeded - a record past EnforceSpamLimit; terminal for the
	// author on this chunk.
	SpamLimitExceeded
	// ChainDiscontinuity - a chained record whose source is not the target of
	// the author's preceding record on the chunk.
	ChainDiscontinuity
	// BadSignature - the record's signature does not verify against the
	// embedded author key.
	BadSignature
)

// String implements the Stringer interface.
func (c ErrorCode) String() string {
	switch c {
	case FutureChunk:
		return "FutureChunk"
	case ChunkWindowMismatch:
		return "ChunkWindowMismatch"
	case DirectLimitExceeded:
		return "DirectLimitExceeded"
	case SpamLimitExceeded:
		return "SpamLimitExceeded"
	case ChainDiscontinuity:
		return "ChainDiscontinuity"
	case BadSignature:
		return "BadSignature"
	}
	return fmt.Sprintf("ErrorCode(%d)", c)
}

// LinkError is the typed failure returned by admission and validation.
type LinkError struct {
	code ErrorCode
	msg  string
}

// NewLinkError creates a new LinkError.
func NewLinkError(code ErrorCode, msg string) LinkError {
	return LinkError{
		code: code,
		msg:  msg,
	}
}

// Code returns the error classification.
func (e LinkError) Code() ErrorCode {
	return e.code
}

// Error implements the error interface.
func (e LinkError) Error() string {
	return fmt.Sprintf("%s: %s", e.code, e.msg)
}

// IsLinkError checks that an error is of type LinkError and that its code
// matches the provided ErrorCode.
func IsLinkError(err error, code ErrorCode) bool {
	linkErr, ok := err.(LinkError)
	return ok && linkErr.code == code
}
