package scanner

import (
	"errors"
	"fmt"
)

// ErrLineTooLong is matched (via errors.Is) by every *LineTooLongError.
var ErrLineTooLong = errors.New("line exceeds maximum length")

// LineTooLongError reports a line, or a fragment of one, that is longer than
// the configured maximum. Lines are never truncated; the run must stop or the
// caller must decide to skip the record explicitly.
type LineTooLongError struct {
	Span   uint64 // label of the span the line was found in (or fused at)
	Offset int64  // absolute offset of the span, -1 when fused from fragments
	Len    int    // length observed so far; the real line may be longer
	Max    int
}

func (e *LineTooLongError) Error() string {
	if e.Offset < 0 {
		return fmt.Sprintf("fused line at span %d: %d bytes > max %d", e.Span, e.Len, e.Max)
	}
	return fmt.Sprintf("span %d (offset %d): line of %d bytes > max %d", e.Span, e.Offset, e.Len, e.Max)
}

func (e *LineTooLongError) Is(target error) bool { return target == ErrLineTooLong }
