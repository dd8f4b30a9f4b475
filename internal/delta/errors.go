package delta

import "fmt"

// DecodeError reports a corrupt or truncated signature / op stream encoding.
// It is fatal for the file being synced but never aborts the whole run.
type DecodeError struct {
	What   string // "signature" or "ops"
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("delta: corrupt %s encoding: %s", e.What, e.Reason)
}

func decodeErr(what, format string, args ...any) error {
	return &DecodeError{What: what, Reason: fmt.Sprintf(format, args...)}
}

// RangeError reports a copy op referencing bytes outside the original buffer.
// This means the patch was computed against different bytes than the ones it
// is being applied to, or the stream is corrupt.
type RangeError struct {
	Offset int64
	Length int64
	Size   int64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("delta: copy range [%d, %d) out of bounds for source of %d bytes", e.Offset, e.Offset+e.Length, e.Size)
}
