package delta

// Apply replays ops against original and returns the reconstructed bytes.
// It is a pure in-memory transform: no filesystem or network access, so it
// can be tested and reasoned about in isolation.
//
// Copy ops are range-checked against original before any byte is written;
// an out-of-bounds range returns a *RangeError and no partial output.
func Apply(original []byte, ops []Op) ([]byte, error) {
	var total int64
	for _, op := range ops {
		switch op.Kind {
		case OpCopy:
			if op.Offset < 0 || op.Length < 0 || op.Offset+op.Length > int64(len(original)) {
				return nil, &RangeError{Offset: op.Offset, Length: op.Length, Size: int64(len(original))}
			}
			total += op.Length
		case OpInsert:
			total += int64(len(op.Data))
		default:
			return nil, decodeErr("ops", "unknown op kind %d", op.Kind)
		}
	}

	out := make([]byte, 0, total)
	for _, op := range ops {
		switch op.Kind {
		case OpCopy:
			out = append(out, original[op.Offset:op.Offset+op.Length]...)
		case OpInsert:
			out = append(out, op.Data...)
		}
	}
	return out, nil
}
