package delta

import (
	"bytes"
	"encoding/binary"
	"io"
)

// Op is one instruction of a delta stream. The ordered op sequence,
// replayed against the buffer the signature was built from, reconstructs
// the target buffer byte-for-byte.
type Op struct {
	Kind   OpKind
	Offset int64  // OpCopy: byte offset into the signature's source buffer
	Length int64  // OpCopy: number of bytes to copy
	Data   []byte // OpInsert: literal bytes
}

type OpKind uint8

const (
	OpCopy   OpKind = 1
	OpInsert OpKind = 2
)

// op stream wire format:
//
//	magic [4]byte "BDL1"
//	ops   until EOF, each one of
//	       0x01 copy:   offset uvarint, length uvarint
//	       0x02 insert: length uvarint, data [length]byte
var opsMagic = [4]byte{'B', 'D', 'L', '1'}

// ComputeDelta produces the op stream that transforms the buffer described
// by sig into target. It runs on the side holding the up-to-date bytes.
//
// Classic rsync matching: index signature blocks by weak checksum, slide a
// block-sized window over target rolling the weak checksum one byte at a
// time, and confirm weak hits with the truncated strong checksum. Matched
// windows become copy ops referencing the source buffer; everything between
// matches becomes literal inserts. When several blocks share a weak
// checksum the lowest block index wins, so patches are reproducible.
//
// A signature with zero blocks (empty or missing client file) degenerates
// to a single insert of the whole target.
func ComputeDelta(sig *Signature, target []byte) ([]Op, error) {
	if err := validateSignature(sig); err != nil {
		return nil, err
	}

	if len(sig.Blocks) == 0 {
		if len(target) == 0 {
			return nil, nil
		}
		return []Op{{Kind: OpInsert, Data: target}}, nil
	}

	bs := sig.BlockSize

	// Index full-size blocks by weak checksum. A shorter trailing block
	// can only ever match the tail of the target, so it is handled
	// separately below.
	index := make(map[uint32][]int, len(sig.Blocks))
	fullBlocks := len(sig.Blocks)
	if sig.blockLength(len(sig.Blocks)-1) != bs {
		fullBlocks--
	}
	for i := 0; i < fullBlocks; i++ {
		w := sig.Blocks[i].Weak
		index[w] = append(index[w], i)
	}

	var ops []Op
	litStart := 0 // start of pending literal run
	pos := 0      // left edge of the sliding window

	flushLiteral := func(end int) {
		if end > litStart {
			ops = append(ops, Op{Kind: OpInsert, Data: target[litStart:end]})
		}
	}
	emitCopy := func(off, length int64) {
		// Merge with a contiguous preceding copy to keep the stream small.
		if n := len(ops); n > 0 && ops[n-1].Kind == OpCopy && ops[n-1].Offset+ops[n-1].Length == off {
			ops[n-1].Length += length
			return
		}
		ops = append(ops, Op{Kind: OpCopy, Offset: off, Length: length})
	}

	var window rollsum
	if pos+bs <= len(target) {
		window.init(target[pos : pos+bs])
	}

	for pos+bs <= len(target) {
		if idx := matchBlock(sig, index, window.sum(), target[pos:pos+bs]); idx >= 0 {
			flushLiteral(pos)
			emitCopy(int64(idx)*int64(bs), int64(bs))
			pos += bs
			litStart = pos
			if pos+bs <= len(target) {
				window.init(target[pos : pos+bs])
			}
			continue
		}
		if pos+bs < len(target) {
			window.roll(target[pos], target[pos+bs])
		}
		pos++
	}

	// The signature's trailing partial block, if any, can still match the
	// remaining tail of the target exactly.
	if tail := target[pos:]; len(tail) > 0 && fullBlocks < len(sig.Blocks) {
		last := len(sig.Blocks) - 1
		if len(tail) == sig.blockLength(last) &&
			weakChecksum(tail) == sig.Blocks[last].Weak &&
			strongEqual(tail, sig.Blocks[last].Strong, sig.StrongHashSize) {
			flushLiteral(pos)
			emitCopy(int64(last)*int64(bs), int64(len(tail)))
			litStart = len(target)
		}
	}

	flushLiteral(len(target))
	return ops, nil
}

// matchBlock returns the lowest signature block index whose weak and strong
// checksums both match window, or -1.
func matchBlock(sig *Signature, index map[uint32][]int, weak uint32, window []byte) int {
	candidates, ok := index[weak]
	if !ok {
		return -1
	}
	var strong []byte
	for _, i := range candidates {
		if sig.Blocks[i].Weak != weak {
			continue
		}
		if strong == nil {
			strong = strongChecksum(window, sig.StrongHashSize)
		}
		if bytes.Equal(strong, sig.Blocks[i].Strong) {
			return i
		}
	}
	return -1
}

func strongEqual(block, want []byte, size int) bool {
	return bytes.Equal(strongChecksum(block, size), want)
}

// validateSignature rejects inconsistent block tables before they can drive
// the matcher out of bounds.
func validateSignature(sig *Signature) error {
	if sig == nil {
		return decodeErr("signature", "nil signature")
	}
	if sig.BlockSize <= 0 {
		return decodeErr("signature", "zero block size")
	}
	if sig.StrongHashSize < 1 || sig.StrongHashSize > MaxStrongHashSize {
		return decodeErr("signature", "strong hash size %d out of range", sig.StrongHashSize)
	}
	want := int((sig.SourceLen + int64(sig.BlockSize) - 1) / int64(sig.BlockSize))
	if sig.SourceLen < 0 || len(sig.Blocks) != want {
		return decodeErr("signature", "block table has %d entries, want %d", len(sig.Blocks), want)
	}
	for i := range sig.Blocks {
		if len(sig.Blocks[i].Strong) != sig.StrongHashSize {
			return decodeErr("signature", "block %d strong checksum is %d bytes, want %d", i, len(sig.Blocks[i].Strong), sig.StrongHashSize)
		}
	}
	return nil
}

// EncodeOps serializes an op stream into its self-describing binary form.
func EncodeOps(ops []Op) []byte {
	var buf bytes.Buffer
	buf.Write(opsMagic[:])
	var scratch [binary.MaxVarintLen64]byte
	for _, op := range ops {
		switch op.Kind {
		case OpCopy:
			buf.WriteByte(byte(OpCopy))
			buf.Write(scratch[:binary.PutUvarint(scratch[:], uint64(op.Offset))])
			buf.Write(scratch[:binary.PutUvarint(scratch[:], uint64(op.Length))])
		case OpInsert:
			buf.WriteByte(byte(OpInsert))
			buf.Write(scratch[:binary.PutUvarint(scratch[:], uint64(len(op.Data)))])
			buf.Write(op.Data)
		}
	}
	return buf.Bytes()
}

// DecodeOps parses and validates an encoded op stream. Adversarial input
// yields a *DecodeError, never a panic.
func DecodeOps(encoded []byte) ([]Op, error) {
	r := bytes.NewReader(encoded)

	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, decodeErr("ops", "short header")
	}
	if magic != opsMagic {
		return nil, decodeErr("ops", "bad magic %q", magic)
	}

	var ops []Op
	for r.Len() > 0 {
		tag, _ := r.ReadByte()
		switch OpKind(tag) {
		case OpCopy:
			off, err := binary.ReadUvarint(r)
			if err != nil {
				return nil, decodeErr("ops", "truncated copy op")
			}
			length, err := binary.ReadUvarint(r)
			if err != nil {
				return nil, decodeErr("ops", "truncated copy op")
			}
			if off > 1<<56 || length > 1<<56 {
				return nil, decodeErr("ops", "implausible copy range [%d, %d)", off, off+length)
			}
			ops = append(ops, Op{Kind: OpCopy, Offset: int64(off), Length: int64(length)})
		case OpInsert:
			length, err := binary.ReadUvarint(r)
			if err != nil {
				return nil, decodeErr("ops", "truncated insert op")
			}
			if length > uint64(r.Len()) {
				return nil, decodeErr("ops", "insert of %d bytes but only %d remain", length, r.Len())
			}
			data := make([]byte, length)
			io.ReadFull(r, data)
			ops = append(ops, Op{Kind: OpInsert, Data: data})
		default:
			return nil, decodeErr("ops", "unknown op tag %#x", tag)
		}
	}
	return ops, nil
}
