package delta

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
)

const (
	// DefaultBlockSize is the granularity at which files are split into
	// blocks for signature computation.
	DefaultBlockSize = 4096

	// DefaultStrongHashSize is how many bytes of the SHA-256 block digest
	// are kept in the signature. 8 bytes keeps signatures compact while
	// making weak-checksum collisions harmless in practice.
	DefaultStrongHashSize = 8

	// MaxStrongHashSize is the full SHA-256 digest length.
	MaxStrongHashSize = sha256.Size
)

// signature wire format:
//
//	magic      [4]byte  "BSG1"
//	blockSize  uint32
//	strongSize uint8
//	sourceLen  uint64   length of the buffer the signature was built from
//	blocks     count * (weak uint32 + strong [strongSize]byte)
//
// count is derived from sourceLen and blockSize, so a truncated stream is
// always detected. All integers are big-endian.
var sigMagic = [4]byte{'B', 'S', 'G', '1'}

// BlockChecksum is the per-block summary carried in a Signature: a fast
// rolling checksum to find candidate matches and a truncated SHA-256 to
// confirm them.
type BlockChecksum struct {
	Weak   uint32
	Strong []byte
}

// Signature is a compact description of a byte buffer. Block i covers
// bytes [i*BlockSize, (i+1)*BlockSize) of the source buffer; the final
// block may be shorter. An empty source yields zero blocks.
type Signature struct {
	BlockSize      int
	StrongHashSize int
	SourceLen      int64
	Blocks         []BlockChecksum
}

// BuildSignature splits data into blockSize-sized blocks and computes the
// weak and strong checksum of each. strongHashSize must be in
// [1, MaxStrongHashSize].
func BuildSignature(data []byte, blockSize, strongHashSize int) (*Signature, error) {
	if blockSize <= 0 {
		return nil, fmt.Errorf("delta: block size must be positive, got %d", blockSize)
	}
	if strongHashSize < 1 || strongHashSize > MaxStrongHashSize {
		return nil, fmt.Errorf("delta: strong hash size must be in [1, %d], got %d", MaxStrongHashSize, strongHashSize)
	}

	sig := &Signature{
		BlockSize:      blockSize,
		StrongHashSize: strongHashSize,
		SourceLen:      int64(len(data)),
		Blocks:         make([]BlockChecksum, 0, (len(data)+blockSize-1)/blockSize),
	}

	for off := 0; off < len(data); off += blockSize {
		end := min(off+blockSize, len(data))
		block := data[off:end]
		sig.Blocks = append(sig.Blocks, BlockChecksum{
			Weak:   weakChecksum(block),
			Strong: strongChecksum(block, strongHashSize),
		})
	}
	return sig, nil
}

// strongChecksum is the SHA-256 digest of block truncated to size bytes.
func strongChecksum(block []byte, size int) []byte {
	sum := sha256.Sum256(block)
	return sum[:size]
}

// blockLength returns the actual byte length of block i in the source
// buffer. Only the final block may be shorter than BlockSize.
func (s *Signature) blockLength(i int) int {
	if i == len(s.Blocks)-1 {
		if rem := int(s.SourceLen % int64(s.BlockSize)); rem != 0 {
			return rem
		}
	}
	return s.BlockSize
}

// Encode serializes the signature into its self-describing binary form.
func (s *Signature) Encode() []byte {
	var buf bytes.Buffer
	buf.Grow(17 + len(s.Blocks)*(4+s.StrongHashSize))
	buf.Write(sigMagic[:])
	binary.Write(&buf, binary.BigEndian, uint32(s.BlockSize))
	buf.WriteByte(byte(s.StrongHashSize))
	binary.Write(&buf, binary.BigEndian, uint64(s.SourceLen))
	for _, b := range s.Blocks {
		binary.Write(&buf, binary.BigEndian, b.Weak)
		buf.Write(b.Strong)
	}
	return buf.Bytes()
}

// DecodeSignature parses and validates an encoded signature. Adversarial
// input yields a *DecodeError, never a panic or out-of-bounds read.
func DecodeSignature(encoded []byte) (*Signature, error) {
	r := bytes.NewReader(encoded)

	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, decodeErr("signature", "short header")
	}
	if magic != sigMagic {
		return nil, decodeErr("signature", "bad magic %q", magic)
	}

	var blockSize uint32
	if err := binary.Read(r, binary.BigEndian, &blockSize); err != nil {
		return nil, decodeErr("signature", "short header")
	}
	strongSize, err := r.ReadByte()
	if err != nil {
		return nil, decodeErr("signature", "short header")
	}
	var sourceLen uint64
	if err := binary.Read(r, binary.BigEndian, &sourceLen); err != nil {
		return nil, decodeErr("signature", "short header")
	}

	if blockSize == 0 {
		return nil, decodeErr("signature", "zero block size")
	}
	if strongSize < 1 || int(strongSize) > MaxStrongHashSize {
		return nil, decodeErr("signature", "strong hash size %d out of range", strongSize)
	}
	if sourceLen > 1<<56 {
		return nil, decodeErr("signature", "implausible source length %d", sourceLen)
	}

	count := int((sourceLen + uint64(blockSize) - 1) / uint64(blockSize))
	if r.Len() != count*(4+int(strongSize)) {
		return nil, decodeErr("signature", "block table is %d bytes, want %d", r.Len(), count*(4+int(strongSize)))
	}

	sig := &Signature{
		BlockSize:      int(blockSize),
		StrongHashSize: int(strongSize),
		SourceLen:      int64(sourceLen),
		Blocks:         make([]BlockChecksum, count),
	}
	for i := range sig.Blocks {
		if err := binary.Read(r, binary.BigEndian, &sig.Blocks[i].Weak); err != nil {
			return nil, decodeErr("signature", "short block table")
		}
		strong := make([]byte, strongSize)
		if _, err := io.ReadFull(r, strong); err != nil {
			return nil, decodeErr("signature", "short block table")
		}
		sig.Blocks[i].Strong = strong
	}
	return sig, nil
}
