package delta

// Rolling checksum in the style of the rsync weak checksum: two 16-bit sums
// packed into a uint32. It can be advanced one byte at a time in O(1), which
// is what lets the delta encoder slide a block-sized window over the target
// byte-by-byte.
//
// For a window X_k..X_l:
//
//	a = sum(X_i) mod 2^16
//	b = sum((l - i + 1) * X_i) mod 2^16
//	sum = a | b<<16
//
// The char offset matches librsync so sums of short windows don't collapse
// toward zero.

const charOffset = 31

type rollsum struct {
	a, b   uint32
	window uint32 // current window length in bytes
}

// init sets the checksum state to cover block in full.
func (r *rollsum) init(block []byte) {
	r.a, r.b = 0, 0
	r.window = uint32(len(block))
	for i, c := range block {
		r.a += uint32(c) + charOffset
		r.b += (uint32(len(block)-i)) * (uint32(c) + charOffset)
	}
}

// roll advances the window one byte: out leaves on the left, in enters on
// the right. The window length is unchanged.
func (r *rollsum) roll(out, in byte) {
	r.a += uint32(in) - uint32(out)
	r.b += r.a - r.window*(uint32(out)+charOffset)
}

func (r *rollsum) sum() uint32 {
	return (r.a & 0xffff) | (r.b&0xffff)<<16
}

// weakChecksum computes the rolling checksum of block from scratch.
func weakChecksum(block []byte) uint32 {
	var r rollsum
	r.init(block)
	return r.sum()
}
