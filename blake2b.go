// Package blake2b implements the BLAKE2b hash function (RFC 7693) with
// keying, salting, personalization and the tree-hashing parameter fields.
//
// The streaming State keeps up to two blocks of input in a small ring so
// that the block which turns out to be the last one is compressed with the
// finalization flags set, never as an interior block. Digests are 1 to 64
// bytes long and byte-for-byte compatible with other BLAKE2b
// implementations.
package blake2b

import (
	"github.com/pkg/errors"
)

const (
	// BlockSize is the size of a compressed block in bytes.
	BlockSize = 128
	// Size is the maximum digest size in bytes.
	Size = 64
	// Size256 is the digest size of BLAKE2b-256.
	Size256 = 32
	// KeySize is the maximum key size in bytes.
	KeySize = 64
	// SaltSize is the size of the salt field of the parameter block.
	SaltSize = 16
	// PersonalSize is the size of the personalization field.
	PersonalSize = 16
	// ParamSize is the size of the encoded parameter block.
	ParamSize = 64
)

var (
	// ErrInvalidLength is returned for a digest length outside [1,64], a key
	// longer than 64 bytes, or a Final length that differs from the one the
	// state was created with.
	ErrInvalidLength = errors.New("blake2b: invalid length")
	// ErrAlreadyFinalized is returned by Update and Final once Final has
	// succeeded.
	ErrAlreadyFinalized = errors.New("blake2b: already finalized")
	// ErrInvalidParams is returned for a malformed parameter block.
	ErrInvalidParams = errors.New("blake2b: invalid parameter block")
)

const lastBlockFlag = 0xffffffffffffffff

// State is an in-progress BLAKE2b computation. It is not safe for
// concurrent use; independent States are.
type State struct {
	h [8]uint64
	t [2]uint64
	f [2]uint64

	// buf is a two-slot ring. buf[cur] holds the n most recent bytes. When
	// held is set, buf[cur^1] holds the full block preceding them, not yet
	// compressed.
	buf  [2][BlockSize]byte
	cur  int
	n    int
	held bool

	size     int
	lastNode bool
	done     bool
}

// Init returns a State producing an unkeyed digest of outlen bytes.
func Init(outlen int) (*State, error) {
	return InitKeyed(outlen, nil)
}

// InitKeyed returns a State producing a digest of outlen bytes keyed with
// key. An empty key is the same as Init.
func InitKeyed(outlen int, key []byte) (*State, error) {
	if err := checkDigestLength(outlen); err != nil {
		return nil, err
	}
	if len(key) > KeySize {
		return nil, errors.Wrapf(ErrInvalidLength, "key length %d exceeds %d", len(key), KeySize)
	}
	p := DefaultParams(outlen, len(key))
	return InitParam(&p, key)
}

// InitParam returns a State seeded from p. key must be exactly
// p.KeyLength bytes long and may be nil when p.KeyLength is zero.
func InitParam(p *Params, key []byte) (*State, error) {
	if p == nil {
		return nil, errors.Wrap(ErrInvalidParams, "nil parameter block")
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if len(key) != int(p.KeyLength) {
		return nil, errors.Wrapf(ErrInvalidParams, "key is %d bytes, parameter block says %d", len(key), p.KeyLength)
	}

	s := new(State)
	s.reset(p)
	if len(key) > 0 {
		var block [BlockSize]byte
		defer wipe(block[:])
		copy(block[:], key)
		s.absorb(block[:])
	}
	return s, nil
}

// reset seeds s from a validated parameter block.
func (s *State) reset(p *Params) {
	*s = State{
		size:     int(p.DigestLength),
		lastNode: p.LastNode,
	}
	w := p.words()
	for i := range s.h {
		s.h[i] = iv[i] ^ w[i]
	}
}

func checkDigestLength(outlen int) error {
	if outlen < 1 || outlen > Size {
		return errors.Wrapf(ErrInvalidLength, "digest length %d not in [1,%d]", outlen, Size)
	}
	return nil
}

// Size returns the digest length fixed at initialization.
func (s *State) Size() int { return s.size }

// Counter returns the 128-bit count of bytes compressed so far as
// (low, high) words.
func (s *State) Counter() (lo, hi uint64) { return s.t[0], s.t[1] }

// Update absorbs p.
func (s *State) Update(p []byte) error {
	if s.done {
		return ErrAlreadyFinalized
	}
	s.absorb(p)
	return nil
}

// Write absorbs p. It implements io.Writer.
func (s *State) Write(p []byte) (int, error) {
	if err := s.Update(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (s *State) absorb(p []byte) {
	for len(p) > 0 {
		if s.n == BlockSize {
			// More input follows, so buf[cur] is not the last block and
			// whatever it displaces is not either.
			if s.held {
				s.compress(&s.buf[s.cur^1], BlockSize)
			}
			s.held = true
			s.cur ^= 1
			s.n = 0
		}
		c := copy(s.buf[s.cur][s.n:], p)
		s.n += c
		p = p[c:]
	}
}

// compress advances the counter by n bytes and absorbs block.
func (s *State) compress(block *[BlockSize]byte, n int) {
	s.t[0] += uint64(n)
	if s.t[0] < uint64(n) {
		s.t[1]++
	}
	compressBlock(&s.h, &s.t, &s.f, block)
}

// Final finishes the computation and returns the outlen-byte digest. outlen
// must equal the length the State was created with. The State is dead
// afterwards.
func (s *State) Final(outlen int) ([]byte, error) {
	if s.done {
		return nil, ErrAlreadyFinalized
	}
	if outlen != s.size {
		return nil, errors.Wrapf(ErrInvalidLength, "final length %d, state was created for %d", outlen, s.size)
	}
	out := make([]byte, outlen)
	s.finish(out)
	return out, nil
}

// finish compresses the last block and writes len(out) digest bytes.
func (s *State) finish(out []byte) {
	defer s.wipeBuffer()

	if s.held {
		s.compress(&s.buf[s.cur^1], BlockSize)
		s.held = false
	}

	s.f[0] = lastBlockFlag
	if s.lastNode {
		s.f[1] = lastBlockFlag
	}
	last := &s.buf[s.cur]
	clear(last[s.n:])
	s.compress(last, s.n)
	s.done = true

	var sum [Size]byte
	for i, w := range s.h[:(len(out)+7)/8] {
		store64(sum[i*8:], w)
	}
	copy(out, sum[:len(out)])
}

func (s *State) wipeBuffer() {
	wipe(s.buf[0][:])
	wipe(s.buf[1][:])
	s.n = 0
}
