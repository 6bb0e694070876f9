package blake2b

import "hash"

// digest adapts State to hash.Hash. Sum works on a copy, so the running
// state stays usable.
type digest struct {
	s State
	// initial is the state right after initialization, including the
	// buffered key block for keyed hashes, so Reset does not need the key.
	initial State
}

var _ hash.Hash = (*digest)(nil)

// New returns a hash.Hash computing a size-byte BLAKE2b digest keyed with
// key (nil for unkeyed).
func New(size int, key []byte) (hash.Hash, error) {
	s, err := InitKeyed(size, key)
	if err != nil {
		return nil, err
	}
	return newDigest(s), nil
}

// New512 returns a hash.Hash computing the BLAKE2b-512 digest.
func New512(key []byte) (hash.Hash, error) { return New(Size, key) }

// New256 returns a hash.Hash computing the BLAKE2b-256 digest.
func New256(key []byte) (hash.Hash, error) { return New(Size256, key) }

// NewWithParams returns a hash.Hash seeded from p, for salted, personalized
// or tree-mode hashing.
func NewWithParams(p *Params, key []byte) (hash.Hash, error) {
	s, err := InitParam(p, key)
	if err != nil {
		return nil, err
	}
	return newDigest(s), nil
}

func newDigest(s *State) *digest {
	return &digest{s: *s, initial: *s}
}

func (d *digest) Write(p []byte) (int, error) {
	d.s.absorb(p)
	return len(p), nil
}

func (d *digest) Sum(b []byte) []byte {
	tmp := d.s
	var out [Size]byte
	tmp.finish(out[:d.s.size])
	return append(b, out[:d.s.size]...)
}

func (d *digest) Reset() { d.s = d.initial }

func (d *digest) Size() int { return d.s.size }

func (d *digest) BlockSize() int { return BlockSize }
