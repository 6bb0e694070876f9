package blake2b

import (
	"github.com/pkg/errors"
)

// Byte offsets of the fields in the encoded parameter block.
const (
	offDigestLength = 0
	offKeyLength    = 1
	offFanout       = 2
	offDepth        = 3
	offLeafLength   = 4
	offNodeOffset   = 8
	offNodeDepth    = 16
	offInnerLength  = 17
	offReserved     = 18
	offSalt         = 32
	offPersonal     = 48

	reservedSize = offSalt - offReserved
)

// The fields must tile the block exactly. Either constant overflows uint
// (a compile error) if the layout drifts from ParamSize.
const (
	_ uint = ParamSize - (offPersonal + PersonalSize)
	_ uint = (offPersonal + PersonalSize) - ParamSize
	_ uint = offSalt - (offReserved + reservedSize)
)

// Params is the BLAKE2b parameter block. Its 64-byte encoding, read as
// eight little-endian words, is XORed into the IV to form the initial
// chaining value.
type Params struct {
	DigestLength uint8
	KeyLength    uint8
	Fanout       uint8
	Depth        uint8
	LeafLength   uint32
	NodeOffset   uint64
	NodeDepth    uint8
	InnerLength  uint8
	Reserved     [reservedSize]byte
	Salt         [SaltSize]byte
	Personal     [PersonalSize]byte

	// LastNode marks the final sibling of a tree level. It is not part of
	// the encoded block; it sets the second finalization flag.
	LastNode bool
}

// DefaultParams returns sequential-mode parameters (fanout 1, depth 1)
// for a digest of outlen bytes keyed with a key of keylen bytes. Lengths
// that do not fit a byte are stored as 0xff so that Validate rejects them.
func DefaultParams(outlen, keylen int) Params {
	return Params{
		DigestLength: lengthByte(outlen),
		KeyLength:    lengthByte(keylen),
		Fanout:       1,
		Depth:        1,
	}
}

func lengthByte(n int) uint8 {
	if n < 0 || n > 0xff {
		return 0xff
	}
	return uint8(n)
}

// SetSalt copies salt into p, zero-padding it to SaltSize.
func (p *Params) SetSalt(salt []byte) error {
	if len(salt) > SaltSize {
		return errors.Wrapf(ErrInvalidLength, "salt is %d bytes, max %d", len(salt), SaltSize)
	}
	p.Salt = [SaltSize]byte{}
	copy(p.Salt[:], salt)
	return nil
}

// SetPersonal copies personal into p, zero-padding it to PersonalSize.
func (p *Params) SetPersonal(personal []byte) error {
	if len(personal) > PersonalSize {
		return errors.Wrapf(ErrInvalidLength, "personalization is %d bytes, max %d", len(personal), PersonalSize)
	}
	p.Personal = [PersonalSize]byte{}
	copy(p.Personal[:], personal)
	return nil
}

// Validate reports whether p can seed a hash state.
func (p *Params) Validate() error {
	if p.DigestLength == 0 || p.DigestLength > Size {
		return errors.Wrapf(ErrInvalidLength, "digest length %d not in [1,%d]", p.DigestLength, Size)
	}
	if p.KeyLength > KeySize {
		return errors.Wrapf(ErrInvalidLength, "key length %d exceeds %d", p.KeyLength, KeySize)
	}
	for _, b := range p.Reserved {
		if b != 0 {
			return errors.Wrap(ErrInvalidParams, "reserved bytes must be zero")
		}
	}
	return nil
}

func (p *Params) encode(b *[ParamSize]byte) {
	b[offDigestLength] = p.DigestLength
	b[offKeyLength] = p.KeyLength
	b[offFanout] = p.Fanout
	b[offDepth] = p.Depth
	b[offLeafLength] = byte(p.LeafLength)
	b[offLeafLength+1] = byte(p.LeafLength >> 8)
	b[offLeafLength+2] = byte(p.LeafLength >> 16)
	b[offLeafLength+3] = byte(p.LeafLength >> 24)
	store64(b[offNodeOffset:], p.NodeOffset)
	b[offNodeDepth] = p.NodeDepth
	b[offInnerLength] = p.InnerLength
	copy(b[offReserved:offSalt], p.Reserved[:])
	copy(b[offSalt:offPersonal], p.Salt[:])
	copy(b[offPersonal:], p.Personal[:])
}

// MarshalBinary returns the 64-byte wire encoding of p.
func (p *Params) MarshalBinary() ([]byte, error) {
	var b [ParamSize]byte
	p.encode(&b)
	return b[:], nil
}

// UnmarshalBinary decodes a 64-byte parameter block. LastNode is left
// untouched. The decoded block is not validated.
func (p *Params) UnmarshalBinary(data []byte) error {
	if len(data) != ParamSize {
		return errors.Wrapf(ErrInvalidParams, "parameter block is %d bytes, want %d", len(data), ParamSize)
	}
	p.DigestLength = data[offDigestLength]
	p.KeyLength = data[offKeyLength]
	p.Fanout = data[offFanout]
	p.Depth = data[offDepth]
	p.LeafLength = uint32(data[offLeafLength]) | uint32(data[offLeafLength+1])<<8 |
		uint32(data[offLeafLength+2])<<16 | uint32(data[offLeafLength+3])<<24
	p.NodeOffset = load64(data[offNodeOffset:])
	p.NodeDepth = data[offNodeDepth]
	p.InnerLength = data[offInnerLength]
	copy(p.Reserved[:], data[offReserved:offSalt])
	copy(p.Salt[:], data[offSalt:offPersonal])
	copy(p.Personal[:], data[offPersonal:])
	return nil
}

// words returns the encoded block as eight little-endian words.
func (p *Params) words() (w [8]uint64) {
	var b [ParamSize]byte
	p.encode(&b)
	for i := range w {
		w[i] = load64(b[i*8:])
	}
	return w
}
