package blake2b

// Hash returns the outlen-byte BLAKE2b digest of input keyed with key. A nil
// or empty key gives the unkeyed digest.
func Hash(input, key []byte, outlen int) ([]byte, error) {
	s, err := InitKeyed(outlen, key)
	if err != nil {
		return nil, err
	}
	if err := s.Update(input); err != nil {
		return nil, err
	}
	return s.Final(outlen)
}

// Sum512 returns the unkeyed 64-byte BLAKE2b digest of data.
func Sum512(data []byte) [Size]byte {
	var out [Size]byte
	sumInto(out[:], data)
	return out
}

// Sum256 returns the unkeyed 32-byte BLAKE2b digest of data.
func Sum256(data []byte) [Size256]byte {
	var out [Size256]byte
	sumInto(out[:], data)
	return out
}

func sumInto(out, data []byte) {
	var s State
	p := DefaultParams(len(out), 0)
	s.reset(&p)
	s.absorb(data)
	s.finish(out)
}
