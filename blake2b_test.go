package blake2b

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"
)

func mustHex(t testing.TB, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

func sequence(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i)
	}
	return b
}

func TestHashKnownAnswers(t *testing.T) {
	key := sequence(KeySize)
	tests := []struct {
		name   string
		input  []byte
		key    []byte
		outlen int
		want   string
	}{
		{
			name:   "empty",
			outlen: 64,
			want:   "786a02f742015903c6c6fd852552d272912f4740e15847618a86e217f71f5419d25e1031afee585313896444934eb04b903a685b1448b755d56f701afe9be2ce",
		},
		{
			name:   "abc",
			input:  []byte("abc"),
			outlen: 64,
			want:   "ba80a53f981c4d0d6a2797b69f12f6e94c212f14685ac4b74b12bb6fdbffa2d17d87c5392aab792dc252d5de4533cc9518d38aa8dbf1925ab92386edd4009923",
		},
		{
			name:   "abc-256",
			input:  []byte("abc"),
			outlen: 32,
			want:   "bddd813c634239723171ef3fee98579b94964e3bb1cb3e427262c8c068d52319",
		},
		{
			name:   "fox",
			input:  []byte("The quick brown fox jumps over the lazy dog"),
			outlen: 64,
			want:   "a8add4bdddfd93e4877d2746e62817b116364a1fa7bc148d95090bc7333b3673f82401cf7aa2e4cb1ecd90296e3f14cb5413f8ed77be73045b13914cdcd6a918",
		},
		{
			name:   "one-zero-block",
			input:  make([]byte, BlockSize),
			outlen: 64,
			want:   "865939e120e6805438478841afb739ae4250cf372653078a065cdcfffca4caf798e6d462b65d658fc165782640eded70963449ae1500fb0f24981d7727e22c41",
		},
		{
			name:   "keyed-empty",
			key:    key,
			outlen: 64,
			want:   "10ebb67700b1868efb4417987acf4690ae9d972fb7a590c2f02871799aaa4786b5e996e8f0f4eb981fc214b005f42d2ff4233499391653df7aefcbc13fc51568",
		},
		{
			name:   "keyed-255",
			input:  sequence(255),
			key:    key,
			outlen: 64,
			want:   "142709d62e28fcccd0af97fad0f8465b971e82201dc51070faa0372aa43e92484be1c1e73ba10906d5d1853db6a4106e0a7bf9800d373d6dee2d46d62ef2a461",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Hash(tt.input, tt.key, tt.outlen)
			require.NoError(t, err)
			assert.Equal(t, tt.want, hex.EncodeToString(got))
		})
	}
}

func TestSumHelpers(t *testing.T) {
	data := []byte("abc")
	want512, err := Hash(data, nil, Size)
	require.NoError(t, err)
	got512 := Sum512(data)
	assert.Equal(t, want512, got512[:])

	want256, err := Hash(data, nil, Size256)
	require.NoError(t, err)
	got256 := Sum256(data)
	assert.Equal(t, want256, got256[:])
}

func TestHashDeterministic(t *testing.T) {
	data := sequence(1000)
	a, err := Hash(data, []byte("k"), 40)
	require.NoError(t, err)
	b, err := Hash(data, []byte("k"), 40)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestHashLengthContract(t *testing.T) {
	for _, outlen := range []int{-1, 0, Size + 1, 256, 320} {
		_, err := Hash(nil, nil, outlen)
		assert.ErrorIs(t, err, ErrInvalidLength, "outlen %d", outlen)

		_, err = Init(outlen)
		assert.ErrorIs(t, err, ErrInvalidLength, "outlen %d", outlen)
	}
	for outlen := 1; outlen <= Size; outlen++ {
		got, err := Hash([]byte("length"), nil, outlen)
		require.NoError(t, err)
		assert.Len(t, got, outlen)
	}

	_, err := InitKeyed(Size, make([]byte, KeySize+1))
	assert.ErrorIs(t, err, ErrInvalidLength)
}

func TestKeyingChangesOutput(t *testing.T) {
	msg := []byte("message")
	plain, err := Hash(msg, nil, Size)
	require.NoError(t, err)
	k1, err := Hash(msg, []byte("key one"), Size)
	require.NoError(t, err)
	k2, err := Hash(msg, []byte("key two"), Size)
	require.NoError(t, err)

	assert.NotEqual(t, plain, k1)
	assert.NotEqual(t, plain, k2)
	assert.NotEqual(t, k1, k2)

	empty, err := Hash(msg, []byte{}, Size)
	require.NoError(t, err)
	assert.Equal(t, plain, empty)
}

func TestStreamingChunks(t *testing.T) {
	data := sequence(BlockSize*5 + 17)
	key := []byte("streaming key")
	want, err := Hash(data, key, Size)
	require.NoError(t, err)

	for _, chunk := range []int{1, 7, 37, BlockSize - 1, BlockSize, BlockSize + 1, 2 * BlockSize, len(data)} {
		t.Run(fmt.Sprintf("chunk-%d", chunk), func(t *testing.T) {
			s, err := InitKeyed(Size, key)
			require.NoError(t, err)
			for i := 0; i < len(data); i += chunk {
				end := min(i+chunk, len(data))
				require.NoError(t, s.Update(data[i:end]))
			}
			got, err := s.Final(Size)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestStreamingBlockBoundaries(t *testing.T) {
	// Lengths around multiples of the block size exercise the ring.
	for _, n := range []int{0, 1, 127, 128, 129, 255, 256, 257, 383, 384, 385, 1024} {
		data := sequence(n)
		ref := blake2b.Sum512(data)

		s, err := Init(Size)
		require.NoError(t, err)
		for _, b := range data {
			require.NoError(t, s.Update([]byte{b}))
		}
		got, err := s.Final(Size)
		require.NoError(t, err)
		assert.Equal(t, ref[:], got, "len %d", n)
	}
}

func TestUpdateEmptyIsNoop(t *testing.T) {
	s, err := Init(Size)
	require.NoError(t, err)
	require.NoError(t, s.Update(nil))
	require.NoError(t, s.Update([]byte{}))
	lo, hi := s.Counter()
	assert.Zero(t, lo)
	assert.Zero(t, hi)

	got, err := s.Final(Size)
	require.NoError(t, err)
	want := Sum512(nil)
	assert.Equal(t, want[:], got)
}

func TestFinalizeOnce(t *testing.T) {
	s, err := Init(32)
	require.NoError(t, err)
	require.NoError(t, s.Update([]byte("once")))

	_, err = s.Final(64)
	require.ErrorIs(t, err, ErrInvalidLength)

	// A rejected length leaves the state usable.
	sum, err := s.Final(32)
	require.NoError(t, err)
	assert.Len(t, sum, 32)

	out, err := s.Final(32)
	assert.ErrorIs(t, err, ErrAlreadyFinalized)
	assert.Nil(t, out)

	assert.ErrorIs(t, s.Update([]byte("more")), ErrAlreadyFinalized)
	n, err := s.Write([]byte("more"))
	assert.ErrorIs(t, err, ErrAlreadyFinalized)
	assert.Zero(t, n)
}

// countCompressions swaps in an instrumented compression function for the
// duration of the test.
func countCompressions(t *testing.T) *int {
	t.Helper()
	var calls int
	orig := compressBlock
	compressBlock = func(h *[8]uint64, tc, f *[2]uint64, block *[BlockSize]byte) {
		calls++
		orig(h, tc, f, block)
	}
	t.Cleanup(func() { compressBlock = orig })
	return &calls
}

func TestCounterOneBlock(t *testing.T) {
	calls := countCompressions(t)

	s, err := Init(Size)
	require.NoError(t, err)
	require.NoError(t, s.Update(make([]byte, BlockSize)))
	assert.Zero(t, *calls, "a lone full block must wait for Final")

	_, err = s.Final(Size)
	require.NoError(t, err)
	assert.Equal(t, 1, *calls)
	lo, hi := s.Counter()
	assert.Equal(t, uint64(BlockSize), lo)
	assert.Zero(t, hi)
}

func TestCounterKeyedOneBlock(t *testing.T) {
	calls := countCompressions(t)

	s, err := InitKeyed(Size, []byte("key"))
	require.NoError(t, err)
	assert.Zero(t, *calls, "key block stays buffered until input arrives")

	require.NoError(t, s.Update(make([]byte, BlockSize)))
	assert.Zero(t, *calls, "key block and message both fit the ring")

	_, err = s.Final(Size)
	require.NoError(t, err)
	// Key block drained from the ring, message block compressed as last.
	assert.Equal(t, 2, *calls)
	lo, _ := s.Counter()
	assert.Equal(t, uint64(2*BlockSize), lo)
}

func TestCounterTracksLength(t *testing.T) {
	for _, n := range []int{0, 1, 200, 256, 257, 1000} {
		calls := 0
		orig := compressBlock
		compressBlock = func(h *[8]uint64, tc, f *[2]uint64, block *[BlockSize]byte) {
			calls++
			orig(h, tc, f, block)
		}

		s, err := Init(Size)
		require.NoError(t, err)
		require.NoError(t, s.Update(sequence(n)))
		_, err = s.Final(Size)
		compressBlock = orig
		require.NoError(t, err)

		lo, hi := s.Counter()
		assert.Equal(t, uint64(n), lo, "len %d", n)
		assert.Zero(t, hi)
		wantCalls := max(1, (n+BlockSize-1)/BlockSize)
		assert.Equal(t, wantCalls, calls, "len %d", n)
	}
}

func TestCounterCarry(t *testing.T) {
	s, err := Init(Size)
	require.NoError(t, err)
	s.t[0] = ^uint64(0) - 10
	s.compress(&s.buf[0], BlockSize)
	lo, hi := s.Counter()
	assert.Equal(t, uint64(BlockSize-11), lo)
	assert.Equal(t, uint64(1), hi)
}

func TestKeyWipedAfterFinal(t *testing.T) {
	key := bytes.Repeat([]byte{0xa5}, KeySize)
	s, err := InitKeyed(Size, key)
	require.NoError(t, err)
	require.NoError(t, s.Update([]byte("x")))
	_, err = s.Final(Size)
	require.NoError(t, err)

	var zero [BlockSize]byte
	assert.Equal(t, zero, s.buf[0])
	assert.Equal(t, zero, s.buf[1])
	// The caller's key is not ours to clear.
	assert.Equal(t, bytes.Repeat([]byte{0xa5}, KeySize), key)
}

func TestCodec(t *testing.T) {
	b := []byte{0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01, 0xff}
	assert.Equal(t, uint64(0x0102030405060708), load64(b))

	var out [8]byte
	store64(out[:], 0x0102030405060708)
	assert.Equal(t, b[:8], out[:])

	buf := []byte{1, 2, 3}
	wipe(buf)
	assert.Equal(t, []byte{0, 0, 0}, buf)
}

func TestAgainstXCrypto(t *testing.T) {
	for _, size := range []int{1, 20, 32, 48, 63, 64} {
		for _, keylen := range []int{0, 1, 32, 64} {
			key := sequence(keylen)
			data := sequence(3*BlockSize + 5)

			ref, err := blake2b.New(size, key)
			require.NoError(t, err)
			ref.Write(data)
			want := ref.Sum(nil)

			got, err := Hash(data, key, size)
			require.NoError(t, err)
			assert.Equal(t, want, got, "size %d keylen %d", size, keylen)
		}
	}
}

func FuzzHash(f *testing.F) {
	f.Add([]byte(nil), []byte(nil), uint8(64))
	f.Add([]byte("hello"), []byte(nil), uint8(32))
	f.Add([]byte("hello world, this is a longer test string for streaming blake2b"), []byte("key"), uint8(20))
	f.Add(make([]byte, BlockSize), []byte(nil), uint8(64))
	f.Add(make([]byte, BlockSize+1), sequence(KeySize), uint8(64))
	f.Add(make([]byte, BlockSize*3+50), sequence(7), uint8(1))

	f.Fuzz(func(t *testing.T, data, key []byte, size uint8) {
		outlen := int(size)%Size + 1
		if len(key) > KeySize {
			key = key[:KeySize]
		}

		ref, err := blake2b.New(outlen, key)
		require.NoError(t, err)
		ref.Write(data)
		want := ref.Sum(nil)

		got, err := Hash(data, key, outlen)
		require.NoError(t, err)
		require.Equal(t, want, got, "Hash mismatch for len=%d keylen=%d outlen=%d", len(data), len(key), outlen)

		s, err := InitKeyed(outlen, key)
		require.NoError(t, err)
		for _, b := range data {
			require.NoError(t, s.Update([]byte{b}))
		}
		gotS, err := s.Final(outlen)
		require.NoError(t, err)
		require.Equal(t, want, gotS, "byte-by-byte mismatch for len=%d", len(data))
	})
}

func BenchmarkSum512_500K(b *testing.B) {
	data := make([]byte, 500*1024)
	b.SetBytes(int64(len(data)))
	b.ReportAllocs()
	for b.Loop() {
		Sum512(data)
	}
}

// Comparison benchmarks against golang.org/x/crypto/blake2b.
var benchSizes = []int{32, 128, 256, 1024, 4096, 500 * 1024}

func benchName(size int) string {
	switch {
	case size >= 1024:
		return fmt.Sprintf("%dK", size/1024)
	default:
		return fmt.Sprintf("%dB", size)
	}
}

func BenchmarkSum512(b *testing.B) {
	for _, size := range benchSizes {
		data := sequence(size)
		b.Run(benchName(size), func(b *testing.B) {
			b.SetBytes(int64(size))
			b.ReportAllocs()
			for b.Loop() {
				Sum512(data)
			}
		})
	}
}

func BenchmarkXCrypto(b *testing.B) {
	for _, size := range benchSizes {
		data := sequence(size)
		b.Run(benchName(size), func(b *testing.B) {
			b.SetBytes(int64(size))
			b.ReportAllocs()
			for b.Loop() {
				blake2b.Sum512(data)
			}
		})
	}
}

func BenchmarkState(b *testing.B) {
	for _, size := range benchSizes {
		data := sequence(size)
		b.Run(benchName(size), func(b *testing.B) {
			b.SetBytes(int64(size))
			b.ReportAllocs()
			for b.Loop() {
				s, _ := Init(Size)
				s.Update(data)
				s.Final(Size)
			}
		})
	}
}
