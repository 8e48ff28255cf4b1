package hashing

import (
	"hash/fnv"
	"testing"
	"unicode/utf16"

	"github.com/stretchr/testify/assert"
)

// #region helpers
// referenceHash is the textbook loop over UTF-16 code units.
func referenceHash(s string) uint32 {
	h := uint32(0x811c9dc5)
	for _, u := range utf16.Encode([]rune(s)) {
		h ^= uint32(u)
		h *= 0x01000193
	}
	return h
}

// #endregion helpers

// #region hash-tests
func TestHash32_EmptyIsOffsetBasis(t *testing.T) {
	assert.Equal(t, uint32(2166136261), Hash32(""))
	assert.Equal(t, 5, Index("", 15))
}

func TestHash32_MatchesStdlibFNVForASCII(t *testing.T) {
	for _, s := range []string{"a", "A=com.example.mail", "A#B=x#y", "T=3", "MP=1"} {
		f := fnv.New32a()
		f.Write([]byte(s))
		assert.Equal(t, f.Sum32(), Hash32(s), "string %q", s)
	}
}

func TestHash32_NonASCIIUsesUTF16Units(t *testing.T) {
	for _, s := range []string{"é", "café", "日本語", "emoji-😀", "A=包名"} {
		assert.Equal(t, referenceHash(s), Hash32(s), "string %q", s)
	}
}

func TestHash32_Deterministic(t *testing.T) {
	s := "A#B=com.android.chrome#com.whatsapp"
	first := Hash32(s)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, Hash32(s))
	}
}

func TestIndex_InRange(t *testing.T) {
	mask := Mask(8)
	assert.Equal(t, uint32(255), mask)
	for _, s := range []string{"", "a", "zzz", "A=pkg", "B=other.pkg"} {
		idx := Index(s, mask)
		assert.GreaterOrEqual(t, idx, 0)
		assert.Less(t, idx, 256)
	}
}

// #endregion hash-tests

// #region hasher-tests
func TestHasher_PartsEqualConcatenation(t *testing.T) {
	var h Hasher
	h.Reset()
	h.WriteString("A#T=")
	h.WriteString("com.app")
	h.WriteString("#")
	h.WriteInt(3)
	assert.Equal(t, Hash32("A#T=com.app#3"), h.Sum32())
}

func TestHasher_WriteInt(t *testing.T) {
	cases := map[int]string{0: "0", 7: "7", 42: "42", -5: "-5", 1234567: "1234567"}
	for n, s := range cases {
		var h Hasher
		h.Reset()
		h.WriteInt(n)
		assert.Equal(t, Hash32(s), h.Sum32(), "int %d", n)
	}
}

func TestHasher_WriteBool(t *testing.T) {
	var h Hasher
	h.Reset()
	h.WriteString("MP=")
	h.WriteBool(true)
	assert.Equal(t, Hash32("MP=1"), h.Sum32())

	h.Reset()
	h.WriteString("MP=")
	h.WriteBool(false)
	assert.Equal(t, Hash32("MP=0"), h.Sum32())
}

// #endregion hasher-tests
