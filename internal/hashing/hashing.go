// Package hashing maps string features into a fixed power-of-two index space.
//
// The hash is 32-bit FNV-1a over UTF-16 code units. Persisted model weights
// are addressed by these indices, so the function must never change.
package hashing

import (
	"unicode/utf16"
	"unicode/utf8"
)

// #region constants
const (
	offset32 uint32 = 0x811c9dc5
	prime32  uint32 = 0x01000193
)

// #endregion constants

// #region hash
// Hash32 returns the FNV-1a hash of the UTF-16 code units of s.
func Hash32(s string) uint32 {
	var h Hasher
	h.Reset()
	h.WriteString(s)
	return h.Sum32()
}

// Index returns Hash32(feature) & mask. mask must be dim-1 for a power-of-two dim.
func Index(feature string, mask uint32) int {
	return int(Hash32(feature) & mask)
}

// Mask returns dim-1 for dim = 2^pow2.
func Mask(pow2 int) uint32 {
	return uint32(1)<<uint(pow2) - 1
}

// #endregion hash

// #region hasher
// Hasher accumulates a hash over several parts without building the
// concatenated key. Writing "A#B=", a, "#", b yields Hash32("A#B="+a+"#"+b).
type Hasher struct {
	h uint32
}

// Reset starts a new key.
func (h *Hasher) Reset() {
	h.h = offset32
}

func (h *Hasher) unit(u uint16) {
	h.h ^= uint32(u)
	h.h *= prime32
}

// WriteString hashes s as UTF-16. Invalid UTF-8 bytes hash as U+FFFD.
func (h *Hasher) WriteString(s string) {
	for i := 0; i < len(s); {
		c := s[i]
		if c < utf8.RuneSelf {
			h.unit(uint16(c))
			i++
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		i += size
		if r >= 0x10000 {
			hi, lo := utf16.EncodeRune(r)
			h.unit(uint16(hi))
			h.unit(uint16(lo))
			continue
		}
		h.unit(uint16(r))
	}
}

// WriteInt hashes the decimal form of n.
func (h *Hasher) WriteInt(n int) {
	var buf [20]byte
	i := len(buf)
	neg := n < 0
	u := uint64(n)
	if neg {
		u = uint64(-n)
	}
	for {
		i--
		buf[i] = byte('0' + u%10)
		u /= 10
		if u == 0 {
			break
		}
	}
	if neg {
		h.unit('-')
	}
	for ; i < len(buf); i++ {
		h.unit(uint16(buf[i]))
	}
}

// WriteBool hashes "1" or "0".
func (h *Hasher) WriteBool(b bool) {
	if b {
		h.unit('1')
		return
	}
	h.unit('0')
}

// Sum32 returns the hash of everything written since Reset.
func (h *Hasher) Sum32() uint32 {
	return h.h
}

// Index returns Sum32() & mask.
func (h *Hasher) Index(mask uint32) int {
	return int(h.h & mask)
}

// #endregion hasher
