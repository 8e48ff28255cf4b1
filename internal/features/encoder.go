// Package features turns (app, context) tuples into hashed feature indices.
//
// Encoders write into a reusable buffer and return the front-packed slice of
// it. The slice is valid only until the next Encode call on the same encoder.
// Duplicate indices are kept: each occurrence counts once in scoring and
// training.
package features

import "github.com/danielpatrickdp/nextapp/go-controller/internal/hashing"

// #region capacities
const (
	GatingCapacity  = 16
	RankingCapacity = 24
)

// #endregion capacities

// #region gating
// GatingEncoder builds features for P(next app exists | A, ctx).
type GatingEncoder struct {
	buf  []int
	mask uint32
	h    hashing.Hasher
}

// NewGatingEncoder creates an encoder for a 2^hashDimPow2 index space.
func NewGatingEncoder(hashDimPow2 int) *GatingEncoder {
	return &GatingEncoder{buf: make([]int, GatingCapacity), mask: hashing.Mask(hashDimPow2)}
}

// Encode writes at most 7 indices: app, time, reason, optional previous
// foreground and its cross with the app, battery bucket, max-power flag.
func (e *GatingEncoder) Encode(app string, ctx Context) []int {
	n := 0
	h := &e.h

	h.Reset()
	h.WriteString("A=")
	h.WriteString(app)
	e.buf[n] = h.Index(e.mask)
	n++

	h.Reset()
	h.WriteString("T=")
	h.WriteInt(ctx.TimeBucket)
	e.buf[n] = h.Index(e.mask)
	n++

	h.Reset()
	h.WriteString("R=")
	h.WriteInt(int(ctx.AllowReason))
	e.buf[n] = h.Index(e.mask)
	n++

	if ctx.PrevForeground != "" {
		h.Reset()
		h.WriteString("P=")
		h.WriteString(ctx.PrevForeground)
		e.buf[n] = h.Index(e.mask)
		n++

		h.Reset()
		h.WriteString("A#P=")
		h.WriteString(app)
		h.WriteString("#")
		h.WriteString(ctx.PrevForeground)
		e.buf[n] = h.Index(e.mask)
		n++
	}

	h.Reset()
	h.WriteString("BB=")
	h.WriteInt(ctx.BatteryBucket)
	e.buf[n] = h.Index(e.mask)
	n++

	h.Reset()
	h.WriteString("MP=")
	h.WriteBool(ctx.MaxPowerMode)
	e.buf[n] = h.Index(e.mask)
	n++

	return e.buf[:n]
}

// #endregion gating

// #region ranking
// RankingEncoder builds features for P(B | A, ctx).
type RankingEncoder struct {
	buf  []int
	mask uint32
	h    hashing.Hasher
}

// NewRankingEncoder creates an encoder for a 2^hashDimPow2 index space.
func NewRankingEncoder(hashDimPow2 int) *RankingEncoder {
	return &RankingEncoder{buf: make([]int, RankingCapacity), mask: hashing.Mask(hashDimPow2)}
}

// pair hashes prefix + x + "#" + y.
func (e *RankingEncoder) pair(prefix, x, y string) int {
	e.h.Reset()
	e.h.WriteString(prefix)
	e.h.WriteString(x)
	e.h.WriteString("#")
	e.h.WriteString(y)
	return e.h.Index(e.mask)
}

// pairInt hashes prefix + x + "#" + n.
func (e *RankingEncoder) pairInt(prefix, x string, n int) int {
	e.h.Reset()
	e.h.WriteString(prefix)
	e.h.WriteString(x)
	e.h.WriteString("#")
	e.h.WriteInt(n)
	return e.h.Index(e.mask)
}

func (e *RankingEncoder) single(prefix, x string) int {
	e.h.Reset()
	e.h.WriteString(prefix)
	e.h.WriteString(x)
	return e.h.Index(e.mask)
}

func (e *RankingEncoder) singleInt(prefix string, n int) int {
	e.h.Reset()
	e.h.WriteString(prefix)
	e.h.WriteInt(n)
	return e.h.Index(e.mask)
}

// Encode writes at most 11 indices for the candidate transition a -> b.
func (e *RankingEncoder) Encode(a, b string, ctx Context) []int {
	reason := int(ctx.AllowReason)
	n := 0
	put := func(idx int) {
		e.buf[n] = idx
		n++
	}

	// identity; A#B is the strongest signal
	put(e.single("A=", a))
	put(e.single("B=", b))
	put(e.pair("A#B=", a, b))

	put(e.singleInt("T=", ctx.TimeBucket))
	put(e.singleInt("R=", reason))

	put(e.pairInt("A#T=", a, ctx.TimeBucket))
	put(e.pairInt("B#T=", b, ctx.TimeBucket))
	put(e.pairInt("A#R=", a, reason))
	put(e.pairInt("B#R=", b, reason))

	if ctx.PrevForeground != "" {
		put(e.single("P=", ctx.PrevForeground))
		put(e.pair("P#B=", ctx.PrevForeground, b))
	}

	return e.buf[:n]
}

// #endregion ranking
