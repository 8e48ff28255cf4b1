package state

import (
	"errors"
	"fmt"
	"math"
	"os"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/danielpatrickdp/nextapp/go-controller/internal/markov"
)

// #region markov-wire
// Wire layout (protobuf):
//
//	message MarkovModel { uint32 version = 1; uint32 top_m = 2; double decay = 3; repeated Row rows = 4; }
//	message Row         { string src = 1; repeated Transition transitions = 2; }
//	message Transition  { string dst = 1; double weight = 2; }
const markovVersion = 1

var errMalformed = errors.New("malformed markov message")

// #endregion markov-wire

// #region markov-store
// MarkovStore reads and writes the Markov table file.
type MarkovStore struct {
	path string
}

// NewMarkovStore binds a store to path.
func NewMarkovStore(path string) *MarkovStore {
	return &MarkovStore{path: path}
}

// Path returns the file path.
func (s *MarkovStore) Path() string { return s.path }

// Write publishes snap atomically.
func (s *MarkovStore) Write(snap markov.Snapshot) error {
	return writeAtomic(s.path, encodeMarkov(snap))
}

// Read returns the stored snapshot, or nil on any fault.
func (s *MarkovStore) Read() *markov.Snapshot {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil
	}
	snap, err := decodeMarkov(data)
	if err != nil {
		return nil
	}
	return snap
}

// Load imports the stored table into t and returns the transitions loaded.
// t is left unchanged on ErrNoModel.
func (s *MarkovStore) Load(t *markov.Table) (int, error) {
	snap := s.Read()
	if snap == nil {
		return 0, fmt.Errorf("load %s: %w", s.path, ErrNoModel)
	}
	return t.Import(*snap), nil
}

// #endregion markov-store

// #region markov-encode
func encodeMarkov(snap markov.Snapshot) []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, markovVersion)
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(uint32(snap.TopM)))
	b = protowire.AppendTag(b, 3, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, math.Float64bits(snap.Decay))
	for _, r := range snap.Rows {
		b = protowire.AppendTag(b, 4, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeRow(r))
	}
	return b
}

func encodeRow(r markov.Row) []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendString(b, r.Src)
	for _, tr := range r.Transitions {
		var tb []byte
		tb = protowire.AppendTag(tb, 1, protowire.BytesType)
		tb = protowire.AppendString(tb, tr.Dst)
		tb = protowire.AppendTag(tb, 2, protowire.Fixed64Type)
		tb = protowire.AppendFixed64(tb, math.Float64bits(tr.Weight))

		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, tb)
	}
	return b
}

// #endregion markov-encode

// #region markov-decode
// walkFields calls fn for every field in b. fn returns the bytes consumed for
// fields it handles, or 0 to have the field skipped.
func walkFields(b []byte, fn func(num protowire.Number, typ protowire.Type, b []byte) int) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		m := fn(num, typ, b)
		if m < 0 {
			return errMalformed
		}
		if m == 0 {
			m = protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return fmt.Errorf("field %d: %w", num, protowire.ParseError(m))
			}
		}
		b = b[m:]
	}
	return nil
}

func decodeMarkov(data []byte) (*markov.Snapshot, error) {
	snap := &markov.Snapshot{}
	var version uint64
	err := walkFields(data, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch {
		case num == 1 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			version = v
			return n
		case num == 2 && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			snap.TopM = int(uint32(v))
			return n
		case num == 3 && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			snap.Decay = math.Float64frombits(v)
			return n
		case num == 4 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n
			}
			row, err := decodeRow(v)
			if err != nil {
				return -1
			}
			snap.Rows = append(snap.Rows, row)
			return n
		}
		return 0
	})
	if err != nil {
		return nil, err
	}
	if version != markovVersion {
		return nil, fmt.Errorf("unsupported markov version %d", version)
	}
	return snap, nil
}

func decodeRow(data []byte) (markov.Row, error) {
	var row markov.Row
	err := walkFields(data, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			row.Src = v
			return n
		case num == 2 && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n
			}
			tr, err := decodeTransition(v)
			if err != nil {
				return -1
			}
			row.Transitions = append(row.Transitions, tr)
			return n
		}
		return 0
	})
	return row, err
}

func decodeTransition(data []byte) (markov.Transition, error) {
	var tr markov.Transition
	err := walkFields(data, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch {
		case num == 1 && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			tr.Dst = v
			return n
		case num == 2 && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			tr.Weight = math.Float64frombits(v)
			return n
		}
		return 0
	})
	return tr, err
}

// #endregion markov-decode
