package state

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/danielpatrickdp/nextapp/go-controller/internal/model"
)

// #region model-format
const (
	modelMagic   uint32 = 0x4E41504C // "NAPL"
	modelVersion uint32 = 1

	// refuse to allocate for absurd counts in a corrupt header
	maxWeightCount = 1 << 24
)

// #endregion model-format

// #region model-store
// ModelStore reads and writes one logistic model file:
//
//	magic:u32 version:u32 hashDimPow2:i32 bias:f32 count:i32 count*f32
//
// All fields are big-endian.
type ModelStore struct {
	path        string
	hashDimPow2 int
}

// NewModelStore binds a store to path for models of the given dimension.
func NewModelStore(path string, hashDimPow2 int) *ModelStore {
	return &ModelStore{path: path, hashDimPow2: hashDimPow2}
}

// Path returns the file path.
func (s *ModelStore) Path() string { return s.path }

// #endregion model-store

// #region model-write
// Write publishes snap atomically.
func (s *ModelStore) Write(snap model.Snapshot) error {
	if snap.HashDimPow2 != s.hashDimPow2 {
		return fmt.Errorf("write %s: pow2 %d, store wants %d: %w", s.path, snap.HashDimPow2, s.hashDimPow2, model.ErrDimMismatch)
	}
	return writeAtomic(s.path, encodeModel(snap))
}

func encodeModel(snap model.Snapshot) []byte {
	buf := make([]byte, 0, 20+4*len(snap.Weights))
	buf = binary.BigEndian.AppendUint32(buf, modelMagic)
	buf = binary.BigEndian.AppendUint32(buf, modelVersion)
	buf = binary.BigEndian.AppendUint32(buf, uint32(int32(snap.HashDimPow2)))
	buf = binary.BigEndian.AppendUint32(buf, math.Float32bits(snap.Bias))
	buf = binary.BigEndian.AppendUint32(buf, uint32(int32(len(snap.Weights))))
	for _, w := range snap.Weights {
		buf = binary.BigEndian.AppendUint32(buf, math.Float32bits(w))
	}
	return buf
}

// #endregion model-write

// #region model-read
// Read returns the stored snapshot, or nil if the file is missing, corrupt,
// from another format version, or sized for a different dimension.
func (s *ModelStore) Read() *model.Snapshot {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil
	}
	snap, err := decodeModel(data)
	if err != nil {
		return nil
	}
	if snap.HashDimPow2 != s.hashDimPow2 || len(snap.Weights) != 1<<uint(s.hashDimPow2) {
		return nil
	}
	return snap
}

func decodeModel(data []byte) (*model.Snapshot, error) {
	r := bytes.NewReader(data)
	var hdr struct {
		Magic   uint32
		Version uint32
		Pow2    int32
		Bias    float32
		Count   int32
	}
	if err := binary.Read(r, binary.BigEndian, &hdr); err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	if hdr.Magic != modelMagic {
		return nil, fmt.Errorf("bad magic %#x", hdr.Magic)
	}
	if hdr.Version != modelVersion {
		return nil, fmt.Errorf("unsupported version %d", hdr.Version)
	}
	if hdr.Count < 0 || hdr.Count > maxWeightCount {
		return nil, fmt.Errorf("bad weight count %d", hdr.Count)
	}

	weights := make([]float32, hdr.Count)
	if err := binary.Read(r, binary.BigEndian, weights); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("weights: %w", err)
	}
	return &model.Snapshot{HashDimPow2: int(hdr.Pow2), Bias: hdr.Bias, Weights: weights}, nil
}

// Load restores m from disk. It returns ErrNoModel when Read finds nothing
// usable; m is then left unchanged.
func (s *ModelStore) Load(m *model.Logistic) error {
	snap := s.Read()
	if snap == nil {
		return fmt.Errorf("load %s: %w", s.path, ErrNoModel)
	}
	if err := m.Restore(snap.Bias, snap.Weights); err != nil {
		return fmt.Errorf("load %s: %w", s.path, err)
	}
	return nil
}

// #endregion model-read
