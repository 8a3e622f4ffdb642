package vector

import (
	"encoding/binary"
	"math"
)

// Codec converts embedding vectors to and from their fixed-width binary form
// (little-endian float32) and validates vectors at the index boundary.
type Codec struct {
	dimensions int
}

// NewCodec creates a codec for vectors of the given dimensionality.
func NewCodec(dimensions int) (*Codec, error) {
	if dimensions <= 0 {
		return nil, &InvalidDimensionError{Dimension: dimensions}
	}
	return &Codec{dimensions: dimensions}, nil
}

// Dimensions returns the configured dimensionality.
func (c *Codec) Dimensions() int {
	return c.dimensions
}

// EncodedSize returns the byte length of one encoded vector.
func (c *Codec) EncodedSize() int {
	return c.dimensions * 4
}

// Validate rejects vectors of the wrong length or containing NaN/Inf
// components. Non-finite values would poison distance computations and must
// never enter the index.
func (c *Codec) Validate(v []float32) error {
	if len(v) != c.dimensions {
		return &DimensionMismatchError{Expected: c.dimensions, Actual: len(v)}
	}
	for _, x := range v {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return ErrNonFinite
		}
	}
	return nil
}

// Encode serializes v as little-endian float32. The round trip through
// Decode is bit-exact.
func (c *Codec) Encode(v []float32) []byte {
	out := make([]byte, len(v)*4)
	for i, x := range v {
		binary.LittleEndian.PutUint32(out[i*4:(i+1)*4], math.Float32bits(x))
	}
	return out
}

// Decode deserializes a vector produced by Encode.
func (c *Codec) Decode(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4 : (i+1)*4]))
	}
	return out
}
