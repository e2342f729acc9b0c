package vector

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Pack encodes a vector as little-endian float32 bytes. All vector fields in
// the store go through this single routine so the byte layout always matches
// the index's declared datatype and dimension.
func Pack(v []float32) []byte {
	out := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(out[i*4:(i+1)*4], math.Float32bits(f))
	}
	return out
}

// Unpack decodes little-endian float32 bytes produced by Pack.
func Unpack(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("packed vector length %d is not a multiple of 4", len(b))
	}
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4 : (i+1)*4]))
	}
	return out, nil
}
