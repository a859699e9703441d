package vectorstore

import (
	"encoding/binary"
	"math"
)

// encodeVector/decodeVector store a []float32 as a flat little-endian byte
// blob, avoiding gob's per-value overhead for what is otherwise a tight
// numeric array (the teacher's session store uses JSON for structured rows;
// here the payload column already carries JSON so the vector itself is kept
// binary for size).
func encodeVector(vec []float32) []byte {
	buf := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}
