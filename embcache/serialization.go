package embcache

import (
	"encoding/binary"
	"math"
)

// Key prefix for cached vectors.
const vectorPrefix = "embvec"

// makeVectorKey generates a key scoped by model and content hash.
func makeVectorKey(model, hash string) []byte {
	prefix := vectorPrefix + ":"
	totalSize := len(prefix) + len(model) + 1 + len(hash)
	buf := make([]byte, totalSize)
	offset := copy(buf, prefix)
	offset += copy(buf[offset:], model)
	buf[offset] = ':'
	offset++
	copy(buf[offset:], hash)
	return buf
}

// marshalVector encodes a vector as consecutive little-endian float32 frames.
func marshalVector(vector []float32) []byte {
	buf := make([]byte, 4*len(vector))
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// unmarshalVector decodes a vector written by marshalVector.
func unmarshalVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, ErrMalformedVector
	}
	vector := make([]float32, len(data)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vector, nil
}
