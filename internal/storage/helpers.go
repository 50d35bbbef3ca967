package storage

import (
	"encoding/binary"
	"math"
)

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

// encodePower packs a power spectrum into a little-endian float32 blob.
// Single precision halves the storage cost and is well beyond the dynamic
// range the detector needs.
func encodePower(power []float64) []byte {
	buf := make([]byte, 4*len(power))
	for i, p := range power {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(float32(p)))
	}
	return buf
}

// decodePower unpacks a float32 blob back into a power spectrum.
func decodePower(buf []byte) []float64 {
	power := make([]float64, len(buf)/4)
	for i := range power {
		power[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:])))
	}
	return power
}
