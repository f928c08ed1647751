package audio

import (
	"encoding/binary"
	"math"
)

// Level returns the loudness of a chunk of signed 16-bit little-endian PCM
// samples as 20*log10(rms). A trailing odd byte is ignored.
//
// Silence (rms = 0) and empty chunks yield -Inf. Callers comparing against a
// threshold must treat non-finite values as below it.
func Level(chunk []byte) float64 {
	n := len(chunk) / 2
	if n == 0 {
		return math.Inf(-1)
	}

	var sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(chunk[2*i:])))
		sum += s * s
	}

	rms := math.Sqrt(sum / float64(n))
	return 20 * math.Log10(rms)
}
