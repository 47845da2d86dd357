package audio

// EncodePCM16 converts normalized float32 samples to little-endian 16-bit PCM.
// Samples are clamped to [-1, 1]. Negative values scale by 32768 and
// non-negative values by 32767, so -1.0 maps to -32768 and 1.0 to 32767
// without overflow. This scaling is the wire contract of the live endpoint;
// do not symmetrize it.
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		var v int16
		if s < 0 {
			v = int16(s * 32768)
		} else {
			v = int16(s * 32767)
		}
		out[i*2] = byte(v)
		out[i*2+1] = byte(v >> 8)
	}
	return out
}

// DecodePCM16 converts little-endian 16-bit PCM to normalized float32 samples,
// dividing by 32768. A trailing odd byte is ignored.
func DecodePCM16(data []byte) []float32 {
	n := len(data) / 2
	out := make([]float32, n)
	for i := range n {
		v := int16(data[i*2]) | int16(data[i*2+1])<<8
		out[i] = float32(v) / 32768
	}
	return out
}
