package audio

import "encoding/binary"

// BytesToSamples reinterprets raw PCM16LE bytes as int16 samples.
// A trailing odd byte is dropped.
func BytesToSamples(data []byte) []int16 {
	n := len(data) / 2
	samples := make([]int16, n)
	for i := 0; i < n; i++ {
		samples[i] = int16(binary.LittleEndian.Uint16(data[2*i:]))
	}
	return samples
}

// SamplesToBytes encodes int16 samples as raw PCM16LE bytes.
func SamplesToBytes(samples []int16) []byte {
	data := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[2*i:], uint16(s))
	}
	return data
}

// SplitChunks slices pcm into ordered chunks of at most size bytes. The
// final chunk carries the remainder; empty input yields no chunks. Chunks
// alias the input, callers must not mutate pcm afterwards.
func SplitChunks(pcm []byte, size int) [][]byte {
	if size <= 0 || len(pcm) == 0 {
		if len(pcm) == 0 {
			return nil
		}
		return [][]byte{pcm}
	}
	chunks := make([][]byte, 0, (len(pcm)+size-1)/size)
	for off := 0; off < len(pcm); off += size {
		end := off + size
		if end > len(pcm) {
			end = len(pcm)
		}
		chunks = append(chunks, pcm[off:end])
	}
	return chunks
}
