package events

import (
	"encoding/base64"
	"encoding/binary"
	"math"

	"github.com/hiveforge/kernel/internal/kerrors"
)

// EncodeEmbedding packs v as little-endian float32 bytes and base64-
// encodes them for MemoryStoredPayload.Embedding — a dialect-neutral
// wire format so the payload round-trips through JSON regardless of
// which adapter eventually writes it.
func EncodeEmbedding(v []float32) string {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return base64.StdEncoding.EncodeToString(buf)
}

// DecodeEmbedding reverses EncodeEmbedding.
func DecodeEmbedding(s string) ([]float32, error) {
	if s == "" {
		return nil, kerrors.New(kerrors.Corruption, "memory_stored event carries no embedding")
	}
	buf, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.Corruption, "decode embedding base64", err)
	}
	if len(buf)%4 != 0 {
		return nil, kerrors.New(kerrors.Corruption, "embedding byte length is not a multiple of 4")
	}
	out := make([]float32, len(buf)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return out, nil
}
