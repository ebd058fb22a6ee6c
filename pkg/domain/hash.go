package domain

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// hasher accumulates fields into an xxhash digest with field separators so that
// ("ab","c") and ("a","bc") hash differently.
type hasher struct {
	d *xxhash.Digest
}

func newHasher(kind string) *hasher {
	h := &hasher{d: xxhash.New()}
	h.str(kind)
	return h
}

func (h *hasher) str(s string) {
	_, _ = h.d.WriteString(s)
	_, _ = h.d.Write([]byte{0})
}

func (h *hasher) u64(v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, _ = h.d.Write(buf[:])
}

func (h *hasher) sum() uint64 {
	return h.d.Sum64()
}
