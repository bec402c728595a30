package experiment

import (
	"encoding/binary"
	"math/rand/v2"

	"github.com/cespare/xxhash/v2"
)

// DeriveSeed mixes base with a label and an index into an independent seed,
// so every sweep point gets its own stream while the sweep as a whole stays
// reproducible from one base seed.
func DeriveSeed(base uint64, label string, index int) uint64 {
	d := xxhash.New()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], base)
	_, _ = d.Write(buf[:])
	_, _ = d.WriteString(label)
	binary.LittleEndian.PutUint64(buf[:], uint64(index))
	_, _ = d.Write(buf[:])
	return d.Sum64()
}

// NewRand returns a PCG-backed generator for seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
