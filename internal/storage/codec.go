package storage

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Vectors are the variable-length parts of a Record, stored as a single
// MessagePack blob next to the scalar columns.
type Vectors struct {
	CpA []float64 `msgpack:"cpa"`
	NA  []int     `msgpack:"na"`
	TW  []float64 `msgpack:"tw"`
	CpW []float64 `msgpack:"cpw"`
}

// EncodeVectors packs the vector fields of r.
func EncodeVectors(r Record) ([]byte, error) {
	b, err := msgpack.Marshal(Vectors{CpA: r.CpA, NA: r.NA, TW: r.TW, CpW: r.CpW})
	if err != nil {
		return nil, fmt.Errorf("encoding result vectors: %w", err)
	}
	return b, nil
}

// DecodeVectors unpacks a blob written by EncodeVectors into r.
func DecodeVectors(b []byte, r *Record) error {
	var v Vectors
	if err := msgpack.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("decoding result vectors: %w", err)
	}
	r.CpA, r.NA, r.TW, r.CpW = v.CpA, v.NA, v.TW, v.CpW
	return nil
}
