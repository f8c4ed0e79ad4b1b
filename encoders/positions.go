package encoders

import (
	"bytes"
	"fmt"
)

// EncodePositions writes positions (already sorted ascending, as produced
// by the analysis pipeline) as a length-prefixed run of delta-varints: a
// varint count, then the first position as-is, then each subsequent value
// as the varint delta from its predecessor. Generalizes DeltaEncoder's
// uint16 delta scheme to the uint32 positions stored per posting
// (spec.md §4.4).
func EncodePositions(positions []uint32) []byte {
	var buf bytes.Buffer
	writeVarint(&buf, uint64(len(positions)))
	var prev uint32
	for i, p := range positions {
		if i == 0 {
			writeVarint(&buf, uint64(p))
		} else {
			writeVarint(&buf, uint64(p-prev))
		}
		prev = p
	}
	return buf.Bytes()
}

// DecodePositions reverses EncodePositions.
func DecodePositions(data []byte) ([]uint32, error) {
	r := bytes.NewReader(data)
	count, err := readVarint(r)
	if err != nil {
		return nil, fmt.Errorf("encoders: decode position count: %w", err)
	}
	positions := make([]uint32, count)
	var prev uint32
	for i := uint64(0); i < count; i++ {
		v, err := readVarint(r)
		if err != nil {
			return nil, fmt.Errorf("encoders: decode position %d: %w", i, err)
		}
		if i == 0 {
			prev = uint32(v)
		} else {
			prev = prev + uint32(v)
		}
		positions[i] = prev
	}
	return positions, nil
}
