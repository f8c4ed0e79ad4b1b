// Package bitmap implements a Roaring Bitmap: a compressed, sorted set of
// uint32 values split into 16-bit-keyed containers, each either a sorted
// array (sparse) or a fixed 64K-bit bitmap (dense). Used for a segment's
// live-docs set and for each posting list's ordinal set (spec.md §3, §4.4).
//
// Grounded on the teacher's weaviate/storage/roaring.go; renamed to its own
// package because the new storage package now owns segment/KV layout
// instead of an in-memory document store. Array containers now delta-encode
// their sorted values (see arrayDeltaMinLen), resolving a TODO the teacher
// left unaddressed in favor of always using PlainEncoder.
package bitmap

import (
	"encoding/binary"
	"fmt"
	"io"
	"math/bits"
	"sort"

	"github.com/scampagna/ftsearch/encoders"
)

// ConversionThreshold is the cardinality above which an ArrayContainer is
// converted to a BitmapContainer.
const ConversionThreshold = 4096

// ContainerType identifies the on-disk container implementation.
type ContainerType uint8

const (
	ArrayContainerType ContainerType = iota + 1
	BitmapContainerType
)

// Container is the interface implemented by both container variants.
type Container interface {
	Add(value uint16)
	Contains(value uint16) bool
	Cardinality() int
	Union(other Container) Container
	Intersection(other Container) Container
	Serialize(io.Writer) error
	Deserialize(io.Reader) error
}

// ArrayContainer stores values as a sorted array, used while cardinality
// stays below ConversionThreshold.
type ArrayContainer struct {
	values      []uint16
	cardinality int
	encoder     encoders.ArrayEncoderDecoder
}

// arrayDeltaMinLen is the cardinality at or below which an ArrayContainer
// falls back to plain encoding instead of delta-varint: at these sizes the
// varint overhead isn't worth it. Resolves the minLen choice the teacher's
// version left as a TODO.
const arrayDeltaMinLen = 128

// NewArrayContainer returns an empty ArrayContainer. Values are added in
// sorted order (see Add), so delta encoding is the natural fit for
// serialization.
func NewArrayContainer() *ArrayContainer {
	return &ArrayContainer{encoder: encoders.NewDeltaEncoder(arrayDeltaMinLen)}
}

// Add inserts value, maintaining sort order; a no-op if already present.
func (ac *ArrayContainer) Add(value uint16) {
	index := sort.Search(len(ac.values), func(i int) bool { return ac.values[i] >= value })
	if index < len(ac.values) && ac.values[index] == value {
		return
	}
	ac.values = append(ac.values, 0)
	copy(ac.values[index+1:], ac.values[index:])
	ac.values[index] = value
	ac.cardinality++
}

// Contains reports whether value is present.
func (ac *ArrayContainer) Contains(value uint16) bool {
	index := sort.Search(len(ac.values), func(i int) bool { return ac.values[i] >= value })
	return index < len(ac.values) && ac.values[index] == value
}

// Cardinality returns the number of values in the container.
func (ac *ArrayContainer) Cardinality() int { return ac.cardinality }

// Serialize writes the container to w.
func (ac *ArrayContainer) Serialize(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, uint16(len(ac.values))); err != nil {
		return fmt.Errorf("bitmap: write array length: %w", err)
	}
	if err := ac.encoder.Encode(ac.values, w); err != nil {
		return fmt.Errorf("bitmap: encode array: %w", err)
	}
	return nil
}

// Deserialize reads the container from r.
func (ac *ArrayContainer) Deserialize(r io.Reader) error {
	var length uint16
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return fmt.Errorf("bitmap: read array length: %w", err)
	}
	values, err := ac.encoder.Decode(r, int(length))
	if err != nil {
		return fmt.Errorf("bitmap: decode array: %w", err)
	}
	ac.values = values
	ac.cardinality = len(values)
	return nil
}

// Rank returns the number of values <= value.
func (ac *ArrayContainer) Rank(value uint16) int {
	return sort.Search(len(ac.values), func(i int) bool { return ac.values[i] > value })
}

// Union returns a container holding the union of ac and other.
func (ac *ArrayContainer) Union(other Container) Container {
	switch o := other.(type) {
	case *ArrayContainer:
		result := NewArrayContainer()
		i, j := 0, 0
		for i < len(ac.values) && j < len(o.values) {
			switch {
			case ac.values[i] < o.values[j]:
				result.Add(ac.values[i])
				i++
			case ac.values[i] > o.values[j]:
				result.Add(o.values[j])
				j++
			default:
				result.Add(ac.values[i])
				i++
				j++
			}
		}
		for ; i < len(ac.values); i++ {
			result.Add(ac.values[i])
		}
		for ; j < len(o.values); j++ {
			result.Add(o.values[j])
		}
		return result
	case *BitmapContainer:
		return o.Union(ac)
	}
	return nil
}

// Intersection returns a container holding the intersection of ac and other.
func (ac *ArrayContainer) Intersection(other Container) Container {
	switch o := other.(type) {
	case *ArrayContainer:
		result := NewArrayContainer()
		i, j := 0, 0
		for i < len(ac.values) && j < len(o.values) {
			switch {
			case ac.values[i] < o.values[j]:
				i++
			case ac.values[i] > o.values[j]:
				j++
			default:
				result.Add(ac.values[i])
				i++
				j++
			}
		}
		return result
	case *BitmapContainer:
		return o.Intersection(ac)
	}
	return nil
}

// ToBitmapContainer converts ac to a BitmapContainer.
func (ac *ArrayContainer) ToBitmapContainer() *BitmapContainer {
	bc := NewBitmapContainer()
	for _, v := range ac.values {
		bc.Add(v)
	}
	return bc
}

// BitmapContainer stores values as a fixed 1024-word (65536-bit) bitmap,
// used once a container's cardinality exceeds ConversionThreshold.
type BitmapContainer struct {
	Bitmap      []uint64
	cardinality int
}

// NewBitmapContainer returns an empty, fully-allocated BitmapContainer.
func NewBitmapContainer() *BitmapContainer {
	return &BitmapContainer{Bitmap: make([]uint64, 1024)}
}

// Add sets the bit for value.
func (bc *BitmapContainer) Add(value uint16) {
	word := int(value / 64)
	bit := uint(value % 64)
	if word >= len(bc.Bitmap) {
		newBitmap := make([]uint64, word+1)
		copy(newBitmap, bc.Bitmap)
		bc.Bitmap = newBitmap
	}
	if bc.Bitmap[word]&(1<<bit) == 0 {
		bc.Bitmap[word] |= 1 << bit
		bc.cardinality++
	}
}

// Contains reports whether the bit for value is set.
func (bc *BitmapContainer) Contains(value uint16) bool {
	word := value / 64
	bit := value % 64
	if int(word) >= len(bc.Bitmap) {
		return false
	}
	return bc.Bitmap[word]&(1<<bit) != 0
}

// Cardinality returns the number of set bits.
func (bc *BitmapContainer) Cardinality() int { return bc.cardinality }

// Serialize writes the container to w.
func (bc *BitmapContainer) Serialize(w io.Writer) error {
	length := uint32(len(bc.Bitmap))
	if err := binary.Write(w, binary.LittleEndian, length); err != nil {
		return fmt.Errorf("bitmap: write bitmap length: %w", err)
	}
	for i := 0; i < int(length); i++ {
		if err := binary.Write(w, binary.LittleEndian, bc.Bitmap[i]); err != nil {
			return fmt.Errorf("bitmap: write bitmap word: %w", err)
		}
	}
	if err := binary.Write(w, binary.LittleEndian, uint32(bc.cardinality)); err != nil {
		return fmt.Errorf("bitmap: write bitmap cardinality: %w", err)
	}
	return nil
}

// Deserialize reads the container from r.
func (bc *BitmapContainer) Deserialize(r io.Reader) error {
	var length uint32
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return fmt.Errorf("bitmap: read bitmap length: %w", err)
	}
	bc.Bitmap = make([]uint64, length)
	for i := 0; i < int(length); i++ {
		if err := binary.Read(r, binary.LittleEndian, &bc.Bitmap[i]); err != nil {
			return fmt.Errorf("bitmap: read bitmap word: %w", err)
		}
	}
	var cardinality uint32
	if err := binary.Read(r, binary.LittleEndian, &cardinality); err != nil {
		return fmt.Errorf("bitmap: read bitmap cardinality: %w", err)
	}
	bc.cardinality = 0
	for _, word := range bc.Bitmap {
		bc.cardinality += bits.OnesCount64(word)
	}
	if uint32(bc.cardinality) != cardinality {
		return fmt.Errorf("bitmap: cardinality mismatch, expected %d got %d", cardinality, bc.cardinality)
	}
	return nil
}

// Union returns a container holding the union of bc and other.
func (bc *BitmapContainer) Union(other Container) Container {
	switch o := other.(type) {
	case *BitmapContainer:
		result := NewBitmapContainer()
		for i := range bc.Bitmap {
			result.Bitmap[i] = bc.Bitmap[i] | o.Bitmap[i]
		}
		result.cardinality = sumOnes(result.Bitmap)
		return result
	case *ArrayContainer:
		return bc.Union(o.ToBitmapContainer())
	}
	return nil
}

// Intersection returns a container holding the intersection of bc and other.
func (bc *BitmapContainer) Intersection(other Container) Container {
	switch o := other.(type) {
	case *BitmapContainer:
		result := NewBitmapContainer()
		for i := range bc.Bitmap {
			result.Bitmap[i] = bc.Bitmap[i] & o.Bitmap[i]
		}
		result.cardinality = sumOnes(result.Bitmap)
		return result
	case *ArrayContainer:
		result := NewArrayContainer()
		for _, v := range o.values {
			if bc.Contains(v) {
				result.Add(v)
			}
		}
		return result
	}
	return nil
}

func sumOnes(words []uint64) int {
	n := 0
	for _, w := range words {
		n += bits.OnesCount64(w)
	}
	return n
}

// Rank returns the number of set bits <= value.
func (bc *BitmapContainer) Rank(value uint16) int {
	wordIndex := int(value / 64)
	bitPosition := uint(value % 64)
	if wordIndex >= len(bc.Bitmap) {
		return bc.Cardinality()
	}
	rank := 0
	for i := 0; i < wordIndex; i++ {
		rank += bits.OnesCount64(bc.Bitmap[i])
	}
	mask := (uint64(1) << (bitPosition + 1)) - 1
	rank += bits.OnesCount64(bc.Bitmap[wordIndex] & mask)
	return rank
}

// ToArrayContainer converts bc to an ArrayContainer.
func (bc *BitmapContainer) ToArrayContainer() *ArrayContainer {
	ac := NewArrayContainer()
	for i, word := range bc.Bitmap {
		if word == 0 {
			continue
		}
		for bit := 0; bit < 64; bit++ {
			if word&(1<<bit) != 0 {
				ac.Add(uint16(i*64 + bit))
			}
		}
	}
	return ac
}

// Bitmap is a two-level Roaring Bitmap: the high 16 bits of a value select
// a Container, which stores the low 16 bits.
type Bitmap struct {
	containers  map[uint16]Container
	cardinality int
}

// New returns an empty Bitmap.
func New() *Bitmap {
	return &Bitmap{containers: make(map[uint16]Container)}
}

// Add inserts value, converting the target container to a BitmapContainer
// once its cardinality exceeds ConversionThreshold.
func (b *Bitmap) Add(value uint32) {
	key := uint16(value >> 16)
	low := uint16(value & 0xFFFF)

	container, exists := b.containers[key]
	if !exists {
		container = NewArrayContainer()
		b.containers[key] = container
	}

	before := container.Cardinality()
	container.Add(low)
	if container.Cardinality() > before {
		b.cardinality++
	}

	if ac, ok := container.(*ArrayContainer); ok && ac.Cardinality() > ConversionThreshold {
		b.containers[key] = ac.ToBitmapContainer()
	}
}

// Contains reports whether value is a member of b.
func (b *Bitmap) Contains(value uint32) bool {
	key := uint16(value >> 16)
	low := uint16(value & 0xFFFF)
	container, exists := b.containers[key]
	if !exists {
		return false
	}
	return container.Contains(low)
}

// Union returns a new Bitmap holding every value in b or other.
func (b *Bitmap) Union(other *Bitmap) *Bitmap {
	result := New()
	for key, container := range b.containers {
		result.containers[key] = container
		result.cardinality += container.Cardinality()
	}
	for key, container := range other.containers {
		if existing, ok := result.containers[key]; ok {
			merged := existing.Union(container)
			result.containers[key] = merged
			result.cardinality += merged.Cardinality() - existing.Cardinality()
		} else {
			result.containers[key] = container
			result.cardinality += container.Cardinality()
		}
	}
	return result
}

// Intersection returns a new Bitmap holding every value in both b and other.
func (b *Bitmap) Intersection(other *Bitmap) *Bitmap {
	result := New()
	for key, container := range b.containers {
		if o, ok := other.containers[key]; ok {
			merged := container.Intersection(o)
			if merged.Cardinality() > 0 {
				result.containers[key] = merged
				result.cardinality += merged.Cardinality()
			}
		}
	}
	return result
}

// Cardinality returns the number of values in b.
func (b *Bitmap) Cardinality() int { return b.cardinality }

// Clear removes value from b, if present. Used to flip a live-docs bit on
// logical delete (spec.md §4.4).
func (b *Bitmap) Clear(value uint32) {
	if !b.Contains(value) {
		return
	}
	values := b.Values()
	delete(b.containers, uint16(value>>16))
	b.cardinality = 0
	for _, v := range values {
		if v != value {
			b.Add(v)
		}
	}
}

// Serialize writes b to w in a portable, self-describing format.
func (b *Bitmap) Serialize(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(b.containers))); err != nil {
		return fmt.Errorf("bitmap: write container count: %w", err)
	}
	keys := make([]uint16, 0, len(b.containers))
	for k := range b.containers {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	for _, key := range keys {
		container := b.containers[key]
		if err := binary.Write(w, binary.LittleEndian, key); err != nil {
			return fmt.Errorf("bitmap: write container key: %w", err)
		}
		var typ ContainerType
		switch container.(type) {
		case *ArrayContainer:
			typ = ArrayContainerType
		case *BitmapContainer:
			typ = BitmapContainerType
		default:
			return fmt.Errorf("bitmap: unknown container type %T", container)
		}
		if err := binary.Write(w, binary.LittleEndian, typ); err != nil {
			return fmt.Errorf("bitmap: write container type: %w", err)
		}
		if err := container.Serialize(w); err != nil {
			return fmt.Errorf("bitmap: serialize container: %w", err)
		}
	}
	return nil
}

// Deserialize reads b from r, replacing any existing contents.
func (b *Bitmap) Deserialize(r io.Reader) error {
	b.containers = make(map[uint16]Container)

	var numContainers uint32
	if err := binary.Read(r, binary.LittleEndian, &numContainers); err != nil {
		return fmt.Errorf("bitmap: read container count: %w", err)
	}
	for i := uint32(0); i < numContainers; i++ {
		var key uint16
		if err := binary.Read(r, binary.LittleEndian, &key); err != nil {
			return fmt.Errorf("bitmap: read container key: %w", err)
		}
		var typ ContainerType
		if err := binary.Read(r, binary.LittleEndian, &typ); err != nil {
			return fmt.Errorf("bitmap: read container type: %w", err)
		}
		var container Container
		switch typ {
		case ArrayContainerType:
			container = NewArrayContainer()
		case BitmapContainerType:
			container = NewBitmapContainer()
		default:
			return fmt.Errorf("bitmap: unknown container type %d", typ)
		}
		if err := container.Deserialize(r); err != nil {
			return fmt.Errorf("bitmap: deserialize container: %w", err)
		}
		b.containers[key] = container
	}

	b.cardinality = 0
	for _, container := range b.containers {
		b.cardinality += container.Cardinality()
	}
	return nil
}

// Values returns every member of b in ascending order.
func (b *Bitmap) Values() []uint32 {
	keys := make([]uint16, 0, len(b.containers))
	for k := range b.containers {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	out := make([]uint32, 0, b.cardinality)
	for _, key := range keys {
		base := uint32(key) << 16
		switch c := b.containers[key].(type) {
		case *ArrayContainer:
			for _, v := range c.values {
				out = append(out, base|uint32(v))
			}
		case *BitmapContainer:
			for i, word := range c.Bitmap {
				if word == 0 {
					continue
				}
				for bit := 0; bit < 64; bit++ {
					if word&(1<<bit) != 0 {
						out = append(out, base|uint32(i*64+bit))
					}
				}
			}
		}
	}
	return out
}

// Rank returns the number of members of b that are <= value; used to map a
// document ordinal onto its index within a posting's position-run table
// (spec.md §4.4).
func (b *Bitmap) Rank(value uint32) int {
	rank := 0
	targetKey := uint16(value >> 16)
	targetLow := uint16(value & 0xFFFF)
	for key, container := range b.containers {
		if key < targetKey {
			rank += container.Cardinality()
		} else if key == targetKey {
			switch c := container.(type) {
			case *ArrayContainer:
				rank += c.Rank(targetLow)
			case *BitmapContainer:
				rank += c.Rank(targetLow)
			}
		}
	}
	return rank
}
