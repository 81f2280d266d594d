// Package decoder implements the MMDB data-section grammar: a
// self-describing, pointer-compressed value encoding read from an
// already-origin-sliced buffer (the data section for ordinary lookups, the
// metadata block for Metadata; see spec §3/§4.2/§4.3).
package decoder

import (
	"encoding/binary"
	"math"
	"math/big"
	"unicode/utf8"

	"github.com/geoipcore/mmdbquery/internal/mmdberrors"
)

// maximumDataStructureDepth bounds pointer-chasing recursion. Valid
// databases never chain pointers this deep; exceeding it means the
// database is corrupt rather than merely large. Matches the cap libmaxminddb
// itself uses.
const maximumDataStructureDepth = 512

// Decoder decodes values from a single MMDB buffer. The buffer passed to
// New is already sliced so that offset 0 is the decoder's "origin" — the
// start of the data section for ordinary decoding, or the start of the
// metadata block when decoding metadata. Decoded pointers are absolute
// offsets within that same buffer.
type Decoder struct {
	buffer      []byte
	rawPointers bool
	interner    StringInterner
}

// New creates a Decoder that follows pointers by recursing into the
// pointer's target, as ordinary data-section decoding requires.
func New(buffer []byte) *Decoder {
	return &Decoder{buffer: buffer}
}

// NewWithRawPointers creates a Decoder in "pointer test mode": decoding a
// pointer returns its raw integer value instead of recursing into the
// target. Used by the Metadata pass, which must never chase a pointer past
// its own start, and by decoder unit tests that assert the raw pointer
// arithmetic in spec §4.2's table.
func NewWithRawPointers(buffer []byte) *Decoder {
	return &Decoder{buffer: buffer, rawPointers: true}
}

// WithStringInterner returns a copy of d that interns decoded strings and
// map keys through interner instead of allocating a fresh string per call.
func (d *Decoder) WithStringInterner(interner StringInterner) *Decoder {
	return &Decoder{buffer: d.buffer, rawPointers: d.rawPointers, interner: interner}
}

type dataType int

const (
	typeExtended dataType = iota
	typePointer
	typeString
	typeFloat64
	typeBytes
	typeUint16
	typeUint32
	typeMap
	typeInt32
	typeUint64
	typeUint128
	typeSlice
	typeContainer
	typeMarker
	typeBool
	typeFloat32
)

// Decode reads the value at offset and reports the offset immediately
// following its own encoding (not the target of a pointer, per spec §4.2).
func (d *Decoder) Decode(offset uint, dser deserializer) (uint, error) {
	return d.decode(offset, dser, 0)
}

func (d *Decoder) decode(offset uint, dser deserializer, depth int) (uint, error) {
	if depth > maximumDataStructureDepth {
		return 0, mmdberrors.NewInvalidDatabaseError(
			"exceeded maximum data structure depth; database is likely corrupt",
		)
	}

	typeNum, size, newOffset, err := d.decodeCtrlData(offset)
	if err != nil {
		return 0, err
	}

	return d.decodeFromType(typeNum, size, newOffset, dser, depth+1)
}

func (d *Decoder) decodeCtrlData(offset uint) (dataType, uint, uint, error) {
	newOffset := offset + 1
	if offset >= uint(len(d.buffer)) {
		return 0, 0, 0, mmdberrors.NewOffsetError()
	}
	ctrlByte := d.buffer[offset]

	typeNum := dataType(ctrlByte >> 5)
	if typeNum == typeExtended {
		if newOffset >= uint(len(d.buffer)) {
			return 0, 0, 0, mmdberrors.NewOffsetError()
		}
		extended := d.buffer[newOffset]
		if extended < 1 {
			return 0, 0, 0, mmdberrors.NewInvalidDatabaseError("invalid extended type: %d", extended)
		}
		typeNum = dataType(extended) + 7
		newOffset++
	}

	size, newOffset, err := d.sizeFromCtrlByte(ctrlByte, newOffset, typeNum)
	return typeNum, size, newOffset, err
}

func (d *Decoder) sizeFromCtrlByte(ctrlByte byte, offset uint, typeNum dataType) (uint, uint, error) {
	size := uint(ctrlByte & 0x1f)
	if typeNum == typePointer {
		return size, offset, nil
	}

	if size < 29 {
		return size, offset, nil
	}

	bytesToRead := size - 28
	newOffset := offset + bytesToRead
	if newOffset > uint(len(d.buffer)) {
		return 0, 0, mmdberrors.NewOffsetError()
	}
	if size == 29 {
		return 29 + uint(d.buffer[offset]), offset + 1, nil
	}

	sizeBytes := d.buffer[offset:newOffset]
	switch {
	case size == 30:
		size = 285 + uintFromBytes(0, sizeBytes)
	default: // size == 31
		size = 65821 + uintFromBytes(0, sizeBytes)
	}
	return size, newOffset, nil
}

func (d *Decoder) decodeFromType(
	dtype dataType,
	size uint,
	offset uint,
	dser deserializer,
	depth int,
) (uint, error) {
	switch dtype {
	case typeBool:
		return offset, dser.Bool(size != 0)
	case typeMap:
		return d.decodeMap(size, offset, dser, depth)
	case typeSlice:
		return d.decodeSlice(size, offset, dser, depth)
	case typePointer:
		return d.decodePointerValue(size, offset, dser, depth)
	case typeBytes:
		v, newOffset, err := d.decodeBytes(size, offset)
		if err != nil {
			return 0, err
		}
		return newOffset, dser.Bytes(v)
	case typeFloat32:
		v, newOffset, err := d.decodeFloat32(size, offset)
		if err != nil {
			return 0, err
		}
		return newOffset, dser.Float32(v)
	case typeFloat64:
		v, newOffset, err := d.decodeFloat64(size, offset)
		if err != nil {
			return 0, err
		}
		return newOffset, dser.Float64(v)
	case typeInt32:
		v, newOffset, err := d.decodeInt32(size, offset)
		if err != nil {
			return 0, err
		}
		return newOffset, dser.Int32(v)
	case typeString:
		v, newOffset, err := d.decodeString(size, offset)
		if err != nil {
			return 0, err
		}
		return newOffset, dser.String(v)
	case typeUint16:
		v, newOffset, err := d.decodeUint(size, offset, 2)
		if err != nil {
			return 0, err
		}
		return newOffset, dser.Uint16(uint16(v))
	case typeUint32:
		v, newOffset, err := d.decodeUint(size, offset, 4)
		if err != nil {
			return 0, err
		}
		return newOffset, dser.Uint32(uint32(v))
	case typeUint64:
		v, newOffset, err := d.decodeUint(size, offset, 8)
		if err != nil {
			return 0, err
		}
		return newOffset, dser.Uint64(v)
	case typeUint128:
		v, newOffset, err := d.decodeUint128(size, offset)
		if err != nil {
			return 0, err
		}
		return newOffset, dser.Uint128(v)
	default:
		return 0, mmdberrors.NewInvalidDatabaseError("unknown type: %d", dtype)
	}
}

func (d *Decoder) decodePointerValue(size, offset uint, dser deserializer, depth int) (uint, error) {
	pointer, newOffset, err := d.decodePointer(size, offset)
	if err != nil {
		return 0, err
	}
	if d.rawPointers {
		return newOffset, dser.Uint64(uint64(pointer))
	}
	if _, err := d.decode(pointer, dser, depth); err != nil {
		return 0, err
	}
	return newOffset, nil
}

func (d *Decoder) decodePointer(size, offset uint) (uint, uint, error) {
	pointerSize := ((size >> 3) & 0x3) + 1
	newOffset := offset + pointerSize
	if newOffset > uint(len(d.buffer)) {
		return 0, 0, mmdberrors.NewOffsetError()
	}
	pointerBytes := d.buffer[offset:newOffset]

	var prefix uint
	if pointerSize != 4 {
		prefix = size & 0x7
	}
	unpacked := uintFromBytes(prefix, pointerBytes)

	var valueOffset uint
	switch pointerSize {
	case 2:
		valueOffset = 2048
	case 3:
		valueOffset = 526336
	}

	return unpacked + valueOffset, newOffset, nil
}

func (d *Decoder) decodeBytes(size, offset uint) ([]byte, uint, error) {
	if offset+size > uint(len(d.buffer)) {
		return nil, 0, mmdberrors.NewOffsetError()
	}
	newOffset := offset + size
	out := make([]byte, size)
	copy(out, d.buffer[offset:newOffset])
	return out, newOffset, nil
}

func (d *Decoder) decodeFloat64(size, offset uint) (float64, uint, error) {
	if size != 8 {
		return 0, 0, mmdberrors.NewInvalidDatabaseError("invalid size of double: %d", size)
	}
	if offset+size > uint(len(d.buffer)) {
		return 0, 0, mmdberrors.NewOffsetError()
	}
	newOffset := offset + size
	bits := binary.BigEndian.Uint64(d.buffer[offset:newOffset])
	return math.Float64frombits(bits), newOffset, nil
}

func (d *Decoder) decodeFloat32(size, offset uint) (float32, uint, error) {
	if size != 4 {
		return 0, 0, mmdberrors.NewInvalidDatabaseError("invalid size of float: %d", size)
	}
	if offset+size > uint(len(d.buffer)) {
		return 0, 0, mmdberrors.NewOffsetError()
	}
	newOffset := offset + size
	bits := binary.BigEndian.Uint32(d.buffer[offset:newOffset])
	return math.Float32frombits(bits), newOffset, nil
}

func (d *Decoder) decodeInt32(size, offset uint) (int32, uint, error) {
	if size > 4 {
		return 0, 0, mmdberrors.NewInvalidDatabaseError("invalid size of int32: %d", size)
	}
	if offset+size > uint(len(d.buffer)) {
		return 0, 0, mmdberrors.NewOffsetError()
	}
	newOffset := offset + size
	var val int32
	for _, b := range d.buffer[offset:newOffset] {
		val = (val << 8) | int32(b)
	}
	return val, newOffset, nil
}

func (d *Decoder) decodeMap(size, offset uint, dser deserializer, depth int) (uint, error) {
	if err := dser.StartMap(size); err != nil {
		return 0, err
	}
	for range size {
		key, newOffset, err := d.decodeMapKey(offset, depth)
		if err != nil {
			return 0, err
		}
		if err := dser.String(key); err != nil {
			return 0, err
		}
		offset = newOffset

		offset, err = d.decode(offset, dser, depth)
		if err != nil {
			return 0, err
		}
	}
	if err := dser.End(); err != nil {
		return 0, err
	}
	return offset, nil
}

// decodeMapKey decodes a map key, which must be a string (possibly reached
// through a chain of pointers), and validates it as UTF-8 regardless of
// rawPointers mode (keys are never meaningfully "raw").
func (d *Decoder) decodeMapKey(offset uint, depth int) (string, uint, error) {
	if depth > maximumDataStructureDepth {
		return "", 0, mmdberrors.NewInvalidDatabaseError(
			"exceeded maximum data structure depth; database is likely corrupt",
		)
	}
	typeNum, size, dataOffset, err := d.decodeCtrlData(offset)
	if err != nil {
		return "", 0, err
	}
	if typeNum == typePointer {
		pointer, ptrOffset, err := d.decodePointer(size, dataOffset)
		if err != nil {
			return "", 0, err
		}
		key, _, err := d.decodeMapKey(pointer, depth+1)
		return key, ptrOffset, err
	}
	if typeNum != typeString {
		return "", 0, mmdberrors.NewInvalidDatabaseError(
			"unexpected type when decoding map key: %d", typeNum,
		)
	}
	key, newOffset, err := d.decodeString(size, dataOffset)
	return key, newOffset, err
}

func (d *Decoder) decodeSlice(size, offset uint, dser deserializer, depth int) (uint, error) {
	if err := dser.StartSlice(size); err != nil {
		return 0, err
	}
	var err error
	for range size {
		offset, err = d.decode(offset, dser, depth)
		if err != nil {
			return 0, err
		}
	}
	if err := dser.End(); err != nil {
		return 0, err
	}
	return offset, nil
}

func (d *Decoder) decodeString(size, offset uint) (string, uint, error) {
	if offset+size > uint(len(d.buffer)) {
		return "", 0, mmdberrors.NewOffsetError()
	}
	newOffset := offset + size
	raw := d.buffer[offset:newOffset]
	if !utf8.Valid(raw) {
		return "", 0, mmdberrors.NewInvalidUTF8Error("invalid UTF-8 string at offset %d", offset)
	}
	if d.interner != nil {
		return d.interner.InternAt(offset, size, d.buffer), newOffset, nil
	}
	return string(raw), newOffset, nil
}

func (d *Decoder) decodeUint(size, offset, maxBytes uint) (uint64, uint, error) {
	if size > maxBytes {
		return 0, 0, mmdberrors.NewInvalidDatabaseError("invalid size of uint%d: %d", maxBytes*8, size)
	}
	if offset+size > uint(len(d.buffer)) {
		return 0, 0, mmdberrors.NewOffsetError()
	}
	newOffset := offset + size
	var val uint64
	for _, b := range d.buffer[offset:newOffset] {
		val = (val << 8) | uint64(b)
	}
	return val, newOffset, nil
}

func (d *Decoder) decodeUint128(size, offset uint) (*big.Int, uint, error) {
	if size > 16 {
		return nil, 0, mmdberrors.NewInvalidDatabaseError("invalid size of uint128: %d", size)
	}
	if offset+size > uint(len(d.buffer)) {
		return nil, 0, mmdberrors.NewOffsetError()
	}
	newOffset := offset + size
	val := new(big.Int).SetBytes(d.buffer[offset:newOffset])
	return val, newOffset, nil
}

func uintFromBytes(prefix uint, b []byte) uint {
	val := prefix
	for _, c := range b {
		val = (val << 8) | uint(c)
	}
	return val
}
