package decoder

import "math/big"

// Value is the decoded-record sum type: exactly one of the MMDB primitive
// or composite kinds described in spec §3. The zero Value has Kind
// KindExtended and represents "no value".
type Value struct {
	kind  Kind
	b     bool
	i32   int32
	u16   uint16
	u32   uint32
	u64   uint64
	u128  *big.Int
	f32   float32
	f64   float64
	str   string
	bytes []byte
	slice []Value
	m     map[string]Value
	keys  []string // on-disk key order for Map, parallel to m
}

// Kind reports the decoded type tag.
func (v Value) Kind() Kind { return v.kind }

// Bool returns the value's boolean payload; valid only when Kind == KindBool.
func (v Value) Bool() bool { return v.b }

// Int32 returns the value's int32 payload; valid only when Kind == KindInt32.
func (v Value) Int32() int32 { return v.i32 }

// Uint16 returns the value's uint16 payload; valid only when Kind == KindUint16.
func (v Value) Uint16() uint16 { return v.u16 }

// Uint32 returns the value's uint32 payload; valid only when Kind == KindUint32.
func (v Value) Uint32() uint32 { return v.u32 }

// Uint64 returns the value's uint64 payload; valid only when Kind == KindUint64.
func (v Value) Uint64() uint64 { return v.u64 }

// Uint128 returns the value's uint128 payload; valid only when Kind == KindUint128.
func (v Value) Uint128() *big.Int { return v.u128 }

// Float32 returns the value's float32 payload; valid only when Kind == KindFloat32.
func (v Value) Float32() float32 { return v.f32 }

// Float64 returns the value's float64 payload; valid only when Kind == KindFloat64.
func (v Value) Float64() float64 { return v.f64 }

// String returns the value's string payload; valid only when Kind == KindString.
func (v Value) String() string { return v.str }

// Bytes returns the value's byte-string payload; valid only when Kind == KindBytes.
func (v Value) Bytes() []byte { return v.bytes }

// Slice returns the value's ordered element sequence; valid only when Kind
// == KindSlice.
func (v Value) Slice() []Value { return v.slice }

// Map returns the value's key-value mapping; valid only when Kind == KindMap.
func (v Value) Map() map[string]Value { return v.m }

// Keys returns the on-disk key order of a KindMap value, since ranging
// over Map() directly does not preserve it.
func (v Value) Keys() []string { return v.keys }

// recordBuilder implements deserializer by assembling a Value tree. This
// generalizes the callback shape of the example pack's own
// map[string]any-building test harness to the typed Value sum type §3
// requires. Containers are pre-sized from the size the decoder already
// knows (StartSlice/StartMap), and elements are written by index rather
// than appended, so every copy of a container Value taken before it was
// fully populated still observes the final contents: slices and maps are
// reference types in Go, and an index-store (unlike an append that might
// grow the backing array) never changes a header already copied elsewhere.
type recordBuilder struct {
	stack []*buildFrame
	root  Value
	key   *string
}

type buildFrame struct {
	kind    Kind
	slice   []Value
	m       map[string]Value
	keys    []string
	nextIdx int
}

func newRecordBuilder() *recordBuilder {
	return &recordBuilder{}
}

func (b *recordBuilder) ShouldSkip(uint) (bool, error) { return false, nil }

func (b *recordBuilder) StartSlice(size uint) error {
	return b.push(Value{kind: KindSlice, slice: make([]Value, size)})
}

func (b *recordBuilder) StartMap(size uint) error {
	return b.push(Value{
		kind: KindMap,
		m:    make(map[string]Value, size),
		keys: make([]string, size),
	})
}

func (b *recordBuilder) End() error {
	b.stack = b.stack[:len(b.stack)-1]
	return nil
}

func (b *recordBuilder) String(v string) error { return b.add(Value{kind: KindString, str: v}) }
func (b *recordBuilder) Float64(v float64) error { return b.add(Value{kind: KindFloat64, f64: v}) }
func (b *recordBuilder) Bytes(v []byte) error { return b.add(Value{kind: KindBytes, bytes: v}) }
func (b *recordBuilder) Uint16(v uint16) error { return b.add(Value{kind: KindUint16, u16: v}) }
func (b *recordBuilder) Uint32(v uint32) error { return b.add(Value{kind: KindUint32, u32: v}) }
func (b *recordBuilder) Int32(v int32) error { return b.add(Value{kind: KindInt32, i32: v}) }
func (b *recordBuilder) Uint64(v uint64) error { return b.add(Value{kind: KindUint64, u64: v}) }
func (b *recordBuilder) Uint128(v *big.Int) error { return b.add(Value{kind: KindUint128, u128: v}) }
func (b *recordBuilder) Bool(v bool) error { return b.add(Value{kind: KindBool, b: v}) }
func (b *recordBuilder) Float32(v float32) error { return b.add(Value{kind: KindFloat32, f32: v}) }

// push stores v into the enclosing container (or as the root), then
// descends into it so subsequent callbacks fill its elements.
func (b *recordBuilder) push(v Value) error {
	if err := b.add(v); err != nil {
		return err
	}
	b.stack = append(b.stack, &buildFrame{kind: v.kind, slice: v.slice, m: v.m, keys: v.keys})
	return nil
}

func (b *recordBuilder) add(v Value) error {
	if len(b.stack) == 0 {
		b.root = v
		return nil
	}

	top := b.stack[len(b.stack)-1]
	switch top.kind {
	case KindMap:
		if b.key == nil {
			k := v.str
			b.key = &k
			return nil
		}
		top.m[*b.key] = v
		top.keys[top.nextIdx] = *b.key
		top.nextIdx++
		b.key = nil
	case KindSlice:
		top.slice[top.nextIdx] = v
		top.nextIdx++
	}
	return nil
}

// Decode decodes the value at offset into a Value tree, returning the
// offset immediately following its own encoding.
func Decode(d *Decoder, offset uint) (Value, uint, error) {
	b := newRecordBuilder()
	next, err := d.Decode(offset, b)
	if err != nil {
		return Value{}, 0, err
	}
	return b.root, next, nil
}
