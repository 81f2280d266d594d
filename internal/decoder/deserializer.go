package decoder

import "math/big"

// deserializer receives a stream of callbacks describing the value decoded
// at a single offset. It is a lower-ceremony alternative to reflecting into
// a caller-supplied struct pointer: the decoder calls back into whichever
// deserializer it was given without knowing what that deserializer builds.
// recordBuilder (record.go) is the only production implementation; it
// assembles a Value tree instead of a map[string]any.
type deserializer interface {
	ShouldSkip(offset uint) (bool, error)
	StartSlice(size uint) error
	StartMap(size uint) error
	End() error
	String(v string) error
	Float64(v float64) error
	Bytes(v []byte) error
	Uint16(v uint16) error
	Uint32(v uint32) error
	Int32(v int32) error
	Uint64(v uint64) error
	Uint128(v *big.Int) error
	Bool(v bool) error
	Float32(v float32) error
}
