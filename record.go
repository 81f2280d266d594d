package mmdbquery

import (
	"math/big"

	"github.com/geoipcore/mmdbquery/internal/decoder"
)

// Kind identifies which MMDB data-section type a Record holds. This is a
// type alias over internal/decoder.Kind, the same re-export pattern the
// teacher package uses for its own mmdbdata.Kind: the concrete type lives
// in an internal package so the decoder can evolve freely, while the
// public name stays stable.
type Kind = decoder.Kind

const (
	KindExtended = decoder.KindExtended
	KindPointer  = decoder.KindPointer
	KindString   = decoder.KindString
	KindFloat64  = decoder.KindFloat64
	KindBytes    = decoder.KindBytes
	KindUint16   = decoder.KindUint16
	KindUint32   = decoder.KindUint32
	KindMap      = decoder.KindMap
	KindInt32    = decoder.KindInt32
	KindUint64   = decoder.KindUint64
	KindUint128  = decoder.KindUint128
	KindSlice    = decoder.KindSlice
	KindBool     = decoder.KindBool
	KindFloat32  = decoder.KindFloat32
)

// Record is a decoded MMDB value: one of the kinds above, produced by
// Reader.Get/GetWithPrefixLen or a Networks iteration. The zero Record has
// Kind() == KindExtended, meaning "no record at this address."
type Record struct {
	v decoder.Value
}

func newRecord(v decoder.Value) Record { return Record{v: v} }

// Kind reports the decoded type.
func (r Record) Kind() Kind { return r.v.Kind() }

// Bool returns the payload for a KindBool record.
func (r Record) Bool() bool { return r.v.Bool() }

// Int32 returns the payload for a KindInt32 record.
func (r Record) Int32() int32 { return r.v.Int32() }

// Uint16 returns the payload for a KindUint16 record.
func (r Record) Uint16() uint16 { return r.v.Uint16() }

// Uint32 returns the payload for a KindUint32 record.
func (r Record) Uint32() uint32 { return r.v.Uint32() }

// Uint64 returns the payload for a KindUint64 record.
func (r Record) Uint64() uint64 { return r.v.Uint64() }

// Uint128 returns the payload for a KindUint128 record, as a *big.Int.
func (r Record) Uint128() *big.Int { return r.v.Uint128() }

// Float32 returns the payload for a KindFloat32 record.
func (r Record) Float32() float32 { return r.v.Float32() }

// Float64 returns the payload for a KindFloat64 record.
func (r Record) Float64() float64 { return r.v.Float64() }

// String returns the payload for a KindString record.
func (r Record) String() string { return r.v.String() }

// Bytes returns the payload for a KindBytes record.
func (r Record) Bytes() []byte { return r.v.Bytes() }

// Slice returns the element records for a KindSlice record.
func (r Record) Slice() []Record {
	elems := r.v.Slice()
	out := make([]Record, len(elems))
	for i, e := range elems {
		out[i] = newRecord(e)
	}
	return out
}

// Map returns the field records for a KindMap record.
func (r Record) Map() map[string]Record {
	fields := r.v.Map()
	out := make(map[string]Record, len(fields))
	for k, v := range fields {
		out[k] = newRecord(v)
	}
	return out
}

// Keys returns the on-disk key order of a KindMap record.
func (r Record) Keys() []string { return r.v.Keys() }
