package decoder

// Kind identifies the MMDB data-section type tag of a decoded Value. The
// numbering matches the control-byte primary type tag table (spec §4.2),
// including the two reserved-but-unused tags 12 and 13 so that Kind values
// line up with the tags actually found on disk.
type Kind int

const (
	KindExtended Kind = iota
	KindPointer
	KindString
	KindFloat64
	KindBytes
	KindUint16
	KindUint32
	KindMap
	KindInt32
	KindUint64
	KindUint128
	KindSlice
	KindContainer // reserved; never produced by a conforming database
	KindEndMarker // reserved; never produced by a conforming database
	KindBool
	KindFloat32
)

func (k Kind) String() string {
	switch k {
	case KindExtended:
		return "extended"
	case KindPointer:
		return "pointer"
	case KindString:
		return "string"
	case KindFloat64:
		return "float64"
	case KindBytes:
		return "bytes"
	case KindUint16:
		return "uint16"
	case KindUint32:
		return "uint32"
	case KindMap:
		return "map"
	case KindInt32:
		return "int32"
	case KindUint64:
		return "uint64"
	case KindUint128:
		return "uint128"
	case KindSlice:
		return "slice"
	case KindBool:
		return "bool"
	case KindFloat32:
		return "float32"
	default:
		return "unknown"
	}
}
