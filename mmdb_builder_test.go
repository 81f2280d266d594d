package mmdbquery

import (
	"bytes"
	"encoding/binary"
)

// This file assembles minimal, valid MMDB byte buffers in-process for use
// by reader_test.go/networks_test.go. The retrieved example
// pack ships no canonical MaxMind-DB-test-*.mmdb fixtures, so tests build
// their own small databases instead (see DESIGN.md/SPEC_FULL.md §8).
//
// Only encodings small enough to need no extended-size control bytes are
// supported (string/map/slice payloads under 29 bytes/elements), which is
// all these tests require.

// dataValue is the encoded bytes of one data-section value, built with the
// v* helpers below so callers can write literal Go values instead of raw
// control bytes.
type dataValue []byte

func encodeCtrl(typeTag byte, size int) []byte {
	if size < 29 {
		return []byte{typeTag<<5 | byte(size)}
	}
	panic("mmdb_builder_test: size too large for this helper")
}

func encodeExtendedCtrl(extType byte, size int) []byte {
	if size >= 29 {
		panic("mmdb_builder_test: size too large for this helper")
	}
	return []byte{byte(size), extType}
}

func vString(s string) dataValue {
	return append(encodeCtrl(2, len(s)), []byte(s)...)
}

func vUint16(v uint16) dataValue {
	out := encodeCtrl(5, 2)
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	return append(out, b[:]...)
}

func vUint32(v uint32) dataValue {
	out := encodeCtrl(6, 4)
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	return append(out, b[:]...)
}

func vUint64(v uint64) dataValue {
	out := encodeExtendedCtrl(2, 8) // typeUint64: extended code 2
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(out, b[:]...)
}

func vBool(v bool) dataValue {
	size := 0
	if v {
		size = 1
	}
	return encodeExtendedCtrl(7, size) // typeBool: extended code 7
}

func vMap(pairs ...struct {
	Key string
	Val dataValue
}) dataValue {
	out := encodeCtrl(7, len(pairs))
	for _, p := range pairs {
		out = append(out, vString(p.Key)...)
		out = append(out, p.Val...)
	}
	return out
}

func kv(key string, val dataValue) struct {
	Key string
	Val dataValue
} {
	return struct {
		Key string
		Val dataValue
	}{Key: key, Val: val}
}

func vSlice(elems ...dataValue) dataValue {
	out := encodeExtendedCtrl(4, len(elems)) // typeSlice: extended code 4
	for _, e := range elems {
		out = append(out, e...)
	}
	return out
}

// treeRef identifies what a tree edge points to: another node, "no data",
// or a named data-section value.
type treeRef struct {
	kind int // 0 = empty, 1 = node index, 2 = data key
	idx  uint
	key  string
}

var refEmpty = treeRef{kind: 0}

func refNode(idx uint) treeRef { return treeRef{kind: 1, idx: idx} }
func refData(key string) treeRef { return treeRef{kind: 2, key: key} }

type builderNode struct {
	left, right treeRef
}

// mmdbBuilder assembles a search tree plus data section by inserting
// address/bit-length prefixes one at a time, then renders the final MMDB
// byte image.
type mmdbBuilder struct {
	ipVersion uint
	nodes     []builderNode
	dataOrder []string
	data      map[string]dataValue
}

func newMMDBBuilder(ipVersion uint) *mmdbBuilder {
	b := &mmdbBuilder{
		ipVersion: ipVersion,
		nodes:     []builderNode{{left: refEmpty, right: refEmpty}},
		data:      map[string]dataValue{},
	}
	return b
}

func bitsOf(addr []byte, prefixLen int) []int {
	bits := make([]int, prefixLen)
	for i := 0; i < prefixLen; i++ {
		byteIdx := i / 8
		bitPos := 7 - (i % 8)
		bits[i] = int((addr[byteIdx] >> uint(bitPos)) & 1)
	}
	return bits
}

// insert attaches key's data value at the node reached by prefixLen bits of
// addr (a 4- or 16-byte address), creating any intermediate nodes needed.
func (b *mmdbBuilder) insert(addr []byte, prefixLen int, key string, val dataValue) {
	if _, ok := b.data[key]; !ok {
		b.dataOrder = append(b.dataOrder, key)
	}
	b.data[key] = val

	bits := bitsOf(addr, prefixLen)
	cur := uint(0)
	for i, bit := range bits {
		last := i == len(bits)-1
		var childRef *treeRef
		if bit == 0 {
			childRef = &b.nodes[cur].left
		} else {
			childRef = &b.nodes[cur].right
		}
		if last {
			*childRef = refData(key)
			return
		}
		switch childRef.kind {
		case 1:
			cur = childRef.idx
		default:
			newIdx := uint(len(b.nodes))
			b.nodes = append(b.nodes, builderNode{left: refEmpty, right: refEmpty})
			*childRef = refNode(newIdx)
			cur = newIdx
		}
	}
}

const mmdbDataSectionSeparatorSize = 16

var mmdbMetadataMarker = []byte("\xAB\xCD\xEFMaxMind.com")

// build renders the complete MMDB byte image: tree + 16-byte separator +
// data section + metadata sentinel + metadata map.
func (b *mmdbBuilder) build(recordSize uint, databaseType string) []byte {
	nodeCount := uint(len(b.nodes))

	offsets := map[string]uint{}
	var dataSection bytes.Buffer
	for _, key := range b.dataOrder {
		offsets[key] = uint(dataSection.Len())
		dataSection.Write(b.data[key])
	}

	resolve := func(ref treeRef) uint {
		switch ref.kind {
		case 0:
			return nodeCount
		case 1:
			return ref.idx
		default:
			return nodeCount + mmdbDataSectionSeparatorSize + offsets[ref.key]
		}
	}

	var tree bytes.Buffer
	for _, n := range b.nodes {
		left := resolve(n.left)
		right := resolve(n.right)
		writeRecord(&tree, recordSize, left, right)
	}

	var out bytes.Buffer
	out.Write(tree.Bytes())
	out.Write(make([]byte, mmdbDataSectionSeparatorSize))
	out.Write(dataSection.Bytes())
	out.Write(mmdbMetadataMarker)
	out.Write(b.metadata(nodeCount, recordSize, databaseType))
	return out.Bytes()
}

func writeRecord(buf *bytes.Buffer, recordSize uint, left, right uint) {
	switch recordSize {
	case 24:
		buf.WriteByte(byte(left >> 16))
		buf.WriteByte(byte(left >> 8))
		buf.WriteByte(byte(left))
		buf.WriteByte(byte(right >> 16))
		buf.WriteByte(byte(right >> 8))
		buf.WriteByte(byte(right))
	case 28:
		middle := byte((left>>20)&0xF0) | byte((right>>24)&0x0F)
		buf.WriteByte(byte(left >> 16))
		buf.WriteByte(byte(left >> 8))
		buf.WriteByte(byte(left))
		buf.WriteByte(middle)
		buf.WriteByte(byte(right >> 16))
		buf.WriteByte(byte(right >> 8))
		buf.WriteByte(byte(right))
	case 32:
		var l, r [4]byte
		binary.BigEndian.PutUint32(l[:], uint32(left))
		binary.BigEndian.PutUint32(r[:], uint32(right))
		buf.Write(l[:])
		buf.Write(r[:])
	default:
		panic("mmdb_builder_test: unsupported record size")
	}
}

func (b *mmdbBuilder) metadata(nodeCount, recordSize uint, databaseType string) []byte {
	pair := kv
	fields := vMap(
		pair("node_count", vUint32(uint32(nodeCount))),
		pair("record_size", vUint16(uint16(recordSize))),
		pair("ip_version", vUint16(uint16(b.ipVersion))),
		pair("database_type", vString(databaseType)),
		pair("languages", vSlice(vString("en"))),
		pair("binary_format_major_version", vUint16(2)),
		pair("binary_format_minor_version", vUint16(0)),
		pair("build_epoch", vUint64(1700000000)),
		pair("description", vMap(pair("en", vString(databaseType)))),
	)
	return fields
}
