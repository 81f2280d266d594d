package mmdbquery

import (
	"github.com/geoipcore/mmdbquery/internal/buffer"
	"github.com/geoipcore/mmdbquery/internal/mmdberrors"
)

// readNode reads the record_size-bit child value for child (0 = left, 1 =
// right) out of the node at nodeIndex, per the three on-disk layouts spec
// §4.4 defines.
func readNode(buf buffer.Buffer, m Metadata, nodeIndex uint, child uint) (uint, error) {
	base := nodeIndex * m.NodeByteSize()

	switch m.RecordSize {
	case 24:
		b, err := buf.Slice(base, 6)
		if err != nil {
			return 0, err
		}
		off := child * 3
		return uint(b[off])<<16 | uint(b[off+1])<<8 | uint(b[off+2]), nil
	case 28:
		b, err := buf.Slice(base, 7)
		if err != nil {
			return 0, err
		}
		middle := uint(b[3])
		if child == 0 {
			return (middle&0xF0)<<20 | uint(b[0])<<16 | uint(b[1])<<8 | uint(b[2]), nil
		}
		return (middle&0x0F)<<24 | uint(b[4])<<16 | uint(b[5])<<8 | uint(b[6]), nil
	case 32:
		b, err := buf.Slice(base, 8)
		if err != nil {
			return 0, err
		}
		off := child * 4
		return uint(b[off])<<24 | uint(b[off+1])<<16 | uint(b[off+2])<<8 | uint(b[off+3]), nil
	default:
		return 0, mmdberrors.NewInvalidDatabaseError("unsupported record_size: %d", m.RecordSize)
	}
}

// traverseResult is the outcome of descending the tree for one address: the
// terminal node value (used to tell "unassigned" from "data pointer") and
// the number of key bits consumed.
type traverseResult struct {
	node      uint
	prefixLen int
}

// traverseTree walks the tree bit-by-bit from startNode/startDepth,
// consuming up to numBits bits of key, stopping as soon as the node value
// reaches or exceeds nodeCount (spec §4.4's descent rule).
//
// startDepth is the tree's absolute depth at startNode (96 when starting
// from the IPv4 root cache inside an IPv6 database, 0 otherwise); it is
// unrelated to key's own bit indexing, which always starts at key.bit(0)
// regardless of where in the tree the descent begins. Conflating the two
// would walk off the end of a 4-byte IPv4 key's packed bytes. prefixLen is
// reported relative to key (bits of key consumed), not the tree's absolute
// depth, so it always falls within [0, numBits] regardless of startDepth.
func traverseTree(
	buf buffer.Buffer,
	m Metadata,
	key addressKey,
	startNode uint,
	startDepth int,
	numBits int,
) (traverseResult, error) {
	node := startNode
	bitIdx := 0
	for ; bitIdx < numBits && node < m.NodeCount; bitIdx++ {
		child := key.bit(bitIdx)
		next, err := readNode(buf, m, node, child)
		if err != nil {
			return traverseResult{}, err
		}
		node = next
	}
	return traverseResult{node: node, prefixLen: bitIdx}, nil
}

// ipv4StartNode walks 96 zero bits from node 0, which is where an IPv6
// database's IPv4 subtree is rooted (spec §3's "IPv4 root cache"). If the
// database itself is IPv4-only, the IPv4 subtree *is* the whole tree, so
// the start node is 0 at depth 0.
func ipv4StartNode(buf buffer.Buffer, m Metadata) (node uint, depth int, err error) {
	if m.IPVersion != 6 {
		return 0, 0, nil
	}
	node = 0
	i := 0
	for ; i < 96 && node < m.NodeCount; i++ {
		next, err := readNode(buf, m, node, 0)
		if err != nil {
			return 0, 0, err
		}
		node = next
	}
	return node, i, nil
}
