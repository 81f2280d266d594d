package mmdbquery

import (
	"net/netip"

	"github.com/geoipcore/mmdbquery/internal/decoder"
)

// networksFrame is one node still waiting to be visited, together with the
// address bits accumulated on the path from the tree root. This
// generalizes the teacher's own Iterator/nodeip bookkeeping (traverse.go)
// from a breadth-first queue over net.IP to a depth-first stack over a
// fixed-size bit array, which is what yields networks in ascending address
// order: push the right (1) child before the left (0) child, so the left
// child — the lower half of the address range — always pops first.
type networksFrame struct {
	node  uint
	bits  [16]byte
	depth int
}

func (f networksFrame) withBit(bit uint) networksFrame {
	next := f
	next.depth++
	if bit != 0 {
		byteIdx := f.depth >> 3
		bitPos := 7 - (f.depth & 7)
		next.bits[byteIdx] |= 1 << uint(bitPos)
	}
	return next
}

// isZeroPrefix96 reports whether the first 96 bits accumulated on f's path
// are all zero — the only way to deterministically reach the cached IPv4
// subtree root by descending from the tree's actual node 0 (spec §3's "IPv4
// root cache" is defined as exactly this walk).
func (f networksFrame) isZeroPrefix96() bool {
	for _, b := range f.bits[:12] {
		if b != 0 {
			return false
		}
	}
	return true
}

// Networks iterates every network recorded in a Reader's search tree in
// ascending address order (spec §4.4/§8 scenario 6). The zero value is not
// usable; obtain one from Reader.Networks.
type Networks struct {
	r *Reader

	// ipv4Stack walks the IPv4 subtree alone, yielded first and rendered
	// in dotted IPv4 form (spec §4.4: "emits IPv4 prefixes first in mixed
	// DBs"). Only populated for an IPv6 database that actually has a
	// dedicated IPv4 subtree.
	ipv4Stack []networksFrame
	// stack walks the full address space from the real root. The frame
	// exactly matching the canonical all-zero 96-bit path into the IPv4
	// subtree is skipped here — it was already emitted via ipv4Stack — but
	// any other path that happens to alias into the same subtree (node
	// sharing) is walked and rendered in IPv6 form, per spec §4.4.
	stack  []networksFrame
	bitLen int

	cur       networksFrame
	curIsIPv4 bool
	curValid  bool
	err       error
}

// Networks returns an iterator over every network in db, walking the
// search tree exactly as it is laid out on disk. An IPv6 database's
// dedicated IPv4 subtree (reached by 96 leading zero bits from the root) is
// rendered using dotted IPv4 notation and visited first; everything else,
// including any other tree path that happens to alias into that same
// subtree, is rendered as a full-width IPv6 prefix.
func (r *Reader) Networks() *Networks {
	if r.closed.Load() {
		return &Networks{r: r, err: errClosed}
	}

	if r.Metadata.IPVersion != 6 {
		return &Networks{
			r:      r,
			bitLen: 32,
			stack:  []networksFrame{{node: 0, depth: 0}},
		}
	}

	n := &Networks{r: r, bitLen: 128, stack: []networksFrame{{node: 0, depth: 0}}}
	ipv4Node, ipv4Depth, err := r.getIPv4Start(addressKey{bitLen: 32})
	if err != nil {
		n.err = translateDecodeError(err)
		return n
	}
	if ipv4Depth == 96 {
		n.ipv4Stack = []networksFrame{{node: ipv4Node, depth: 0}}
	}
	return n
}

// Next advances the iterator and reports whether a network is available
// via Network. It returns false at the end of iteration or on error; call
// Err afterward to distinguish the two.
func (n *Networks) Next() bool {
	if n.err != nil {
		return false
	}

	if ok := n.advance(&n.ipv4Stack, 32, true); ok {
		return true
	}
	if n.err != nil {
		return false
	}
	return n.advance(&n.stack, n.bitLen, false)
}

// advance pops frames off *stack until it finds a terminal record, pushing
// children of internal nodes as it goes. On the main (non-IPv4, isIPv4
// false) stack of an IPv6 database, the canonical all-zero 96-bit path is
// skipped outright: it belongs to the ipv4Stack walk and must not be
// emitted twice.
func (n *Networks) advance(stack *[]networksFrame, bitLen int, isIPv4 bool) bool {
	for len(*stack) > 0 {
		top := (*stack)[len(*stack)-1]
		*stack = (*stack)[:len(*stack)-1]

		if !isIPv4 && n.bitLen == 128 && top.depth == 96 && top.isZeroPrefix96() {
			continue
		}

		switch {
		case top.depth > bitLen:
			n.err = translateDecodeErrorMsg("the MaxMind DB file's search tree is corrupt")
			return false
		case top.node > n.r.Metadata.NodeCount:
			n.cur = top
			n.curIsIPv4 = isIPv4
			n.curValid = true
			return true
		case top.node == n.r.Metadata.NodeCount:
			continue
		}

		rightNode, err := readNode(n.r.buf, n.r.Metadata, top.node, 1)
		if err != nil {
			n.err = translateDecodeError(err)
			return false
		}
		leftNode, err := readNode(n.r.buf, n.r.Metadata, top.node, 0)
		if err != nil {
			n.err = translateDecodeError(err)
			return false
		}

		right := top.withBit(1)
		right.node = rightNode
		left := top.withBit(0)
		left.node = leftNode

		// Right is pushed first so left — the lower half of this node's
		// address range — is popped and visited first.
		*stack = append(*stack, right, left)
	}
	return false
}

// Network returns the prefix and record the most recent Next call
// advanced to.
func (n *Networks) Network() (netip.Prefix, Record, error) {
	if !n.curValid {
		return netip.Prefix{}, Record{}, translateDecodeErrorMsg("Network called without a preceding successful Next")
	}

	offset := n.cur.node - n.r.Metadata.NodeCount - dataSectionSeparatorSize
	interner := n.r.cacheProvider.Acquire()
	val, _, err := decoder.Decode(n.r.dec.WithStringInterner(interner), offset)
	n.r.cacheProvider.Release(interner)
	if err != nil {
		return netip.Prefix{}, Record{}, translateDecodeError(err)
	}

	var addr netip.Addr
	if n.curIsIPv4 {
		var b [4]byte
		copy(b[:], n.cur.bits[:4])
		addr = netip.AddrFrom4(b)
	} else {
		addr = netip.AddrFrom16(n.cur.bits)
	}
	prefix := netip.PrefixFrom(addr, n.cur.depth)

	recordIteration(n.r.metrics)
	return prefix, newRecord(val), nil
}

// Err returns the first error encountered during iteration, if any.
func (n *Networks) Err() error {
	return n.err
}
