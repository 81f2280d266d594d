package mmdbquery

import (
	"net"
	"net/netip"
)

// addressKey is the normalized form of a lookup address: the packed
// address bytes (4 for IPv4, 16 for IPv6) and the bit length to traverse
// (32 or 128). This is spec §4.6's AddressKey component.
type addressKey struct {
	packed  []byte
	bitLen  int
	display string
}

// parseAddress normalizes addr to an addressKey, enforcing that an IPv4
// address packs as 4 bytes/32 bits rather than being widened to its
// IPv4-in-IPv6 form (spec §3's "IPv4-in-IPv4 rule").
func parseAddress(addr any) (addressKey, error) {
	switch v := addr.(type) {
	case string:
		parsed, err := netip.ParseAddr(v)
		if err != nil {
			return addressKey{}, newInvalidArgumentError("error parsing IP address %q: %v", v, err)
		}
		return keyFromAddr(parsed), nil
	case netip.Addr:
		if !v.IsValid() {
			return addressKey{}, newInvalidArgumentError("error parsing IP address: zero netip.Addr")
		}
		return keyFromAddr(v), nil
	case net.IP:
		parsed, ok := netip.AddrFromSlice(v)
		if !ok {
			return addressKey{}, newInvalidArgumentError("error parsing IP address: invalid net.IP of length %d", len(v))
		}
		return keyFromAddr(parsed.Unmap()), nil
	default:
		return addressKey{}, newInvalidArgumentError("error parsing IP address: unsupported type %T", addr)
	}
}

func keyFromAddr(addr netip.Addr) addressKey {
	addr = addr.Unmap()
	if addr.Is4() {
		b := addr.As4()
		return addressKey{packed: b[:], bitLen: 32, display: addr.String()}
	}
	b := addr.As16()
	return addressKey{packed: b[:], bitLen: 128, display: addr.String()}
}

func (k addressKey) bit(i int) uint {
	byteIdx := i >> 3
	bitPos := 7 - (i & 7)
	return (uint(k.packed[byteIdx]) >> bitPos) & 1
}
