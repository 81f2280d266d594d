package mmdbquery

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNetworksAscendingOrder(t *testing.T) {
	b := newMMDBBuilder(4)
	b.insert(net.ParseIP("1.2.3.0").To4(), 24, "A", vString("first"))
	b.insert(net.ParseIP("1.2.4.0").To4(), 24, "B", vString("second"))
	data := b.build(24, "Test-Networks")

	db, err := FromBytes(data)
	require.NoError(t, err)
	defer db.Close()

	n := db.Networks()
	var seen []string
	for n.Next() {
		prefix, rec, err := n.Network()
		require.NoError(t, err)
		seen = append(seen, prefix.String()+"="+rec.String())
	}
	require.NoError(t, n.Err())

	require.Len(t, seen, 2)
	assert.Equal(t, "1.2.3.0/24=first", seen[0])
	assert.Equal(t, "1.2.4.0/24=second", seen[1])
}

func TestNetworksNetworkWithoutNext(t *testing.T) {
	data := buildIPv4TestDB(t)
	db, err := FromBytes(data)
	require.NoError(t, err)
	defer db.Close()

	n := db.Networks()
	_, _, err = n.Network()
	require.Error(t, err)
}

func TestNetworksOnClosedReader(t *testing.T) {
	data := buildIPv4TestDB(t)
	db, err := FromBytes(data)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	n := db.Networks()
	assert.False(t, n.Next())
	require.Error(t, n.Err())
}

func TestNetworksMixedIPv4AndIPv6(t *testing.T) {
	// Mirrors spec §8 scenario 6 (MaxMind-DB-test-mixed-24): an IPv6
	// database whose IPv4 subtree entries must come first and render in
	// dotted form, followed by native IPv6 entries in full-width form.
	data := buildIPv6TestDB(t)
	db, err := FromBytes(data)
	require.NoError(t, err)
	defer db.Close()

	n := db.Networks()
	var seen []string
	for n.Next() {
		prefix, rec, err := n.Network()
		require.NoError(t, err)
		seen = append(seen, prefix.String()+"="+rec.String())
	}
	require.NoError(t, n.Err())

	require.Len(t, seen, 2)
	assert.Equal(t, "1.2.3.0/24=ipv4-via-ipv6", seen[0])
	assert.Equal(t, "2001:db8::/32=ipv6-native", seen[1])
}

func TestNetworksIPv6(t *testing.T) {
	b := newMMDBBuilder(6)
	b.insert(net.ParseIP("2001:db8::").To16(), 32, "X", vString("native-v6"))
	data := b.build(28, "Test-Networks-v6")

	db, err := FromBytes(data)
	require.NoError(t, err)
	defer db.Close()

	n := db.Networks()
	var count int
	for n.Next() {
		prefix, rec, err := n.Network()
		require.NoError(t, err)
		if rec.Kind() == KindString {
			assert.Equal(t, "2001:db8::/32", prefix.String())
			assert.Equal(t, "native-v6", rec.String())
			count++
		}
	}
	require.NoError(t, n.Err())
	assert.Equal(t, 1, count)
}
