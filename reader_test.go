package mmdbquery

import (
	"net"
	"net/netip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildIPv4TestDB(t *testing.T) []byte {
	t.Helper()
	b := newMMDBBuilder(4)
	b.insert(net.ParseIP("1.2.3.0").To4(), 24, "A", vMap(
		kv("city", vString("San Francisco")),
		kv("pop", vUint32(883305)),
	))
	b.insert(net.ParseIP("1.2.4.0").To4(), 24, "B", vMap(
		kv("city", vString("Oakland")),
	))
	return b.build(24, "Test-IPv4")
}

func buildIPv6TestDB(t *testing.T) []byte {
	t.Helper()
	b := newMMDBBuilder(6)
	// The IPv4 subtree of an IPv6 database is rooted 96 zero bits down from
	// the root (spec §3's IPv4 root cache), so an IPv4 entry must be
	// inserted as ::a.b.c.0/120 rather than a.b.c.0/24.
	ipv4In6 := netip.MustParseAddr("::1.2.3.0").As16()
	b.insert(ipv4In6[:], 96+24, "A", vString("ipv4-via-ipv6"))
	b.insert(net.ParseIP("2001:db8::").To16(), 32, "C", vString("ipv6-native"))
	return b.build(28, "Test-IPv6")
}

func TestOpenFromBytes(t *testing.T) {
	data := buildIPv4TestDB(t)
	db, err := FromBytes(data)
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, uint(4), db.Metadata.IPVersion)
	assert.Equal(t, "Test-IPv4", db.Metadata.DatabaseType)
	assert.Equal(t, uint(24), db.Metadata.RecordSize)
}

func TestOpenFromFile(t *testing.T) {
	data := buildIPv4TestDB(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "test.mmdb")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	for _, mode := range []Mode{AUTO, MMAP, FILE, MEMORY} {
		db, err := Open(path, WithMode(mode))
		require.NoError(t, err, "mode %v", mode)
		rec, err := db.Get("1.2.3.1")
		require.NoError(t, err, "mode %v", mode)
		assert.Equal(t, "San Francisco", rec.Map()["city"].String(), "mode %v", mode)
		require.NoError(t, db.Close())
	}
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.mmdb"))
	require.Error(t, err)
	var notFound FileNotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestOpenEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.mmdb")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	_, err := Open(path)
	require.Error(t, err)
	var invalid InvalidDatabaseError
	require.ErrorAs(t, err, &invalid)
}

func TestGetFound(t *testing.T) {
	data := buildIPv4TestDB(t)
	db, err := FromBytes(data)
	require.NoError(t, err)
	defer db.Close()

	rec, prefixLen, err := db.GetWithPrefixLen("1.2.3.42")
	require.NoError(t, err)
	assert.Equal(t, 24, prefixLen)
	assert.Equal(t, KindMap, rec.Kind())
	assert.Equal(t, "San Francisco", rec.Map()["city"].String())
	assert.Equal(t, uint32(883305), rec.Map()["pop"].Uint32())

	rec2, _, err := db.GetWithPrefixLen("1.2.4.200")
	require.NoError(t, err)
	assert.Equal(t, "Oakland", rec2.Map()["city"].String())
}

func TestGetNotFound(t *testing.T) {
	data := buildIPv4TestDB(t)
	db, err := FromBytes(data)
	require.NoError(t, err)
	defer db.Close()

	rec, prefixLen, err := db.GetWithPrefixLen("8.8.8.8")
	require.NoError(t, err)
	assert.Equal(t, KindExtended, rec.Kind())
	assert.GreaterOrEqual(t, prefixLen, 0)
}

func TestGetAcceptsMultipleAddressTypes(t *testing.T) {
	data := buildIPv4TestDB(t)
	db, err := FromBytes(data)
	require.NoError(t, err)
	defer db.Close()

	addr := netip.MustParseAddr("1.2.3.7")
	rec, err := db.Get(addr)
	require.NoError(t, err)
	assert.Equal(t, "San Francisco", rec.Map()["city"].String())

	rec2, err := db.Get(net.ParseIP("1.2.3.7"))
	require.NoError(t, err)
	assert.Equal(t, "San Francisco", rec2.Map()["city"].String())
}

func TestGetRejectsIPv6InIPv4Database(t *testing.T) {
	data := buildIPv4TestDB(t)
	db, err := FromBytes(data)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Get("2001:db8::1")
	require.Error(t, err)
	var invalidArg InvalidArgumentError
	require.ErrorAs(t, err, &invalidArg)
}

func TestGetRejectsGarbageInput(t *testing.T) {
	data := buildIPv4TestDB(t)
	db, err := FromBytes(data)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Get("not-an-ip")
	require.Error(t, err)
	var invalidArg InvalidArgumentError
	require.ErrorAs(t, err, &invalidArg)

	_, err = db.Get(42)
	require.Error(t, err)
}

func TestIPv4InIPv6Database(t *testing.T) {
	data := buildIPv6TestDB(t)
	db, err := FromBytes(data)
	require.NoError(t, err)
	defer db.Close()

	rec, prefixLen, err := db.GetWithPrefixLen("1.2.3.9")
	require.NoError(t, err)
	assert.Equal(t, "ipv4-via-ipv6", rec.String())
	// prefixLen is key-relative (bits of the 32-bit IPv4 key consumed), not
	// the tree's absolute depth (96 + 24): it must fall within [0, 32] and
	// match the /24 networks.go reports for this same entry.
	assert.Equal(t, 24, prefixLen)

	rec2, err := db.Get("2001:db8::1")
	require.NoError(t, err)
	assert.Equal(t, "ipv6-native", rec2.String())
}

func TestCloseIdempotent(t *testing.T) {
	data := buildIPv4TestDB(t)
	db, err := FromBytes(data)
	require.NoError(t, err)

	require.NoError(t, db.Close())
	require.NoError(t, db.Close())
	assert.True(t, db.Closed())
}

func TestMetadataReadableAfterClose(t *testing.T) {
	data := buildIPv4TestDB(t)
	db, err := FromBytes(data)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	assert.Equal(t, "Test-IPv4", db.Metadata.DatabaseType)
}

func TestGetAfterCloseReturnsClosedError(t *testing.T) {
	data := buildIPv4TestDB(t)
	db, err := FromBytes(data)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = db.Get("1.2.3.1")
	require.Error(t, err)
	assert.ErrorIs(t, err, errClosed)
}

func TestOpenInvalidData(t *testing.T) {
	_, err := FromBytes([]byte("not an mmdb file"))
	require.Error(t, err)
	var invalidDB InvalidDatabaseError
	require.ErrorAs(t, err, &invalidDB)
}
