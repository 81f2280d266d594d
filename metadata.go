package mmdbquery

import (
	"bytes"

	"github.com/geoipcore/mmdbquery/internal/decoder"
	"github.com/geoipcore/mmdbquery/internal/mmdberrors"
)

const dataSectionSeparatorSize = 16

var metadataStartMarker = []byte("\xAB\xCD\xEFMaxMind.com")

// Metadata holds the metadata decoded from the MaxMind DB file (spec §3).
type Metadata struct {
	// Description maps a language code (e.g. "en") to a UTF-8 description
	// of the database.
	Description map[string]string
	// DatabaseType names the structure of the records this database holds.
	DatabaseType string
	// Languages lists the locale codes this database may contain localized
	// data for.
	Languages []string
	// BinaryFormatMajorVersion and BinaryFormatMinorVersion identify the
	// on-disk MMDB format revision.
	BinaryFormatMajorVersion uint
	BinaryFormatMinorVersion uint
	// BuildEpoch is the database build timestamp as Unix epoch seconds.
	BuildEpoch uint
	// IPVersion is 4 for an IPv4-only database, 6 for IPv4-and-IPv6.
	IPVersion uint
	// NodeCount is the number of nodes in the search tree.
	NodeCount uint
	// RecordSize is the bit width of each child record in a tree node: 24,
	// 28, or 32.
	RecordSize uint
}

// NodeByteSize is the number of bytes one full tree node (both children)
// occupies on disk.
func (m Metadata) NodeByteSize() uint {
	return m.RecordSize / 4
}

// SearchTreeSize is the total byte length of the search tree.
func (m Metadata) SearchTreeSize() uint {
	return m.NodeCount * m.NodeByteSize()
}

// findMetadataStart reverse-scans the last 128 KiB of buffer for the
// sentinel and returns the offset immediately after it — the last
// occurrence wins, per spec §3.
func findMetadataStart(buffer []byte) (int, error) {
	const maxSearchWindow = 128 * 1024
	start := 0
	if len(buffer) > maxSearchWindow {
		start = len(buffer) - maxSearchWindow
	}
	idx := bytes.LastIndex(buffer[start:], metadataStartMarker)
	if idx == -1 {
		return 0, mmdberrors.NewInvalidDatabaseError(
			"error opening database: invalid MaxMind DB file",
		)
	}
	return start + idx + len(metadataStartMarker), nil
}

// decodeMetadata decodes the metadata map beginning at metadataStart. The
// decoder is built in pointer test mode (spec §4.2/§4.3): metadata has no
// legitimate reason to contain a pointer, so rather than letting one
// resolve against the wrong origin, the raw integer is surfaced instead.
func decodeMetadata(buffer []byte, metadataStart int) (Metadata, uint, error) {
	d := decoder.NewWithRawPointers(buffer[metadataStart:])
	val, _, err := decoder.Decode(d, 0)
	if err != nil {
		return Metadata{}, 0, translateDecodeError(err)
	}
	if val.Kind() != decoder.KindMap {
		return Metadata{}, 0, InvalidDatabaseError{
			err: mmdberrors.NewInvalidDatabaseError("metadata is not a map"),
		}
	}

	m, err := metadataFromValue(val)
	if err != nil {
		return Metadata{}, 0, err
	}
	if err := validateMetadata(m); err != nil {
		return Metadata{}, 0, err
	}
	return m, uint(metadataStart), nil
}

func metadataFromValue(val decoder.Value) (Metadata, error) {
	fields := val.Map()
	m := Metadata{}

	var err error
	if m.NodeCount, err = requireUint(fields, "node_count"); err != nil {
		return Metadata{}, err
	}
	if m.RecordSize, err = requireUint(fields, "record_size"); err != nil {
		return Metadata{}, err
	}
	if m.IPVersion, err = requireUint(fields, "ip_version"); err != nil {
		return Metadata{}, err
	}
	if m.DatabaseType, err = requireString(fields, "database_type"); err != nil {
		return Metadata{}, err
	}
	if m.Languages, err = requireStringSlice(fields, "languages"); err != nil {
		return Metadata{}, err
	}
	if m.BinaryFormatMajorVersion, err = requireUint(fields, "binary_format_major_version"); err != nil {
		return Metadata{}, err
	}
	if m.BinaryFormatMinorVersion, err = requireUint(fields, "binary_format_minor_version"); err != nil {
		return Metadata{}, err
	}
	if m.BuildEpoch, err = requireUint(fields, "build_epoch"); err != nil {
		return Metadata{}, err
	}
	if m.Description, err = requireStringMap(fields, "description"); err != nil {
		return Metadata{}, err
	}
	return m, nil
}

func validateMetadata(m Metadata) error {
	if m.RecordSize != 24 && m.RecordSize != 28 && m.RecordSize != 32 {
		return InvalidDatabaseError{err: mmdberrors.NewInvalidDatabaseError(
			"unsupported record_size: %d", m.RecordSize,
		)}
	}
	if m.IPVersion != 4 && m.IPVersion != 6 {
		return InvalidDatabaseError{err: mmdberrors.NewInvalidDatabaseError(
			"unsupported ip_version: %d", m.IPVersion,
		)}
	}
	return nil
}

func requireUint(fields map[string]decoder.Value, key string) (uint, error) {
	v, ok := fields[key]
	if !ok {
		return 0, missingFieldErr(key)
	}
	switch v.Kind() {
	case decoder.KindUint16:
		return uint(v.Uint16()), nil
	case decoder.KindUint32:
		return uint(v.Uint32()), nil
	case decoder.KindUint64:
		return uint(v.Uint64()), nil
	default:
		return 0, wrongFieldTypeErr(key, v)
	}
}

func requireString(fields map[string]decoder.Value, key string) (string, error) {
	v, ok := fields[key]
	if !ok {
		return "", missingFieldErr(key)
	}
	if v.Kind() != decoder.KindString {
		return "", wrongFieldTypeErr(key, v)
	}
	return v.String(), nil
}

func requireStringSlice(fields map[string]decoder.Value, key string) ([]string, error) {
	v, ok := fields[key]
	if !ok {
		return nil, missingFieldErr(key)
	}
	if v.Kind() != decoder.KindSlice {
		return nil, wrongFieldTypeErr(key, v)
	}
	out := make([]string, 0, len(v.Slice()))
	for _, e := range v.Slice() {
		if e.Kind() != decoder.KindString {
			return nil, wrongFieldTypeErr(key, e)
		}
		out = append(out, e.String())
	}
	return out, nil
}

func requireStringMap(fields map[string]decoder.Value, key string) (map[string]string, error) {
	v, ok := fields[key]
	if !ok {
		return nil, missingFieldErr(key)
	}
	if v.Kind() != decoder.KindMap {
		return nil, wrongFieldTypeErr(key, v)
	}
	out := make(map[string]string, len(v.Map()))
	for k, e := range v.Map() {
		if e.Kind() != decoder.KindString {
			return nil, wrongFieldTypeErr(key, e)
		}
		out[k] = e.String()
	}
	return out, nil
}

func missingFieldErr(key string) error {
	return InvalidDatabaseError{err: mmdberrors.NewInvalidDatabaseError(
		"the MaxMind DB contains invalid metadata: missing %q", key,
	)}
}

func wrongFieldTypeErr(key string, v decoder.Value) error {
	return InvalidDatabaseError{err: mmdberrors.NewInvalidDatabaseError(
		"the MaxMind DB contains invalid metadata: %q has unexpected type %s", key, v.Kind(),
	)}
}
