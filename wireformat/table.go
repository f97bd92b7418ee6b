package wireformat

import (
	"encoding/binary"

	"github.com/reglet-dev/luabridge/domain/errors"
)

// MaxFieldSize is the largest key or value a table entry can carry.
const MaxFieldSize = 0xffff

// MaxTableSize bounds the buffer EncodeTable is willing to allocate.
// A table this large can never fit a frame, but it may still be encoded standalone.
const MaxTableSize = 64 * 1024 * 1024

// Entry is a single key/value pair of a table.
type Entry struct {
	Key   []byte
	Value []byte
}

// Table is an ordered snapshot of key/value pairs. Keys need not be unique.
type Table []Entry

// Add appends a string pair and returns the extended table.
func (t Table) Add(key, value string) Table {
	return append(t, Entry{Key: []byte(key), Value: []byte(value)})
}

// Get returns the value of the first entry with the given key.
func (t Table) Get(key string) (string, bool) {
	for _, e := range t {
		if string(e.Key) == key {
			return string(e.Value), true
		}
	}
	return "", false
}

// Map flattens the table into a map. Later duplicates win.
func (t Table) Map() map[string]string {
	m := make(map[string]string, len(t))
	for _, e := range t {
		m[string(e.Key)] = string(e.Value)
	}
	return m
}

func (e Entry) encodable() bool {
	return len(e.Key) <= MaxFieldSize && len(e.Value) <= MaxFieldSize
}

func (e Entry) size() int {
	return 2 + len(e.Key) + 2 + len(e.Value)
}

// EncodedSize returns the number of bytes EncodeTable produces for t.
// Entries whose key or value exceed MaxFieldSize do not count.
func EncodedSize(t Table) int {
	size := 0
	for _, e := range t {
		if e.encodable() {
			size += e.size()
		}
	}
	return size
}

// EncodeTable serializes t into a freshly allocated buffer of exactly
// EncodedSize(t) bytes. Oversized entries are skipped without error.
func EncodeTable(t Table) ([]byte, error) {
	return encodeTable(t, MaxTableSize)
}

func encodeTable(t Table, limit int) ([]byte, error) {
	size := EncodedSize(t)
	if size > limit {
		return nil, &errors.AllocationError{Requested: size, Limit: limit}
	}

	buf := make([]byte, size)
	off := 0
	for _, e := range t {
		if !e.encodable() {
			continue
		}
		binary.LittleEndian.PutUint16(buf[off:], uint16(len(e.Key)))
		off += 2
		off += copy(buf[off:], e.Key)
		binary.LittleEndian.PutUint16(buf[off:], uint16(len(e.Value)))
		off += 2
		off += copy(buf[off:], e.Value)
	}
	return buf[:off], nil
}

// DecodeTable parses a buffer produced by EncodeTable. Entries keep their wire order.
func DecodeTable(b []byte) (Table, error) {
	var t Table
	off := 0
	for off < len(b) {
		key, next, err := readField(b, off, "key")
		if err != nil {
			return nil, err
		}
		value, next, err := readField(b, next, "value")
		if err != nil {
			return nil, err
		}
		t = append(t, Entry{Key: key, Value: value})
		off = next
	}
	return t, nil
}

func readField(b []byte, off int, what string) ([]byte, int, error) {
	if off+2 > len(b) {
		return nil, 0, &errors.ProtocolError{Reason: "truncated " + what + " length", Offset: off}
	}
	n := int(binary.LittleEndian.Uint16(b[off:]))
	off += 2
	if off+n > len(b) {
		return nil, 0, &errors.ProtocolError{Reason: "truncated " + what, Offset: off}
	}
	return b[off : off+n : off+n], off + n, nil
}
