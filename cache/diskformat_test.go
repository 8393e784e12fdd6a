package cache

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
	"time"
)

func encodeTestEntry(t *testing.T, h entryHeader, payload []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := encodeEntryFile(&buf, h, payload); err != nil {
		t.Fatalf("encodeEntryFile() error = %v", err)
	}
	return buf.Bytes()
}

func TestEntryFile_Decode(t *testing.T) {
	payload := []byte("not really a png")
	h := entryHeader{
		Key:       testKey('a'),
		Namespace: "ns",
		Permanent: true,
		SizeBytes: int64(len(payload)),
		StoredAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	data := encodeTestEntry(t, h, payload)

	if !bytes.HasPrefix(data, []byte(entryMagic)) {
		t.Errorf("entry file does not start with %q", entryMagic)
	}

	got, gotPayload, err := decodeEntryFile(data)
	if err != nil {
		t.Fatalf("decodeEntryFile() error = %v", err)
	}
	if got.Key != h.Key || got.Namespace != h.Namespace || !got.Permanent || got.SizeBytes != h.SizeBytes {
		t.Errorf("header = %+v, want %+v", got, h)
	}
	if !got.StoredAt.Equal(h.StoredAt) {
		t.Errorf("StoredAt = %v, want %v", got.StoredAt, h.StoredAt)
	}
	if !bytes.Equal(gotPayload, payload) {
		t.Errorf("payload = %q, want %q", gotPayload, payload)
	}

	onlyHeader, err := readEntryHeader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("readEntryHeader() error = %v", err)
	}
	if onlyHeader.Key != h.Key {
		t.Errorf("readEntryHeader() key = %s", onlyHeader.Key)
	}
}

func TestEntryFile_SizeMismatchRejectedOnEncode(t *testing.T) {
	var buf bytes.Buffer
	err := encodeEntryFile(&buf, entryHeader{Key: testKey('a'), SizeBytes: 3}, []byte("four"))
	if err == nil {
		t.Fatal("encodeEntryFile() error = nil for mismatched size")
	}
}

func TestEntryFile_Corrupt(t *testing.T) {
	payload := []byte("payload")
	valid := encodeTestEntry(t, entryHeader{
		Key:       testKey('b'),
		Namespace: "ns",
		SizeBytes: int64(len(payload)),
	}, payload)

	badVersion := bytes.Clone(valid)
	badVersion[len(entryMagic)] = entryVersion + 1

	hugeHeader := bytes.Clone(valid)
	binary.BigEndian.PutUint32(hugeHeader[len(entryMagic)+1:], maxHeaderLen+1)

	badKey := encodeTestEntryRaw(`{"key":"nope","namespace":"ns","size_bytes":0}`)

	tests := map[string][]byte{
		"empty":            nil,
		"short prefix":     valid[:3],
		"bad magic":        append([]byte("GIF8"), valid[4:]...),
		"bad version":      badVersion,
		"header too large": hugeHeader,
		"truncated header": valid[:entryPrefixLen+5],
		"truncated body":   valid[:len(valid)-1],
		"extra body":       append(bytes.Clone(valid), 'x'),
		"invalid key":      badKey,
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, err := decodeEntryFile(data)
			if !errors.Is(err, errCorruptEntry) {
				t.Errorf("decodeEntryFile() error = %v, want errCorruptEntry", err)
			}
		})
	}
}

// encodeTestEntryRaw builds an entry file around a hand-written header.
func encodeTestEntryRaw(header string) []byte {
	prefix := make([]byte, entryPrefixLen)
	copy(prefix, entryMagic)
	prefix[len(entryMagic)] = entryVersion
	binary.BigEndian.PutUint32(prefix[len(entryMagic)+1:], uint32(len(header)))
	return append(prefix, header...)
}
