package cache

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"
)

// Entry file layout:
//
//	"IMGC" | version (1 byte) | header length (uint32, big endian) | JSON header | payload
//
// The header and payload live in one file so a single rename publishes both.
const (
	entryMagic     = "IMGC"
	entryVersion   = 1
	entryPrefixLen = len(entryMagic) + 1 + 4
	maxHeaderLen   = 64 << 10
)

var errCorruptEntry = errors.New("cache: corrupt entry file")

// entryHeader is the persisted metadata record of a disk entry. The last
// access time is kept as the file modification time.
type entryHeader struct {
	Key       Key       `json:"key"`
	Namespace string    `json:"namespace"`
	Permanent bool      `json:"permanent"`
	SizeBytes int64     `json:"size_bytes"`
	StoredAt  time.Time `json:"stored_at"`
}

func encodeEntryFile(w io.Writer, h entryHeader, payload []byte) error {
	if h.SizeBytes != int64(len(payload)) {
		return fmt.Errorf("cache: header size %d does not match payload size %d", h.SizeBytes, len(payload))
	}
	header, err := json.Marshal(h)
	if err != nil {
		return err
	}
	if len(header) > maxHeaderLen {
		return fmt.Errorf("cache: entry header too large (%d bytes)", len(header))
	}

	prefix := make([]byte, entryPrefixLen)
	copy(prefix, entryMagic)
	prefix[len(entryMagic)] = entryVersion
	binary.BigEndian.PutUint32(prefix[len(entryMagic)+1:], uint32(len(header)))

	for _, chunk := range [][]byte{prefix, header, payload} {
		if _, err := w.Write(chunk); err != nil {
			return err
		}
	}
	return nil
}

// readEntryHeader reads only the prefix and header of an entry file.
func readEntryHeader(r io.Reader) (entryHeader, error) {
	prefix := make([]byte, entryPrefixLen)
	if _, err := io.ReadFull(r, prefix); err != nil {
		return entryHeader{}, fmt.Errorf("%w: %v", errCorruptEntry, err)
	}
	n, err := parsePrefix(prefix)
	if err != nil {
		return entryHeader{}, err
	}
	raw := make([]byte, n)
	if _, err := io.ReadFull(r, raw); err != nil {
		return entryHeader{}, fmt.Errorf("%w: %v", errCorruptEntry, err)
	}
	return parseHeader(raw)
}

// decodeEntryFile splits a complete entry file into header and payload.
func decodeEntryFile(data []byte) (entryHeader, []byte, error) {
	r := bytes.NewReader(data)
	h, err := readEntryHeader(r)
	if err != nil {
		return entryHeader{}, nil, err
	}
	payload := data[len(data)-r.Len():]
	if int64(len(payload)) != h.SizeBytes {
		return entryHeader{}, nil, fmt.Errorf("%w: payload is %d bytes, header says %d", errCorruptEntry, len(payload), h.SizeBytes)
	}
	return h, payload, nil
}

func parsePrefix(prefix []byte) (int, error) {
	if string(prefix[:len(entryMagic)]) != entryMagic {
		return 0, fmt.Errorf("%w: bad magic", errCorruptEntry)
	}
	if v := prefix[len(entryMagic)]; v != entryVersion {
		return 0, fmt.Errorf("%w: unsupported version %d", errCorruptEntry, v)
	}
	n := binary.BigEndian.Uint32(prefix[len(entryMagic)+1:])
	if n == 0 || n > maxHeaderLen {
		return 0, fmt.Errorf("%w: header length %d", errCorruptEntry, n)
	}
	return int(n), nil
}

func parseHeader(raw []byte) (entryHeader, error) {
	var h entryHeader
	if err := json.Unmarshal(raw, &h); err != nil {
		return entryHeader{}, fmt.Errorf("%w: %v", errCorruptEntry, err)
	}
	if !h.Key.Valid() || h.SizeBytes < 0 {
		return entryHeader{}, fmt.Errorf("%w: invalid header", errCorruptEntry)
	}
	return h, nil
}
