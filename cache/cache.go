package cache

import (
	"image"
	"regexp"
	"time"
)

// DefaultNamespace is the namespace of the process-wide shared coordinator.
const DefaultNamespace = "default"

// MaxNamespaceLength is the maximum allowed length for a namespace identifier.
const MaxNamespaceLength = 128

var namespacePattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// Key is a request fingerprint: 64 lowercase hex characters of a SHA-256 sum.
type Key string

// String returns the key as a string.
func (k Key) String() string {
	return string(k)
}

// Shard returns the two-character fan-out prefix used by the disk layout.
func (k Key) Shard() string {
	if len(k) < 2 {
		return "00"
	}
	return string(k[:2])
}

// Valid reports whether k looks like a key produced by a Keyer.
func (k Key) Valid() bool {
	if len(k) != keyLength {
		return false
	}
	for i := 0; i < len(k); i++ {
		c := k[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// Entry is a cached image and its retention metadata.
//
// The memory tier holds decoded images in Image; the disk tier holds encoded
// bytes in Data. SizeBytes is the footprint charged against the tier budget.
type Entry struct {
	Key        Key
	Namespace  string
	Image      image.Image
	Data       []byte
	SizeBytes  int64
	Permanent  bool
	LastAccess time.Time
}

// IsEvictable reports whether space-pressure eviction may remove e.
// Both tiers use this predicate; permanent entries only leave a tier through
// an explicit remove or a full clear.
func IsEvictable(e Entry) bool {
	return !e.Permanent
}

// ValidateNamespace checks if ns can be used as a namespace identifier.
// Namespaces double as directory names on disk.
func ValidateNamespace(ns string) error {
	if ns == "" || len(ns) > MaxNamespaceLength {
		return ErrInvalidNamespace
	}
	if ns == "." || ns == ".." || !namespacePattern.MatchString(ns) {
		return ErrInvalidNamespace
	}
	return nil
}

// EstimateSize returns the in-memory footprint of a decoded image,
// assuming four bytes per pixel.
func EstimateSize(img image.Image) int64 {
	if img == nil {
		return 0
	}
	b := img.Bounds()
	return int64(b.Dx()) * int64(b.Dy()) * 4
}
