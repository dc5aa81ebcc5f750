package tenf

import (
	"strings"
	"time"

	"github.com/Redshadow31/tenf-v2-sub007/blobstore"
)

// FollowValidations is the collection holding monthly staff follow
// validations.
const FollowValidations = "tenf-follow-validations"

const (
	recordExt       = ".json"
	partitionLayout = "2006-01"
)

// Key is a logical record key: <collection>/<partition>/<entity>.json.
//
// The same Key maps to the same record on every backend.
type Key struct {
	Collection string
	Partition  string
	// Entity is stored without the ".json" suffix.
	Entity string
}

// NewKey builds a Key. An entity already ending in ".json" is not suffixed a
// second time, so NewKey is deterministic for both spellings.
func NewKey(collection, partition, entity string) Key {
	return Key{
		Collection: collection,
		Partition:  partition,
		Entity:     strings.TrimSuffix(entity, recordExt),
	}
}

// MonthKey builds a Key partitioned by the UTC month of t.
func MonthKey(collection string, t time.Time, entity string) Key {
	return NewKey(collection, MonthPartition(t), entity)
}

// String returns the canonical key, e.g.
// "tenf-follow-validations/2024-06/alice.json".
func (k Key) String() string {
	return k.Collection + "/" + k.Partition + "/" + k.Entity + recordExt
}

// Prefix returns the partition prefix of k.
func (k Key) Prefix() string {
	return PartitionPrefix(k.Collection, k.Partition)
}

// Validate checks that k renders to a valid key.
func (k Key) Validate() error {
	for _, seg := range []struct{ name, value string }{
		{"collection", k.Collection},
		{"partition", k.Partition},
		{"entity", k.Entity},
	} {
		if seg.value == "" {
			return &InvalidKeyError{Key: k.String(), Reason: "empty " + seg.name}
		}
		if strings.Contains(seg.value, "/") {
			return &InvalidKeyError{Key: k.String(), Reason: seg.name + " contains '/'"}
		}
	}
	return ValidateKey(k.String())
}

// MonthPartition formats t as a "YYYY-MM" partition in UTC.
func MonthPartition(t time.Time) string {
	return t.UTC().Format(partitionLayout)
}

// ParseMonth parses a "YYYY-MM" partition.
func ParseMonth(partition string) (time.Time, error) {
	t, err := time.Parse(partitionLayout, partition)
	if err != nil {
		return time.Time{}, &InvalidKeyError{Key: partition, Reason: "partition is not YYYY-MM"}
	}
	return t, nil
}

// CollectionPrefix returns "<collection>/".
func CollectionPrefix(collection string) string {
	return collection + "/"
}

// PartitionPrefix returns "<collection>/<partition>/".
func PartitionPrefix(collection, partition string) string {
	return collection + "/" + partition + "/"
}

// ParseKey splits a canonical three-segment key.
func ParseKey(s string) (Key, error) {
	if err := ValidateKey(s); err != nil {
		return Key{}, err
	}
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return Key{}, &InvalidKeyError{Key: s, Reason: "want <collection>/<partition>/<entity>.json"}
	}
	if !strings.HasSuffix(parts[2], recordExt) || parts[2] == recordExt {
		return Key{}, &InvalidKeyError{Key: s, Reason: "entity must end in " + recordExt}
	}
	return NewKey(parts[0], parts[1], parts[2]), nil
}

// ValidateKey checks a raw key accepted by Store: non-empty, relative,
// slash-separated, without empty, "." or ".." segments, backslashes or NUL
// bytes. The collection segment must not be blobstore.LocalTempDir, which
// the local backend keeps for in-flight writes.
func ValidateKey(key string) error {
	if key == "" {
		return &InvalidKeyError{Key: key, Reason: "empty key"}
	}
	if strings.HasSuffix(key, "/") {
		return &InvalidKeyError{Key: key, Reason: "key ends with '/'"}
	}
	return validatePath(key)
}

// ValidatePrefix checks a List prefix. The empty prefix and a trailing slash
// are allowed.
func ValidatePrefix(prefix string) error {
	if prefix == "" {
		return nil
	}
	return validatePath(strings.TrimSuffix(prefix, "/"))
}

func validatePath(p string) error {
	if strings.HasPrefix(p, "/") {
		return &InvalidKeyError{Key: p, Reason: "key must be relative"}
	}
	if strings.ContainsAny(p, "\\\x00") {
		return &InvalidKeyError{Key: p, Reason: "key contains a backslash or NUL byte"}
	}
	for i, seg := range strings.Split(p, "/") {
		switch seg {
		case "":
			return &InvalidKeyError{Key: p, Reason: "empty path segment"}
		case ".", "..":
			return &InvalidKeyError{Key: p, Reason: "relative path segment " + seg}
		case blobstore.LocalTempDir:
			if i == 0 {
				return &InvalidKeyError{Key: p, Reason: "reserved collection " + seg}
			}
		}
	}
	return nil
}
