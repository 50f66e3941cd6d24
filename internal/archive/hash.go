package archive

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/zeebo/blake3"
)

// Hash is the hex digest of an archive file. The zero value means the digest
// is unknown: the file was never materialized or could not be read. Matches
// never accepts an unknown hash; descriptor comparison treats two unknown
// hashes as the same content.
type Hash string

// NoHash is the unknown digest.
const NoHash Hash = ""

// Known reports whether the digest was actually computed.
func (h Hash) Known() bool {
	return h != NoHash
}

func (h Hash) String() string {
	if !h.Known() {
		return "<none>"
	}
	return string(h)
}

// Matches reports whether both digests are known and equal.
func (h Hash) Matches(other Hash) bool {
	return h.Known() && h == other
}

func (h Hash) MarshalJSON() ([]byte, error) {
	if !h.Known() {
		return []byte("null"), nil
	}
	return json.Marshal(string(h))
}

func (h *Hash) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*h = NoHash
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("hash must be a string or null: %w", err)
	}
	*h = Hash(s)
	return nil
}

// Validate checks that a known digest is lowercase hex.
func (h Hash) Validate() error {
	if !h.Known() {
		return nil
	}
	if _, err := hex.DecodeString(string(h)); err != nil || strings.ToLower(string(h)) != string(h) {
		return fmt.Errorf("hash '%s' is not lowercase hex", string(h))
	}
	return nil
}

// Algorithm names the digest used for archive hashes across a repository.
type Algorithm string

const (
	SHA1   Algorithm = "sha1"
	SHA256 Algorithm = "sha256"
	BLAKE3 Algorithm = "blake3"
)

// DefaultAlgorithm matches the digests already recorded in existing
// package and revision files.
const DefaultAlgorithm = SHA1

// ParseAlgorithm maps a config value to an Algorithm; empty selects the
// default.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch Algorithm(strings.ToLower(strings.TrimSpace(name))) {
	case "", SHA1:
		return SHA1, nil
	case SHA256:
		return SHA256, nil
	case BLAKE3:
		return BLAKE3, nil
	default:
		return "", fmt.Errorf("unknown hash algorithm: %q", name)
	}
}

func (a Algorithm) newHash() hash.Hash {
	switch a {
	case SHA256:
		return sha256.New()
	case BLAKE3:
		return blake3.New()
	default:
		return sha1.New()
	}
}

// Reader digests everything read from r.
func (a Algorithm) Reader(r io.Reader) (Hash, error) {
	h := a.newHash()
	if _, err := io.Copy(h, r); err != nil {
		return NoHash, err
	}
	return Hash(hex.EncodeToString(h.Sum(nil))), nil
}

// File digests the file at path. Missing, unreadable and non-regular paths
// yield NoHash.
func (a Algorithm) File(path string) Hash {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return NoHash
	}
	f, err := os.Open(path)
	if err != nil {
		return NoHash
	}
	defer f.Close()
	h, err := a.Reader(f)
	if err != nil {
		return NoHash
	}
	return h
}

// ComputeHash digests path with the default algorithm.
func ComputeHash(path string) Hash {
	return DefaultAlgorithm.File(path)
}
