package utils

import (
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"io"
	"os"
)

// Checksum contains the digests published alongside a bundle
type Checksum struct {
	SHA256 string
	SHA512 string
	Size   int64
}

// CalculateChecksums calculates all checksums for a file in a single pass
func CalculateChecksums(path string) (*Checksum, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sha256Hash := sha256.New()
	sha512Hash := sha512.New()

	// Stream file through all hashes
	size, err := io.Copy(io.MultiWriter(sha256Hash, sha512Hash), f)
	if err != nil {
		return nil, err
	}

	return &Checksum{
		SHA256: hex.EncodeToString(sha256Hash.Sum(nil)),
		SHA512: hex.EncodeToString(sha512Hash.Sum(nil)),
		Size:   size,
	}, nil
}
