package signer

// Signer signs finished bundles
type Signer interface {
	// SignDetached creates an armored detached signature of data
	SignDetached(data []byte) ([]byte, error)

	// SignFile writes an armored detached signature of path to path.asc
	// and returns the signature path
	SignFile(path string) (string, error)

	// GetPublicKey returns the public key in armored format
	GetPublicKey() ([]byte, error)
}
