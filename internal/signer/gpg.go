package signer

import (
	"bytes"
	"crypto"
	"fmt"
	"io"
	"os"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
	"github.com/ProtonMail/go-crypto/openpgp/packet"
)

var signConfig = &packet.Config{DefaultHash: crypto.SHA512}

// GPGSigner implements Signer interface using an OpenPGP private key
type GPGSigner struct {
	entity *openpgp.Entity
}

// NewGPGSigner loads the first key of an armored or binary keyring file.
// Encrypted keys and subkeys are unlocked with passphrase.
func NewGPGSigner(keyPath, passphrase string) (*GPGSigner, error) {
	if keyPath == "" {
		return nil, fmt.Errorf("key path is empty")
	}

	data, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	entities, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(data))
	if err != nil {
		entities, err = openpgp.ReadKeyRing(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to read key: %w", err)
		}
	}
	if len(entities) == 0 {
		return nil, fmt.Errorf("no keys found in %s", keyPath)
	}

	entity := entities[0]
	if err := unlock(entity, passphrase); err != nil {
		return nil, err
	}
	return NewEntitySigner(entity), nil
}

// NewEntitySigner wraps an already unlocked entity
func NewEntitySigner(entity *openpgp.Entity) *GPGSigner {
	return &GPGSigner{entity: entity}
}

func unlock(entity *openpgp.Entity, passphrase string) error {
	if passphrase == "" {
		return nil
	}
	if pk := entity.PrivateKey; pk != nil && pk.Encrypted {
		if err := pk.Decrypt([]byte(passphrase)); err != nil {
			return fmt.Errorf("failed to decrypt private key: %w", err)
		}
	}
	for _, sub := range entity.Subkeys {
		if pk := sub.PrivateKey; pk != nil && pk.Encrypted {
			if err := pk.Decrypt([]byte(passphrase)); err != nil {
				return fmt.Errorf("failed to decrypt subkey: %w", err)
			}
		}
	}
	return nil
}

// SignDetached creates an armored detached signature
func (s *GPGSigner) SignDetached(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := s.sign(&buf, bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SignFile signs the file at path and writes the signature next to it
func (s *GPGSigner) SignFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	sigPath := path + ".asc"
	out, err := os.Create(sigPath)
	if err != nil {
		return "", err
	}

	if err := s.sign(out, f); err != nil {
		out.Close()
		os.Remove(sigPath)
		return "", fmt.Errorf("failed to sign %s: %w", path, err)
	}
	return sigPath, out.Close()
}

func (s *GPGSigner) sign(w io.Writer, r io.Reader) error {
	if err := openpgp.ArmoredDetachSign(w, s.entity, r, signConfig); err != nil {
		return fmt.Errorf("failed to create detached signature: %w", err)
	}
	return nil
}

// GetPublicKey returns the public key in armored format
func (s *GPGSigner) GetPublicKey() ([]byte, error) {
	var buf bytes.Buffer

	w, err := armor.Encode(&buf, openpgp.PublicKeyType, nil)
	if err != nil {
		return nil, err
	}
	if err := s.entity.Serialize(w); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
