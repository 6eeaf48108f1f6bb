package signer

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/armor"
)

func newTestEntity(t *testing.T) *openpgp.Entity {
	t.Helper()
	entity, err := openpgp.NewEntity("Release Engineering", "test", "release@example.com", nil)
	if err != nil {
		t.Fatalf("Failed to create entity: %v", err)
	}
	return entity
}

func TestSignFile(t *testing.T) {
	entity := newTestEntity(t)
	s := NewEntitySigner(entity)

	path := filepath.Join(t.TempDir(), "qtjambi-linux64-gpl-4.4.0_01.tar.gz")
	content := []byte("bundle content")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("Failed to write bundle: %v", err)
	}

	sigPath, err := s.SignFile(path)
	if err != nil {
		t.Fatalf("SignFile failed: %v", err)
	}
	if sigPath != path+".asc" {
		t.Errorf("Signature path = %s", sigPath)
	}

	sig, err := os.ReadFile(sigPath)
	if err != nil {
		t.Fatalf("Failed to read signature: %v", err)
	}
	keyring := openpgp.EntityList{entity}
	if _, err := openpgp.CheckArmoredDetachedSignature(keyring, bytes.NewReader(content), bytes.NewReader(sig), nil); err != nil {
		t.Fatalf("Signature does not verify: %v", err)
	}

	if _, err := openpgp.CheckArmoredDetachedSignature(keyring, bytes.NewReader([]byte("tampered")), bytes.NewReader(sig), nil); err == nil {
		t.Fatal("Expected tampered content to fail verification")
	}
}

func TestNewGPGSignerFromFile(t *testing.T) {
	entity := newTestEntity(t)

	var buf bytes.Buffer
	w, err := armor.Encode(&buf, openpgp.PrivateKeyType, nil)
	if err != nil {
		t.Fatalf("Failed to create armor: %v", err)
	}
	if err := entity.SerializePrivate(w, nil); err != nil {
		t.Fatalf("Failed to serialize key: %v", err)
	}
	w.Close()

	keyPath := filepath.Join(t.TempDir(), "release.asc")
	if err := os.WriteFile(keyPath, buf.Bytes(), 0600); err != nil {
		t.Fatalf("Failed to write key: %v", err)
	}

	s, err := NewGPGSigner(keyPath, "")
	if err != nil {
		t.Fatalf("NewGPGSigner failed: %v", err)
	}

	sig, err := s.SignDetached([]byte("data"))
	if err != nil {
		t.Fatalf("SignDetached failed: %v", err)
	}
	if !bytes.Contains(sig, []byte("BEGIN PGP SIGNATURE")) {
		t.Errorf("Expected armored signature, got %q", sig)
	}

	pub, err := s.GetPublicKey()
	if err != nil {
		t.Fatalf("GetPublicKey failed: %v", err)
	}
	if !bytes.Contains(pub, []byte("BEGIN PGP PUBLIC KEY BLOCK")) {
		t.Errorf("Expected armored public key, got %q", pub)
	}
}

func TestNewGPGSignerErrors(t *testing.T) {
	if _, err := NewGPGSigner("", ""); err == nil {
		t.Error("Expected empty key path to fail")
	}
	if _, err := NewGPGSigner(filepath.Join(t.TempDir(), "missing"), ""); err == nil {
		t.Error("Expected missing key file to fail")
	}

	garbage := filepath.Join(t.TempDir(), "garbage")
	if err := os.WriteFile(garbage, []byte("not a key"), 0600); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	if _, err := NewGPGSigner(garbage, ""); err == nil {
		t.Error("Expected garbage key file to fail")
	}
}
