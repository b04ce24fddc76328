// Package keys provides the RSA key providers used by the RSA hybrid
// envelope. A provider maps an identity to a keypair so that encryption and
// decryption in different processes can use the same key.
package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"
	"regexp"

	"github.com/spf13/afero"
)

// KeySize is the size in bits of generated keys.
const KeySize = 2048

var (
	ErrKeyNotFound     = errors.New("key not found")
	ErrInvalidIdentity = errors.New("invalid key identity")
	ErrUnknownBackend  = errors.New("unknown key backend")
)

var identityPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._@-]{0,127}$`)

// Provider loads and creates RSA keypairs by identity.
type Provider interface {
	// LoadOrGenerate returns the keypair for identity, creating and storing
	// one if none exists.
	LoadOrGenerate(identity string) (*rsa.PublicKey, *rsa.PrivateKey, error)
	// Load returns the keypair for identity, or ErrKeyNotFound.
	Load(identity string) (*rsa.PublicKey, *rsa.PrivateKey, error)
}

// Lister is implemented by providers that can enumerate the identities they
// hold.
type Lister interface {
	Identities() ([]string, error)
}

// ValidateIdentity checks that identity is safe to use as a file name and
// store key.
func ValidateIdentity(identity string) error {
	if !identityPattern.MatchString(identity) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentity, identity)
	}
	return nil
}

// Generate creates a new keypair of KeySize bits.
func Generate() (*rsa.PrivateKey, error) {
	key, err := rsa.GenerateKey(rand.Reader, KeySize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate RSA key: %v", err)
	}
	return key, nil
}

// Ephemeral generates a fresh keypair on every call and stores nothing.
// Frames encrypted with it cannot be decrypted by a later call.
type Ephemeral struct{}

var _ Provider = Ephemeral{}

// LoadOrGenerate implements Provider.
func (Ephemeral) LoadOrGenerate(identity string) (*rsa.PublicKey, *rsa.PrivateKey, error) {
	key, err := Generate()
	if err != nil {
		return nil, nil, err
	}
	return &key.PublicKey, key, nil
}

// Load implements Provider. Ephemeral keys are never stored, so it always
// fails.
func (Ephemeral) Load(identity string) (*rsa.PublicKey, *rsa.PrivateKey, error) {
	return nil, nil, fmt.Errorf("%w: ephemeral keys are not retained", ErrKeyNotFound)
}

// Open returns the provider for a configured backend. path is the key
// directory for "dir" and the database directory for "leveldb". The caller
// must close the returned provider if it implements io.Closer.
func Open(backend, path string, fs afero.Fs) (Provider, error) {
	switch backend {
	case "", "ephemeral":
		return Ephemeral{}, nil
	case "memory":
		return NewMemory(), nil
	case "dir":
		if fs == nil {
			fs = afero.NewOsFs()
		}
		return NewDir(fs, path)
	case "leveldb":
		return OpenLevelDB(path)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
}
