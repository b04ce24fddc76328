package keys

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/OhanaFS/nhale/errorx"
)

const pemType = "RSA PRIVATE KEY"

// Dir stores each keypair as a PKCS#1 PEM file named after its identity.
type Dir struct {
	fs   afero.Fs
	path string
	mu   sync.Mutex
}

var (
	_ Provider = &Dir{}
	_ Lister   = &Dir{}
)

// NewDir returns a provider rooted at path, creating the directory if needed.
func NewDir(fs afero.Fs, path string) (*Dir, error) {
	if path == "" {
		return nil, errors.New("key directory must be set")
	}
	if err := fs.MkdirAll(path, 0700); err != nil {
		return nil, fmt.Errorf("failed to create key directory: %v", err)
	}
	return &Dir{fs: fs, path: path}, nil
}

func (d *Dir) file(identity string) string {
	return filepath.Join(d.path, identity+".pem")
}

// LoadOrGenerate implements Provider.
func (d *Dir) LoadOrGenerate(identity string) (*rsa.PublicKey, *rsa.PrivateKey, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	pub, key, err := d.load(identity)
	if err == nil {
		return pub, key, nil
	}
	if !errors.Is(err, ErrKeyNotFound) {
		return nil, nil, err
	}

	key, err = Generate()
	if err != nil {
		return nil, nil, err
	}
	block := &pem.Block{Type: pemType, Bytes: x509.MarshalPKCS1PrivateKey(key)}
	if err := afero.WriteFile(d.fs, d.file(identity), pem.EncodeToMemory(block), 0600); err != nil {
		return nil, nil, fmt.Errorf("failed to write key: %v", err)
	}
	return &key.PublicKey, key, nil
}

// Load implements Provider.
func (d *Dir) Load(identity string) (*rsa.PublicKey, *rsa.PrivateKey, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.load(identity)
}

func (d *Dir) load(identity string) (*rsa.PublicKey, *rsa.PrivateKey, error) {
	if err := ValidateIdentity(identity); err != nil {
		return nil, nil, err
	}

	b, err := afero.ReadFile(d.fs, d.file(identity))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, ErrKeyNotFound
		}
		return nil, nil, fmt.Errorf("failed to read key: %v", err)
	}

	block, _ := pem.Decode(b)
	if block == nil || block.Type != pemType {
		return nil, nil, errorx.New(errorx.Serialization,
			"key file for %q is not a PEM %s", identity, pemType)
	}
	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, nil, errorx.Wrap(err, errorx.Serialization, "failed to parse key")
	}
	return &key.PublicKey, key, nil
}

// Identities implements Lister.
func (d *Dir) Identities() ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	infos, err := afero.ReadDir(d.fs, d.path)
	if err != nil {
		return nil, fmt.Errorf("failed to list key directory: %v", err)
	}
	var ids []string
	for _, info := range infos {
		id := strings.TrimSuffix(info.Name(), ".pem")
		if info.IsDir() || id == info.Name() || ValidateIdentity(id) != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}
