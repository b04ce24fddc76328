package keys

import (
	"crypto/rsa"
	"crypto/x509"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/syndtr/goleveldb/leveldb"
	ldbutil "github.com/syndtr/goleveldb/leveldb/util"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/OhanaFS/nhale/errorx"
)

const keyPrefix = "rsa/"

// record is the stored form of a keypair.
type record struct {
	ID         uuid.UUID `msgpack:"id"`
	Identity   string    `msgpack:"identity"`
	PrivateKey []byte    `msgpack:"private_key"`
	Created    time.Time `msgpack:"created"`
}

// LevelDB stores keypairs in a LevelDB database.
type LevelDB struct {
	db *leveldb.DB
	mu sync.Mutex
}

var (
	_ Provider = &LevelDB{}
	_ Lister   = &LevelDB{}
)

// OpenLevelDB opens or creates a database at path.
func OpenLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open key database: %v", err)
	}
	return NewLevelDB(db), nil
}

// NewLevelDB wraps an open database.
func NewLevelDB(db *leveldb.DB) *LevelDB {
	return &LevelDB{db: db}
}

// Close closes the underlying database.
func (l *LevelDB) Close() error {
	return l.db.Close()
}

// LoadOrGenerate implements Provider.
func (l *LevelDB) LoadOrGenerate(identity string) (*rsa.PublicKey, *rsa.PrivateKey, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	pub, key, err := l.load(identity)
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
	b, err := msgpack.Marshal(&record{
		ID:         uuid.New(),
		Identity:   identity,
		PrivateKey: x509.MarshalPKCS1PrivateKey(key),
		Created:    time.Now().UTC(),
	})
	if err != nil {
		return nil, nil, errorx.Wrap(err, errorx.Serialization, "failed to encode key record")
	}
	if err := l.db.Put([]byte(keyPrefix+identity), b, nil); err != nil {
		return nil, nil, fmt.Errorf("failed to store key: %v", err)
	}
	return &key.PublicKey, key, nil
}

// Load implements Provider.
func (l *LevelDB) Load(identity string) (*rsa.PublicKey, *rsa.PrivateKey, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load(identity)
}

func (l *LevelDB) load(identity string) (*rsa.PublicKey, *rsa.PrivateKey, error) {
	if err := ValidateIdentity(identity); err != nil {
		return nil, nil, err
	}

	b, err := l.db.Get([]byte(keyPrefix+identity), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, nil, ErrKeyNotFound
		}
		return nil, nil, fmt.Errorf("failed to read key: %v", err)
	}

	var rec record
	if err := msgpack.Unmarshal(b, &rec); err != nil {
		return nil, nil, errorx.Wrap(err, errorx.Serialization, "failed to decode key record")
	}
	key, err := x509.ParsePKCS1PrivateKey(rec.PrivateKey)
	if err != nil {
		return nil, nil, errorx.Wrap(err, errorx.Serialization, "failed to parse key")
	}
	return &key.PublicKey, key, nil
}

// Identities implements Lister.
func (l *LevelDB) Identities() ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var ids []string
	iter := l.db.NewIterator(ldbutil.BytesPrefix([]byte(keyPrefix)), nil)
	defer iter.Release()
	for iter.Next() {
		ids = append(ids, string(iter.Key()[len(keyPrefix):]))
	}
	return ids, iter.Error()
}
