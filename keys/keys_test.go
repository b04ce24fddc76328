package keys_test

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"

	"github.com/OhanaFS/nhale/errorx"
	"github.com/OhanaFS/nhale/keys"
)

// exerciseProvider checks the behaviour shared by every persistent provider.
func exerciseProvider(t *testing.T, p keys.Provider) {
	assert := assert.New(t)

	_, _, err := p.Load("alice")
	assert.ErrorIs(err, keys.ErrKeyNotFound)

	pub, priv, err := p.LoadOrGenerate("alice")
	require.NoError(t, err)
	assert.Equal(keys.KeySize, pub.N.BitLen())
	assert.True(pub.Equal(&priv.PublicKey))

	pub2, priv2, err := p.LoadOrGenerate("alice")
	assert.NoError(err)
	assert.True(pub.Equal(pub2))
	assert.True(priv.Equal(priv2))

	pub3, _, err := p.Load("alice")
	assert.NoError(err)
	assert.True(pub.Equal(pub3))

	_, _, err = p.LoadOrGenerate("../escape")
	assert.ErrorIs(err, keys.ErrInvalidIdentity)
}

func TestMemory(t *testing.T) {
	assert := assert.New(t)

	exerciseProvider(t, keys.NewMemory())

	var zero keys.Memory
	exerciseProvider(t, &zero)
	_, _, err := zero.LoadOrGenerate("bob")
	assert.NoError(err)
	ids, err := zero.Identities()
	assert.NoError(err)
	assert.Equal([]string{"alice", "bob"}, ids)
}

func TestDir(t *testing.T) {
	assert := assert.New(t)

	fs := afero.NewMemMapFs()
	p, err := keys.NewDir(fs, "/keys")
	require.NoError(t, err)
	exerciseProvider(t, p)

	exists, err := afero.Exists(fs, "/keys/alice.pem")
	assert.NoError(err)
	assert.True(exists)

	// A second provider over the same directory sees the same key.
	p2, err := keys.NewDir(fs, "/keys")
	require.NoError(t, err)
	pub, _, err := p2.Load("alice")
	assert.NoError(err)
	pub1, _, _ := p.Load("alice")
	assert.True(pub.Equal(pub1))

	assert.NoError(afero.WriteFile(fs, "/keys/notes.txt", []byte("ignored"), 0600))
	ids, err := p2.Identities()
	assert.NoError(err)
	assert.Equal([]string{"alice"}, ids)

	assert.NoError(afero.WriteFile(fs, "/keys/broken.pem", []byte("nope"), 0600))
	_, _, err = p.Load("broken")
	assert.True(errorx.Is(err, errorx.Serialization))
	assert.NotErrorIs(err, keys.ErrKeyNotFound)
}

func TestLevelDB(t *testing.T) {
	assert := assert.New(t)

	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	require.NoError(t, err)
	p := keys.NewLevelDB(db)
	defer p.Close()

	exerciseProvider(t, p)

	ids, err := p.Identities()
	assert.NoError(err)
	assert.Equal([]string{"alice"}, ids)

	require.NoError(t, db.Put([]byte("rsa/mallory"), []byte{0xc1}, nil))
	_, _, err = p.Load("mallory")
	assert.True(errorx.Is(err, errorx.Serialization))
}

func TestEphemeral(t *testing.T) {
	assert := assert.New(t)

	p := keys.Ephemeral{}
	pub1, _, err := p.LoadOrGenerate("alice")
	assert.NoError(err)
	pub2, _, err := p.LoadOrGenerate("alice")
	assert.NoError(err)
	assert.False(pub1.Equal(pub2))

	_, _, err = p.Load("alice")
	assert.ErrorIs(err, keys.ErrKeyNotFound)
}

func TestOpen(t *testing.T) {
	assert := assert.New(t)

	p, err := keys.Open("", "", nil)
	assert.NoError(err)
	assert.IsType(keys.Ephemeral{}, p)

	p, err = keys.Open("memory", "", nil)
	assert.NoError(err)
	assert.IsType(&keys.Memory{}, p)

	p, err = keys.Open("dir", "/k", afero.NewMemMapFs())
	assert.NoError(err)
	assert.IsType(&keys.Dir{}, p)

	_, err = keys.Open("vault", "", nil)
	assert.ErrorIs(err, keys.ErrUnknownBackend)
}
