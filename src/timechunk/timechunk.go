package timechunk

import (
	"crypto/ecdsa"
	"fmt"
	"time"

	"github.com/chronomesh/timechunk/src/authors"
	"github.com/chronomesh/timechunk/src/chunk"
	"github.com/chronomesh/timechunk/src/config"
	"github.com/chronomesh/timechunk/src/crypto/keys"
	"github.com/chronomesh/timechunk/src/service"
)

// Timechunk is the top-level object that ties the index, the local author's
// session, the store, and the API service together.
type Timechunk struct {
	Config  *config.Config
	Index   *chunk.Index
	Session *authors.Session
	Store   chunk.Store
	Service *service.Service
}

// NewTimechunk instantiates an uninitialized engine around a config.
func NewTimechunk(conf *config.Config) *Timechunk {
	engine := &Timechunk{
		Config: conf,
	}

	return engine
}

func (t *Timechunk) initKey() error {
	if t.Config.Key == nil {
		keyfile := keys.NewSimpleKeyfile(t.Config.Keyfile())

		privKey, err := keyfile.ReadKey()
		if err != nil {
			t.Config.Logger().Warn("Cannot read private key from file", err)

			privKey, err = Keygen(t.Config.Keyfile())
			if err != nil {
				t.Config.Logger().Error("Cannot generate a new private key", err)
				return err
			}

			t.Config.Logger().Info("Created a new key:", keys.PublicKeyHex(&privKey.PublicKey))
		}

		t.Config.Key = privKey
	}
	return nil
}

func (t *Timechunk) initStore() error {
	if !t.Config.Store {
		t.Store = chunk.NewInmemStore(t.Config.CacheSize)

		t.Config.Logger().Debug("created new in-mem store")
	} else {
		var err error

		t.Config.Logger().WithField("path", t.Config.DatabaseDir).Debug("Attempting to load or create database")

		t.Store, err = chunk.NewBadgerStore(t.Config.CacheSize, t.Config.DatabaseDir, t.Config.Logger())
		if err != nil {
			return err
		}

		if t.Store.LastChunkIndex() >= 0 {
			t.Config.Logger().Debug("loaded badger store from existing database")
		} else {
			t.Config.Logger().Debug("created new badger store from fresh database")
		}
	}

	return nil
}

func (t *Timechunk) initIndex() error {
	params, err := t.Config.ChunkParams()
	if err != nil {
		return fmt.Errorf("invalid network parameters: %s", err)
	}

	t.Index = chunk.NewIndex(params, t.Store, t.Config.Logger())

	return nil
}

func (t *Timechunk) initSession() error {
	author := keys.PublicKeyHex(&t.Config.Key.PublicKey)

	// Resume the author's personal sequence where the persisted history left
	// off, so that restarting a peer never reuses a sequence number.
	lastSeq, err := t.Store.LastSeqFrom(author)
	if err != nil {
		return err
	}

	t.Session = authors.NewSession(t.Config.Key, t.Config.Moniker, lastSeq+1)

	return nil
}

func (t *Timechunk) initService() error {
	if !t.Config.NoService {
		t.Service = service.NewService(
			t.Config.ServiceAddr,
			t.Index,
			t.Session.Author(),
			t.Config.Logger())
	}
	return nil
}

// Init initializes the engine: key, store, index, session, and service, in
// that order.
func (t *Timechunk) Init() error {
	if err := t.initKey(); err != nil {
		return err
	}

	if err := t.initStore(); err != nil {
		return err
	}

	if err := t.initIndex(); err != nil {
		return err
	}

	if err := t.initSession(); err != nil {
		return err
	}

	if err := t.initService(); err != nil {
		return err
	}

	return nil
}

// Run starts the API service. This is a blocking call.
func (t *Timechunk) Run() {
	if t.Service != nil {
		t.Service.Serve()
	}
}

// Shutdown closes the underlying store.
func (t *Timechunk) Shutdown() error {
	t.Config.Logger().Debug("Shutdown")
	return t.Store.Close()
}

// AddLink creates, signs, and commits a link from the local author to target,
// rooted at the current window.
func (t *Timechunk) AddLink(target string, tag []byte) (*chunk.LinkRecord, error) {
	return t.Index.AddLink(t.Session, target, tag, time.Now())
}

// InsertLink validates and commits a record received from another peer.
func (t *Timechunk) InsertLink(rec *chunk.LinkRecord) error {
	return t.Index.InsertLink(rec, time.Now())
}

// Keygen generates a new private key and persists it to keyfile, refusing to
// overwrite an existing key.
func Keygen(keyfile string) (*ecdsa.PrivateKey, error) {
	simpleKeyfile := keys.NewSimpleKeyfile(keyfile)

	if _, err := simpleKeyfile.ReadKey(); err == nil {
		return nil, fmt.Errorf("another key already lives under %s", keyfile)
	}

	privKey, err := keys.GenerateECDSAKey()
	if err != nil {
		return nil, err
	}

	if err := simpleKeyfile.WriteKey(privKey); err != nil {
		return nil, err
	}

	return privKey, nil
}
