package chunk

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/dgraph-io/badger"
	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"

	cm "github.com/chronomesh/timechunk/src/common"
)

const (
	chunkPrefix     = "chunk"
	linkPrefix      = "link"
	edgePrefix      = "edge"
	authorSeqPrefix = "authorseq"
	lastChunkKey    = "meta_lastchunk"
)

// BadgerStore implements the Store interface on top of a Badger database,
// with LRU read-through caches in front of the disk for chunks and link
// records. Badger is the authority; evicting a cache entry never loses data.
type BadgerStore struct {
	db   *badger.DB
	path string

	cacheSize  int
	chunkCache *lru.Cache // window index => *Chunk
	linkCache  *lru.Cache // content address => *LinkRecord

	metaMu         sync.RWMutex
	lastChunkIndex int64
}

// NewBadgerStore opens an existing database or creates a new one if nothing
// is found in path.
func NewBadgerStore(cacheSize int, path string, logger *logrus.Entry) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).
		WithSyncWrites(false).
		WithTruncate(true)

	if logger != nil {
		opts = opts.WithLogger(logger.WithFields(logrus.Fields{"ns": "badger"}))
	}

	handle, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	chunkCache, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}
	linkCache, err := lru.New(cacheSize)
	if err != nil {
		return nil, err
	}

	store := &BadgerStore{
		db:             handle,
		path:           path,
		cacheSize:      cacheSize,
		chunkCache:     chunkCache,
		linkCache:      linkCache,
		lastChunkIndex: -1,
	}

	if err := store.loadLastChunkIndex(); err != nil {
		handle.Close()
		return nil, err
	}

	return store, nil
}

// LoadBadgerStore opens a Store from a pre-existing database; it fails if the
// path does not exist.
func LoadBadgerStore(cacheSize int, path string, logger *logrus.Entry) (*BadgerStore, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return NewBadgerStore(cacheSize, path, logger)
}

/*******************************************************************************
Keys
*******************************************************************************/

func chunkKey(index int64) []byte {
	return []byte(fmt.Sprintf("%s_%012d", chunkPrefix, index))
}

func linkKey(hex string) []byte {
	return []byte(fmt.Sprintf("%s_%s", linkPrefix, hex))
}

// edgeKey indexes a record under its chunk and author. The author segment has
// a fixed length (hex of an uncompressed public key) and the seq segment is
// zero-padded, so lexical key order is (chunk, author, seq) order.
func edgeKey(chunkIndex int64, author string, seq int) []byte {
	return []byte(fmt.Sprintf("%s_%012d_%s_%012d", edgePrefix, chunkIndex, author, seq))
}

func edgeAuthorPrefix(chunkIndex int64, author string) []byte {
	return []byte(fmt.Sprintf("%s_%012d_%s_", edgePrefix, chunkIndex, author))
}

func edgeChunkPrefix(chunkIndex int64) []byte {
	return []byte(fmt.Sprintf("%s_%012d_", edgePrefix, chunkIndex))
}

func authorSeqKey(author string) []byte {
	return []byte(fmt.Sprintf("%s_%s", authorSeqPrefix, author))
}

/*******************************************************************************
Store implementation
*******************************************************************************/

// CacheSize implements the Store interface.
func (s *BadgerStore) CacheSize() int {
	return s.cacheSize
}

// GetChunk implements the Store interface.
func (s *BadgerStore) GetChunk(index int64) (*Chunk, error) {
	if cached, ok := s.chunkCache.Get(index); ok {
		return cached.(*Chunk), nil
	}

	chunkBytes, err := s.dbGet(chunkKey(index))
	if err != nil {
		return nil, mapError(err, "Chunk", string(chunkKey(index)))
	}

	chunk := new(Chunk)
	if err := chunk.Unmarshal(chunkBytes); err != nil {
		return nil, err
	}

	s.chunkCache.Add(index, chunk)
	return chunk, nil
}

// SetChunk implements the Store interface.
func (s *BadgerStore) SetChunk(chunk *Chunk) error {
	index := chunk.Index()

	existing, err := s.GetChunk(index)
	if err != nil && !cm.IsStore(err, cm.KeyNotFound) {
		return err
	}
	if err == nil {
		if existing.Hex() == chunk.Hex() {
			return nil
		}
		return cm.NewStoreErr("Chunk", cm.KeyAlreadyExists, strconv.FormatInt(index, 10))
	}

	val, err := chunk.Marshal()
	if err != nil {
		return err
	}

	tx := s.db.NewTransaction(true)
	defer tx.Discard()

	if err := tx.Set(chunkKey(index), val); err != nil {
		return err
	}

	s.metaMu.Lock()
	defer s.metaMu.Unlock()

	if index > s.lastChunkIndex {
		if err := tx.Set([]byte(lastChunkKey), []byte(strconv.FormatInt(index, 10))); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	if index > s.lastChunkIndex {
		s.lastChunkIndex = index
	}

	s.chunkCache.Add(index, chunk)
	return nil
}

// LastChunkIndex implements the Store interface.
func (s *BadgerStore) LastChunkIndex() int64 {
	s.metaMu.RLock()
	defer s.metaMu.RUnlock()
	return s.lastChunkIndex
}

// GetLink implements the Store interface.
func (s *BadgerStore) GetLink(hex string) (*LinkRecord, error) {
	if cached, ok := s.linkCache.Get(hex); ok {
		return cached.(*LinkRecord), nil
	}

	recBytes, err := s.dbGet(linkKey(hex))
	if err != nil {
		return nil, mapError(err, "Link", hex)
	}

	rec := new(LinkRecord)
	if err := rec.Unmarshal(recBytes); err != nil {
		return nil, err
	}

	s.linkCache.Add(hex, rec)
	return rec, nil
}

// SetLink implements the Store interface.
func (s *BadgerStore) SetLink(rec *LinkRecord) error {
	hex := rec.Hex()

	if _, err := s.GetLink(hex); err == nil {
		return nil
	} else if !cm.IsStore(err, cm.KeyNotFound) {
		return err
	}

	val, err := rec.Marshal()
	if err != nil {
		return err
	}

	tx := s.db.NewTransaction(true)
	defer tx.Discard()

	// [link_hash] => [record bytes]
	if err := tx.Set(linkKey(hex), val); err != nil {
		return err
	}

	// [edge_chunk_author_seq] => [link hash]
	ek := edgeKey(rec.Body.ChunkIndex, rec.Author(), rec.Seq())
	if err := tx.Set(ek, []byte(hex)); err != nil {
		return err
	}

	// [authorseq_author] => [last seq]
	last, err := s.LastSeqFrom(rec.Author())
	if err != nil {
		return err
	}
	if rec.Seq() > last {
		sk := authorSeqKey(rec.Author())
		if err := tx.Set(sk, []byte(strconv.Itoa(rec.Seq()))); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	s.linkCache.Add(hex, rec)
	return nil
}

// AuthorChunkLinks implements the Store interface.
func (s *BadgerStore) AuthorChunkLinks(author string, chunkIndex int64) ([]string, error) {
	res := []string{}
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := edgeAuthorPrefix(chunkIndex, author)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			v, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			res = append(res, string(v))
		}
		return nil
	})
	return res, err
}

// ChunkAuthors implements the Store interface. Lexical key order yields
// authors in lexical order of their public key, matching InmemStore.
func (s *BadgerStore) ChunkAuthors(chunkIndex int64) ([]string, error) {
	res := []string{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := edgeChunkPrefix(chunkIndex)
		last := ""
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			k := string(it.Item().Key())
			// key layout: edge_<chunk>_<author>_<seq>
			rest := k[len(prefix):]
			sep := strings.LastIndex(rest, "_")
			if sep < 0 {
				continue
			}
			author := rest[:sep]
			if author != last {
				res = append(res, author)
				last = author
			}
		}
		return nil
	})
	return res, err
}

// LastSeqFrom implements the Store interface.
func (s *BadgerStore) LastSeqFrom(author string) (int, error) {
	seqBytes, err := s.dbGet(authorSeqKey(author))
	if err != nil {
		if isDBKeyNotFound(err) {
			return -1, nil
		}
		return -1, err
	}
	return strconv.Atoi(string(seqBytes))
}

// Close implements the Store interface.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// StorePath implements the Store interface.
func (s *BadgerStore) StorePath() string {
	return s.path
}

/*******************************************************************************
DB helpers
*******************************************************************************/

func (s *BadgerStore) dbGet(key []byte) ([]byte, error) {
	var val []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	return val, err
}

func (s *BadgerStore) loadLastChunkIndex() error {
	idxBytes, err := s.dbGet([]byte(lastChunkKey))
	if err != nil {
		if isDBKeyNotFound(err) {
			return nil
		}
		return err
	}
	idx, err := strconv.ParseInt(string(idxBytes), 10, 64)
	if err != nil {
		return err
	}
	s.lastChunkIndex = idx
	return nil
}

func isDBKeyNotFound(err error) bool {
	return err == badger.ErrKeyNotFound
}

func mapError(err error, name, key string) error {
	if err != nil && isDBKeyNotFound(err) {
		return cm.NewStoreErr(name, cm.KeyNotFound, key)
	}
	return err
}
