package chunk

import (
	"fmt"
	"sort"
	"strconv"
	"sync"

	cm "github.com/chronomesh/timechunk/src/common"
)

// authorChunkKey identifies one author's record sequence on one chunk.
type authorChunkKey struct {
	author     string
	chunkIndex int64
}

func (k authorChunkKey) String() string {
	return fmt.Sprintf("{%s, %d}", k.author, k.chunkIndex)
}

// InmemStore implements the Store interface with in-memory maps. It holds the
// full history, so it is suitable for tests and short-lived peers; long
// running deployments should use BadgerStore.
type InmemStore struct {
	sync.RWMutex

	cacheSize      int
	chunks         map[int64]*Chunk
	links          map[string]*LinkRecord
	authorLinks    map[authorChunkKey][]string
	chunkAuthors   map[int64]map[string]bool
	lastSeq        map[string]int
	lastChunkIndex int64
}

// NewInmemStore creates a new InmemStore.
func NewInmemStore(cacheSize int) *InmemStore {
	return &InmemStore{
		cacheSize:      cacheSize,
		chunks:         make(map[int64]*Chunk),
		links:          make(map[string]*LinkRecord),
		authorLinks:    make(map[authorChunkKey][]string),
		chunkAuthors:   make(map[int64]map[string]bool),
		lastSeq:        make(map[string]int),
		lastChunkIndex: -1,
	}
}

// CacheSize implements the Store interface.
func (s *InmemStore) CacheSize() int {
	return s.cacheSize
}

// GetChunk implements the Store interface.
func (s *InmemStore) GetChunk(index int64) (*Chunk, error) {
	s.RLock()
	defer s.RUnlock()

	res, ok := s.chunks[index]
	if !ok {
		return nil, cm.NewStoreErr("Chunk", cm.KeyNotFound, strconv.FormatInt(index, 10))
	}
	return res, nil
}

// SetChunk implements the Store interface.
func (s *InmemStore) SetChunk(chunk *Chunk) error {
	s.Lock()
	defer s.Unlock()

	index := chunk.Index()
	if existing, ok := s.chunks[index]; ok {
		if existing.Hex() == chunk.Hex() {
			return nil
		}
		return cm.NewStoreErr("Chunk", cm.KeyAlreadyExists, strconv.FormatInt(index, 10))
	}

	s.chunks[index] = chunk
	if index > s.lastChunkIndex {
		s.lastChunkIndex = index
	}
	return nil
}

// LastChunkIndex implements the Store interface.
func (s *InmemStore) LastChunkIndex() int64 {
	s.RLock()
	defer s.RUnlock()
	return s.lastChunkIndex
}

// GetLink implements the Store interface.
func (s *InmemStore) GetLink(hex string) (*LinkRecord, error) {
	s.RLock()
	defer s.RUnlock()

	res, ok := s.links[hex]
	if !ok {
		return nil, cm.NewStoreErr("Link", cm.KeyNotFound, hex)
	}
	return res, nil
}

// SetLink implements the Store interface.
func (s *InmemStore) SetLink(rec *LinkRecord) error {
	s.Lock()
	defer s.Unlock()

	hex := rec.Hex()
	if _, ok := s.links[hex]; ok {
		return nil
	}

	s.links[hex] = rec

	key := authorChunkKey{author: rec.Author(), chunkIndex: rec.Body.ChunkIndex}
	s.authorLinks[key] = s.insertBySeq(s.authorLinks[key], rec)

	if s.chunkAuthors[rec.Body.ChunkIndex] == nil {
		s.chunkAuthors[rec.Body.ChunkIndex] = make(map[string]bool)
	}
	s.chunkAuthors[rec.Body.ChunkIndex][rec.Author()] = true

	if last, ok := s.lastSeq[rec.Author()]; !ok || rec.Seq() > last {
		s.lastSeq[rec.Author()] = rec.Seq()
	}

	return nil
}

// insertBySeq inserts a record's hash into an ordered hash list, keeping the
// list sorted by the records' Seq. Records usually arrive in order, so the
// common case appends.
func (s *InmemStore) insertBySeq(hashes []string, rec *LinkRecord) []string {
	pos := len(hashes)
	for pos > 0 {
		prev := s.links[hashes[pos-1]]
		if prev.Seq() <= rec.Seq() {
			break
		}
		pos--
	}
	hashes = append(hashes, "")
	copy(hashes[pos+1:], hashes[pos:])
	hashes[pos] = rec.Hex()
	return hashes
}

// AuthorChunkLinks implements the Store interface.
func (s *InmemStore) AuthorChunkLinks(author string, chunkIndex int64) ([]string, error) {
	s.RLock()
	defer s.RUnlock()

	hashes := s.authorLinks[authorChunkKey{author: author, chunkIndex: chunkIndex}]
	res := make([]string, len(hashes))
	copy(res, hashes)
	return res, nil
}

// ChunkAuthors implements the Store interface. Authors are returned in
// lexical order of their public key so that traversal output is stable
// across peers.
func (s *InmemStore) ChunkAuthors(chunkIndex int64) ([]string, error) {
	s.RLock()
	defer s.RUnlock()

	res := make([]string, 0, len(s.chunkAuthors[chunkIndex]))
	for author := range s.chunkAuthors[chunkIndex] {
		res = append(res, author)
	}
	sort.Strings(res)
	return res, nil
}

// LastSeqFrom implements the Store interface.
func (s *InmemStore) LastSeqFrom(author string) (int, error) {
	s.RLock()
	defer s.RUnlock()

	last, ok := s.lastSeq[author]
	if !ok {
		return -1, nil
	}
	return last, nil
}

// Close implements the Store interface.
func (s *InmemStore) Close() error {
	return nil
}

// StorePath implements the Store interface.
func (s *InmemStore) StorePath() string {
	return ""
}
