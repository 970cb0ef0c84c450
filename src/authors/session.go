package authors

import (
	"crypto/ecdsa"
	"sync"

	"github.com/chronomesh/timechunk/src/crypto/keys"
)

// Session is the local author's writing identity. It owns the private key used
// to sign records and hands out the monotonic sequence numbers that order the
// author's personal history. Sequence numbers are never reused; a sequence
// consumed by a failed write simply leaves a gap, which is harmless because
// validation only relies on relative order.
type Session struct {
	mu  sync.Mutex
	seq int

	key    *ecdsa.PrivateKey
	author *Author
}

// NewSession creates a Session for a private key. The sequence counter starts
// at nextSeq, which callers restore from the author's persisted history when
// reopening a store.
func NewSession(key *ecdsa.PrivateKey, moniker string, nextSeq int) *Session {
	return &Session{
		seq:    nextSeq,
		key:    key,
		author: NewAuthor(keys.PublicKeyHex(&key.PublicKey), moniker),
	}
}

// Author returns the public identity of the session.
func (s *Session) Author() *Author {
	return s.author
}

// PubKeyBytes returns the raw public key bytes embedded in every record the
// session creates.
func (s *Session) PubKeyBytes() []byte {
	return keys.FromPublicKey(&s.key.PublicKey)
}

// Key exposes the private key for signing records.
func (s *Session) Key() *ecdsa.PrivateKey {
	return s.key
}

// NextSeq returns the next sequence number in the author's personal history
// and advances the counter.
func (s *Session) NextSeq() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq := s.seq
	s.seq++
	return seq
}
