package chunk

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/chronomesh/timechunk/src/authors"
	cm "github.com/chronomesh/timechunk/src/common"
)

// Index is the write side of the time-chunked link index. It owns the store
// and enforces, at record creation time, the same rules that ValidateLink
// re-derives for records received from other peers: a chunk entry must be the
// canonical one for its window, an author gets DirectChunkLinkLimit direct
// links per chunk, further links must extend the author's chain, and
// EnforceSpamLimit caps the total.
type Index struct {
	params *Params
	store  Store
	logger *logrus.Entry

	// addMutex serializes local admissions so that two goroutines of the same
	// author cannot both read the same chain tip.
	addMutex sync.Mutex
}

// NewIndex instantiates an Index around an inmem or badger store.
func NewIndex(params *Params, store Store, logger *logrus.Entry) *Index {
	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}

	return &Index{
		params: params,
		store:  store,
		logger: logger,
	}
}

// Params returns the network constants the index runs with.
func (x *Index) Params() *Params {
	return x.params
}

// Store exposes the underlying store, mainly for the query layer and the
// service.
func (x *Index) Store() Store {
	return x.store
}

// GetOrCreateChunk returns the committed chunk entry for a window index,
// creating the canonical entry on first use. Creation is lazy and idempotent:
// whichever author first links inside a window commits the entry, and any
// concurrent creation converges on the same content address. Windows that
// start beyond the permitted clock skew are refused, as are windows before the
// network epoch.
func (x *Index) GetOrCreateChunk(index int64, now time.Time) (*Chunk, error) {
	if index < 0 {
		return nil, NewLinkError(ChunkWindowMismatch,
			fmt.Sprintf("window %d predates the network epoch", index))
	}

	if x.params.WindowStart(index).After(now.Add(x.params.FutureTolerance)) {
		return nil, NewLinkError(FutureChunk,
			fmt.Sprintf("window %d starts at %s, after %s",
				index,
				x.params.WindowStart(index).Format(time.RFC3339),
				now.Format(time.RFC3339)))
	}

	chunk, err := x.store.GetChunk(index)
	if err == nil {
		if verr := chunk.Verify(x.params); verr != nil {
			return nil, verr
		}
		return chunk, nil
	}
	if !cm.IsStore(err, cm.KeyNotFound) {
		return nil, err
	}

	chunk = NewChunk(index, x.params)
	if err := x.store.SetChunk(chunk); err != nil {
		return nil, err
	}

	x.logger.WithFields(logrus.Fields{
		"index": index,
		"from":  chunk.From(),
		"until": chunk.Until(),
	}).Debug("Created chunk")

	return chunk, nil
}

// AddLink creates, signs, and commits a link record from the session's author
// to target, rooted at the chunk for now. The record's source is decided here:
// the chunk itself while the author is under DirectChunkLinkLimit on that
// chunk, then the target of the author's latest record on the chunk. When the
// author has exhausted EnforceSpamLimit the record is refused before anything
// is signed or stored.
func (x *Index) AddLink(session *authors.Session, target string, tag []byte,
	now time.Time) (*LinkRecord, error) {

	x.addMutex.Lock()
	defer x.addMutex.Unlock()

	chunk, err := x.GetOrCreateChunk(x.params.IndexAt(now), now)
	if err != nil {
		return nil, err
	}

	author := session.Author().PubKeyHex
	source, err := x.nextSource(author, chunk)
	if err != nil {
		return nil, err
	}

	rec := NewLinkRecord(chunk.Index(), source, target, tag,
		session.PubKeyBytes(), session.NextSeq(), now)

	if err := rec.Sign(session.Key()); err != nil {
		return nil, err
	}

	if err := x.store.SetLink(rec); err != nil {
		return nil, err
	}

	x.logger.WithFields(logrus.Fields{
		"chunk":  chunk.Index(),
		"seq":    rec.Seq(),
		"target": rec.Target(),
		"direct": rec.IsDirect(chunk),
	}).Debug("Added link")

	return rec, nil
}

// nextSource decides where the author's next record on chunk must link from.
func (x *Index) nextSource(author string, chunk *Chunk) (string, error) {
	hashes, err := x.store.AuthorChunkLinks(author, chunk.Index())
	if err != nil {
		return "", err
	}

	if len(hashes) >= x.params.EnforceSpamLimit {
		return "", NewLinkError(SpamLimitExceeded,
			fmt.Sprintf("author %s has %d links on chunk %d, limit %d",
				author, len(hashes), chunk.Index(), x.params.EnforceSpamLimit))
	}

	if len(hashes) < x.params.DirectChunkLinkLimit {
		return chunk.Hex(), nil
	}

	tip, err := x.store.GetLink(hashes[len(hashes)-1])
	if err != nil {
		return "", err
	}
	return tip.Target(), nil
}
