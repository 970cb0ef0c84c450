package chunk

import (
	"bytes"
	"time"

	cm "github.com/chronomesh/timechunk/src/common"
)

/*******************************************************************************
Chunk lookup
*******************************************************************************/

// CurrentChunk returns the committed chunk entry for the window containing
// now. The boolean is false when no author has linked inside that window yet;
// readers must treat an empty current window as normal, not as an error.
func (x *Index) CurrentChunk(now time.Time) (*Chunk, bool, error) {
	chunk, err := x.store.GetChunk(x.params.IndexAt(now))
	if err != nil {
		if cm.IsStore(err, cm.KeyNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return chunk, true, nil
}

// LatestChunk returns the most recent committed chunk whose window does not
// start after now. It scans downward from the current window, so a quiet
// network still resolves to the last window that saw any activity.
func (x *Index) LatestChunk(now time.Time) (*Chunk, bool, error) {
	last := x.store.LastChunkIndex()
	if last < 0 {
		return nil, false, nil
	}

	index := x.params.IndexAt(now)
	if last < index {
		index = last
	}

	for ; index >= 0; index-- {
		chunk, err := x.store.GetChunk(index)
		if err != nil {
			if cm.IsStore(err, cm.KeyNotFound) {
				continue
			}
			return nil, false, err
		}
		return chunk, true, nil
	}

	return nil, false, nil
}

// PreviousChunk walks backSteps committed chunks back from chunk. Windows
// nobody linked in are skipped, so the result is the backSteps-th older chunk
// that actually exists. The boolean is false when the walk runs past the
// network epoch first.
func (x *Index) PreviousChunk(chunk *Chunk, backSteps int) (*Chunk, bool, error) {
	res := chunk
	for step := 0; step < backSteps; step++ {
		found := false
		for index := res.Index() - 1; index >= 0; index-- {
			prev, err := x.store.GetChunk(index)
			if err != nil {
				if cm.IsStore(err, cm.KeyNotFound) {
					continue
				}
				return nil, false, err
			}
			res = prev
			found = true
			break
		}
		if !found {
			return nil, false, nil
		}
	}
	return res, true, nil
}

/*******************************************************************************
Time spans
*******************************************************************************/

// ChunkIterator walks the committed chunks of a time span in window order.
type ChunkIterator struct {
	index *Index
	first int64
	last  int64
	next  int64
}

// ChunksForTimeSpan returns an iterator over the committed chunks whose
// windows intersect [start, end]. Indices before the network epoch are
// clamped away rather than refused, so a span that merely begins before the
// epoch still yields its committed tail.
func (x *Index) ChunksForTimeSpan(start, end time.Time) *ChunkIterator {
	first := x.params.IndexAt(start)
	if first < 0 {
		first = 0
	}
	last := x.params.IndexAt(end)

	return &ChunkIterator{
		index: x,
		first: first,
		last:  last,
		next:  first,
	}
}

// Next returns the next committed chunk of the span, or nil when the span is
// exhausted. Windows nobody linked in are skipped.
func (it *ChunkIterator) Next() (*Chunk, error) {
	for ; it.next <= it.last; it.next++ {
		chunk, err := it.index.store.GetChunk(it.next)
		if err != nil {
			if cm.IsStore(err, cm.KeyNotFound) {
				continue
			}
			return nil, err
		}
		it.next++
		return chunk, nil
	}
	return nil, nil
}

// Reset rewinds the iterator to the start of the span.
func (it *ChunkIterator) Reset() {
	it.next = it.first
}

/*******************************************************************************
Link retrieval
*******************************************************************************/

// ChunkLinks returns every committed link record rooted at chunk, walking each
// author's sequence in order and authors in stable order, so two peers holding
// the same records return the same slice. A non-nil tag restricts the result
// to records carrying exactly that tag.
//
// The walk is bounded: no author can contribute more than EnforceSpamLimit
// records, which is what makes retrieval on a hot chunk tractable.
func (x *Index) ChunkLinks(chunk *Chunk, tag []byte) ([]*LinkRecord, error) {
	chunkAuthors, err := x.store.ChunkAuthors(chunk.Index())
	if err != nil {
		return nil, err
	}

	res := []*LinkRecord{}
	for _, author := range chunkAuthors {
		hashes, err := x.store.AuthorChunkLinks(author, chunk.Index())
		if err != nil {
			return nil, err
		}
		for _, h := range hashes {
			rec, err := x.store.GetLink(h)
			if err != nil {
				return nil, err
			}
			if tag != nil && !bytes.Equal(rec.Body.Tag, tag) {
				continue
			}
			res = append(res, rec)
		}
	}
	return res, nil
}

// LinksForTimeSpan collects the link records of every committed chunk whose
// window intersects [start, end], in window order, with the same per-chunk
// ordering and optional tag filter as ChunkLinks.
func (x *Index) LinksForTimeSpan(start, end time.Time, tag []byte) ([]*LinkRecord, error) {
	it := x.ChunksForTimeSpan(start, end)

	res := []*LinkRecord{}
	for {
		chunk, err := it.Next()
		if err != nil {
			return nil, err
		}
		if chunk == nil {
			break
		}
		recs, err := x.ChunkLinks(chunk, tag)
		if err != nil {
			return nil, err
		}
		res = append(res, recs...)
	}
	return res, nil
}
