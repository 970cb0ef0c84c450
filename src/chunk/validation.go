package chunk

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// ValidateLink re-derives, from local data only, the admission decision for a
// record received from another peer. Because Params are fixed per network
// instance and an author's records are totally ordered by Seq, every honest
// peer replays the author's history on the record's chunk and reaches the same
// verdict the author's own peer reached when it created the record. No
// coordination and no trust in the sender is involved.
//
// The returned error is a LinkError whose code states the rule that was
// broken; nil means the record is admissible.
func (x *Index) ValidateLink(rec *LinkRecord, now time.Time) error {
	ok, err := rec.Verify()
	if err != nil {
		return err
	}
	if !ok {
		return NewLinkError(BadSignature,
			fmt.Sprintf("record %s signature does not verify", rec.Hex()))
	}

	chunkIndex := rec.Body.ChunkIndex
	if chunkIndex < 0 {
		return NewLinkError(ChunkWindowMismatch,
			fmt.Sprintf("window %d predates the network epoch", chunkIndex))
	}

	if x.params.WindowStart(chunkIndex).After(now.Add(x.params.FutureTolerance)) {
		return NewLinkError(FutureChunk,
			fmt.Sprintf("window %d starts beyond the validator's clock skew allowance",
				chunkIndex))
	}

	// The chunk entry is fully determined by its index, so validation does not
	// require the chunk to have been committed locally. If it has been, it
	// must be the canonical one.
	chunk := NewChunk(chunkIndex, x.params)
	if stored, err := x.store.GetChunk(chunkIndex); err == nil {
		if verr := stored.Verify(x.params); verr != nil {
			return verr
		}
		chunk = stored
	}

	prior, err := x.priorRecords(rec)
	if err != nil {
		return err
	}

	if len(prior) >= x.params.EnforceSpamLimit {
		return NewLinkError(SpamLimitExceeded,
			fmt.Sprintf("author %s exceeds %d links on chunk %d",
				rec.Author(), x.params.EnforceSpamLimit, chunkIndex))
	}

	if len(prior) < x.params.DirectChunkLinkLimit {
		if !rec.IsDirect(chunk) {
			return NewLinkError(ChainDiscontinuity,
				fmt.Sprintf("record %d of author %s on chunk %d should link from the chunk",
					rec.Seq(), rec.Author(), chunkIndex))
		}
		return nil
	}

	if rec.IsDirect(chunk) {
		return NewLinkError(DirectLimitExceeded,
			fmt.Sprintf("author %s exceeds %d direct links on chunk %d",
				rec.Author(), x.params.DirectChunkLinkLimit, chunkIndex))
	}

	tip := prior[len(prior)-1]
	if rec.Body.Source != tip.Target() {
		return NewLinkError(ChainDiscontinuity,
			fmt.Sprintf("record %d of author %s on chunk %d links from %s, expected %s",
				rec.Seq(), rec.Author(), chunkIndex, rec.Body.Source, tip.Target()))
	}

	return nil
}

// InsertLink validates a record received from the network and commits it.
// Inserting a record that is already committed is a no-op.
func (x *Index) InsertLink(rec *LinkRecord, now time.Time) error {
	if err := x.ValidateLink(rec, now); err != nil {
		x.logger.WithFields(logrus.Fields{
			"record": rec.Hex(),
			"author": rec.Author(),
			"error":  err,
		}).Debug("Refused link")
		return err
	}
	return x.store.SetLink(rec)
}

// priorRecords returns the author's committed records on the record's chunk
// that precede it in the author's own history, in Seq order. A committed
// record holding the same Seq as the candidate is a fork of the author's
// history and fails the replay outright.
func (x *Index) priorRecords(rec *LinkRecord) ([]*LinkRecord, error) {
	hashes, err := x.store.AuthorChunkLinks(rec.Author(), rec.Body.ChunkIndex)
	if err != nil {
		return nil, err
	}

	prior := []*LinkRecord{}
	for _, h := range hashes {
		other, err := x.store.GetLink(h)
		if err != nil {
			return nil, err
		}
		if other.Seq() == rec.Seq() && other.Hex() != rec.Hex() {
			return nil, NewLinkError(ChainDiscontinuity,
				fmt.Sprintf("author %s already committed seq %d on chunk %d",
					rec.Author(), rec.Seq(), rec.Body.ChunkIndex))
		}
		if other.Seq() < rec.Seq() {
			prior = append(prior, other)
		}
	}
	return prior, nil
}
