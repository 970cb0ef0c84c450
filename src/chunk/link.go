package chunk

import (
	"bytes"
	"crypto/ecdsa"
	"time"

	"github.com/ugorji/go/codec"

	"github.com/chronomesh/timechunk/src/common"
	"github.com/chronomesh/timechunk/src/crypto"
	"github.com/chronomesh/timechunk/src/crypto/keys"
)

/*******************************************************************************
LinkBody
*******************************************************************************/

// LinkBody contains the payload of a LinkRecord and the information that ties
// it to its chunk and to the author's own history.
type LinkBody struct {
	// ChunkIndex is the window index of the chunk this record is rooted at,
	// whether the record links from the chunk directly or continues a chain.
	ChunkIndex int64

	// Source is the entry this record links from: the chunk's content address
	// for a direct link, or the previous record's Target for a chained link.
	Source string

	// Target is the entry being linked to.
	Target string

	// Tag is an opaque payload carried on the edge. It is not interpreted
	// here; applications use it to qualify links.
	Tag []byte

	// Author is the creating peer's public key.
	Author []byte

	// Seq is the record's position in the author's own causally ordered
	// history. It totally orders one author's records without requiring any
	// cross-author ordering.
	Seq int

	// Timestamp is the author's claimed creation time, UnixNano.
	Timestamp int64
}

// Marshal returns the canonical JSON encoding of a LinkBody.
func (b *LinkBody) Marshal() ([]byte, error) {
	buf := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(buf, jh)
	if err := enc.Encode(b); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal converts a canonical JSON encoding back to a LinkBody.
func (b *LinkBody) Unmarshal(data []byte) error {
	buf := bytes.NewBuffer(data)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(buf, jh)
	return dec.Decode(b)
}

// Hash returns the SHA256 hash of the canonical LinkBody encoding. This is
// what the author signs.
func (b *LinkBody) Hash() ([]byte, error) {
	hashBytes, err := b.Marshal()
	if err != nil {
		return nil, err
	}
	return crypto.SHA256(hashBytes), nil
}

/*******************************************************************************
LinkRecord
*******************************************************************************/

// LinkRecord is one edge created by one author. Records are append-only and
// owned exclusively by their author; per (author, chunk) they form a causally
// ordered sequence of direct links from the chunk followed by chained links
// where each record's Source is the preceding record's Target.
type LinkRecord struct {
	Body      LinkBody
	Signature string

	author string
	hash   []byte
	hex    string
}

// NewLinkRecord instantiates an unsigned LinkRecord.
func NewLinkRecord(chunkIndex int64, source, target string, tag []byte,
	author []byte, seq int, timestamp time.Time) *LinkRecord {

	return &LinkRecord{
		Body: LinkBody{
			ChunkIndex: chunkIndex,
			Source:     source,
			Target:     target,
			Tag:        tag,
			Author:     author,
			Seq:        seq,
			Timestamp:  timestamp.UnixNano(),
		},
	}
}

// Author returns the hex representation of the creator's public key.
func (r *LinkRecord) Author() string {
	if r.author == "" {
		r.author = common.EncodeToString(r.Body.Author)
	}
	return r.author
}

// Seq returns the record's position in the author's personal history.
func (r *LinkRecord) Seq() int {
	return r.Body.Seq
}

// Target returns the linked entry.
func (r *LinkRecord) Target() string {
	return r.Body.Target
}

// IsDirect reports whether the record links directly from the chunk, as
// opposed to continuing the author's chain.
func (r *LinkRecord) IsDirect(c *Chunk) bool {
	return r.Body.Source == c.Hex()
}

// Timestamp returns the author's claimed creation time.
func (r *LinkRecord) Timestamp() time.Time {
	return time.Unix(0, r.Body.Timestamp).UTC()
}

// Sign signs the record body with an author's private key.
func (r *LinkRecord) Sign(privKey *ecdsa.PrivateKey) error {
	signBytes, err := r.Body.Hash()
	if err != nil {
		return err
	}
	R, S, err := keys.Sign(privKey, signBytes)
	if err != nil {
		return err
	}
	r.Signature = keys.EncodeSignature(R, S)
	return nil
}

// Verify checks the record's signature against the public key embedded in its
// body.
func (r *LinkRecord) Verify() (bool, error) {
	pubKey := keys.ToPublicKey(r.Body.Author)

	signBytes, err := r.Body.Hash()
	if err != nil {
		return false, err
	}

	R, S, err := keys.DecodeSignature(r.Signature)
	if err != nil {
		return false, err
	}

	return keys.Verify(pubKey, signBytes, R, S), nil
}

// Marshal returns the canonical JSON encoding of body and signature. This is
// the storage and wire format.
func (r *LinkRecord) Marshal() ([]byte, error) {
	buf := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(buf, jh)
	if err := enc.Encode(r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal converts a canonical JSON encoding back to a LinkRecord.
func (r *LinkRecord) Unmarshal(data []byte) error {
	r.author = ""
	r.hash = nil
	r.hex = ""
	buf := bytes.NewBuffer(data)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(buf, jh)
	return dec.Decode(r)
}

// Hash returns the SHA256 content address of the signed record.
func (r *LinkRecord) Hash() ([]byte, error) {
	if len(r.hash) == 0 {
		hashBytes, err := r.Marshal()
		if err != nil {
			return nil, err
		}
		r.hash = crypto.SHA256(hashBytes)
	}
	return r.hash, nil
}

// Hex returns the hex string of the record's content address.
func (r *LinkRecord) Hex() string {
	if r.hex == "" {
		hash, _ := r.Hash()
		r.hex = common.EncodeToString(hash)
	}
	return r.hex
}

/*******************************************************************************
Sorting
*******************************************************************************/

// ByAuthorSeq implements sort.Interface for []*LinkRecord based on the Seq
// field. It only makes sense for records from a single author.
type ByAuthorSeq []*LinkRecord

func (a ByAuthorSeq) Len() int      { return len(a) }
func (a ByAuthorSeq) Swap(i, j int) { a[i], a[j] = a[j], a[i] }
func (a ByAuthorSeq) Less(i, j int) bool {
	return a[i].Body.Seq < a[j].Body.Seq
}
