package chunk

import (
	"bytes"
	"fmt"
	"time"

	"github.com/ugorji/go/codec"

	"github.com/chronomesh/timechunk/src/common"
	"github.com/chronomesh/timechunk/src/crypto"
)

/*******************************************************************************
ChunkBody
*******************************************************************************/

// ChunkBody is the serialized content of a Chunk entry. From and Until are
// UnixNano timestamps; storing them as integers keeps the canonical encoding
// free of timezone or monotonic-clock noise, so that two authors creating the
// same window always produce byte-identical entries.
type ChunkBody struct {
	Index int64
	From  int64
	Until int64
}

// Marshal returns the canonical JSON encoding of a ChunkBody.
func (b *ChunkBody) Marshal() ([]byte, error) {
	buf := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(buf, jh)
	if err := enc.Encode(b); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal converts a canonical JSON encoding back to a ChunkBody.
func (b *ChunkBody) Unmarshal(data []byte) error {
	buf := bytes.NewBuffer(data)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(buf, jh)
	return dec.Decode(b)
}

/*******************************************************************************
Chunk
*******************************************************************************/

// Chunk is the entry representing one fixed time window. Chunks anchor the
// link records created within their window, which shards link traffic away
// from the linked entries' own neighborhoods. A chunk is created lazily by
// whichever author first links within its window, and is immutable and shared
// thereafter. Its identity is fully determined by its index and the network's
// MaxChunkInterval, so concurrent creation converges on the same content
// address and is harmless.
type Chunk struct {
	Body ChunkBody

	hash []byte
	hex  string
}

// NewChunk builds the canonical chunk entry for a window index under the given
// network parameters.
func NewChunk(index int64, p *Params) *Chunk {
	return &Chunk{
		Body: ChunkBody{
			Index: index,
			From:  p.WindowStart(index).UnixNano(),
			Until: p.WindowEnd(index).UnixNano(),
		},
	}
}

// Index returns the window number since the network epoch.
func (c *Chunk) Index() int64 {
	return c.Body.Index
}

// From returns the inclusive start of the chunk's window.
func (c *Chunk) From() time.Time {
	return time.Unix(0, c.Body.From).UTC()
}

// Until returns the exclusive end of the chunk's window.
func (c *Chunk) Until() time.Time {
	return time.Unix(0, c.Body.Until).UTC()
}

// Verify checks that the chunk's stored window is exactly derivable from its
// index and the network parameters. A mismatch means the entry was tampered
// with or belongs to a network instance with different constants; either way
// the chunk must not be used.
func (c *Chunk) Verify(p *Params) error {
	if c.Body.Index < 0 {
		return NewLinkError(ChunkWindowMismatch,
			fmt.Sprintf("negative chunk index %d", c.Body.Index))
	}
	canonical := NewChunk(c.Body.Index, p)
	if c.Body != canonical.Body {
		return NewLinkError(ChunkWindowMismatch,
			fmt.Sprintf("chunk %d window [%d, %d) not derivable from index",
				c.Body.Index, c.Body.From, c.Body.Until))
	}
	return nil
}

// Marshal returns the canonical JSON encoding of the Chunk.
func (c *Chunk) Marshal() ([]byte, error) {
	return c.Body.Marshal()
}

// Unmarshal converts a canonical JSON encoding back to a Chunk.
func (c *Chunk) Unmarshal(data []byte) error {
	c.hash = nil
	c.hex = ""
	return c.Body.Unmarshal(data)
}

// Hash returns the SHA256 content address of the canonical encoding.
func (c *Chunk) Hash() ([]byte, error) {
	if len(c.hash) == 0 {
		hashBytes, err := c.Marshal()
		if err != nil {
			return nil, err
		}
		c.hash = crypto.SHA256(hashBytes)
	}
	return c.hash, nil
}

// Hex returns the hex string of the chunk's content address.
func (c *Chunk) Hex() string {
	if c.hex == "" {
		hash, _ := c.Hash()
		c.hex = common.EncodeToString(hash)
	}
	return c.hex
}
