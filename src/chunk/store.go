package chunk

// Store is the interface to the content-addressed entry store that backs the
// index. It persists chunk entries keyed by window index, link records keyed
// by content address, and the per-(author, chunk) edge index that validation
// and traversal replay. Implementations must make SetChunk idempotent for
// canonical entries, because concurrent authors create the same chunk.
type Store interface {
	// CacheSize returns the maximum number of items held in read caches.
	CacheSize() int
	// GetChunk returns the committed chunk entry for a window index.
	GetChunk(index int64) (*Chunk, error)
	// SetChunk commits a chunk entry. Re-committing the same canonical entry
	// is a no-op; committing a different entry under an occupied index fails
	// with KeyAlreadyExists.
	SetChunk(*Chunk) error
	// LastChunkIndex returns the highest committed window index, or -1 when
	// no chunk has ever been committed.
	LastChunkIndex() int64
	// GetLink returns a link record by content address.
	GetLink(hex string) (*LinkRecord, error)
	// SetLink appends a link record and indexes it under its author and
	// chunk. Re-committing an identical record is a no-op.
	SetLink(*LinkRecord) error
	// AuthorChunkLinks returns the content addresses of one author's records
	// rooted at a chunk, in the author's causal (Seq) order.
	AuthorChunkLinks(author string, chunkIndex int64) ([]string, error)
	// ChunkAuthors returns the authors that have records rooted at a chunk,
	// in stable order.
	ChunkAuthors(chunkIndex int64) ([]string, error)
	// LastSeqFrom returns the highest Seq committed by an author across all
	// chunks, or -1 when the author has no records.
	LastSeqFrom(author string) (int, error)
	// Close closes the underlying database.
	Close() error
	// StorePath returns the filepath of the underlying database.
	StorePath() string
}
