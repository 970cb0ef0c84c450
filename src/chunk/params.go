package chunk

import "time"

// Default network parameters. They are only defaults for new network
// instances; once an instance exists its parameters never change.
const (
	DefaultMaxChunkInterval     = time.Hour
	DefaultDirectChunkLinkLimit = 10
	DefaultEnforceSpamLimit     = 100
	DefaultFutureTolerance      = 10 * time.Second
)

// Params are the fixed constants of a network instance. Every peer of an
// instance runs with the same Params for the lifetime of that instance; this
// is what makes admission decisions reproducible on any peer from purely
// local data. Changing a limit means starting a new instance, otherwise
// partitions running old limits could never be told apart from malicious
// authors.
type Params struct {
	// Epoch is the network instance origin. Window 0 starts here.
	Epoch time.Time

	// MaxChunkInterval is the length of each time window.
	MaxChunkInterval time.Duration

	// DirectChunkLinkLimit is the number of direct links a single author may
	// attach to one chunk before further links must be chained.
	DirectChunkLinkLimit int

	// EnforceSpamLimit is the total number of links (direct plus chained) a
	// single author may create on one chunk.
	EnforceSpamLimit int

	// FutureTolerance is the clock skew allowed before a window that starts
	// in the future is rejected.
	FutureTolerance time.Duration
}

// NewParams returns Params with the default constants and the Unix epoch as
// origin.
func NewParams() *Params {
	return &Params{
		Epoch:                time.Unix(0, 0).UTC(),
		MaxChunkInterval:     DefaultMaxChunkInterval,
		DirectChunkLinkLimit: DefaultDirectChunkLinkLimit,
		EnforceSpamLimit:     DefaultEnforceSpamLimit,
		FutureTolerance:      DefaultFutureTolerance,
	}
}

// IndexAt maps a timestamp to its window index: floor((t - epoch) /
// MaxChunkInterval). It is a pure function; two peers with the same Params
// always agree on it without coordination. Timestamps before the epoch map to
// negative indices, which no other operation accepts.
func (p *Params) IndexAt(t time.Time) int64 {
	d := t.Sub(p.Epoch)
	index := int64(d / p.MaxChunkInterval)
	if d < 0 && d%p.MaxChunkInterval != 0 {
		index--
	}
	return index
}

// WindowStart returns the inclusive start of window index.
func (p *Params) WindowStart(index int64) time.Time {
	return p.Epoch.Add(time.Duration(index) * p.MaxChunkInterval)
}

// WindowEnd returns the exclusive end of window index.
func (p *Params) WindowEnd(index int64) time.Time {
	return p.WindowStart(index).Add(p.MaxChunkInterval)
}
