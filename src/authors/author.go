package authors

import (
	"github.com/chronomesh/timechunk/src/common"
	"github.com/chronomesh/timechunk/src/crypto/keys"
)

// Author identifies a peer that creates link records. Any key holder is an
// author; there is no membership list to agree on, because admission limits
// are evaluated per author against fixed network constants.
type Author struct {
	PubKeyHex string
	Moniker   string

	id uint32
}

// NewAuthor instantiates an Author from the hex representation of its public
// key.
func NewAuthor(pubKeyHex, moniker string) *Author {
	author := &Author{
		PubKeyHex: pubKeyHex,
		Moniker:   moniker,
	}
	author.computeID()
	return author
}

// PubKeyBytes returns the author's public key as raw bytes.
func (a *Author) PubKeyBytes() ([]byte, error) {
	return common.DecodeFromString(a.PubKeyHex)
}

// ID returns a compact numeric identifier derived from the public key. It is
// used for log readability only; the PubKeyHex string is the identity.
func (a *Author) ID() uint32 {
	if a.id == 0 {
		a.computeID()
	}
	return a.id
}

func (a *Author) computeID() {
	pubKey, err := a.PubKeyBytes()
	if err != nil {
		return
	}
	a.id = keys.PublicKeyID(pubKey)
}
