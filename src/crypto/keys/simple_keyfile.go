package keys

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"io/ioutil"
	"os"
	"strings"
	"sync"
)

// SimpleKeyfile reads and writes a private key from/to an unencrypted and
// unformatted file containing a raw hex dump of the key's D value.
type SimpleKeyfile struct {
	l       sync.Mutex
	keyfile string
}

// NewSimpleKeyfile instantiates a new SimpleKeyfile with an underlying file.
func NewSimpleKeyfile(keyfile string) *SimpleKeyfile {
	return &SimpleKeyfile{
		keyfile: keyfile,
	}
}

// ReadKey reads the private key from the underlying file.
func (k *SimpleKeyfile) ReadKey() (*ecdsa.PrivateKey, error) {
	k.l.Lock()
	defer k.l.Unlock()

	buf, err := ioutil.ReadFile(k.keyfile)
	if err != nil {
		return nil, err
	}

	rawKey := strings.TrimSpace(string(buf))

	d, err := hex.DecodeString(rawKey)
	if err != nil {
		return nil, fmt.Errorf("parsing keyfile %s: %v", k.keyfile, err)
	}

	return ParsePrivateKey(d)
}

// WriteKey writes the private key to the underlying file with user-only
// permissions.
func (k *SimpleKeyfile) WriteKey(key *ecdsa.PrivateKey) error {
	k.l.Lock()
	defer k.l.Unlock()

	return ioutil.WriteFile(k.keyfile, []byte(PrivateKeyHex(key)), os.FileMode(0600))
}
