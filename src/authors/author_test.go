package authors

import (
	"testing"

	"github.com/chronomesh/timechunk/src/crypto/keys"
)

func TestAuthorID(t *testing.T) {
	key, _ := keys.GenerateECDSAKey()

	author := NewAuthor(keys.PublicKeyHex(&key.PublicKey), "alice")

	if author.ID() == 0 {
		t.Fatalf("ID should be derived from the public key")
	}
	if author.ID() != author.ID() {
		t.Fatalf("ID should be stable")
	}

	same := NewAuthor(keys.PublicKeyHex(&key.PublicKey), "different moniker")
	if author.ID() != same.ID() {
		t.Fatalf("ID should only depend on the public key")
	}
}

func TestSessionSeq(t *testing.T) {
	key, _ := keys.GenerateECDSAKey()

	session := NewSession(key, "alice", 0)

	for i := 0; i < 5; i++ {
		if seq := session.NextSeq(); seq != i {
			t.Fatalf("NextSeq should be %d, not %d", i, seq)
		}
	}

	// A session restored from persisted history resumes where it left off.
	restored := NewSession(key, "alice", 5)
	if seq := restored.NextSeq(); seq != 5 {
		t.Fatalf("Restored session should continue at 5, not %d", seq)
	}

	if session.Author().PubKeyHex != restored.Author().PubKeyHex {
		t.Fatalf("Sessions of the same key should share an identity")
	}
}
