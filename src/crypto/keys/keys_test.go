package keys

import (
	"path"
	"reflect"
	"testing"

	"github.com/chronomesh/timechunk/src/crypto"
)

func TestSimpleKeyfile(t *testing.T) {
	dir := t.TempDir()

	simpleKeyfile := NewSimpleKeyfile(path.Join(dir, "priv_key"))

	// Try a read, should get nothing
	key, err := simpleKeyfile.ReadKey()
	if err == nil {
		t.Fatalf("ReadKey should generate an error")
	}
	if key != nil {
		t.Fatalf("key is not nil")
	}

	// Initialize a key and try a write
	key, _ = GenerateECDSAKey()

	if err := simpleKeyfile.WriteKey(key); err != nil {
		t.Fatalf("err: %v", err)
	}

	// Try a read, should get key
	nKey, err := simpleKeyfile.ReadKey()
	if err != nil {
		t.Fatalf("err: %v", err)
	}

	if !reflect.DeepEqual(*nKey, *key) {
		t.Fatalf("Keys do not match")
	}
}

func TestPrivateKeyRoundtrip(t *testing.T) {
	key, _ := GenerateECDSAKey()

	parsed, err := ParsePrivateKey(DumpPrivateKey(key))
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(*parsed, *key) {
		t.Fatalf("Keys do not match")
	}
}

func TestPublicKeyRoundtrip(t *testing.T) {
	key, _ := GenerateECDSAKey()

	pubBytes := FromPublicKey(&key.PublicKey)
	pub := ToPublicKey(pubBytes)

	if !reflect.DeepEqual(*pub, key.PublicKey) {
		t.Fatalf("Public keys do not match")
	}

	if PublicKeyHex(&key.PublicKey) == "" {
		t.Fatalf("PublicKeyHex should not be empty")
	}
}

func TestSignatureEncoding(t *testing.T) {
	privKey, _ := GenerateECDSAKey()

	msg := "J'aime mieux forger mon ame que la meubler"
	msgBytes := []byte(msg)
	msgHashBytes := crypto.SHA256(msgBytes)

	r, s, _ := Sign(privKey, msgHashBytes)

	encodedSig := EncodeSignature(r, s)

	dr, ds, err := DecodeSignature(encodedSig)
	if err != nil {
		t.Logf("r: %#v", r)
		t.Logf("s: %#v", s)
		t.Logf("error decoding %v", encodedSig)
		t.Fatal(err)
	}

	if r.Cmp(dr) != 0 {
		t.Fatalf("Signature Rs defer")
	}

	if s.Cmp(ds) != 0 {
		t.Fatalf("Signature Ss defer")
	}
}

func TestSignVerify(t *testing.T) {
	privKey, _ := GenerateECDSAKey()

	msgHashBytes := crypto.SHA256([]byte("something to sign"))

	r, s, err := Sign(privKey, msgHashBytes)
	if err != nil {
		t.Fatal(err)
	}

	if !Verify(&privKey.PublicKey, msgHashBytes, r, s) {
		t.Fatalf("Verify returned false")
	}

	otherHash := crypto.SHA256([]byte("something else"))
	if Verify(&privKey.PublicKey, otherHash, r, s) {
		t.Fatalf("Verify should fail on a different message")
	}
}
