package timechunk

import (
	"testing"

	"github.com/chronomesh/timechunk/src/config"
)

func initTestConfig(t *testing.T, dataDir string) *config.Config {
	conf := config.NewTestConfig(t)
	conf.SetDataDir(dataDir)
	conf.NoService = true
	return conf
}

func TestInitAndAddLink(t *testing.T) {
	conf := initTestConfig(t, t.TempDir())

	engine := NewTimechunk(conf)
	if err := engine.Init(); err != nil {
		t.Fatalf("Error initializing engine: %s", err)
	}
	defer engine.Shutdown()

	rec, err := engine.AddLink("0xTARGET", []byte("comment"))
	if err != nil {
		t.Fatalf("Error adding link: %s", err)
	}
	if rec.Seq() != 0 {
		t.Fatalf("First record should have Seq 0, not %d", rec.Seq())
	}

	ok, err := rec.Verify()
	if err != nil || !ok {
		t.Fatalf("Record should verify. ok=%v err=%v", ok, err)
	}

	stored, err := engine.Index.Store().GetLink(rec.Hex())
	if err != nil {
		t.Fatalf("Record should be committed: %s", err)
	}
	if stored.Hex() != rec.Hex() {
		t.Fatalf("Stored record does not match")
	}
}

func TestSequenceSurvivesRestart(t *testing.T) {
	dataDir := t.TempDir()

	conf := initTestConfig(t, dataDir)
	conf.Store = true

	engine := NewTimechunk(conf)
	if err := engine.Init(); err != nil {
		t.Fatalf("Error initializing engine: %s", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := engine.AddLink("0xTARGET", nil); err != nil {
			t.Fatalf("Error adding link %d: %s", i, err)
		}
	}

	if err := engine.Shutdown(); err != nil {
		t.Fatalf("Error shutting down: %s", err)
	}

	// A restarted peer resumes the author's sequence from the database
	// instead of reusing numbers.
	conf2 := initTestConfig(t, dataDir)
	conf2.Store = true

	restarted := NewTimechunk(conf2)
	if err := restarted.Init(); err != nil {
		t.Fatalf("Error re-initializing engine: %s", err)
	}
	defer restarted.Shutdown()

	rec, err := restarted.AddLink("0xTARGET", nil)
	if err != nil {
		t.Fatalf("Error adding link after restart: %s", err)
	}
	if rec.Seq() != 2 {
		t.Fatalf("Record after restart should have Seq 2, not %d", rec.Seq())
	}
}
