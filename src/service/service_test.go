package service

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chronomesh/timechunk/src/authors"
	"github.com/chronomesh/timechunk/src/chunk"
	"github.com/chronomesh/timechunk/src/common"
	"github.com/chronomesh/timechunk/src/crypto/keys"
)

// The service registers its handlers with the DefaultServerMux, which only
// accepts each pattern once per process, so all endpoints are exercised
// against a single instance.
func TestService(t *testing.T) {
	p := chunk.NewParams()
	p.DirectChunkLinkLimit = 2
	p.EnforceSpamLimit = 5

	index := chunk.NewIndex(p, chunk.NewInmemStore(100), common.NewTestEntry(t))

	key, _ := keys.GenerateECDSAKey()
	session := authors.NewSession(key, "alice", 0)

	now := p.Epoch.Add(30 * time.Minute)
	for i := 1; i <= 3; i++ {
		tag := []byte("comment")
		if i == 2 {
			tag = []byte("vote")
		}
		if _, err := index.AddLink(session, fmt.Sprintf("0xT%d", i), tag, now); err != nil {
			t.Fatalf("Error adding link %d: %s", i, err)
		}
	}

	s := NewService("127.0.0.1:8000", index, session.Author(), common.NewTestEntry(t))

	t.Run("stats", func(t *testing.T) {
		w := httptest.NewRecorder()
		s.GetStats(w, httptest.NewRequest("GET", "/stats", nil))

		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", w.Code)
		}

		stats := map[string]string{}
		if err := json.NewDecoder(w.Body).Decode(&stats); err != nil {
			t.Fatalf("Error decoding stats: %s", err)
		}
		if stats["last_chunk_index"] != "0" {
			t.Fatalf("last_chunk_index should be 0, not %s", stats["last_chunk_index"])
		}
		if stats["moniker"] != "alice" {
			t.Fatalf("moniker should be alice, not %s", stats["moniker"])
		}
	})

	t.Run("latest chunk", func(t *testing.T) {
		w := httptest.NewRecorder()
		s.GetLatestChunk(w, httptest.NewRequest("GET", "/chunks/latest", nil))

		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", w.Code)
		}

		var c chunkJSON
		if err := json.NewDecoder(w.Body).Decode(&c); err != nil {
			t.Fatalf("Error decoding chunk: %s", err)
		}
		if c.Index != 0 {
			t.Fatalf("Latest chunk should be window 0, not %d", c.Index)
		}
	})

	t.Run("chunks span", func(t *testing.T) {
		start := p.Epoch.Format(time.RFC3339)
		end := p.Epoch.Add(2 * p.MaxChunkInterval).Format(time.RFC3339)

		w := httptest.NewRecorder()
		s.GetChunks(w, httptest.NewRequest("GET",
			fmt.Sprintf("/chunks?start=%s&end=%s", start, end), nil))

		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", w.Code)
		}

		var res []chunkJSON
		if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
			t.Fatalf("Error decoding chunks: %s", err)
		}
		if len(res) != 1 || res[0].Index != 0 {
			t.Fatalf("Expected window 0 only, got %v", res)
		}
	})

	t.Run("chunks bad span", func(t *testing.T) {
		w := httptest.NewRecorder()
		s.GetChunks(w, httptest.NewRequest("GET", "/chunks?start=notatime", nil))

		if w.Code != http.StatusBadRequest {
			t.Fatalf("Expected 400, got %d", w.Code)
		}
	})

	t.Run("links", func(t *testing.T) {
		w := httptest.NewRecorder()
		s.GetLinks(w, httptest.NewRequest("GET", "/links/0", nil))

		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", w.Code)
		}

		var res []linkJSON
		if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
			t.Fatalf("Error decoding links: %s", err)
		}
		if len(res) != 3 {
			t.Fatalf("Expected 3 links, got %d", len(res))
		}
		for i, rec := range res {
			if expected := fmt.Sprintf("0xT%d", i+1); rec.Target != expected {
				t.Fatalf("links[%d].Target should be %s, not %s", i, expected, rec.Target)
			}
		}
	})

	t.Run("links tag filter", func(t *testing.T) {
		w := httptest.NewRecorder()
		s.GetLinks(w, httptest.NewRequest("GET", "/links/0?tag=vote", nil))

		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", w.Code)
		}

		var res []linkJSON
		if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
			t.Fatalf("Error decoding links: %s", err)
		}
		if len(res) != 1 || res[0].Target != "0xT2" {
			t.Fatalf("Expected the vote link only, got %v", res)
		}
	})

	t.Run("links missing chunk", func(t *testing.T) {
		w := httptest.NewRecorder()
		s.GetLinks(w, httptest.NewRequest("GET", "/links/42", nil))

		if w.Code != http.StatusNotFound {
			t.Fatalf("Expected 404, got %d", w.Code)
		}
	})
}
