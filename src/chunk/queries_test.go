package chunk

import (
	"testing"
	"time"
)

// populateWindows commits the canonical chunks for the given window indices.
func populateWindows(t *testing.T, index *Index, windows ...int64) {
	for _, w := range windows {
		if err := index.Store().SetChunk(NewChunk(w, index.Params())); err != nil {
			t.Fatalf("Error setting chunk %d: %s", w, err)
		}
	}
}

func TestCurrentChunk(t *testing.T) {
	p := testParams()
	index, _ := initTestIndex(t, p)
	now := p.Epoch.Add(30 * time.Minute)

	_, ok, err := index.CurrentChunk(now)
	if err != nil {
		t.Fatalf("Error getting current chunk: %s", err)
	}
	if ok {
		t.Fatalf("Empty window should resolve to no current chunk")
	}

	populateWindows(t, index, 0)

	chunk, ok, err := index.CurrentChunk(now)
	if err != nil {
		t.Fatalf("Error getting current chunk: %s", err)
	}
	if !ok || chunk.Index() != 0 {
		t.Fatalf("Current chunk should be window 0")
	}
}

func TestLatestChunk(t *testing.T) {
	p := testParams()
	index, _ := initTestIndex(t, p)

	now := p.Epoch.Add(10*p.MaxChunkInterval + 30*time.Minute)

	_, ok, err := index.LatestChunk(now)
	if err != nil {
		t.Fatalf("Error getting latest chunk: %s", err)
	}
	if ok {
		t.Fatalf("Empty index should resolve to no latest chunk")
	}

	// Quiet windows between 3 and now are skipped.
	populateWindows(t, index, 1, 3)

	chunk, ok, err := index.LatestChunk(now)
	if err != nil {
		t.Fatalf("Error getting latest chunk: %s", err)
	}
	if !ok || chunk.Index() != 3 {
		t.Fatalf("Latest chunk should be window 3")
	}

	// A reader whose clock is inside window 1 must not see window 3.
	earlier := p.Epoch.Add(p.MaxChunkInterval + 30*time.Minute)
	chunk, ok, err = index.LatestChunk(earlier)
	if err != nil {
		t.Fatalf("Error getting latest chunk: %s", err)
	}
	if !ok || chunk.Index() != 1 {
		t.Fatalf("Latest chunk at window 1 should be window 1, got %d", chunk.Index())
	}
}

func TestPreviousChunk(t *testing.T) {
	p := testParams()
	index, _ := initTestIndex(t, p)

	populateWindows(t, index, 1, 3, 7)

	from, err := index.Store().GetChunk(7)
	if err != nil {
		t.Fatalf("Error getting chunk: %s", err)
	}

	prev, ok, err := index.PreviousChunk(from, 1)
	if err != nil {
		t.Fatalf("Error walking back: %s", err)
	}
	if !ok || prev.Index() != 3 {
		t.Fatalf("One step back from 7 should be 3")
	}

	prev, ok, err = index.PreviousChunk(from, 2)
	if err != nil {
		t.Fatalf("Error walking back: %s", err)
	}
	if !ok || prev.Index() != 1 {
		t.Fatalf("Two steps back from 7 should be 1")
	}

	_, ok, err = index.PreviousChunk(from, 3)
	if err != nil {
		t.Fatalf("Error walking back: %s", err)
	}
	if ok {
		t.Fatalf("Walking past the epoch should report not found")
	}
}

func TestChunksForTimeSpan(t *testing.T) {
	p := testParams()
	index, _ := initTestIndex(t, p)

	populateWindows(t, index, 0, 2, 3, 8)

	start := p.WindowStart(1)
	end := p.WindowStart(4).Add(-time.Nanosecond)

	it := index.ChunksForTimeSpan(start, end)

	expected := []int64{2, 3}
	for _, want := range expected {
		chunk, err := it.Next()
		if err != nil {
			t.Fatalf("Error walking span: %s", err)
		}
		if chunk == nil || chunk.Index() != want {
			t.Fatalf("Expected window %d, got %v", want, chunk)
		}
	}
	if chunk, _ := it.Next(); chunk != nil {
		t.Fatalf("Span should be exhausted, got window %d", chunk.Index())
	}

	// Reset rewinds to the start of the span.
	it.Reset()
	chunk, err := it.Next()
	if err != nil {
		t.Fatalf("Error walking span after Reset: %s", err)
	}
	if chunk == nil || chunk.Index() != 2 {
		t.Fatalf("Reset should rewind to window 2")
	}
}

func TestChunksForTimeSpanBeforeEpoch(t *testing.T) {
	p := testParams()
	index, _ := initTestIndex(t, p)

	populateWindows(t, index, 0, 1)

	// A span starting before the epoch is clamped, not refused.
	it := index.ChunksForTimeSpan(p.Epoch.Add(-time.Hour), p.WindowStart(1))

	expected := []int64{0, 1}
	for _, want := range expected {
		chunk, err := it.Next()
		if err != nil {
			t.Fatalf("Error walking span: %s", err)
		}
		if chunk == nil || chunk.Index() != want {
			t.Fatalf("Expected window %d, got %v", want, chunk)
		}
	}
}

func TestChunkLinksTagFilter(t *testing.T) {
	p := testParams()
	index, session := initTestIndex(t, p)
	now := p.Epoch.Add(30 * time.Minute)

	if _, err := index.AddLink(session, "0xT1", []byte("comment"), now); err != nil {
		t.Fatalf("Error adding link: %s", err)
	}
	if _, err := index.AddLink(session, "0xT2", []byte("vote"), now); err != nil {
		t.Fatalf("Error adding link: %s", err)
	}
	if _, err := index.AddLink(session, "0xT3", []byte("comment"), now); err != nil {
		t.Fatalf("Error adding link: %s", err)
	}

	chunk, _, err := index.CurrentChunk(now)
	if err != nil {
		t.Fatalf("Error getting current chunk: %s", err)
	}

	all, err := index.ChunkLinks(chunk, nil)
	if err != nil {
		t.Fatalf("Error retrieving links: %s", err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 links, got %d", len(all))
	}

	comments, err := index.ChunkLinks(chunk, []byte("comment"))
	if err != nil {
		t.Fatalf("Error retrieving links: %s", err)
	}
	if len(comments) != 2 {
		t.Fatalf("Expected 2 comment links, got %d", len(comments))
	}
	for _, rec := range comments {
		if string(rec.Body.Tag) != "comment" {
			t.Fatalf("Unexpected tag %s", rec.Body.Tag)
		}
	}

	if none, _ := index.ChunkLinks(chunk, []byte("nosuch")); len(none) != 0 {
		t.Fatalf("Expected no links for unknown tag, got %d", len(none))
	}
}

func TestLinksForTimeSpan(t *testing.T) {
	p := testParams()
	index, session := initTestIndex(t, p)

	// Two links in window 0, one in window 2.
	w0 := p.Epoch.Add(30 * time.Minute)
	w2 := p.Epoch.Add(2*p.MaxChunkInterval + 30*time.Minute)

	if _, err := index.AddLink(session, "0xT1", nil, w0); err != nil {
		t.Fatalf("Error adding link: %s", err)
	}
	if _, err := index.AddLink(session, "0xT2", nil, w0); err != nil {
		t.Fatalf("Error adding link: %s", err)
	}
	if _, err := index.AddLink(session, "0xT3", nil, w2); err != nil {
		t.Fatalf("Error adding link: %s", err)
	}

	recs, err := index.LinksForTimeSpan(p.Epoch, w2, nil)
	if err != nil {
		t.Fatalf("Error retrieving links: %s", err)
	}
	if len(recs) != 3 {
		t.Fatalf("Expected 3 links, got %d", len(recs))
	}
	for i, expected := range []string{"0xT1", "0xT2", "0xT3"} {
		if recs[i].Target() != expected {
			t.Fatalf("recs[%d].Target should be %s, not %s", i, expected, recs[i].Target())
		}
	}

	head, err := index.LinksForTimeSpan(p.Epoch, p.WindowEnd(0).Add(-time.Nanosecond), nil)
	if err != nil {
		t.Fatalf("Error retrieving links: %s", err)
	}
	if len(head) != 2 {
		t.Fatalf("Expected 2 links in window 0, got %d", len(head))
	}
}
