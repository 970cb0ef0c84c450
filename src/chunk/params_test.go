package chunk

import (
	"testing"
	"time"
)

func TestIndexAt(t *testing.T) {
	p := NewParams()

	if index := p.IndexAt(p.Epoch); index != 0 {
		t.Fatalf("IndexAt(epoch) should be 0, not %d", index)
	}

	if index := p.IndexAt(p.Epoch.Add(p.MaxChunkInterval - time.Nanosecond)); index != 0 {
		t.Fatalf("IndexAt(end of window 0) should be 0, not %d", index)
	}

	if index := p.IndexAt(p.Epoch.Add(p.MaxChunkInterval)); index != 1 {
		t.Fatalf("IndexAt(start of window 1) should be 1, not %d", index)
	}

	if index := p.IndexAt(p.Epoch.Add(100*p.MaxChunkInterval + time.Minute)); index != 100 {
		t.Fatalf("IndexAt(window 100) should be 100, not %d", index)
	}
}

func TestIndexAtBeforeEpoch(t *testing.T) {
	p := NewParams()

	if index := p.IndexAt(p.Epoch.Add(-time.Nanosecond)); index != -1 {
		t.Fatalf("IndexAt just before epoch should be -1, not %d", index)
	}

	if index := p.IndexAt(p.Epoch.Add(-p.MaxChunkInterval)); index != -1 {
		t.Fatalf("IndexAt(epoch - interval) should be -1, not %d", index)
	}

	if index := p.IndexAt(p.Epoch.Add(-p.MaxChunkInterval - time.Nanosecond)); index != -2 {
		t.Fatalf("IndexAt just before window -1 should be -2, not %d", index)
	}
}

func TestWindowBounds(t *testing.T) {
	p := NewParams()

	for _, index := range []int64{0, 1, 42} {
		start := p.WindowStart(index)
		end := p.WindowEnd(index)

		if got := end.Sub(start); got != p.MaxChunkInterval {
			t.Fatalf("window %d length should be %s, not %s", index, p.MaxChunkInterval, got)
		}

		if got := p.IndexAt(start); got != index {
			t.Fatalf("IndexAt(WindowStart(%d)) should be %d, not %d", index, index, got)
		}

		if got := p.IndexAt(end); got != index+1 {
			t.Fatalf("IndexAt(WindowEnd(%d)) should be %d, not %d", index, index+1, got)
		}
	}
}
