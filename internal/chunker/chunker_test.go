package chunker

import (
	"strings"
	"testing"
)

func TestNewRejectsBadParameters(t *testing.T) {
	cases := []struct {
		name      string
		size      int
		overlap   int
		wantError bool
	}{
		{"zero size", 0, 0, true},
		{"negative overlap", 10, -1, true},
		{"overlap equals size", 10, 10, true},
		{"overlap exceeds size", 10, 12, true},
		{"no overlap", 10, 0, false},
		{"valid overlap", 10, 3, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.size, tc.overlap)
			if (err != nil) != tc.wantError {
				t.Fatalf("New(%d, %d) error = %v, want error = %v", tc.size, tc.overlap, err, tc.wantError)
			}
		})
	}
}

func TestSplitEmptyText(t *testing.T) {
	c, err := New(100, 20)
	if err != nil {
		t.Fatal(err)
	}
	if got := c.Split("", "doc.txt"); len(got) != 0 {
		t.Fatalf("expected no chunks for empty text, got %d", len(got))
	}
}

func TestSplitDeterministic(t *testing.T) {
	c, _ := New(4, 1)
	text := "A.\n\nB.\n\nC."
	first := c.Split(text, "faq.md")
	second := c.Split(text, "faq.md")
	if len(first) != len(second) {
		t.Fatalf("chunk counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("chunk %d differs between runs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestSplitOverlapStride(t *testing.T) {
	const size, overlap = 4, 1
	c, _ := New(size, overlap)
	chunks := c.Split("A.\n\nB.\n\nC.", "faq.md")
	if len(chunks) < 3 {
		t.Fatalf("expected at least 3 chunks, got %d", len(chunks))
	}
	for i := 1; i < len(chunks); i++ {
		stride := chunks[i].StartOffset - chunks[i-1].StartOffset
		if stride != size-overlap {
			t.Errorf("stride between chunk %d and %d = %d, want %d", i-1, i, stride, size-overlap)
		}
	}
}

func TestSplitCoversFullTextWithoutGaps(t *testing.T) {
	c, _ := New(4, 1)
	text := "A.\n\nB.\n\nC."
	chunks := c.Split(text, "faq.md")
	covered := make([]bool, len(text))
	for _, ch := range chunks {
		for i := range ch.Text {
			covered[ch.StartOffset+i] = true
		}
		if text[ch.StartOffset:ch.StartOffset+len(ch.Text)] != ch.Text {
			t.Errorf("chunk at %d does not match source slice", ch.StartOffset)
		}
	}
	for i, ok := range covered {
		if !ok {
			t.Errorf("byte %d of source not covered by any chunk", i)
		}
	}
}

func TestSplitLastChunkMayBeShort(t *testing.T) {
	c, _ := New(10, 2)
	text := strings.Repeat("x", 25)
	chunks := c.Split(text, "s")
	last := chunks[len(chunks)-1]
	if last.StartOffset+len(last.Text) != len(text) {
		t.Fatalf("last chunk ends at %d, want %d", last.StartOffset+len(last.Text), len(text))
	}
	for i, ch := range chunks[:len(chunks)-1] {
		if len(ch.Text) != 10 {
			t.Errorf("chunk %d has length %d, want full size 10", i, len(ch.Text))
		}
	}
}

func TestChunkIDsFollowContent(t *testing.T) {
	c, _ := New(4, 1)
	a := c.Split("A.\n\nB.\n\nC.", "faq.md")
	b := c.Split("A.\n\nB.\n\nC.", "other.md")
	if a[0].ID == b[0].ID {
		t.Error("chunks from different sources should not share IDs")
	}
	seen := make(map[string]bool)
	for _, ch := range a {
		if seen[ch.ID] {
			t.Errorf("duplicate chunk ID %s", ch.ID)
		}
		seen[ch.ID] = true
	}
}

func TestSplitTextShorterThanChunkSize(t *testing.T) {
	c, _ := New(1000, 200)
	chunks := c.Split("short", "s")
	if len(chunks) != 1 {
		t.Fatalf("expected a single chunk, got %d", len(chunks))
	}
	if chunks[0].Text != "short" || chunks[0].StartOffset != 0 {
		t.Errorf("unexpected chunk: %+v", chunks[0])
	}
}
