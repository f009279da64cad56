package chunk

import (
	"errors"
	"strings"
	"testing"

	"github.com/TranscriptaAI/transcripta/engine/domain"
	"github.com/TranscriptaAI/transcripta/engine/transcript"
)

func segs(pairs ...transcript.Segment) []transcript.Segment { return pairs }

func mustChunker(t *testing.T, cfg Config) *Chunker {
	t.Helper()
	c, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestFixedTwoGermanSegments(t *testing.T) {
	segments := segs(
		transcript.Segment{Start: 0, End: 10, Text: "Hallo."},
		transcript.Segment{Start: 10, End: 20, Text: "Wie geht es dir heute?"},
	)
	c := mustChunker(t, Config{Strategy: StrategyFixed, MaxChunkSize: 15})

	chunks := c.ChunkTranscript("v1", segments)
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(chunks))
	}
	if len(chunks[0].Text) != 15 {
		t.Errorf("chunk 0 length = %d, want 15", len(chunks[0].Text))
	}
	combined := transcript.Combine(segments)
	if got := chunks[0].Text + chunks[1].Text; got != combined {
		t.Errorf("chunks do not reassemble combined text: %q", got)
	}
	if chunks[0].Index != 0 || chunks[1].Index != 1 {
		t.Errorf("indexes = %d,%d, want 0,1", chunks[0].Index, chunks[1].Index)
	}
}

func TestFixedTrailingChunkAlwaysKept(t *testing.T) {
	segments := segs(transcript.Segment{Start: 0, End: 60, Text: strings.Repeat("a", 25)})
	c := mustChunker(t, Config{Strategy: StrategyFixed, MaxChunkSize: 10, MinChunkSize: 10})

	chunks := c.ChunkTranscript("v1", segments)
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	if len(chunks[2].Text) != 5 {
		t.Errorf("trailing chunk length = %d, want 5", len(chunks[2].Text))
	}
}

func TestSemanticGreedyAndMinFilter(t *testing.T) {
	text := "First sentence here. Second sentence here. Third one. Tiny."
	segments := segs(transcript.Segment{Start: 0, End: 120, Text: text})
	c := mustChunker(t, Config{Strategy: StrategySemantic, MaxChunkSize: 45, MinChunkSize: 10})

	chunks := c.ChunkTranscript("v1", segments)
	if len(chunks) == 0 {
		t.Fatal("no chunks")
	}
	for i, ch := range chunks {
		if ch.Index != i {
			t.Errorf("chunk %d has index %d", i, ch.Index)
		}
		if len(ch.Text) < 10 {
			t.Errorf("chunk %d below min size: %q", i, ch.Text)
		}
	}
}

func TestSemanticOverlapSeedsNextChunk(t *testing.T) {
	// Sentences sized so the second chunk must start with the overlap
	// window taken from the first chunk's tail.
	text := "Alpha bravo charlie. Delta echo foxtrot. Golf hotel india."
	segments := segs(transcript.Segment{Start: 0, End: 300, Text: text})
	c := mustChunker(t, Config{Strategy: StrategySemantic, MaxChunkSize: 40, MinChunkSize: 5, Overlap: 20})

	chunks := c.ChunkTranscript("v1", segments)
	if len(chunks) < 2 {
		t.Fatalf("got %d chunks, want at least 2", len(chunks))
	}
	if !strings.Contains(chunks[1].Text, "Delta echo foxtrot") {
		t.Errorf("second chunk missing overlap tail: %q", chunks[1].Text)
	}
}

func TestRecursiveStride(t *testing.T) {
	text := strings.Repeat("abcdefghij", 10) // 100 chars
	segments := segs(transcript.Segment{Start: 0, End: 100, Text: text})
	c := mustChunker(t, Config{Strategy: StrategyRecursive, MaxChunkSize: 40, MinChunkSize: 10, Overlap: 10})

	chunks := c.ChunkTranscript("v1", segments)
	// stride 30: windows at 0, 30, 60, 90
	if len(chunks) != 4 {
		t.Fatalf("got %d chunks, want 4", len(chunks))
	}
	for _, ch := range chunks {
		if len(ch.Text) > 40 {
			t.Errorf("window exceeds max: %d", len(ch.Text))
		}
	}
	// consecutive windows share the overlap region
	if !strings.HasPrefix(chunks[1].Text, chunks[0].Text[30:]) {
		t.Error("windows do not overlap as configured")
	}
}

func TestRecursiveDropsShortTrailingWindow(t *testing.T) {
	text := strings.Repeat("x", 45)
	segments := segs(transcript.Segment{Start: 0, End: 50, Text: text})
	c := mustChunker(t, Config{Strategy: StrategyRecursive, MaxChunkSize: 40, MinChunkSize: 20})

	chunks := c.ChunkTranscript("v1", segments)
	// stride 40: window [40:45] is 5 chars, below min, dropped
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks, want 1", len(chunks))
	}
}

func TestVideoOptimizedSpeakerBoundary(t *testing.T) {
	segments := segs(
		transcript.Segment{Start: 0, End: 10, Text: "Welcome to the show everyone.", Speaker: "host"},
		transcript.Segment{Start: 10, End: 20, Text: "Glad to be here with you today.", Speaker: "guest"},
		transcript.Segment{Start: 20, End: 30, Text: "Let us get started right away then.", Speaker: "guest"},
	)
	c := mustChunker(t, Config{Strategy: StrategyVideoOptimized, MaxChunkSize: 200, MinChunkSize: 10})

	chunks := c.ChunkTranscript("v1", segments)
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2 (speaker change forces boundary)", len(chunks))
	}
	if strings.Contains(chunks[0].Text, "Glad to be here") {
		t.Errorf("host chunk contains guest speech: %q", chunks[0].Text)
	}
	if !strings.Contains(chunks[1].Text, "Let us get started") {
		t.Errorf("guest segments not merged: %q", chunks[1].Text)
	}
}

func TestVideoOptimizedSizeBoundary(t *testing.T) {
	long := strings.Repeat("word ", 30)
	segments := segs(
		transcript.Segment{Start: 0, End: 10, Text: long, Speaker: "a"},
		transcript.Segment{Start: 10, End: 20, Text: long, Speaker: "a"},
	)
	c := mustChunker(t, Config{Strategy: StrategyVideoOptimized, MaxChunkSize: 160, MinChunkSize: 10})

	chunks := c.ChunkTranscript("v1", segments)
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want 2 (size cap forces boundary)", len(chunks))
	}
}

func TestEmptySegmentsYieldNoChunks(t *testing.T) {
	c := mustChunker(t, DefaultConfig(StrategySemantic))
	if chunks := c.ChunkTranscript("v1", nil); len(chunks) != 0 {
		t.Fatalf("got %d chunks from empty segments", len(chunks))
	}
}

func TestParseStrategy(t *testing.T) {
	for _, name := range []string{"semantic", "recursive", "video_optimized", "fixed"} {
		s, err := ParseStrategy(name)
		if err != nil {
			t.Errorf("ParseStrategy(%q): %v", name, err)
		}
		if s.String() != name {
			t.Errorf("round trip %q -> %q", name, s.String())
		}
	}

	_, err := ParseStrategy("markov")
	if !errors.Is(err, domain.ErrUnknownStrategy) {
		t.Errorf("ParseStrategy(markov) = %v, want ErrUnknownStrategy", err)
	}
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("want ValidationError, got %T", err)
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		want error
	}{
		{"zero max", Config{Strategy: StrategySemantic, MaxChunkSize: 0}, domain.ErrInvalidChunkSize},
		{"min above max", Config{Strategy: StrategySemantic, MaxChunkSize: 10, MinChunkSize: 20}, domain.ErrInvalidChunkSize},
		{"negative overlap", Config{Strategy: StrategySemantic, MaxChunkSize: 10, Overlap: -1}, domain.ErrInvalidOverlap},
		{"recursive overlap eats stride", Config{Strategy: StrategyRecursive, MaxChunkSize: 10, Overlap: 10}, domain.ErrInvalidOverlap},
		{"ok", Config{Strategy: StrategyRecursive, MaxChunkSize: 100, MinChunkSize: 10, Overlap: 20}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.want == nil {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("Validate = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestHashContentNormalization(t *testing.T) {
	a := HashContent("Hello   World")
	b := HashContent("hello world")
	if a != b {
		t.Error("hash should be whitespace and case insensitive")
	}
	if a == HashContent("hello worlds") {
		t.Error("different text must hash differently")
	}
}

func TestChunkCountsMatchText(t *testing.T) {
	segments := segs(transcript.Segment{Start: 0, End: 60, Text: "one two three. four five six."})
	c := mustChunker(t, DefaultConfig(StrategySemantic))
	for _, ch := range c.ChunkTranscript("v1", segments) {
		if ch.CharCount != len(ch.Text) {
			t.Errorf("CharCount %d != len(Text) %d", ch.CharCount, len(ch.Text))
		}
		if ch.WordCount != len(strings.Fields(ch.Text)) {
			t.Errorf("WordCount mismatch for %q", ch.Text)
		}
		if ch.ContentHash == "" {
			t.Error("missing content hash")
		}
	}
}
