package transcript

import (
	"strings"
	"testing"
)

const sampleSRT = `1
00:00:01,000 --> 00:00:04,500
HOST: Welcome back to
the channel.

2
00:00:04,500 --> 00:00:09,250
Today we look at something new.

3
00:00:09,250 --> 00:00:12,000
[Music]
`

func TestParseSRT(t *testing.T) {
	segments, err := ParseSRT(strings.NewReader(sampleSRT))
	if err != nil {
		t.Fatalf("ParseSRT: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("got %d segments, want 2 (music-only cue dropped)", len(segments))
	}

	first := segments[0]
	if first.Start != 1.0 || first.End != 4.5 {
		t.Errorf("first cue times = %.3f-%.3f", first.Start, first.End)
	}
	if first.Speaker != "HOST" {
		t.Errorf("speaker = %q, want HOST", first.Speaker)
	}
	if first.Text != "Welcome back to the channel." {
		t.Errorf("text = %q", first.Text)
	}

	second := segments[1]
	if second.Speaker != "" {
		t.Errorf("unexpected speaker %q", second.Speaker)
	}
	if second.Start != 4.5 || second.End != 9.25 {
		t.Errorf("second cue times = %.3f-%.3f", second.Start, second.End)
	}
}

func TestParseSRTDotMillisAndNoTrailingBlank(t *testing.T) {
	in := "1\n00:00:00.100 --> 00:00:02.000\nhello there"
	segments, err := ParseSRT(strings.NewReader(in))
	if err != nil {
		t.Fatalf("ParseSRT: %v", err)
	}
	if len(segments) != 1 || segments[0].Text != "hello there" {
		t.Fatalf("got %+v", segments)
	}
	if segments[0].Start != 0.1 {
		t.Errorf("start = %.3f, want 0.1", segments[0].Start)
	}
}

func TestParseSRTRejectsInvertedCue(t *testing.T) {
	in := "1\n00:00:05,000 --> 00:00:02,000\nbackwards"
	if _, err := ParseSRT(strings.NewReader(in)); err == nil {
		t.Fatal("expected error for cue ending before it starts")
	}
}

func TestParseSRTEmptyInput(t *testing.T) {
	segments, err := ParseSRT(strings.NewReader(""))
	if err != nil {
		t.Fatalf("ParseSRT: %v", err)
	}
	if len(segments) != 0 {
		t.Fatalf("got %d segments from empty input", len(segments))
	}
}
