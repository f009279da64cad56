package transcript

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

var timecodeLine = regexp.MustCompile(`^(\d{2}):(\d{2}):(\d{2})[,.](\d{3})\s*-->\s*(\d{2}):(\d{2}):(\d{2})[,.](\d{3})`)

// speakerPrefix matches "NAME:" cue prefixes some transcription tools emit.
var speakerPrefix = regexp.MustCompile(`^([A-Za-z][\w .'-]{0,30}):\s+`)

// ParseSRT reads SubRip-formatted transcript text and returns one Segment
// per cue. Cue text lines are joined with spaces and cleaned; cues that are
// empty after cleaning are dropped.
func ParseSRT(r io.Reader) ([]Segment, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var segments []Segment
	var cur *Segment
	var lines []string

	flush := func() {
		if cur == nil {
			return
		}
		text := CleanText(strings.Join(lines, " "))
		if text != "" {
			seg := *cur
			if m := speakerPrefix.FindStringSubmatch(text); m != nil {
				seg.Speaker = m[1]
				text = text[len(m[0]):]
			}
			seg.Text = text
			segments = append(segments, seg)
		}
		cur, lines = nil, nil
	}

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
			flush()
		case isDigits(line) && cur == nil:
			// sequence number, ignored
		case timecodeLine.MatchString(line):
			flush()
			m := timecodeLine.FindStringSubmatch(line)
			start := srtSeconds(m[1], m[2], m[3], m[4])
			end := srtSeconds(m[5], m[6], m[7], m[8])
			if end <= start {
				return nil, fmt.Errorf("srt: cue ends before it starts: %q", line)
			}
			cur = &Segment{Start: start, End: end}
		default:
			if cur != nil {
				lines = append(lines, line)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("srt: read: %w", err)
	}
	flush()
	return segments, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func srtSeconds(h, m, s, ms string) float64 {
	hi, _ := strconv.Atoi(h)
	mi, _ := strconv.Atoi(m)
	si, _ := strconv.Atoi(s)
	msi, _ := strconv.Atoi(ms)
	return float64(hi*3600+mi*60+si) + float64(msi)/1000.0
}
