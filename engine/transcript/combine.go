package transcript

import (
	"regexp"
	"strings"
)

var bracketNoise = regexp.MustCompile(`\[(?:Music|Applause|Laughter|Cheering|Inaudible)\]`)
var multiSpace = regexp.MustCompile(`\s+`)

// Combine joins trimmed non-empty segment texts with single spaces into one
// continuous text stream. The caller retains the segment list for timestamp
// reconstruction; a chunk never crosses a video boundary because chunking
// always operates on one transcript at a time.
func Combine(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		if t := strings.TrimSpace(seg.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// TotalTextLength sums the raw text length of all segments. Used by the
// chunk timestamp estimator, which works on unCombined segment lengths.
func TotalTextLength(segments []Segment) int {
	n := 0
	for _, seg := range segments {
		n += len(seg.Text)
	}
	return n
}

// CleanText removes bracket noise, unescapes common HTML entities,
// collapses whitespace, and trims. Applied to segment text coming from
// caption-style transcript sources.
func CleanText(text string) string {
	text = bracketNoise.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "&#39;", "'")
	text = strings.ReplaceAll(text, "&amp;", "&")
	text = strings.ReplaceAll(text, "&quot;", `"`)
	text = strings.ReplaceAll(text, "&lt;", "<")
	text = strings.ReplaceAll(text, "&gt;", ">")
	text = multiSpace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
