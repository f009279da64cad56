package chunk

import "github.com/TranscriptaAI/transcripta/engine/transcript"

// avgTargetChunkSize is the fixed average size used to estimate how many
// chunks a transcript will produce. Deliberately independent of the
// strategy's own max size so that estimated positions stay comparable
// across strategies.
const avgTargetChunkSize = 400

const (
	minChunkDuration = 10.0
	maxChunkDuration = 120.0
	// tailRatio caps the position of chunks past the estimate near the
	// end of the video.
	tailRatio = 0.95
	// nonFirstFloor keeps chunks after the first from colliding with
	// chunk 0's start when the proportional estimate lands on zero.
	nonFirstFloor = 0.1
)

// timeEstimator reconstructs approximate chunk timestamps proportionally
// from chunk index and text length. This is an estimate, not an exact
// chunk-to-segment alignment; its clamps are load-bearing for downstream
// compatibility and must not be "corrected".
type timeEstimator struct {
	videoStart   float64
	videoEnd     float64
	duration     float64
	totalTextLen float64
	estimated    float64 // estimated total chunk count
}

func newTimeEstimator(segments []transcript.Segment) timeEstimator {
	if len(segments) == 0 {
		return timeEstimator{}
	}
	total := float64(transcript.TotalTextLength(segments))
	start := segments[0].Start
	end := segments[len(segments)-1].End
	return timeEstimator{
		videoStart:   start,
		videoEnd:     end,
		duration:     end - start,
		totalTextLen: total,
		estimated:    total / avgTargetChunkSize,
	}
}

// span estimates (start, end) for the chunk at index with the given text
// length.
func (e timeEstimator) span(index, textLen int) (float64, float64) {
	if e.totalTextLen == 0 {
		return e.videoStart, e.videoStart
	}

	ratio := tailRatio
	if float64(index) < e.estimated {
		ratio = float64(index) / e.estimated
	}

	dur := float64(textLen) / e.totalTextLen * e.duration
	if dur < minChunkDuration {
		dur = minChunkDuration
	}
	if dur > maxChunkDuration {
		dur = maxChunkDuration
	}

	start := e.videoStart + ratio*e.duration
	if index > 0 && start == 0 {
		start = nonFirstFloor
	}
	end := start + dur
	if end > e.videoEnd {
		end = e.videoEnd
	}
	if start > e.videoEnd {
		start = e.videoEnd - dur
	}
	return start, end
}
