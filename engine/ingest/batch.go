package ingest

import (
	"context"

	"github.com/TranscriptaAI/transcripta/engine/transcript"
)

// VideoStatus is the per-video outcome of a batch run.
type VideoStatus string

const (
	StatusProcessed VideoStatus = "processed" // new records written
	StatusSkipped   VideoStatus = "skipped"   // everything already stored
	StatusFailed    VideoStatus = "failed"
)

// BatchResult summarizes a multi-video run.
type BatchResult struct {
	Statuses  map[string]VideoStatus
	Reports   []Report
	Processed int
	Skipped   int
	Failed    int
}

// IngestAll processes transcripts sequentially. A failure on one video is
// recorded and the run continues; only context cancellation aborts the
// whole batch. The deps rate limiter, when set, paces the videos.
func (ing *Ingestor) IngestAll(ctx context.Context, transcripts []transcript.Transcript) (BatchResult, error) {
	res := BatchResult{Statuses: make(map[string]VideoStatus, len(transcripts))}
	log := ing.deps.logger()

	for _, t := range transcripts {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if ing.deps.Limiter != nil {
			if err := ing.deps.Limiter.Wait(ctx); err != nil {
				return res, err
			}
		}

		report, err := ing.Ingest(ctx, t)
		if err != nil {
			log.Error("batch: video failed", "video_id", t.VideoID, "error", err)
			res.Statuses[t.VideoID] = StatusFailed
			res.Failed++
			continue
		}
		res.Reports = append(res.Reports, report)
		if report.NewRecords == 0 && report.Chunks > 0 {
			res.Statuses[t.VideoID] = StatusSkipped
			res.Skipped++
		} else {
			res.Statuses[t.VideoID] = StatusProcessed
			res.Processed++
		}
	}
	return res, nil
}
