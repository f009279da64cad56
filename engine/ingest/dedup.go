package ingest

import (
	"context"
	"fmt"

	"github.com/TranscriptaAI/transcripta/engine/chunk"
	"github.com/TranscriptaAI/transcripta/engine/domain"
	"github.com/TranscriptaAI/transcripta/engine/semantic"
)

// DedupIndex performs the two-tier existence check that makes re-ingestion
// idempotent. Tier 1 is a cheap video-level existence probe; tier 2 hashes
// the video's persisted texts and compares content hashes, so re-chunking
// runs that reproduce identical content under shifted indexes still dedup.
//
// The check-then-insert sequence is not atomic across processes; the
// content-addressed record IDs assigned at the storage stage are the
// authoritative guard against a double-insert race.
type DedupIndex struct {
	store semantic.Store
}

// NewDedupIndex creates a DedupIndex over the given store.
func NewDedupIndex(store semantic.Store) *DedupIndex {
	return &DedupIndex{store: store}
}

// Partition splits candidates into new chunks and a duplicate count. When
// no record exists for the video, tier 2 is skipped and every candidate is
// new. Candidates duplicated within the same batch are also collapsed.
func (d *DedupIndex) Partition(ctx context.Context, videoID string, candidates []chunk.Chunk) ([]chunk.Chunk, int, error) {
	seen := make(map[string]struct{})

	exists, err := d.store.HasVideo(ctx, videoID)
	if err != nil {
		return nil, 0, domain.Upstream("storage", fmt.Errorf("dedup existence check: %w", err))
	}
	if exists {
		stored, err := d.store.StoredTexts(ctx, videoID)
		if err != nil {
			return nil, 0, domain.Upstream("storage", fmt.Errorf("dedup fetch texts: %w", err))
		}
		for _, s := range stored {
			seen[chunk.HashContent(s.Text)] = struct{}{}
		}
	}

	var fresh []chunk.Chunk
	duplicates := 0
	for _, c := range candidates {
		if _, dup := seen[c.ContentHash]; dup {
			duplicates++
			continue
		}
		seen[c.ContentHash] = struct{}{}
		fresh = append(fresh, c)
	}
	return fresh, duplicates, nil
}
