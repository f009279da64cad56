package chunk

import (
	"fmt"

	"github.com/TranscriptaAI/transcripta/engine/domain"
)

// Strategy selects a segmentation policy. The set is closed: dispatch happens
// on this enum in one place, never on free-form strings past config parsing.
type Strategy int

const (
	// StrategySemantic accumulates sentences greedily up to the size cap,
	// seeding each new chunk with an overlap window of trailing sentences.
	StrategySemantic Strategy = iota
	// StrategyRecursive slides a fixed-width character window with stride
	// max - overlap.
	StrategyRecursive
	// StrategyVideoOptimized is semantic chunking over raw segments with a
	// forced boundary on speaker change.
	StrategyVideoOptimized
	// StrategyFixed cuts non-overlapping windows of exactly max size; the
	// trailing window may be shorter and is always kept.
	StrategyFixed
)

func (s Strategy) String() string {
	switch s {
	case StrategySemantic:
		return "semantic"
	case StrategyRecursive:
		return "recursive"
	case StrategyVideoOptimized:
		return "video_optimized"
	case StrategyFixed:
		return "fixed"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// ParseStrategy maps a configured name to a Strategy. An unrecognized name
// is a construction-time configuration error.
func ParseStrategy(name string) (Strategy, error) {
	switch name {
	case "semantic":
		return StrategySemantic, nil
	case "recursive":
		return StrategyRecursive, nil
	case "video_optimized":
		return StrategyVideoOptimized, nil
	case "fixed":
		return StrategyFixed, nil
	default:
		return 0, domain.NewValidationError("strategy", name, domain.ErrUnknownStrategy)
	}
}

// Config holds the tunables of one segmentation policy.
type Config struct {
	Strategy          Strategy
	MaxChunkSize      int
	MinChunkSize      int
	Overlap           int
	SemanticThreshold float64
}

// DefaultConfig returns the tuned defaults for a strategy.
func DefaultConfig(s Strategy) Config {
	switch s {
	case StrategyRecursive:
		return Config{Strategy: s, MaxChunkSize: 500, MinChunkSize: 100, Overlap: 50}
	case StrategyVideoOptimized:
		return Config{Strategy: s, MaxChunkSize: 600, MinChunkSize: 150, Overlap: 75, SemanticThreshold: 0.75}
	case StrategyFixed:
		return Config{Strategy: s, MaxChunkSize: 400, MinChunkSize: 400, Overlap: 0}
	default:
		return Config{Strategy: StrategySemantic, MaxChunkSize: 400, MinChunkSize: 100, Overlap: 50, SemanticThreshold: 0.7}
	}
}

// Validate rejects configurations the chunkers cannot make progress with.
func (c Config) Validate() error {
	if c.MaxChunkSize <= 0 {
		return domain.NewValidationError("max_chunk_size", fmt.Sprint(c.MaxChunkSize), domain.ErrInvalidChunkSize)
	}
	if c.MinChunkSize < 0 || c.MinChunkSize > c.MaxChunkSize {
		return domain.NewValidationError("min_chunk_size", fmt.Sprint(c.MinChunkSize), domain.ErrInvalidChunkSize)
	}
	if c.Overlap < 0 {
		return domain.NewValidationError("overlap", fmt.Sprint(c.Overlap), domain.ErrInvalidOverlap)
	}
	if c.Strategy == StrategyRecursive && c.Overlap >= c.MaxChunkSize {
		// stride of max - overlap must move the window forward
		return domain.NewValidationError("overlap", fmt.Sprint(c.Overlap), domain.ErrInvalidOverlap)
	}
	return nil
}
