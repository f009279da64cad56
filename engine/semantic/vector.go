package semantic

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Vector is an embedding vector. Backends may persist vectors as native
// float arrays or as a serialized textual form ("[0.1, 0.2, ...]"); Vector
// decodes either so the retriever can accept both.
type Vector []float32

// UnmarshalJSON accepts a JSON float array or a quoted textual vector.
func (v *Vector) UnmarshalJSON(data []byte) error {
	var floats []float32
	if err := json.Unmarshal(data, &floats); err == nil {
		*v = floats
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("vector: not an array or string: %s", truncate(string(data)))
	}
	parsed, err := ParseVector(s)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ParseVector parses a textual vector like "[0.1, 0.2]" or "0.1,0.2".
func ParseVector(s string) (Vector, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("vector: empty")
	}
	parts := strings.Split(s, ",")
	out := make(Vector, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("vector: component %d: %w", i, err)
		}
		out[i] = float32(f)
	}
	return out, nil
}

func truncate(s string) string {
	if len(s) > 40 {
		return s[:40] + "..."
	}
	return s
}
