package remote

import (
	"encoding/json"
	"fmt"
)

// insertRequest is the body of POST /vector.
type insertRequest struct {
	ID        string            `json:"id"`
	Embedding []float32         `json:"embedding"`
	Metadata  map[string]string `json:"metadata"`
}

// searchRequest is the body of POST /search.
type searchRequest struct {
	Vector []float32 `json:"vector"`
	K      int       `json:"k"`
}

// searchResponse is the body returned by POST /search.
type searchResponse struct {
	Results []hit `json:"results"`
}

// hit is one [id, score] pair of a search response.
type hit struct {
	ID    string
	Score float32
}

func (h *hit) UnmarshalJSON(b []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(b, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("search result has %d elements, want [id, score]", len(pair))
	}
	if err := json.Unmarshal(pair[0], &h.ID); err != nil {
		return fmt.Errorf("search result id: %w", err)
	}
	if err := json.Unmarshal(pair[1], &h.Score); err != nil {
		return fmt.Errorf("search result score: %w", err)
	}
	return nil
}
