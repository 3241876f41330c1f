package retrieval

import "fmt"

// RerankOptions controls which reranked passages are kept.
type RerankOptions struct {
	// TopN is the maximum number of passages kept.
	TopN int
	// MinDocs passages are always kept regardless of score.
	MinDocs int
	// Threshold is the score a passage ranked past MinDocs must exceed.
	Threshold float32
}

// Validate checks the option ranges.
func (o RerankOptions) Validate() error {
	if o.TopN <= 0 {
		return fmt.Errorf("rerank topN must be positive, got %d", o.TopN)
	}
	if o.MinDocs < 0 {
		return fmt.Errorf("rerank minDocs must not be negative, got %d", o.MinDocs)
	}
	if o.MinDocs > o.TopN {
		return fmt.Errorf("rerank minDocs (%d) must not exceed topN (%d)", o.MinDocs, o.TopN)
	}
	return nil
}
