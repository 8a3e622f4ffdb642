package models

// SearchResult is a single search hit joined with photo metadata.
// Distance is metric-specific (squared L2 by default: non-negative, 0 means
// identical; for inner product it is negated so ascending still means more
// similar). It is not normalized to [0,1].
type SearchResult struct {
	PhotoID  int64    `json:"photo_id"`
	Filename string   `json:"filename"`
	Tags     []string `json:"tags"`
	Caption  string   `json:"caption"`
	Distance float32  `json:"distance"`
	// Score is the keyword relevance score; only set for keyword search.
	Score float64 `json:"score,omitempty"`
	Rank  int     `json:"rank"`
}

// SearchResponse is the response for a search request.
type SearchResponse struct {
	Query       string          `json:"query"`
	Results     []*SearchResult `json:"results"`
	Total       int             `json:"total_results"`
	QueryTimeMs int64           `json:"query_time_ms"`
}

// Health reports index liveness for the health endpoint.
type Health struct {
	Entries    int    `json:"entry_count"`
	Generation uint64 `json:"generation"`
	Dimensions int    `json:"dimensionality"`
}
